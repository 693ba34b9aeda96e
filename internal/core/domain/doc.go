// Package domain defines the core business entities for glimpsed.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Window / Display: The tracked desktop surface
//   - ExtractedContent: Transient backend output
//   - CapturePayload: Canonical wire form handed to ingestion
//   - ContentSource / Chunk / Message: Persisted records
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
