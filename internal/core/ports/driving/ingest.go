package driving

import (
	"context"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

// Ingestor converts capture payloads into persistent, deduplicated,
// chunked storage. Payloads are processed one at a time; callers may be
// in-process (the router) or the unix-socket server.
type Ingestor interface {
	// Ingest lands one payload. It never returns an error: failures are
	// reported in the result so the wire protocol can keep serving.
	Ingest(ctx context.Context, payload domain.CapturePayload) domain.IngestResult
}

// CaptureRouter runs the per-window state machine and tick loop.
type CaptureRouter interface {
	// Run blocks until the context is cancelled or Stop is called.
	Run(ctx context.Context) error

	// Stop signals the tick loop to exit between ticks.
	Stop()
}

// PrivacyController manages the runtime blocklist. The compiled-in
// always-blacklist is immune to Unblock.
type PrivacyController interface {
	// Patterns returns the user blocklist patterns.
	Patterns() []string

	// Block adds a bundle-id glob pattern to the user blocklist.
	Block(pattern string) error

	// Unblock removes a pattern from the user blocklist. Removing a
	// pattern never unblocks bundle ids matched by the always-blacklist.
	Unblock(pattern string) error

	// IsBlocked reports whether a bundle id is blocked by either list.
	IsBlocked(bundleID string) bool
}
