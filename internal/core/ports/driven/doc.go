// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - WindowTracker: Window/display enumeration and diffing
//   - Extractor: Content extraction backends
//   - ChangeDetector: Perceptual-hash change gating
//   - CaptureStore: Source/chunk/message persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
//   - WindowCapturer: Screenshot capture for the change-detection path.
//     Without it, image-based gating is skipped and extraction proceeds
//     on timer triggers alone.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
