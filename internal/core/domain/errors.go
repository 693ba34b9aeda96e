package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Extraction Errors.

	// ErrNoContent indicates extraction succeeded but produced no text
	// after trimming. Demoted to debug logging, never persisted.
	ErrNoContent = errors.New("no content")

	// ErrPermissionDenied indicates a platform permission (accessibility,
	// screen recording) has not been granted.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAppNotFound indicates the owning application could not be resolved.
	ErrAppNotFound = errors.New("application not found")

	// ErrWindowNotFound indicates the window disappeared before extraction.
	ErrWindowNotFound = errors.New("window not found")

	// ErrExtractionFailed indicates a backend failed to produce content.
	// Wrap with detail: fmt.Errorf("%w: %v", ErrExtractionFailed, cause).
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrBlocked indicates the privacy filter suppressed the window.
	// Never surfaced to the user, never persisted.
	ErrBlocked = errors.New("blocked by privacy filter")

	// ErrTimeout indicates a helper invocation exceeded its deadline.
	ErrTimeout = errors.New("timed out")

	// ErrPlatform indicates an unexpected platform API failure.
	ErrPlatform = errors.New("platform error")

	// Storage Errors.

	// ErrStorage indicates a persistence failure. Surfaces on the wire
	// protocol as an error response; the server keeps serving.
	ErrStorage = errors.New("storage error")
)
