package driven

import (
	"context"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

// Extractor produces text content for a window. All backends share this
// one contract; selection is a pure function of bundle id.
type Extractor interface {
	// Kind identifies the backend.
	Kind() domain.ExtractorKind

	// Extract harvests the window's readable content. Failure modes are
	// the domain extraction errors (ErrNoContent, ErrPermissionDenied,
	// ErrAppNotFound, ErrExtractionFailed, ErrTimeout).
	Extract(ctx context.Context, win domain.Window) (*domain.ExtractedContent, error)
}

// WindowCapturer captures a window image without running recognition.
// The router uses it to feed the change detector before deciding whether
// to extract at all.
type WindowCapturer interface {
	// CaptureWindowImage writes a PNG of the window and returns its path.
	CaptureWindowImage(ctx context.Context, win domain.Window) (string, error)
}

// ChangeDetector suppresses re-extraction of visually unchanged windows.
type ChangeDetector interface {
	// HasChanged reports whether the window's perceptual hash moved at
	// least the configured Hamming distance since the last observation.
	// The first observation of a window is always a change.
	HasChanged(id domain.WindowID, imagePath string) (bool, error)

	// Evict drops the stored hash for a destroyed window.
	Evict(id domain.WindowID)
}
