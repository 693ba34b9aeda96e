package driven

import (
	"context"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

// WindowTracker maintains a refreshable view of on-screen windows across
// all displays. It exclusively owns the window and display maps; the
// router observes them only through snapshots and change diffs.
type WindowTracker interface {
	// RefreshDisplays re-enumerates displays.
	RefreshDisplays(ctx context.Context) ([]domain.Display, error)

	// RefreshWindows replaces the window map with a fresh enumeration and
	// returns the diff against the previous one. Enumeration failures
	// yield an empty diff rather than an error; the next tick retries.
	RefreshWindows(ctx context.Context) (*domain.WindowChanges, error)

	// FrontmostWindow returns the single system-wide focused window.
	FrontmostWindow() (domain.WindowID, bool)

	// Windows returns a snapshot of all tracked windows.
	Windows() []domain.Window

	// Get looks up a tracked window by id.
	Get(id domain.WindowID) (*domain.Window, bool)

	// DisplayFor returns the display a window sits on.
	DisplayFor(id domain.WindowID) (*domain.Display, bool)

	// Close stops the enumeration helper.
	Close() error
}
