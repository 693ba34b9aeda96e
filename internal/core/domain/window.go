package domain

// WindowID is the platform window identifier. It is the identity of a
// window for the lifetime of a run.
type WindowID uint32

// Bounds describes a window or display rectangle in global coordinates.
type Bounds struct {
	X      int
	Y      int
	Width  int
	Height int
}

// IsZero returns true when the rectangle has no resolved size.
func (b Bounds) IsZero() bool {
	return b.Width == 0 && b.Height == 0
}

// Window is a single on-screen window as observed by the tracker.
// Bounds and Title are mutable across refreshes; BundleID and PID are not.
type Window struct {
	// ID is the platform window id.
	ID WindowID

	// DisplayID identifies the display the window centre falls on.
	DisplayID uint32

	// BundleID is the owning application's reverse-DNS identifier.
	// Falls back to the process name when the platform reports a placeholder.
	BundleID string

	// AppName is the owning application's human-readable name.
	AppName string

	// Title is the window title at the time of the last refresh.
	Title string

	// Bounds is the window rectangle.
	Bounds Bounds

	// PID is the owning process id.
	PID int32

	// OnScreen reports whether the window is currently visible.
	OnScreen bool

	// Layer is the platform window layer; non-zero layers hold
	// overlays and system chrome rather than application windows.
	Layer int
}

// Display is a physical display. Refreshed on demand; lifetime spans the run.
type Display struct {
	ID        uint32
	Bounds    Bounds
	IsMain    bool
	IsBuiltin bool
}

// WindowChanges is the diff between two successive tracker refreshes.
type WindowChanges struct {
	// Created holds windows present now but absent from the previous refresh.
	Created []Window

	// Destroyed holds ids absent now but present previously.
	Destroyed []WindowID

	// TitleChanged holds windows whose title differs from the previous refresh.
	TitleChanged []Window

	// FocusChanged is the newly frontmost window, when focus moved.
	// Only a single window is active system-wide.
	FocusChanged *Window
}

// Empty returns true when the diff carries no events.
func (c *WindowChanges) Empty() bool {
	return len(c.Created) == 0 && len(c.Destroyed) == 0 &&
		len(c.TitleChanged) == 0 && c.FocusChanged == nil
}
