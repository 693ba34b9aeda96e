package tracker

import (
	"context"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
	"github.com/custodia-labs/glimpsed/internal/logger"
)

// minWindowSize filters out tooltips, badges and similar chrome.
const minWindowSize = 100

// bundlePlaceholder is what AppleScript-era platform tables report when
// a process has no bundle.
const bundlePlaceholder = "missing value"

// Tracker owns the window and display maps. The router reads them only
// through snapshots and the change diff returned by RefreshWindows.
type Tracker struct {
	source SnapshotSource

	mu        sync.RWMutex
	windows   map[domain.WindowID]domain.Window
	displays  map[uint32]domain.Display
	frontmost domain.WindowID
	hasFocus  bool

	// processName resolves a pid to its executable name, overridable in
	// tests. The default asks the process table.
	processName func(pid int32) (string, error)
}

// New builds a tracker over a snapshot source.
func New(source SnapshotSource) *Tracker {
	return &Tracker{
		source:      source,
		windows:     make(map[domain.WindowID]domain.Window),
		displays:    make(map[uint32]domain.Display),
		processName: defaultProcessName,
	}
}

func defaultProcessName(pid int32) (string, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return "", err
	}
	return proc.Name()
}

// RefreshDisplays re-enumerates displays.
func (t *Tracker) RefreshDisplays(ctx context.Context) ([]domain.Display, error) {
	snap, err := t.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.displays = make(map[uint32]domain.Display, len(snap.Displays))
	for _, d := range snap.Displays {
		t.displays[d.ID] = d
	}
	t.mu.Unlock()

	return snap.Displays, nil
}

// RefreshWindows replaces the window map with a fresh enumeration and
// returns the diff against the previous one. An enumeration failure
// yields an empty diff and keeps the previous map; the next tick retries.
func (t *Tracker) RefreshWindows(ctx context.Context) (*domain.WindowChanges, error) {
	snap, err := t.source.Snapshot(ctx)
	if err != nil {
		logger.Warn("window enumeration failed: %v", err)
		return &domain.WindowChanges{}, nil
	}
	return t.applySnapshot(snap), nil
}

// applySnapshot filters the enumeration, swaps the window map and
// computes the diff.
func (t *Tracker) applySnapshot(snap *Snapshot) *domain.WindowChanges {
	next := make(map[domain.WindowID]domain.Window, len(snap.Windows))
	for _, win := range snap.Windows {
		if !t.keep(win) {
			continue
		}
		win.BundleID = t.resolveBundle(win)
		next[win.ID] = win
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	changes := &domain.WindowChanges{}

	for id, win := range next {
		prev, known := t.windows[id]
		if !known {
			changes.Created = append(changes.Created, win)
			continue
		}
		if prev.Title != win.Title {
			changes.TitleChanged = append(changes.TitleChanged, win)
		}
	}
	for id := range t.windows {
		if _, still := next[id]; !still {
			changes.Destroyed = append(changes.Destroyed, id)
		}
	}

	// Only one window is active system-wide; the previous focus record
	// is dropped wholesale.
	if snap.HasFocus {
		if win, ok := next[snap.FrontmostID]; ok {
			if !t.hasFocus || t.frontmost != snap.FrontmostID {
				focused := win
				changes.FocusChanged = &focused
			}
			t.frontmost = snap.FrontmostID
			t.hasFocus = true
		} else {
			// The frontmost window did not survive filtering; report no
			// focus rather than a stale record.
			t.hasFocus = false
		}
	} else {
		t.hasFocus = false
	}

	if snap.Displays != nil {
		t.displays = make(map[uint32]domain.Display, len(snap.Displays))
		for _, d := range snap.Displays {
			t.displays[d.ID] = d
		}
	}

	t.windows = next
	return changes
}

// keep filters the enumeration down to capturable application windows.
func (t *Tracker) keep(win domain.Window) bool {
	if win.Bounds.IsZero() {
		return false
	}
	if win.Bounds.Width < minWindowSize || win.Bounds.Height < minWindowSize {
		return false
	}
	if win.Layer != 0 {
		return false
	}
	return win.OnScreen
}

// resolveBundle fills in the bundle id when the platform reported a
// placeholder, preferring the process name over the app name.
func (t *Tracker) resolveBundle(win domain.Window) string {
	bundle := strings.TrimSpace(win.BundleID)
	if bundle != "" && bundle != bundlePlaceholder {
		return bundle
	}

	if name, err := t.processName(win.PID); err == nil && name != "" {
		return name
	}
	return win.AppName
}

// FrontmostWindow returns the single system-wide focused window.
func (t *Tracker) FrontmostWindow() (domain.WindowID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frontmost, t.hasFocus
}

// Windows returns a snapshot of all tracked windows.
func (t *Tracker) Windows() []domain.Window {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.Window, 0, len(t.windows))
	for _, win := range t.windows {
		out = append(out, win)
	}
	return out
}

// Get looks up a tracked window by id.
func (t *Tracker) Get(id domain.WindowID) (*domain.Window, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	win, ok := t.windows[id]
	if !ok {
		return nil, false
	}
	return &win, true
}

// DisplayFor returns the display a window sits on.
func (t *Tracker) DisplayFor(id domain.WindowID) (*domain.Display, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	win, ok := t.windows[id]
	if !ok {
		return nil, false
	}
	d, ok := t.displays[win.DisplayID]
	if !ok {
		return nil, false
	}
	return &d, true
}

// Close stops the enumeration helper.
func (t *Tracker) Close() error {
	return t.source.Close()
}
