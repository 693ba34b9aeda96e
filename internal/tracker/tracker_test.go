package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

type fakeSource struct {
	snaps []*Snapshot
	errs  []error
	calls int
}

func (f *fakeSource) Snapshot(context.Context) (*Snapshot, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.snaps[i], nil
}

func (f *fakeSource) Close() error { return nil }

func win(id uint32, title string) domain.Window {
	return domain.Window{
		ID:       domain.WindowID(id),
		BundleID: "com.example.app",
		AppName:  "Example",
		Title:    title,
		Bounds:   domain.Bounds{X: 0, Y: 0, Width: 800, Height: 600},
		PID:      42,
		OnScreen: true,
	}
}

func newTestTracker(source SnapshotSource) *Tracker {
	t := New(source)
	t.processName = func(int32) (string, error) { return "example-proc", nil }
	return t
}

func TestRefreshWindowsDiff(t *testing.T) {
	first := &Snapshot{
		Windows:     []domain.Window{win(1, "one"), win(2, "two")},
		FrontmostID: 1,
		HasFocus:    true,
	}
	second := &Snapshot{
		Windows:     []domain.Window{win(1, "one renamed"), win(3, "three")},
		FrontmostID: 3,
		HasFocus:    true,
	}
	tr := newTestTracker(&fakeSource{snaps: []*Snapshot{first, second}})

	changes, err := tr.RefreshWindows(context.Background())
	require.NoError(t, err)
	assert.Len(t, changes.Created, 2)
	require.NotNil(t, changes.FocusChanged)
	assert.Equal(t, domain.WindowID(1), changes.FocusChanged.ID)

	changes, err = tr.RefreshWindows(context.Background())
	require.NoError(t, err)
	require.Len(t, changes.Created, 1)
	assert.Equal(t, domain.WindowID(3), changes.Created[0].ID)
	assert.Equal(t, []domain.WindowID{2}, changes.Destroyed)
	require.Len(t, changes.TitleChanged, 1)
	assert.Equal(t, "one renamed", changes.TitleChanged[0].Title)
	require.NotNil(t, changes.FocusChanged)
	assert.Equal(t, domain.WindowID(3), changes.FocusChanged.ID)

	id, ok := tr.FrontmostWindow()
	assert.True(t, ok)
	assert.Equal(t, domain.WindowID(3), id)
}

func TestRefreshWindowsStableFocusEmitsNothing(t *testing.T) {
	snap := &Snapshot{Windows: []domain.Window{win(1, "one")}, FrontmostID: 1, HasFocus: true}
	tr := newTestTracker(&fakeSource{snaps: []*Snapshot{snap, snap}})

	_, err := tr.RefreshWindows(context.Background())
	require.NoError(t, err)
	changes, err := tr.RefreshWindows(context.Background())
	require.NoError(t, err)
	assert.True(t, changes.Empty())
}

func TestRefreshWindowsFiltersChrome(t *testing.T) {
	tiny := win(2, "tooltip")
	tiny.Bounds = domain.Bounds{Width: 40, Height: 20}
	overlay := win(3, "overlay")
	overlay.Layer = 25
	offscreen := win(4, "hidden")
	offscreen.OnScreen = false
	unresolved := win(5, "no bounds")
	unresolved.Bounds = domain.Bounds{}

	snap := &Snapshot{Windows: []domain.Window{win(1, "real"), tiny, overlay, offscreen, unresolved}}
	tr := newTestTracker(&fakeSource{snaps: []*Snapshot{snap}})

	changes, err := tr.RefreshWindows(context.Background())
	require.NoError(t, err)
	require.Len(t, changes.Created, 1)
	assert.Equal(t, domain.WindowID(1), changes.Created[0].ID)
	assert.Len(t, tr.Windows(), 1)
}

func TestEnumerationFailureYieldsEmptyDiff(t *testing.T) {
	first := &Snapshot{Windows: []domain.Window{win(1, "one")}}
	src := &fakeSource{
		snaps: []*Snapshot{first, nil, first},
		errs:  []error{nil, errors.New("window server unavailable"), nil},
	}
	tr := newTestTracker(src)

	_, err := tr.RefreshWindows(context.Background())
	require.NoError(t, err)

	changes, err := tr.RefreshWindows(context.Background())
	require.NoError(t, err)
	assert.True(t, changes.Empty())
	assert.Len(t, tr.Windows(), 1, "previous map survives a failed refresh")

	changes, err = tr.RefreshWindows(context.Background())
	require.NoError(t, err)
	assert.True(t, changes.Empty(), "recovered refresh sees no phantom creates")
}

func TestBundlePlaceholderFallsBackToProcessName(t *testing.T) {
	missing := win(1, "one")
	missing.BundleID = "missing value"
	noProc := win(2, "two")
	noProc.BundleID = ""
	noProc.PID = 999

	tr := newTestTracker(&fakeSource{snaps: []*Snapshot{{Windows: []domain.Window{missing, noProc}}}})
	tr.processName = func(pid int32) (string, error) {
		if pid == 999 {
			return "", errors.New("no such process")
		}
		return "example-proc", nil
	}

	_, err := tr.RefreshWindows(context.Background())
	require.NoError(t, err)

	got, ok := tr.Get(1)
	require.True(t, ok)
	assert.Equal(t, "example-proc", got.BundleID)

	got, ok = tr.Get(2)
	require.True(t, ok)
	assert.Equal(t, "Example", got.BundleID, "app name when the process table fails")
}

func TestDisplayFor(t *testing.T) {
	w := win(1, "one")
	w.DisplayID = 7
	snap := &Snapshot{
		Windows:  []domain.Window{w},
		Displays: []domain.Display{{ID: 7, Bounds: domain.Bounds{Width: 2560, Height: 1440}, IsMain: true}},
	}
	tr := newTestTracker(&fakeSource{snaps: []*Snapshot{snap}})

	_, err := tr.RefreshWindows(context.Background())
	require.NoError(t, err)

	d, ok := tr.DisplayFor(1)
	require.True(t, ok)
	assert.True(t, d.IsMain)
	assert.Equal(t, 2560, d.Bounds.Width)

	_, ok = tr.DisplayFor(99)
	assert.False(t, ok)
}

func TestFilteredFrontmostClearsFocus(t *testing.T) {
	shrunk := win(1, "one")
	shrunk.Bounds = domain.Bounds{Width: 50, Height: 50}
	first := &Snapshot{
		Windows:     []domain.Window{win(1, "one")},
		FrontmostID: 1,
		HasFocus:    true,
	}
	second := &Snapshot{
		Windows:     []domain.Window{shrunk},
		FrontmostID: 1,
		HasFocus:    true,
	}
	tr := newTestTracker(&fakeSource{snaps: []*Snapshot{first, second}})

	_, err := tr.RefreshWindows(context.Background())
	require.NoError(t, err)
	_, ok := tr.FrontmostWindow()
	require.True(t, ok)

	_, err = tr.RefreshWindows(context.Background())
	require.NoError(t, err)

	_, ok = tr.FrontmostWindow()
	assert.False(t, ok, "a frontmost window below the size floor reads as no focus")
}
