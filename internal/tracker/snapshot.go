// Package tracker maintains the set of visible windows across displays.
//
// A platform helper subprocess owns the window-server calls and answers
// snapshot requests over line JSON. The tracker diffs successive
// snapshots into created/destroyed/title/focus events for the router.
package tracker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

// Snapshot is one full enumeration of displays and windows.
type Snapshot struct {
	Windows     []domain.Window
	Displays    []domain.Display
	FrontmostID domain.WindowID
	HasFocus    bool
}

// SnapshotSource produces window enumerations. The helper-backed client
// is the production implementation.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	Close() error
}

type wireBounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type wireWindow struct {
	WindowID  uint32     `json:"window_id"`
	DisplayID uint32     `json:"display_id"`
	BundleID  string     `json:"bundle_id"`
	AppName   string     `json:"app_name"`
	Title     string     `json:"title"`
	Bounds    wireBounds `json:"bounds"`
	PID       int32      `json:"pid"`
	OnScreen  bool       `json:"on_screen"`
	Layer     int        `json:"layer"`
}

type wireDisplay struct {
	DisplayID uint32     `json:"display_id"`
	Bounds    wireBounds `json:"bounds"`
	IsMain    bool       `json:"is_main"`
	IsBuiltin bool       `json:"is_builtin"`
}

type wireSnapshot struct {
	Windows     []wireWindow  `json:"windows"`
	Displays    []wireDisplay `json:"displays"`
	FrontmostID uint32        `json:"frontmost_id"`
	HasFocus    bool          `json:"has_focus"`
	Error       string        `json:"error,omitempty"`
}

// HelperSource talks to the window-enumeration helper subprocess. One
// request line ("snapshot") yields one reply line.
type HelperSource struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner

	closeOnce sync.Once
}

// NewHelperSource launches the enumeration helper. An empty path means
// the bundled default next to the executable.
func NewHelperSource(helperPath string) (*HelperSource, error) {
	if helperPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("%w: locate helper: %v", domain.ErrPlatform, err)
		}
		helperPath = filepath.Join(filepath.Dir(exe), "glimpsed-windows")
	}

	cmd := exec.Command(helperPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: helper stdin: %v", domain.ErrPlatform, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: helper stdout: %v", domain.ErrPlatform, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start window helper: %v", domain.ErrPlatform, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	return &HelperSource{cmd: cmd, stdin: stdin, scanner: scanner}, nil
}

// Snapshot requests one enumeration from the helper.
func (h *HelperSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := io.WriteString(h.stdin, "snapshot\n"); err != nil {
		return nil, fmt.Errorf("%w: window helper write: %v", domain.ErrPlatform, err)
	}
	if !h.scanner.Scan() {
		if err := h.scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: window helper read: %v", domain.ErrPlatform, err)
		}
		return nil, fmt.Errorf("%w: window helper exited", domain.ErrPlatform)
	}

	var wire wireSnapshot
	if err := json.Unmarshal(h.scanner.Bytes(), &wire); err != nil {
		return nil, fmt.Errorf("%w: window helper frame: %v", domain.ErrPlatform, err)
	}
	if wire.Error != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlatform, wire.Error)
	}
	return wire.toSnapshot(), nil
}

// Close stops the helper process.
func (h *HelperSource) Close() error {
	h.closeOnce.Do(func() {
		if h.stdin != nil {
			_ = h.stdin.Close()
		}
		if h.cmd != nil && h.cmd.Process != nil {
			_ = h.cmd.Process.Kill()
			_, _ = h.cmd.Process.Wait()
		}
	})
	return nil
}

func (w wireSnapshot) toSnapshot() *Snapshot {
	snap := &Snapshot{
		FrontmostID: domain.WindowID(w.FrontmostID),
		HasFocus:    w.HasFocus,
	}
	for _, d := range w.Displays {
		snap.Displays = append(snap.Displays, domain.Display{
			ID:        d.DisplayID,
			Bounds:    domain.Bounds(d.Bounds),
			IsMain:    d.IsMain,
			IsBuiltin: d.IsBuiltin,
		})
	}
	for _, win := range w.Windows {
		snap.Windows = append(snap.Windows, domain.Window{
			ID:        domain.WindowID(win.WindowID),
			DisplayID: win.DisplayID,
			BundleID:  win.BundleID,
			AppName:   win.AppName,
			Title:     win.Title,
			Bounds:    domain.Bounds(win.Bounds),
			PID:       win.PID,
			OnScreen:  win.OnScreen,
			Layer:     win.Layer,
		})
	}
	return snap
}
