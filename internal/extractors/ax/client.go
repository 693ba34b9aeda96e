package ax

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

// Element is one accessibility tree node. Implementations resolve
// attributes lazily; walkers hold no platform state.
type Element interface {
	// Role returns the element's AX role.
	Role() (string, error)

	// Title returns the element's title attribute, "" when absent.
	Title() (string, error)

	// Value returns the element's value attribute as text, "" when absent.
	Value() (string, error)

	// Description returns the element's description, "" when absent.
	Description() (string, error)

	// Children returns the element's children.
	Children() ([]Element, error)

	// Attribute reads an arbitrary attribute by name.
	Attribute(name string) (Variant, error)

	// SetAttribute writes a settable attribute (e.g. AXManualAccessibility).
	SetAttribute(name string, value Variant) error
}

// Client talks to the accessibility helper subprocess over line JSON.
// The helper owns the platform API calls, including trust detection;
// untrusted processes answer every request with a permission error.
type Client struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner
	enc     *json.Encoder
	nextID  int64

	closeOnce sync.Once
}

type helperRequest struct {
	ID    int64    `json:"id"`
	Op    string   `json:"op"`
	PID   int32    `json:"pid,omitempty"`
	Elem  string   `json:"elem,omitempty"`
	Name  string   `json:"name,omitempty"`
	Value *Variant `json:"value,omitempty"`
}

type helperResponse struct {
	ID    int64   `json:"id"`
	OK    bool    `json:"ok"`
	Value Variant `json:"value"`
	Error string  `json:"error,omitempty"`
	Code  string  `json:"code,omitempty"`
}

// NewClient launches the accessibility helper. An empty path means the
// bundled default next to the executable.
func NewClient(helperPath string) (*Client, error) {
	if helperPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("%w: locate helper: %v", domain.ErrPlatform, err)
		}
		helperPath = filepath.Join(filepath.Dir(exe), "glimpsed-ax")
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
		return nil, fmt.Errorf("%w: start ax helper: %v", domain.ErrExtractionFailed, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	return &Client{
		cmd:     cmd,
		stdin:   stdin,
		scanner: scanner,
		enc:     json.NewEncoder(stdin),
	}, nil
}

// Close stops the helper process.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.stdin != nil {
			_ = c.stdin.Close()
		}
		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
			_, _ = c.cmd.Process.Wait()
		}
	})
	return nil
}

// call issues one request and reads its reply. The helper answers in
// order, so a single mutex serialises the round trip.
func (c *Client) call(ctx context.Context, req helperRequest) (Variant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Variant{}, err
	}

	c.nextID++
	req.ID = c.nextID

	if err := c.enc.Encode(req); err != nil {
		return Variant{}, fmt.Errorf("%w: ax helper write: %v", domain.ErrPlatform, err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Variant{}, fmt.Errorf("%w: ax helper read: %v", domain.ErrPlatform, err)
		}
		return Variant{}, fmt.Errorf("%w: ax helper exited", domain.ErrPlatform)
	}

	var resp helperResponse
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return Variant{}, fmt.Errorf("%w: ax helper frame: %v", domain.ErrPlatform, err)
	}
	if resp.ID != req.ID {
		return Variant{}, fmt.Errorf("%w: ax helper answered out of order", domain.ErrPlatform)
	}
	if !resp.OK {
		return Variant{}, helperError(resp)
	}
	return resp.Value, nil
}

func helperError(resp helperResponse) error {
	switch resp.Code {
	case "permission":
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, resp.Error)
	case "app_not_found":
		return fmt.Errorf("%w: %s", domain.ErrAppNotFound, resp.Error)
	case "no_attr":
		return errAttrMissing
	default:
		return fmt.Errorf("%w: %s", domain.ErrExtractionFailed, resp.Error)
	}
}

// errAttrMissing marks an absent attribute; walkers treat it as empty.
var errAttrMissing = errors.New("attribute missing")

// AppRoot returns the application-level element for a process.
func (c *Client) AppRoot(ctx context.Context, pid int32) (Element, error) {
	v, err := c.call(ctx, helperRequest{Op: "root", PID: pid})
	if err != nil {
		return nil, err
	}
	if v.Kind != KindElement {
		return nil, fmt.Errorf("%w: root is not an element", domain.ErrPlatform)
	}
	return &remoteElement{client: c, ctx: ctx, id: v.ElemID}, nil
}

// FocusedWindow returns the focused window element of a process, when
// the helper can resolve one.
func (c *Client) FocusedWindow(ctx context.Context, pid int32) (Element, error) {
	v, err := c.call(ctx, helperRequest{Op: "focused_window", PID: pid})
	if err != nil {
		return nil, err
	}
	if v.Kind != KindElement {
		return nil, fmt.Errorf("%w: focused window is not an element", domain.ErrPlatform)
	}
	return &remoteElement{client: c, ctx: ctx, id: v.ElemID}, nil
}

// remoteElement is an Element backed by a helper-side handle.
type remoteElement struct {
	client *Client
	ctx    context.Context
	id     string
}

func (e *remoteElement) attr(name string) (Variant, error) {
	v, err := e.client.call(e.ctx, helperRequest{Op: "attr", Elem: e.id, Name: name})
	if errors.Is(err, errAttrMissing) {
		return Variant{Kind: KindNull}, nil
	}
	return v, err
}

func (e *remoteElement) stringAttr(name string) (string, error) {
	v, err := e.attr(name)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Role returns the element's AX role.
func (e *remoteElement) Role() (string, error) {
	return e.stringAttr("AXRole")
}

// Title returns the element's title attribute.
func (e *remoteElement) Title() (string, error) {
	return e.stringAttr("AXTitle")
}

// Value returns the element's value attribute as text. Numeric and
// boolean values are not text and read as empty.
func (e *remoteElement) Value() (string, error) {
	return e.stringAttr("AXValue")
}

// Description returns the element's description.
func (e *remoteElement) Description() (string, error) {
	return e.stringAttr("AXDescription")
}

// Children returns the element's children.
func (e *remoteElement) Children() ([]Element, error) {
	v, err := e.attr("AXChildren")
	if err != nil {
		return nil, err
	}
	if v.Kind != KindArray {
		return nil, nil
	}

	children := make([]Element, 0, len(v.Items))
	for _, item := range v.Items {
		if item.Kind != KindElement {
			continue
		}
		children = append(children, &remoteElement{client: e.client, ctx: e.ctx, id: item.ElemID})
	}
	return children, nil
}

// Attribute reads an arbitrary attribute by name.
func (e *remoteElement) Attribute(name string) (Variant, error) {
	return e.attr(name)
}

// SetAttribute writes a settable attribute.
func (e *remoteElement) SetAttribute(name string, value Variant) error {
	_, err := e.client.call(e.ctx, helperRequest{Op: "set", Elem: e.id, Name: name, Value: &value})
	return err
}
