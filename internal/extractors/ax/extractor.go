package ax

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
	"github.com/custodia-labs/glimpsed/internal/extractors/office"
	"github.com/custodia-labs/glimpsed/internal/logger"
)

// RootResolver resolves accessibility elements for a process. The
// helper-backed Client is the production implementation.
type RootResolver interface {
	AppRoot(ctx context.Context, pid int32) (Element, error)
	FocusedWindow(ctx context.Context, pid int32) (Element, error)
}

// scriptFunc runs a scripting-bridge query against an application and
// returns the document text. Used only when direct file access fails.
type scriptFunc func(ctx context.Context, appName string) (string, error)

// officeBundles edit ZIP+XML documents whose backing file can be read
// directly.
var officeBundles = map[string]bool{
	"com.microsoft.Word":  true,
	"com.microsoft.Excel": true,
}

// bundleSources maps bundle ids to payload source names. Anything not
// listed falls back to the trailing bundle component.
var bundleSources = map[string]string{
	"com.tinyspeck.slackmacgap": "slack",
	"com.hnc.Discord":           "discord",
	"com.apple.MobileSMS":       "messages",
	"com.microsoft.teams2":      "teams",
	"com.cisco.squared":         "teams",
	"com.microsoft.Word":        "word",
	"com.microsoft.Excel":       "excel",
	"com.apple.Notes":           "notes",
	"com.apple.TextEdit":        "textedit",
}

// Extractor harvests window content through the accessibility tree.
type Extractor struct {
	resolver RootResolver
	script   scriptFunc
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithScriptFallback overrides the scripting-bridge fallback.
func WithScriptFallback(fn scriptFunc) Option {
	return func(e *Extractor) { e.script = fn }
}

// NewExtractor builds the accessibility backend on top of a resolver.
func NewExtractor(resolver RootResolver, opts ...Option) *Extractor {
	e := &Extractor{
		resolver: resolver,
		script:   runAppleScript,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Kind identifies the backend.
func (e *Extractor) Kind() domain.ExtractorKind {
	return domain.ExtractorAccessibility
}

// Extract harvests the window's text. Office windows read their backing
// file directly; messaging windows run a bundle-specific harvester;
// everything else gets the generic walk.
func (e *Extractor) Extract(ctx context.Context, win domain.Window) (*domain.ExtractedContent, error) {
	var (
		text string
		err  error
	)

	switch {
	case officeBundles[win.BundleID]:
		text, err = e.extractOffice(ctx, win)
	default:
		var root Element
		root, err = e.resolver.AppRoot(ctx, win.PID)
		if err != nil {
			return nil, err
		}
		text, err = HarvestMessages(win.BundleID, root)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: window %d (%s)", domain.ErrNoContent, win.ID, win.BundleID)
	}

	return &domain.ExtractedContent{
		Source:    SourceFor(win.BundleID),
		Title:     win.Title,
		Body:      text,
		AppName:   win.AppName,
		BundleID:  win.BundleID,
		Timestamp: time.Now(),
		Method:    domain.ExtractorAccessibility.String(),
	}, nil
}

// extractOffice reads the window's backing document. The file path
// comes from the focused window's AXDocument attribute; archive parsing
// happens in-process. The scripting bridge runs only when the file
// itself cannot be read.
func (e *Extractor) extractOffice(ctx context.Context, win domain.Window) (string, error) {
	path, pathErr := e.documentPath(ctx, win.PID)
	if pathErr == nil && path != "" {
		text, err := readOfficeFile(path)
		if err == nil {
			return text, nil
		}
		logger.Warn("office file read failed, trying scripting bridge: %v", err)
	}

	text, err := e.script(ctx, win.AppName)
	if err != nil {
		if pathErr != nil {
			return "", fmt.Errorf("%w: no document path (%v) and scripting failed: %v",
				domain.ErrExtractionFailed, pathErr, err)
		}
		return "", fmt.Errorf("%w: scripting bridge: %v", domain.ErrExtractionFailed, err)
	}
	return text, nil
}

// documentPath resolves the focused window's backing file path.
func (e *Extractor) documentPath(ctx context.Context, pid int32) (string, error) {
	win, err := e.resolver.FocusedWindow(ctx, pid)
	if err != nil {
		return "", err
	}

	doc, err := win.Attribute("AXDocument")
	if err != nil {
		return "", err
	}
	if doc.IsNull() {
		return "", fmt.Errorf("%w: no document attribute", domain.ErrNoContent)
	}

	path := doc.String()
	path = strings.TrimPrefix(path, "file://")
	return path, nil
}

func readOfficeFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return office.ReadDocx(path)
	case ".xlsx":
		return office.ReadXlsx(path)
	default:
		return "", fmt.Errorf("%w: unsupported document type %q", domain.ErrExtractionFailed, filepath.Ext(path))
	}
}

// runAppleScript asks the frontmost document for its text content.
func runAppleScript(ctx context.Context, appName string) (string, error) {
	script := fmt.Sprintf(`tell application %q to get content of text of active document`, appName)
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// SourceFor maps a bundle id to its payload source name.
func SourceFor(bundleID string) string {
	if s, ok := bundleSources[bundleID]; ok {
		return s
	}
	if i := strings.LastIndex(bundleID, "."); i >= 0 && i+1 < len(bundleID) {
		return strings.ToLower(bundleID[i+1:])
	}
	return strings.ToLower(bundleID)
}
