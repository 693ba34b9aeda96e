// Package ocr captures window images and recognises their text through
// platform helper binaries.
//
// Two helpers are involved: a capture helper using the modern
// screen-capture API (the deprecated window-list snapshot path is
// unreliable on current OS versions), and a recognition helper wrapping
// the local text-recognition engine. Both are opaque executables; this
// package only shells out with a timeout.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

// DefaultTimeout bounds a single helper invocation.
const DefaultTimeout = 30 * time.Second

// Extractor shells out to the capture and recognition helpers.
type Extractor struct {
	capturePath string
	ocrPath     string
	timeout     time.Duration
	tmpDir      string
}

// Option configures the extractor.
type Option func(*Extractor)

// WithTimeout bounds each helper invocation.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithTempDir sets where captures are written. Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(e *Extractor) {
		if dir != "" {
			e.tmpDir = dir
		}
	}
}

// New creates an OCR extractor. capturePath and ocrPath locate the
// helper binaries; empty paths mean the bundled defaults next to the
// executable.
func New(capturePath, ocrPath string, opts ...Option) *Extractor {
	e := &Extractor{
		capturePath: helperOrDefault(capturePath, "glimpsed-capture"),
		ocrPath:     helperOrDefault(ocrPath, "glimpsed-ocr"),
		timeout:     DefaultTimeout,
		tmpDir:      os.TempDir(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func helperOrDefault(path, name string) string {
	if path != "" {
		return path
	}
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}

// Kind identifies the backend.
func (e *Extractor) Kind() domain.ExtractorKind {
	return domain.ExtractorOCR
}

// CaptureWindowImage writes a PNG of the window and returns its path.
// The router uses this for change detection without paying for
// recognition.
func (e *Extractor) CaptureWindowImage(ctx context.Context, win domain.Window) (string, error) {
	out := filepath.Join(e.tmpDir, fmt.Sprintf("glimpsed-%d.png", win.ID))

	args := []string{
		"--window", strconv.FormatUint(uint64(win.ID), 10),
		"--out", out,
	}
	if _, err := e.runHelper(ctx, e.capturePath, nil, args...); err != nil {
		return "", err
	}

	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("%w: capture produced no image", domain.ErrExtractionFailed)
	}
	return out, nil
}

// ocrResult is the recognition helper's output.
type ocrResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Extract captures the window and recognises its text.
func (e *Extractor) Extract(ctx context.Context, win domain.Window) (*domain.ExtractedContent, error) {
	imagePath, err := e.CaptureWindowImage(ctx, win)
	if err != nil {
		return nil, err
	}

	stdout, err := e.runHelper(ctx, e.ocrPath, nil, "--image", imagePath)
	if err != nil {
		return nil, err
	}

	var result ocrResult
	if err := json.Unmarshal(stdout, &result); err != nil {
		return nil, fmt.Errorf("%w: bad recogniser output: %v", domain.ErrExtractionFailed, err)
	}

	body := result.Text
	if len(bytes.TrimSpace([]byte(body))) == 0 {
		return nil, domain.ErrNoContent
	}

	return &domain.ExtractedContent{
		Source:     "ocr",
		Title:      win.Title,
		Body:       body,
		AppName:    win.AppName,
		BundleID:   win.BundleID,
		Timestamp:  time.Now(),
		Method:     domain.ExtractorOCR.String(),
		Confidence: result.Confidence,
	}, nil
}

// runHelper executes a helper binary with the configured timeout.
// Missing helpers and timeouts surface as extraction errors, never
// panics: the daemon runs with whatever helpers it can find.
func (e *Extractor) runHelper(ctx context.Context, path string, stdin []byte, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case err == nil:
		return stdout.Bytes(), nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %s", domain.ErrTimeout, filepath.Base(path))
	case errors.Is(err, exec.ErrNotFound), os.IsNotExist(err):
		return nil, fmt.Errorf("%w: helper %s not found", domain.ErrExtractionFailed, filepath.Base(path))
	default:
		return nil, fmt.Errorf("%w: %s: %v: %s", domain.ErrExtractionFailed,
			filepath.Base(path), err, bytes.TrimSpace(stderr.Bytes()))
	}
}
