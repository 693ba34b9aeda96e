// Package browser receives content pushed by the browser extension.
//
// The extension's native-messaging host is coresident with the daemon
// and forwards one ExtractedContent JSON object per line. The backend is
// entirely passive: the router never polls browser windows, it only
// drains the channel this host feeds.
package browser

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
	"github.com/custodia-labs/glimpsed/internal/logger"
)

// maxLineBytes bounds a single pushed item. Web pages can be large but
// a multi-megabyte single line is a misbehaving extension.
const maxLineBytes = 8 * 1024 * 1024

// pushItem is the extension's wire form. Unknown fields are ignored.
type pushItem struct {
	Source    string  `json:"source"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	URL       string  `json:"url"`
	AppName   string  `json:"app_name"`
	BundleID  string  `json:"bundle_id"`
	Timestamp int64   `json:"timestamp"`
	Conf      float64 `json:"confidence"`
}

// Host reads pushed items from the extension channel and forwards them.
type Host struct {
	r   io.Reader
	out chan domain.ExtractedContent
}

// NewHost creates a host reading line-oriented JSON from r.
func NewHost(r io.Reader) *Host {
	return &Host{
		r:   r,
		out: make(chan domain.ExtractedContent, 16),
	}
}

// Content returns the channel of pushed items. Closed when Run returns.
func (h *Host) Content() <-chan domain.ExtractedContent {
	return h.out
}

// Run reads until EOF or context cancellation. Malformed lines are
// logged and skipped; the stream continues.
func (h *Host) Run(ctx context.Context) error {
	defer close(h.out)

	scanner := bufio.NewScanner(h.r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item pushItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			logger.Warn("browser push: bad frame: %v", err)
			continue
		}
		if strings.TrimSpace(item.Content) == "" {
			continue
		}

		content := toExtracted(item)
		select {
		case h.out <- content:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: browser push stream: %v", domain.ErrPlatform, err)
	}
	return nil
}

func toExtracted(item pushItem) domain.ExtractedContent {
	source := item.Source
	if source == "" {
		source = "chrome"
	}

	ts := time.Now()
	if item.Timestamp > 0 {
		ts = time.Unix(item.Timestamp, 0)
	}

	return domain.ExtractedContent{
		Source:     source,
		Title:      item.Title,
		Body:       item.Content,
		AppName:    item.AppName,
		BundleID:   item.BundleID,
		URL:        item.URL,
		Timestamp:  ts,
		Method:     domain.ExtractorBrowserPush.String(),
		Confidence: item.Conf,
	}
}

// Extractor satisfies the backend contract for completeness; browser
// windows are push-only, so direct extraction is never valid.
type Extractor struct{}

// Kind identifies the backend.
func (Extractor) Kind() domain.ExtractorKind {
	return domain.ExtractorBrowserPush
}

// Extract always fails: content arrives over the push channel.
func (Extractor) Extract(_ context.Context, _ domain.Window) (*domain.ExtractedContent, error) {
	return nil, fmt.Errorf("%w: browser windows are push-only", domain.ErrExtractionFailed)
}
