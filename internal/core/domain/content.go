package domain

import "time"

// ExtractorKind identifies which backend produces content for a window.
// It is a closed sum: the router reasons exhaustively over these three.
type ExtractorKind int

// Available extractor kinds.
const (
	// ExtractorAccessibility walks the structured accessibility tree.
	ExtractorAccessibility ExtractorKind = iota

	// ExtractorBrowserPush receives content pushed by the browser
	// extension. The router never polls these windows.
	ExtractorBrowserPush

	// ExtractorOCR captures the window image and runs text recognition.
	ExtractorOCR
)

// String returns the extraction method name. It doubles as the scheme
// of synthesized payload URLs.
func (k ExtractorKind) String() string {
	switch k {
	case ExtractorAccessibility:
		return "accessibility"
	case ExtractorBrowserPush:
		return "chrome"
	case ExtractorOCR:
		return "ocr"
	default:
		return "unknown"
	}
}

// ImageBased reports whether the backend extracts from a captured image
// and therefore participates in perceptual-hash change detection.
func (k ExtractorKind) ImageBased() bool {
	return k == ExtractorOCR
}

// ExtractedContent is the transient output of a backend, consumed by the
// router for redaction and payload construction.
type ExtractedContent struct {
	// Source classifies the producing application (e.g. "slack", "word").
	Source string

	// Title is the window or document title, when known.
	Title string

	// Body is the harvested text.
	Body string

	AppName  string
	BundleID string

	// URL is the content location when the backend knows one.
	// Empty for accessibility and OCR output; the router synthesizes it.
	URL string

	Timestamp time.Time

	// Method is the extraction method name ("accessibility", "chrome", "ocr").
	Method string

	// Confidence is the recogniser confidence for OCR output, 0 otherwise.
	Confidence float64
}

// CapturePayload is the canonical wire form handed to the ingestion
// pipeline, in-process or over the unix socket. URL is always populated;
// the router synthesizes one when the backend did not supply it.
// Unknown JSON fields are ignored on decode.
type CapturePayload struct {
	Source    string `json:"source"`
	URL       string `json:"url"`
	Content   string `json:"content"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	AppName   string `json:"app_name,omitempty"`
	BundleID  string `json:"bundle_id,omitempty"`
}

// SourceClass groups payload sources by ingestion strategy.
type SourceClass int

// Ingestion strategies.
const (
	// ClassContent replaces the stored document when the fingerprint changes.
	ClassContent SourceClass = iota

	// ClassMessaging deduplicates chat content message-by-message.
	ClassMessaging

	// ClassScreenCapture appends only lines novel against the prior text.
	ClassScreenCapture
)

// messagingSources are chat and collaboration suites that produce
// line-per-message content.
var messagingSources = map[string]bool{
	"slack":    true,
	"teams":    true,
	"discord":  true,
	"messages": true,
}

// ClassOf returns the ingestion strategy for a payload source.
func ClassOf(source string) SourceClass {
	if messagingSources[source] {
		return ClassMessaging
	}
	if source == "ocr" || source == "screen" {
		return ClassScreenCapture
	}
	return ClassContent
}
