package services

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
	"github.com/custodia-labs/glimpsed/internal/core/ports/driven"
	"github.com/custodia-labs/glimpsed/internal/logger"
)

// trigger is the reason an extraction is attempted.
type trigger int

const (
	triggerAppActivated trigger = iota
	triggerTitleChanged
	triggerTimerTick
)

func (t trigger) String() string {
	switch t {
	case triggerAppActivated:
		return "app_activated"
	case triggerTitleChanged:
		return "title_changed"
	case triggerTimerTick:
		return "timer_tick"
	default:
		return "unknown"
	}
}

// browserBundles are handled by the push backend; the router never
// polls them.
var browserBundles = map[string]bool{
	"com.google.Chrome":        true,
	"com.google.Chrome.canary": true,
	"com.microsoft.edgemac":    true,
	"com.brave.Browser":        true,
	"com.vivaldi.Vivaldi":      true,
}

// ocrBundles render surfaces the accessibility tree cannot read.
var ocrBundles = map[string]bool{
	"us.zoom.xos":                   true,
	"com.apple.QuickTimePlayerX":    true,
	"org.videolan.vlc":              true,
	"com.colliderli.iina":           true,
	"com.parallels.desktop.console": true,
}

// pushHashLimit caps the per-URL push suppression map. On overflow the
// map resets; a replayed URL then costs one duplicate payload, which
// the pipeline's own dedup absorbs.
const pushHashLimit = 10000

// privacyFilter is the slice of the privacy layer the router needs.
type privacyFilter interface {
	IsBlocked(bundleID string) bool
	Redact(text string) string
}

// windowState is the router's per-window record. The router exclusively
// owns the map; nothing else reads it.
type windowState struct {
	kind            domain.ExtractorKind
	lastContentHash string
	limiter         *rate.Limiter
	lastExtraction  time.Time
	extractionCount int
}

// Router drives the capture loop: it refreshes the tracker, reacts to
// focus and title events, gates on privacy and change detection, and
// emits payloads on a bounded channel.
type Router struct {
	tracker    driven.WindowTracker
	privacy    privacyFilter
	detector   driven.ChangeDetector
	capturer   driven.WindowCapturer
	extractors map[domain.ExtractorKind]driven.Extractor
	settings   domain.Settings

	states     map[domain.WindowID]*windowState
	pushHashes map[string]string
	payloads   chan domain.CapturePayload
	push       <-chan domain.ExtractedContent

	stopOnce sync.Once
	stop     chan struct{}
	now      func() time.Time
}

// RouterDeps carries the router's collaborators.
type RouterDeps struct {
	Tracker    driven.WindowTracker
	Privacy    privacyFilter
	Detector   driven.ChangeDetector
	Capturer   driven.WindowCapturer
	Extractors []driven.Extractor

	// Push delivers browser-extension content. May be nil.
	Push <-chan domain.ExtractedContent
}

// NewRouter builds the router. The payload channel is bounded by
// settings.ChannelCapacity; a full channel throttles the tick loop
// rather than dropping payloads.
func NewRouter(deps RouterDeps, settings domain.Settings) *Router {
	extractors := make(map[domain.ExtractorKind]driven.Extractor, len(deps.Extractors))
	for _, e := range deps.Extractors {
		extractors[e.Kind()] = e
	}

	capacity := settings.ChannelCapacity
	if capacity <= 0 {
		capacity = domain.DefaultSettings().ChannelCapacity
	}

	return &Router{
		tracker:    deps.Tracker,
		privacy:    deps.Privacy,
		detector:   deps.Detector,
		capturer:   deps.Capturer,
		extractors: extractors,
		settings:   settings,
		states:     make(map[domain.WindowID]*windowState),
		pushHashes: make(map[string]string),
		payloads:   make(chan domain.CapturePayload, capacity),
		push:       deps.Push,
		stop:       make(chan struct{}),
		now:        time.Now,
	}
}

// Payloads is the router's output stream. Closed when Run returns.
func (r *Router) Payloads() <-chan domain.CapturePayload {
	return r.payloads
}

// Run blocks until the context is cancelled or Stop is called.
func (r *Router) Run(ctx context.Context) error {
	defer close(r.payloads)

	ticker := time.NewTicker(r.settings.Timing.BaseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case content, ok := <-r.push:
			if !ok {
				r.push = nil
				continue
			}
			r.handlePush(ctx, content)
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// Stop signals the tick loop to exit between ticks.
func (r *Router) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// tick runs one pass of the state machine.
func (r *Router) tick(ctx context.Context) {
	changes, err := r.tracker.RefreshWindows(ctx)
	if err != nil {
		logger.Warn("tracker refresh: %v", err)
		return
	}

	for _, win := range changes.Created {
		r.states[win.ID] = r.newState(win)
	}
	for _, id := range changes.Destroyed {
		delete(r.states, id)
		r.detector.Evict(id)
	}

	frontmost, hasFocus := r.tracker.FrontmostWindow()

	if r.settings.ChangeDetection.TitleChangeTriggersExtract {
		for _, win := range changes.TitleChanged {
			if hasFocus && win.ID == frontmost {
				r.process(ctx, win, triggerTitleChanged)
			}
		}
	}

	if changes.FocusChanged != nil {
		r.process(ctx, *changes.FocusChanged, triggerAppActivated)
		return
	}

	// Only the single active window gets the periodic trigger.
	if hasFocus {
		if win, ok := r.tracker.Get(frontmost); ok {
			r.process(ctx, *win, triggerTimerTick)
		}
	}
}

func (r *Router) newState(win domain.Window) *windowState {
	minInterval := r.settings.Timing.MinInterval
	if minInterval <= 0 {
		minInterval = domain.DefaultSettings().Timing.MinInterval
	}
	return &windowState{
		kind:    r.chooseExtractor(win.BundleID),
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// chooseExtractor assigns a backend as a pure function of bundle id.
func (r *Router) chooseExtractor(bundleID string) domain.ExtractorKind {
	if browserBundles[bundleID] && r.settings.Extractors.ChromeExtensionEnabled {
		return domain.ExtractorBrowserPush
	}
	if ocrBundles[bundleID] && r.settings.Extractors.OCREnabled {
		return domain.ExtractorOCR
	}
	if r.settings.Extractors.AccessibilityEnabled {
		return domain.ExtractorAccessibility
	}
	return domain.ExtractorOCR
}

// process attempts one extraction for a window, subject to gating.
func (r *Router) process(ctx context.Context, win domain.Window, trig trigger) {
	state, ok := r.states[win.ID]
	if !ok {
		state = r.newState(win)
		r.states[win.ID] = state
	}

	// Blocking is re-checked live so a runtime blocklist change covers
	// windows that already existed when the pattern was added.
	if r.privacy.IsBlocked(win.BundleID) || state.kind == domain.ExtractorBrowserPush || !win.OnScreen {
		return
	}
	if state.limiter.Tokens() < 1 {
		return
	}

	// The periodic trigger is gated on visual change when a capture is
	// available. Capture failure falls back to extracting regardless.
	if trig == triggerTimerTick && r.capturer != nil {
		if imagePath, err := r.capturer.CaptureWindowImage(ctx, win); err == nil {
			changed, err := r.detector.HasChanged(win.ID, imagePath)
			if err == nil && !changed {
				return
			}
		} else {
			logger.Debug("capture for change detection failed on window %d: %v", win.ID, err)
		}
	}

	backend, ok := r.extractors[state.kind]
	if !ok {
		return
	}

	// The min-interval token is spent only when extraction actually runs;
	// attempts the change detector suppressed do not count against it.
	state.limiter.Allow()

	content, err := backend.Extract(ctx, win)
	if err != nil {
		if errors.Is(err, domain.ErrNoContent) {
			logger.Debug("extract window %d (%s, %s): %v", win.ID, win.BundleID, trig, err)
		} else {
			logger.Warn("extract window %d (%s, %s): %v", win.ID, win.BundleID, trig, err)
		}
		return
	}

	redacted := r.privacy.Redact(content.Body)
	hash := fingerprint(redacted)
	if hash == state.lastContentHash {
		return
	}

	payload := r.buildPayload(win, content, redacted)

	select {
	case r.payloads <- payload:
	case <-ctx.Done():
		return
	case <-r.stop:
		return
	}

	state.lastContentHash = hash
	state.lastExtraction = r.now()
	state.extractionCount++
}

// handlePush forwards browser-extension content, applying the same
// privacy rules as polled extractions. Pushes bypass the window state
// machine, so duplicate suppression is keyed by URL instead.
func (r *Router) handlePush(ctx context.Context, content domain.ExtractedContent) {
	if r.privacy.IsBlocked(content.BundleID) {
		return
	}

	redacted := r.privacy.Redact(content.Body)
	hash := fingerprint(redacted)
	if content.URL != "" && r.pushHashes[content.URL] == hash {
		return
	}

	payload := r.buildPayload(domain.Window{
		BundleID: content.BundleID,
		AppName:  content.AppName,
		Title:    content.Title,
	}, &content, redacted)

	select {
	case r.payloads <- payload:
	case <-ctx.Done():
		return
	case <-r.stop:
		return
	}

	if content.URL != "" {
		if len(r.pushHashes) >= pushHashLimit {
			r.pushHashes = make(map[string]string)
		}
		r.pushHashes[content.URL] = hash
	}
}

// buildPayload assembles the wire form, synthesizing a URL when the
// backend did not supply one.
func (r *Router) buildPayload(win domain.Window, content *domain.ExtractedContent, redacted string) domain.CapturePayload {
	rawURL := content.URL
	if rawURL == "" {
		rawURL = synthesizeURL(content.Method, win.BundleID, content.Title, redacted)
	}

	ts := content.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}

	return domain.CapturePayload{
		Source:    content.Source,
		URL:       rawURL,
		Content:   redacted,
		Title:     content.Title,
		Timestamp: ts.Unix(),
		AppName:   content.AppName,
		BundleID:  win.BundleID,
	}
}

// synthesizeURL builds a stable identifier for content with no real
// location. OCR URLs embed a short content fingerprint so distinct
// views of an identically titled window stay distinct; accessibility
// titles are semantically sufficient on their own.
func synthesizeURL(method, bundleID, title, content string) string {
	escaped := url.PathEscape(title)
	if method == domain.ExtractorOCR.String() {
		return method + "://" + bundleID + "/" + escaped + "/" + fingerprint(content)[:12]
	}
	return method + "://" + bundleID + "/" + escaped
}
