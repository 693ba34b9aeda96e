// Package privacy implements app blocklisting and content redaction.
//
// Two rule kinds exist: a compiled-in always-blacklist of bundle-id
// patterns that cannot be disabled at runtime, and a user-configurable
// blocklist of glob patterns. Redaction is orthogonal and applies to
// extracted text regardless of the blocklists.
package privacy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gobwas/glob"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

// alwaysBlacklist holds bundle-id patterns that are blocked in every
// configuration: password managers, system settings, and the viewer
// itself. Runtime unblocking never touches these.
var alwaysBlacklist = []string{
	"com.1password.*",
	"com.agilebits.onepassword*",
	"com.lastpass.*",
	"com.bitwarden.*",
	"com.dashlane.*",
	"org.keepassxc.*",
	"com.apple.systempreferences",
	"com.apple.Passwords*",
	"com.apple.keychainaccess",
	"com.custodia-labs.glimpsed*",
}

var compiledAlways = mustCompile(alwaysBlacklist)

func mustCompile(patterns []string) []glob.Glob {
	out := make([]glob.Glob, len(patterns))
	for i, p := range patterns {
		out[i] = glob.MustCompile(p)
	}
	return out
}

// Filter decides which applications may be captured and scrubs
// sensitive content from extracted text.
type Filter struct {
	mu        sync.RWMutex
	userGlobs map[string]glob.Glob
	redactors []redactor
}

// NewFilter builds a filter from the user blocklist and redaction
// toggles. Invalid user patterns are rejected.
func NewFilter(settings domain.PrivacySettings) (*Filter, error) {
	f := &Filter{
		userGlobs: make(map[string]glob.Glob),
		redactors: buildRedactors(settings),
	}

	for _, p := range settings.BlockedApps {
		if err := f.Block(p); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// IsBlocked reports whether a bundle id matches the always-blacklist or
// the user blocklist.
func (f *Filter) IsBlocked(bundleID string) bool {
	for _, g := range compiledAlways {
		if g.Match(bundleID) {
			return true
		}
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, g := range f.userGlobs {
		if g.Match(bundleID) {
			return true
		}
	}
	return false
}

// Block adds a glob pattern to the user blocklist.
func (f *Filter) Block(pattern string) error {
	g, err := glob.Compile(pattern)
	if err != nil {
		return fmt.Errorf("%w: bad blocklist pattern %q: %v", domain.ErrInvalidInput, pattern, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.userGlobs[pattern] = g
	return nil
}

// Unblock removes a pattern from the user blocklist. Bundle ids matched
// by the always-blacklist remain blocked no matter what is removed.
func (f *Filter) Unblock(pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.userGlobs[pattern]; !ok {
		return domain.ErrNotFound
	}
	delete(f.userGlobs, pattern)
	return nil
}

// Patterns returns the user blocklist patterns, sorted.
func (f *Filter) Patterns() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, 0, len(f.userGlobs))
	for p := range f.userGlobs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// AlwaysBlacklisted returns the compiled-in patterns, for display.
func AlwaysBlacklisted() []string {
	out := make([]string, len(alwaysBlacklist))
	copy(out, alwaysBlacklist)
	return out
}

// SetBlocklist replaces the whole user blocklist. Used by config reload.
func (f *Filter) SetBlocklist(patterns []string) error {
	globs := make(map[string]glob.Glob, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return fmt.Errorf("%w: bad blocklist pattern %q: %v", domain.ErrInvalidInput, p, err)
		}
		globs[p] = g
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.userGlobs = globs
	return nil
}
