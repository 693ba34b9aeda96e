package privacy

import (
	"testing"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

func newTestFilter(t *testing.T, settings domain.PrivacySettings) *Filter {
	t.Helper()
	f, err := NewFilter(settings)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	return f
}

func TestFilter_AlwaysBlacklist(t *testing.T) {
	f := newTestFilter(t, domain.PrivacySettings{})

	cases := []string{
		"com.1password.1password",
		"com.lastpass.LastPass",
		"com.apple.systempreferences",
		"com.custodia-labs.glimpsed-viewer",
	}
	for _, bundle := range cases {
		if !f.IsBlocked(bundle) {
			t.Errorf("expected %s to be always blocked", bundle)
		}
	}

	if f.IsBlocked("com.apple.TextEdit") {
		t.Error("TextEdit should not be blocked by default")
	}
}

func TestFilter_UnblockNeverDefeatsBlacklist(t *testing.T) {
	f := newTestFilter(t, domain.PrivacySettings{})

	// Adding then removing a pattern that shadows the blacklist must
	// leave the blacklisted bundle blocked.
	if err := f.Block("com.1password.*"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if err := f.Unblock("com.1password.*"); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	if !f.IsBlocked("com.1password.1password") {
		t.Error("always-blacklisted bundle became unblocked")
	}
}

func TestFilter_UserBlocklist(t *testing.T) {
	f := newTestFilter(t, domain.PrivacySettings{
		BlockedApps: []string{"com.example.*"},
	})

	if !f.IsBlocked("com.example.app") {
		t.Error("expected com.example.app blocked")
	}

	if err := f.Unblock("com.example.*"); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	if f.IsBlocked("com.example.app") {
		t.Error("expected com.example.app unblocked after removal")
	}

	if err := f.Unblock("never-added"); err == nil {
		t.Error("expected error removing unknown pattern")
	}
}

func TestFilter_SetBlocklist(t *testing.T) {
	f := newTestFilter(t, domain.PrivacySettings{
		BlockedApps: []string{"com.old.*"},
	})

	if err := f.SetBlocklist([]string{"com.new.*"}); err != nil {
		t.Fatalf("SetBlocklist: %v", err)
	}
	if f.IsBlocked("com.old.app") {
		t.Error("old pattern should be gone after reload")
	}
	if !f.IsBlocked("com.new.app") {
		t.Error("new pattern should block")
	}
}

func TestFilter_Patterns(t *testing.T) {
	f := newTestFilter(t, domain.PrivacySettings{
		BlockedApps: []string{"b.*", "a.*"},
	})

	got := f.Patterns()
	if len(got) != 2 || got[0] != "a.*" || got[1] != "b.*" {
		t.Errorf("unexpected patterns: %v", got)
	}
}
