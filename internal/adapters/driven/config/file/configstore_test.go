package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set("timing.base_interval_seconds", 10))
	require.NoError(t, s.Set("privacy.redact_emails", true))
	require.NoError(t, s.Set("privacy.blocked_apps", []string{"com.example.*"}))

	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 10, reopened.GetInt("timing.base_interval_seconds"))
	assert.True(t, reopened.GetBool("privacy.redact_emails", false))
	assert.Equal(t, []string{"com.example.*"}, reopened.GetStringSlice("privacy.blocked_apps"))
}

func TestConfigStoreFlattensNestedTables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[extractors]\nocr_enabled = false\n\n[timing]\nbase_interval_seconds = 7\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	s, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.False(t, s.GetBool("extractors.ocr_enabled", true))
	assert.Equal(t, 7, s.GetInt("timing.base_interval_seconds"))
}

func TestGetBoolFallback(t *testing.T) {
	s, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	assert.True(t, s.GetBool("extractors.accessibility_enabled", true))
	assert.False(t, s.GetBool("extractors.accessibility_enabled", false))

	require.NoError(t, s.Set("extractors.accessibility_enabled", false))
	assert.False(t, s.GetBool("extractors.accessibility_enabled", true))
}

func TestMissingFileStartsEmpty(t *testing.T) {
	s, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	_, ok := s.Get("anything")
	assert.False(t, ok)
	assert.Equal(t, "", s.GetString("anything"))
	assert.Nil(t, s.GetStringSlice("anything"))
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := NewConfigStore(dir)
	require.NoError(t, err)

	reloaded := make(chan struct{}, 1)
	stop, err := s.Watch(func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer stop()

	content := "[timing]\nbase_interval_seconds = 42\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0600))

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not observe the write")
	}
	assert.Equal(t, 42, s.GetInt("timing.base_interval_seconds"))
}
