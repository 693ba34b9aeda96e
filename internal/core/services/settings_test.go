package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

// memConfig is an in-memory driven.ConfigStore for settings tests.
type memConfig struct {
	data map[string]any
}

func (c *memConfig) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *memConfig) GetString(key string) string {
	if v, ok := c.data[key].(string); ok {
		return v
	}
	return ""
}

func (c *memConfig) GetInt(key string) int {
	switch v := c.data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func (c *memConfig) GetBool(key string, fallback bool) bool {
	if v, ok := c.data[key].(bool); ok {
		return v
	}
	return fallback
}

func (c *memConfig) GetStringSlice(key string) []string {
	if v, ok := c.data[key].([]string); ok {
		return v
	}
	return nil
}

func (c *memConfig) Set(key string, value any) error {
	c.data[key] = value
	return nil
}

func (c *memConfig) Save() error { return nil }
func (c *memConfig) Load() error { return nil }
func (c *memConfig) Path() string {
	return "memory"
}

func TestLoadSettingsDefaults(t *testing.T) {
	s := LoadSettings(&memConfig{data: map[string]any{}})
	assert.Equal(t, domain.DefaultSettings(), s)
}

func TestLoadSettingsOverrides(t *testing.T) {
	cfg := &memConfig{data: map[string]any{
		"timing.base_interval_seconds":                   10,
		"change_detection.hash_sensitivity":              12,
		"change_detection.title_change_triggers_extract": false,
		"extractors.ocr_enabled":                         false,
		"extractors.ocr_helper_path":                     "/opt/glimpsed/ocr",
		"privacy.blocked_apps":                           []string{"com.work.*"},
		"privacy.redact_emails":                          true,
		"pipeline.channel_capacity":                      250,
		"socket.enabled":                                 true,
		"socket.path":                                    "/tmp/glimpsed.sock",
	}}

	s := LoadSettings(cfg)
	assert.Equal(t, 10*time.Second, s.Timing.BaseInterval)
	assert.Equal(t, 3*time.Second, s.Timing.MinInterval, "untouched keys keep defaults")
	assert.Equal(t, 12, s.ChangeDetection.HashSensitivity)
	assert.False(t, s.ChangeDetection.TitleChangeTriggersExtract)
	assert.False(t, s.Extractors.OCREnabled)
	assert.Equal(t, "/opt/glimpsed/ocr", s.Extractors.OCRHelperPath)
	assert.Equal(t, []string{"com.work.*"}, s.Privacy.BlockedApps)
	assert.True(t, s.Privacy.RedactEmails)
	assert.Equal(t, 250, s.ChannelCapacity)
	assert.True(t, s.SocketEnabled)
	assert.Equal(t, "/tmp/glimpsed.sock", s.SocketPath)
}
