package services

import (
	"time"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
	"github.com/custodia-labs/glimpsed/internal/core/ports/driven"
)

// LoadSettings materializes the runtime settings from a config store,
// falling back to the baked-in defaults key by key. Every key is
// optional.
func LoadSettings(cfg driven.ConfigStore) domain.Settings {
	s := domain.DefaultSettings()

	s.Timing.BaseInterval = secondsOr(cfg, "timing.base_interval_seconds", s.Timing.BaseInterval)
	s.Timing.MinInterval = secondsOr(cfg, "timing.min_interval_seconds", s.Timing.MinInterval)
	s.Timing.MaxInterval = secondsOr(cfg, "timing.max_interval_seconds", s.Timing.MaxInterval)
	s.Timing.IdleThreshold = secondsOr(cfg, "timing.idle_threshold_seconds", s.Timing.IdleThreshold)

	if v := cfg.GetInt("change_detection.hash_sensitivity"); v > 0 {
		s.ChangeDetection.HashSensitivity = v
	}
	s.ChangeDetection.TitleChangeTriggersExtract = cfg.GetBool(
		"change_detection.title_change_triggers_extract", s.ChangeDetection.TitleChangeTriggersExtract)

	s.Extractors.AccessibilityEnabled = cfg.GetBool("extractors.accessibility_enabled", s.Extractors.AccessibilityEnabled)
	s.Extractors.ChromeExtensionEnabled = cfg.GetBool("extractors.chrome_extension_enabled", s.Extractors.ChromeExtensionEnabled)
	s.Extractors.OCREnabled = cfg.GetBool("extractors.ocr_enabled", s.Extractors.OCREnabled)
	s.Extractors.WindowHelperPath = cfg.GetString("extractors.window_helper_path")
	s.Extractors.AXHelperPath = cfg.GetString("extractors.ax_helper_path")
	s.Extractors.CaptureHelperPath = cfg.GetString("extractors.capture_helper_path")
	s.Extractors.OCRHelperPath = cfg.GetString("extractors.ocr_helper_path")
	s.Extractors.HelperTimeout = secondsOr(cfg, "extractors.helper_timeout_seconds", s.Extractors.HelperTimeout)

	s.Privacy.BlockedApps = cfg.GetStringSlice("privacy.blocked_apps")
	s.Privacy.RedactCreditCards = cfg.GetBool("privacy.redact_credit_cards", s.Privacy.RedactCreditCards)
	s.Privacy.RedactSSN = cfg.GetBool("privacy.redact_ssn", s.Privacy.RedactSSN)
	s.Privacy.RedactAPIKeys = cfg.GetBool("privacy.redact_api_keys", s.Privacy.RedactAPIKeys)
	s.Privacy.RedactEmails = cfg.GetBool("privacy.redact_emails", s.Privacy.RedactEmails)
	s.Privacy.RedactPhoneNumbers = cfg.GetBool("privacy.redact_phone_numbers", s.Privacy.RedactPhoneNumbers)

	if v := cfg.GetInt("pipeline.channel_capacity"); v > 0 {
		s.ChannelCapacity = v
	}
	s.SocketEnabled = cfg.GetBool("socket.enabled", s.SocketEnabled)
	if v := cfg.GetString("socket.path"); v != "" {
		s.SocketPath = v
	}
	if v := cfg.GetString("data_dir"); v != "" {
		s.DataDir = v
	}

	return s
}

func secondsOr(cfg driven.ConfigStore, key string, fallback time.Duration) time.Duration {
	if v := cfg.GetInt(key); v > 0 {
		return time.Duration(v) * time.Second
	}
	return fallback
}
