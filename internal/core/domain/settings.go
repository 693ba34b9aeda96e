package domain

import "time"

// Settings holds all runtime configuration with defaults baked in.
// Every key in the TOML config file is optional.
type Settings struct {
	Timing          TimingSettings
	ChangeDetection ChangeDetectionSettings
	Extractors      ExtractorSettings
	Privacy         PrivacySettings

	// ChannelCapacity bounds the router-to-pipeline payload channel.
	ChannelCapacity int

	// SocketEnabled serves the ingestion wire protocol on a unix socket.
	SocketEnabled bool

	// SocketPath is the unix socket path when SocketEnabled is set.
	SocketPath string

	// DataDir is where the store and helpers live. Empty means ~/.glimpsed.
	DataDir string
}

// TimingSettings controls the tick loop.
type TimingSettings struct {
	// BaseInterval is the periodic tick interval.
	BaseInterval time.Duration

	// MinInterval is the per-window minimum gap between extractions.
	MinInterval time.Duration

	// MaxInterval caps adaptive backoff for idle windows.
	MaxInterval time.Duration

	// IdleThreshold is how long without change before a window counts idle.
	IdleThreshold time.Duration
}

// ChangeDetectionSettings controls the perceptual-hash gate.
type ChangeDetectionSettings struct {
	// HashSensitivity is the Hamming distance threshold.
	HashSensitivity int

	// TitleChangeTriggersExtract fires an extraction when the frontmost
	// window's title changes.
	TitleChangeTriggersExtract bool
}

// ExtractorSettings enables backends and locates helper binaries.
type ExtractorSettings struct {
	AccessibilityEnabled   bool
	ChromeExtensionEnabled bool
	OCREnabled             bool

	// Helper binary paths. Empty means the bundled default next to the
	// executable.
	WindowHelperPath  string
	AXHelperPath      string
	CaptureHelperPath string
	OCRHelperPath     string

	// HelperTimeout bounds a single helper invocation.
	HelperTimeout time.Duration
}

// PrivacySettings controls the user blocklist and redactors.
// The compiled-in always-blacklist is not configurable.
type PrivacySettings struct {
	BlockedApps []string

	RedactCreditCards  bool
	RedactSSN          bool
	RedactAPIKeys      bool
	RedactEmails       bool
	RedactPhoneNumbers bool
}

// DefaultSettings returns the baked-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Timing: TimingSettings{
			BaseInterval:  5 * time.Second,
			MinInterval:   3 * time.Second,
			MaxInterval:   60 * time.Second,
			IdleThreshold: 30 * time.Second,
		},
		ChangeDetection: ChangeDetectionSettings{
			HashSensitivity:            8,
			TitleChangeTriggersExtract: true,
		},
		Extractors: ExtractorSettings{
			AccessibilityEnabled:   true,
			ChromeExtensionEnabled: true,
			OCREnabled:             true,
			HelperTimeout:          30 * time.Second,
		},
		Privacy: PrivacySettings{
			RedactCreditCards:  true,
			RedactSSN:          true,
			RedactAPIKeys:      true,
			RedactEmails:       false,
			RedactPhoneNumbers: false,
		},
		ChannelCapacity: 100,
	}
}
