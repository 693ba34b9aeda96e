// Package cli wires the cobra command tree: the capture daemon, direct
// ingestion, privacy controls, and the chrome native-messaging host.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/glimpsed/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	flagVerbose   bool
	flagConfigDir string
)

var rootCmd = &cobra.Command{
	Use:   "glimpsed",
	Short: "Capture on-screen content into searchable local storage",
	Long: `glimpsed watches your visible windows, extracts their text through
accessibility, browser, and OCR backends, and lands it deduplicated and
chunked in a local SQLite database.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(flagVerbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config", "", "config directory (default ~/.glimpsed)")
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}
