package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/glimpsed/internal/adapters/driven/config/file"
	"github.com/custodia-labs/glimpsed/internal/core/services"
	"github.com/custodia-labs/glimpsed/internal/privacy"
)

var privacyCmd = &cobra.Command{
	Use:   "privacy",
	Short: "Manage the application blocklist",
	Long: `List, add, and remove bundle-id glob patterns in the user
blocklist. The compiled-in always-blacklist (password managers, system
preferences) is shown for reference and cannot be changed.`,
	RunE: runPrivacyList,
}

var privacyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show blocked application patterns",
	RunE:  runPrivacyList,
}

var privacyBlockCmd = &cobra.Command{
	Use:   "block <pattern>",
	Short: "Add a bundle-id glob pattern to the blocklist",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrivacyBlock,
}

var privacyUnblockCmd = &cobra.Command{
	Use:   "unblock <pattern>",
	Short: "Remove a pattern from the blocklist",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrivacyUnblock,
}

func init() {
	privacyCmd.AddCommand(privacyListCmd)
	privacyCmd.AddCommand(privacyBlockCmd)
	privacyCmd.AddCommand(privacyUnblockCmd)
	rootCmd.AddCommand(privacyCmd)
}

func loadFilter() (*privacy.Filter, *configfile.ConfigStore, error) {
	cfg, err := configfile.NewConfigStore(flagConfigDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}
	filter, err := privacy.NewFilter(services.LoadSettings(cfg).Privacy)
	if err != nil {
		return nil, nil, fmt.Errorf("compiling privacy rules: %w", err)
	}
	return filter, cfg, nil
}

func runPrivacyList(cmd *cobra.Command, _ []string) error {
	filter, _, err := loadFilter()
	if err != nil {
		return err
	}

	cmd.Println("User blocklist:")
	patterns := filter.Patterns()
	if len(patterns) == 0 {
		cmd.Println("  (empty)")
	}
	for _, p := range patterns {
		cmd.Printf("  %s\n", p)
	}

	cmd.Println("Always blocked:")
	for _, p := range privacy.AlwaysBlacklisted() {
		cmd.Printf("  %s\n", p)
	}
	return nil
}

func runPrivacyBlock(cmd *cobra.Command, args []string) error {
	filter, cfg, err := loadFilter()
	if err != nil {
		return err
	}
	if err := filter.Block(args[0]); err != nil {
		return err
	}
	if err := cfg.Set("privacy.blocked_apps", filter.Patterns()); err != nil {
		return fmt.Errorf("persisting blocklist: %w", err)
	}
	cmd.Printf("Blocked %s\n", args[0])
	return nil
}

func runPrivacyUnblock(cmd *cobra.Command, args []string) error {
	filter, cfg, err := loadFilter()
	if err != nil {
		return err
	}
	if err := filter.Unblock(args[0]); err != nil {
		return err
	}
	if err := cfg.Set("privacy.blocked_apps", filter.Patterns()); err != nil {
		return fmt.Errorf("persisting blocklist: %w", err)
	}
	cmd.Printf("Unblocked %s\n", args[0])
	return nil
}
