package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/glimpsed/internal/adapters/driven/config/file"
	"github.com/custodia-labs/glimpsed/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/glimpsed/internal/core/domain"
	"github.com/custodia-labs/glimpsed/internal/core/services"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest capture payloads from stdin",
	Long: `Read one CapturePayload JSON object per line from stdin, land each
in local storage, and print one response object per line in the same
order. Useful for backfills and for testing the pipeline without the
daemon.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := configfile.NewConfigStore(flagConfigDir)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settings := services.LoadSettings(cfg)

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	pipeline := services.NewPipeline(store)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	enc := json.NewEncoder(cmd.OutOrStdout())

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var payload domain.CapturePayload
		var result domain.IngestResult
		if err := json.Unmarshal(line, &payload); err != nil {
			result = domain.Errored(fmt.Sprintf("malformed payload: %v", err))
		} else {
			result = pipeline.Ingest(cmd.Context(), payload)
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return scanner.Err()
}
