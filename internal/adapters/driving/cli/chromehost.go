package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/glimpsed/internal/adapters/driven/config/file"
	"github.com/custodia-labs/glimpsed/internal/core/domain"
	"github.com/custodia-labs/glimpsed/internal/core/services"
	"github.com/custodia-labs/glimpsed/internal/extractors/browser"
	"github.com/custodia-labs/glimpsed/internal/logger"
	"github.com/custodia-labs/glimpsed/internal/privacy"
)

var chromeHostCmd = &cobra.Command{
	Use:   "chrome-host",
	Short: "Run as the browser extension's native-messaging host",
	Long: `The browser launches this process and streams extracted page
content over stdin. Each item is privacy-filtered and forwarded to the
running daemon's ingestion socket.`,
	RunE: runChromeHost,
}

func init() {
	rootCmd.AddCommand(chromeHostCmd)
}

func runChromeHost(cmd *cobra.Command, _ []string) error {
	cfg, err := configfile.NewConfigStore(flagConfigDir)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settings := services.LoadSettings(cfg)

	filter, err := privacy.NewFilter(settings.Privacy)
	if err != nil {
		return fmt.Errorf("compiling privacy rules: %w", err)
	}

	conn, err := net.Dial("unix", socketPath(settings.SocketPath))
	if err != nil {
		return fmt.Errorf("connecting to daemon socket: %w", err)
	}
	defer conn.Close()

	host := browser.NewHost(os.Stdin)
	go func() {
		if err := host.Run(cmd.Context()); err != nil {
			logger.Warn("browser host: %v", err)
		}
	}()

	enc := json.NewEncoder(conn)
	responses := bufio.NewScanner(conn)

	for content := range host.Content() {
		if filter.IsBlocked(content.BundleID) {
			continue
		}

		payload := domain.CapturePayload{
			Source:    content.Source,
			URL:       content.URL,
			Content:   filter.Redact(content.Body),
			Title:     content.Title,
			Timestamp: content.Timestamp.Unix(),
			AppName:   content.AppName,
			BundleID:  content.BundleID,
		}
		if err := enc.Encode(payload); err != nil {
			return fmt.Errorf("writing to daemon socket: %w", err)
		}
		if !responses.Scan() {
			return fmt.Errorf("daemon socket closed")
		}

		var res domain.IngestResult
		if err := json.Unmarshal(responses.Bytes(), &res); err != nil {
			logger.Warn("malformed daemon response: %v", err)
			continue
		}
		logger.Debug("chrome push %s: %s", payload.URL, res.Status)
	}
	return nil
}
