package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/glimpsed/internal/adapters/driven/config/file"
	"github.com/custodia-labs/glimpsed/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/glimpsed/internal/adapters/driving/ingestsock"
	"github.com/custodia-labs/glimpsed/internal/core/domain"
	"github.com/custodia-labs/glimpsed/internal/core/ports/driven"
	"github.com/custodia-labs/glimpsed/internal/core/services"
	"github.com/custodia-labs/glimpsed/internal/extractors/ax"
	"github.com/custodia-labs/glimpsed/internal/extractors/ocr"
	"github.com/custodia-labs/glimpsed/internal/logger"
	"github.com/custodia-labs/glimpsed/internal/phash"
	"github.com/custodia-labs/glimpsed/internal/privacy"
	"github.com/custodia-labs/glimpsed/internal/tracker"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the capture daemon",
	Long: `Run the capture loop: track windows, extract content from the
focused window, and ingest it into local storage. Stops cleanly on
SIGINT or SIGTERM.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := configfile.NewConfigStore(flagConfigDir)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settings := services.LoadSettings(cfg)

	filter, err := privacy.NewFilter(settings.Privacy)
	if err != nil {
		return fmt.Errorf("compiling privacy rules: %w", err)
	}
	stopWatch, err := cfg.Watch(func() {
		if err := filter.SetBlocklist(services.LoadSettings(cfg).Privacy.BlockedApps); err != nil {
			logger.Warn("applying reloaded blocklist: %v", err)
		}
	})
	if err != nil {
		logger.Warn("config watching unavailable: %v", err)
	} else {
		defer stopWatch()
	}

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	pipeline := services.NewPipeline(store,
		services.WithCache(services.DefaultCacheTTL, services.DefaultCacheCapacity))

	source, err := tracker.NewHelperSource(settings.Extractors.WindowHelperPath)
	if err != nil {
		return fmt.Errorf("starting window helper: %w", err)
	}
	tr := tracker.New(source)
	defer tr.Close()

	detector := phash.NewDetector(settings.ChangeDetection.HashSensitivity)

	var extractors []driven.Extractor
	var capturer driven.WindowCapturer

	if settings.Extractors.OCREnabled {
		ocrExt := ocr.New(
			settings.Extractors.CaptureHelperPath,
			settings.Extractors.OCRHelperPath,
			ocr.WithTimeout(settings.Extractors.HelperTimeout),
		)
		extractors = append(extractors, ocrExt)
		capturer = ocrExt
	}

	if settings.Extractors.AccessibilityEnabled {
		axClient, err := ax.NewClient(settings.Extractors.AXHelperPath)
		if err != nil {
			logger.Warn("accessibility backend unavailable: %v", err)
			logger.Warn("grant accessibility permission in System Settings > Privacy & Security, then restart")
		} else {
			defer axClient.Close()
			extractors = append(extractors, ax.NewExtractor(axClient))
		}
	}

	if len(extractors) == 0 {
		return fmt.Errorf("no extraction backends available: %w", domain.ErrPermissionDenied)
	}

	router := services.NewRouter(services.RouterDeps{
		Tracker:    tr,
		Privacy:    filter,
		Detector:   detector,
		Capturer:   capturer,
		Extractors: extractors,
	}, settings)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := tr.RefreshDisplays(ctx); err != nil {
		logger.Warn("display enumeration: %v", err)
	}

	if settings.SocketEnabled {
		srv := ingestsock.NewServer(pipeline, socketPath(settings.SocketPath))
		if err := srv.Listen(); err != nil {
			return err
		}
		defer srv.Close()
		go func() {
			if err := srv.Serve(ctx); err != nil {
				logger.Warn("ingestion socket: %v", err)
			}
		}()
	}

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		if err := router.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("router: %v", err)
		}
	}()

	logger.Info("glimpsed daemon running (tick every %s)", settings.Timing.BaseInterval)

	// Consume until the router closes its channel on shutdown. In-flight
	// payloads drain before exit.
	for payload := range router.Payloads() {
		res := pipeline.Ingest(ctx, payload)
		logger.Debug("ingest %s: %s (%d chunks)", payload.URL, res.Status, res.Chunks)
	}

	<-routerDone
	logger.Info("glimpsed daemon stopped")
	return nil
}

func socketPath(configured string) string {
	if configured != "" {
		return configured
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "glimpsed.sock")
	}
	return filepath.Join(home, ".glimpsed", "glimpsed.sock")
}
