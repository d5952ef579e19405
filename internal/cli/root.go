package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/taskwatcher/internal/control"
	"github.com/vietddude/taskwatcher/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "watcher",
	Short: "Campaign task watcher",
	Long: `Watcher scans the stake, swap and deposit contracts on BNB Smart Chain
during the campaign window, credits qualifying users once per task and
notifies the campaign backend.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
	Run: runWatcher,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the watcher until the tracking window is finished",
	Run:   runWatcher,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log notifications instead of sending them")
	rootCmd.AddCommand(runCmd)
}

func setupLogging(level string) {
	slogLevel := slog.LevelInfo
	if isDebug || level == "debug" {
		slogLevel = slog.LevelDebug
	}
	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

// loadConfig reads the config for admin commands, which skip validation of
// settings they do not use.
func loadConfig() *config.AppConfig {
	cfg, err := config.Parse(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging.Level)
	return cfg
}

func runWatcher(cmd *cobra.Command, args []string) {
	cfg, err := config.Parse(cfgPath)
	if err == nil {
		if dryRun {
			cfg.Notifier.DryRun = true
		}
		err = cfg.Validate()
	}
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.NewWatcher(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize Watcher", "error", err)
		os.Exit(1)
	}

	slog.Info("Watcher started",
		"config", cfgPath,
		"window_start", cfg.Window.Start,
		"window_end", cfg.Window.End,
		"dry_run", cfg.Notifier.DryRun,
	)

	runErr := app.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Close(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}

	if runErr != nil {
		slog.Error("Watcher failed", "error", runErr)
		os.Exit(1)
	}
}
