package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vietddude/taskwatcher/internal/control"
)

var resetCheckpointCmd = &cobra.Command{
	Use:   "reset-checkpoint [block_height]",
	Short: "Overwrite the checkpoint with a given block height",
	Long: `Overwrite the checkpoint with a given block height. Scanning resumes at
block_height + 1. Moving the checkpoint backwards replays blocks; already
credited users are not credited or notified again.`,
	Args: cobra.ExactArgs(1),
	Run:  runResetCheckpoint,
}

func init() {
	rootCmd.AddCommand(resetCheckpointCmd)
}

func runResetCheckpoint(cmd *cobra.Command, args []string) {
	height, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Invalid block height: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig()
	ctx := context.Background()

	stores, err := control.OpenStores(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = stores.Close(ctx)
	}()

	previous, err := stores.Checkpoint.Load(ctx)
	if err != nil {
		slog.Warn("Failed to read current checkpoint", "error", err)
	}

	// The store is written directly; the cursor manager refuses to move
	// backwards.
	if err := stores.Checkpoint.Save(ctx, height); err != nil {
		slog.Error("Failed to reset checkpoint", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset checkpoint from %d to %d\n", previous, height)
}
