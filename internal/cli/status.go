package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/taskwatcher/internal/control"
	"github.com/vietddude/taskwatcher/internal/core/cursor"
	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/infra/chain/evm"
	"github.com/vietddude/taskwatcher/internal/infra/rpc/provider"
	"github.com/vietddude/taskwatcher/internal/infra/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint, chain head and issued credits",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stores, err := control.OpenStores(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = stores.Close(context.Background())
	}()

	checkpoint, err := stores.Checkpoint.Load(ctx)
	if err != nil {
		slog.Error("Failed to load checkpoint", "error", err)
		os.Exit(1)
	}
	records, err := stores.Ledger.List(ctx, nil)
	if err != nil {
		slog.Error("Failed to list credits", "error", err)
		os.Exit(1)
	}
	perTask := make(map[domain.TaskID]int)
	for _, r := range records {
		perTask[r.TaskID]++
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "KEY\tVALUE")
	_, _ = fmt.Fprintf(w, "checkpoint\t%d\n", checkpoint)
	if reader, ok := stores.Checkpoint.(storage.CursorReader); ok {
		if c, err := reader.Cursor(ctx); err == nil && c != nil {
			_, _ = fmt.Fprintf(w, "checkpoint_saved_at\t%s\n", c.UpdatedAt.UTC().Format(time.RFC3339))
		}
	}
	_, _ = fmt.Fprintf(w, "window\t%d - %d\n", cfg.Window.Start, cfg.Window.End)

	if cfg.Chain.RPCURL != "" {
		rpc := provider.NewHTTPProvider("rpc", cfg.Chain.RPCURL, cfg.Chain.RPCTimeout)
		client := evm.NewEVMAdapter(rpc)
		head, err := client.CurrentHeight(ctx)
		if err != nil {
			slog.Warn("Failed to fetch chain head", "error", err)
		} else {
			_, _ = fmt.Fprintf(w, "head\t%d\n", head)
			_, _ = fmt.Fprintf(w, "lag\t%d\n", int64(head)-int64(checkpoint))
		}
		if ts, err := client.BlockTimestamp(ctx, checkpoint); err == nil {
			_, _ = fmt.Fprintf(w, "checkpoint_time\t%s\n", time.Unix(int64(ts), 0).UTC().Format(time.RFC3339))
			_, _ = fmt.Fprintf(w, "state\t%s\n", cursor.StateDescription(cursor.StateAt(cfg.Window, ts)))
		}
	}

	for _, task := range []domain.TaskID{domain.TaskStake, domain.TaskSwap, domain.TaskDeposit} {
		_, _ = fmt.Fprintf(w, "credits_task_%d\t%d\n", task, perTask[task])
	}
	_, _ = fmt.Fprintf(w, "credits_total\t%d\n", len(records))
	_ = w.Flush()
}
