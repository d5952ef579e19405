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
	"github.com/vietddude/taskwatcher/internal/core/domain"
)

var creditsTask int

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "List credited users",
	Run:   runCredits,
}

func init() {
	creditsCmd.Flags().IntVar(&creditsTask, "task", 0, "only list credits for this task id (1 stake, 2 swap, 3 deposit)")
	rootCmd.AddCommand(creditsCmd)
}

func runCredits(cmd *cobra.Command, args []string) {
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

	var filter *domain.TaskID
	if creditsTask != 0 {
		task := domain.TaskID(creditsTask)
		filter = &task
	}

	records, err := stores.Ledger.List(ctx, filter)
	if err != nil {
		slog.Error("Failed to list credits", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TASK\tADDRESS\tCREATED")
	for _, r := range records {
		created := "-"
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.UTC().Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", r.TaskID, r.UserAddress, created)
	}
	_ = w.Flush()
	fmt.Printf("%d credits\n", len(records))
}
