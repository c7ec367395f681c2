package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var backfillConcurrency int

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Extract text for every pending image of a user",
	RunE:  runBackfill,
}

func init() {
	backfillCmd.Flags().IntVarP(&backfillConcurrency, "concurrency", "n", 4, "number of images extracted at once")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
	defer cancel()

	index, store, err := newIndex(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	trigger, closeFn, err := newTrigger(ctx, store)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := trigger.Backfill(ctx, index, userID, backfillConcurrency)
	if err != nil {
		return err
	}
	return reportBatch(cmd, result)
}
