package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/ocrdocumentflow/internal/models"
	"github.com/Lllllllleong/ocrdocumentflow/internal/services"
)

var extractCmd = &cobra.Command{
	Use:   "extract <image-key>...",
	Short: "Run extraction for specific image keys",
	Long: `Run extraction for the given image keys as if their storage notifications
had been delivered again. Keys outside an images area are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
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

	notifications := make([]models.StorageNotification, 0, len(args))
	for _, key := range args {
		notifications = append(notifications, models.StorageNotification{Bucket: index.Bucket(), Name: key})
	}
	result := trigger.HandleBatch(ctx, notifications)
	return reportBatch(cmd, result)
}

func reportBatch(cmd *cobra.Command, result services.BatchResult) error {
	fmt.Fprintf(cmd.OutOrStdout(), "processed=%d skipped=%d failed=%d\n", result.Processed, result.Skipped, result.Failed)
	if result.Failed > 0 {
		return fmt.Errorf("%d extractions failed", result.Failed)
	}
	return nil
}
