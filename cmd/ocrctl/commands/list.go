package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var listPending bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's images with their extracted text",
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listPending, "pending", false, "only show images without extracted text")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	index, store, err := newIndex(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	list := index.ListForUser
	if listPending {
		list = index.PendingForUser
	}
	rows, err := list(ctx, userID)
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), rows)
}
