package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/ocrdocumentflow/internal/gcp"
	"github.com/Lllllllleong/ocrdocumentflow/internal/services"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload images for a user",
	Long:  "Upload local JPG, PNG or PDF files through the same validation as the web gateway.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	config, err := services.LoadUploadConfig()
	if err != nil {
		return fmt.Errorf("load upload config: %w", err)
	}
	store, err := gcp.NewGCSStoreFromEnv(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	gateway := services.NewUploadGateway(store, *config, logger)

	var failed int
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		img, err := gateway.Upload(ctx, userID, filepath.Base(path), data)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), img.Key)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(args))
	}
	return nil
}
