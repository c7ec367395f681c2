// Package commands implements ocrctl, an operator CLI for the OCR pipeline.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/ocrdocumentflow/internal/gcp"
	"github.com/Lllllllleong/ocrdocumentflow/internal/recognition"
	"github.com/Lllllllleong/ocrdocumentflow/internal/services"
)

var (
	envFile string
	userID  string
	verbose bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ocrctl",
	Short: "Operate the OCR ingestion pipeline",
	Long: `ocrctl uploads images, lists a user's extraction results and replays
extraction for images that are still pending, against the same bucket the
deployed functions use.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
		} else {
			_ = godotenv.Load()
		}
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default .env if present)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user id that owns the images")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func requireUser() error {
	if userID == "" {
		return fmt.Errorf("user id is required (use --user flag)")
	}
	return nil
}

func newIndex(ctx context.Context) (*services.ResultIndex, *gcp.GCSStore, error) {
	config, err := services.LoadIndexConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load index config: %w", err)
	}
	store, err := gcp.NewGCSStoreFromEnv(ctx)
	if err != nil {
		return nil, nil, err
	}
	return services.NewResultIndex(store, *config, logger), store, nil
}

func newTrigger(ctx context.Context, store *gcp.GCSStore) (*services.Trigger, func() error, error) {
	config, err := recognition.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load recognition config: %w", err)
	}
	recognizer, closeFn, err := recognition.New(ctx, *config)
	if err != nil {
		return nil, nil, err
	}
	return services.NewTrigger(services.NewExtractor(store, recognizer, logger), logger), closeFn, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
