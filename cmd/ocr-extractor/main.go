package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/joho/godotenv"

	"github.com/Lllllllleong/ocrdocumentflow/internal/gcp"
	"github.com/Lllllllleong/ocrdocumentflow/internal/recognition"
	"github.com/Lllllllleong/ocrdocumentflow/internal/services"
)

var (
	triggerInstance *services.Trigger
	once            sync.Once
	initErr         error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Local runs read a .env file; deployed functions get their env from the platform.
	_ = godotenv.Load()

	// Registered as the handler for object-finalized events on the images bucket.
	functions.CloudEvent("ExtractText", extractText)
}

// main is required by the Go Functions Framework.
func main() {}

func newTrigger(ctx context.Context) (*services.Trigger, error) {
	store, err := gcp.NewGCSStoreFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	config, err := recognition.LoadConfig()
	if err != nil {
		return nil, err
	}
	// Clients live for the lifetime of the instance.
	recognizer, _, err := recognition.New(ctx, *config)
	if err != nil {
		return nil, err
	}
	slog.Info("Extractor initialized.", "engine", config.Engine)
	return services.NewTrigger(services.NewExtractor(store, recognizer, slog.Default()), slog.Default()), nil
}

// extractText is the Cloud Function entry point.
func extractText(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		triggerInstance, initErr = newTrigger(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	notifications, err := services.DecodeNotifications(e.Data())
	if err != nil {
		// A payload that cannot be decoded will never succeed on redelivery.
		slog.Error("Failed to decode event data", "error", err, "eventId", e.ID(), "data", string(e.Data()))
		return nil
	}

	// Failures are logged per image and acknowledged. Recovery is a re-upload
	// or an explicit backfill, never a platform retry.
	triggerInstance.HandleBatch(ctx, notifications)
	return nil
}
