package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/joho/godotenv"

	"github.com/Lllllllleong/ocrdocumentflow/internal/api"
	"github.com/Lllllllleong/ocrdocumentflow/internal/gcp"
	"github.com/Lllllllleong/ocrdocumentflow/internal/services"
)

var (
	router  http.Handler
	once    sync.Once
	initErr error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	functions.HTTP("HandleGateway", handleGateway)
}

// main is required by the Go Functions Framework.
func main() {}

func newRouter(ctx context.Context) (http.Handler, error) {
	uploadConfig, err := services.LoadUploadConfig()
	if err != nil {
		return nil, err
	}
	indexConfig, err := services.LoadIndexConfig()
	if err != nil {
		return nil, err
	}
	store, err := gcp.NewGCSStoreFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, gcp.GetEnv("PROJECT_ID", ""))
	if err != nil {
		return nil, err
	}
	users := gcp.NewFirestoreUserDirectory(firestoreClient, gcp.GetEnv("USERS_COLLECTION", "users"))

	logger := slog.Default()
	handler := api.NewHandler(
		services.NewUploadGateway(store, *uploadConfig, logger),
		services.NewResultIndex(store, *indexConfig, logger),
		users,
		uploadConfig.MaxUploadBytes,
		logger,
	)
	slog.Info("Web gateway initialized.", "gcsBucket", uploadConfig.Bucket)
	return api.NewRouter(handler), nil
}

// handleGateway is the HTTP entry point.
func handleGateway(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		router, initErr = newRouter(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}
