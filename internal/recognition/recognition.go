// Package recognition selects and builds the configured recognition engine.
package recognition

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lllllllleong/ocrdocumentflow/internal/gcp"
	"github.com/Lllllllleong/ocrdocumentflow/internal/services"
	"github.com/Lllllllleong/ocrdocumentflow/internal/tesseract"
)

const (
	EngineVertex    = "vertex"
	EngineTesseract = "tesseract"
)

// Config holds configuration for the recognition engine.
type Config struct {
	Engine         string
	ProjectID      string
	VertexAIRegion string
	VertexModel    string
	Languages      []string
}

// LoadConfig loads and validates the engine settings from the environment.
func LoadConfig() (*Config, error) {
	config := &Config{
		Engine:         strings.ToLower(gcp.GetEnv("RECOGNITION_ENGINE", EngineVertex)),
		ProjectID:      gcp.GetEnv("PROJECT_ID", ""),
		VertexAIRegion: gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		VertexModel:    gcp.GetEnv("VERTEX_OCR_MODEL", "gemini-1.5-pro"),
		Languages:      strings.Split(gcp.GetEnv("OCR_LANGUAGES", "eng"), "+"),
	}
	switch config.Engine {
	case EngineVertex:
		if config.ProjectID == "" {
			return nil, fmt.Errorf("PROJECT_ID environment variable must be set for the vertex engine")
		}
	case EngineTesseract:
	default:
		return nil, fmt.Errorf("unknown RECOGNITION_ENGINE %q", config.Engine)
	}
	return config, nil
}

// New builds the engine named in config. The returned close function
// releases its clients.
func New(ctx context.Context, config Config) (services.Recognizer, func() error, error) {
	switch config.Engine {
	case EngineTesseract:
		return tesseract.NewEngine(config.Languages...), func() error { return nil }, nil
	case EngineVertex:
		client, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion, config.VertexModel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		return gcp.NewVertexRecognizer(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown recognition engine %q", config.Engine)
	}
}
