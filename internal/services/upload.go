package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/Lllllllleong/ocrdocumentflow/internal/blob"
	"github.com/Lllllllleong/ocrdocumentflow/internal/gcp"
	"github.com/Lllllllleong/ocrdocumentflow/internal/keys"
	"github.com/Lllllllleong/ocrdocumentflow/internal/models"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const defaultMaxUploadBytes = 20 << 20

// allowedTypes maps accepted extensions to the content type stored with the blob.
var allowedTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// UploadConfig holds configuration for the upload gateway.
type UploadConfig struct {
	Bucket         string
	MaxUploadBytes int
}

// LoadUploadConfig reads the gateway's settings from the environment.
func LoadUploadConfig() (*UploadConfig, error) {
	bucket := gcp.GetEnv("IMAGES_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("IMAGES_BUCKET environment variable must be set")
	}
	maxBytes, err := gcp.GetEnvInt("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}
	return &UploadConfig{Bucket: bucket, MaxUploadBytes: maxBytes}, nil
}

// UploadGateway validates uploads and stores them under collision-safe keys.
// Its single write per upload is what fires the extraction trigger.
type UploadGateway struct {
	store       blob.Store
	config      UploadConfig
	logger      *slog.Logger
	validatePDF func([]byte) error
}

// NewUploadGateway creates an UploadGateway. A nil logger uses slog.Default().
func NewUploadGateway(store blob.Store, config UploadConfig, logger *slog.Logger) *UploadGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadGateway{
		store:       store,
		config:      config,
		logger:      logger,
		validatePDF: validatePDF,
	}
}

// Upload stores data for userID under a fresh unique name derived from filename.
func (g *UploadGateway) Upload(ctx context.Context, userID, filename string, data []byte) (*models.StoredImage, error) {
	logCtx := g.logger.With("userId", userID, "originalFilename", filename)

	if err := checkUser(userID); err != nil {
		logCtx.Warn("Upload rejected: invalid user id.")
		return nil, ValidationError("upload rejected", err)
	}
	base := keys.BaseName(filename)
	if base == "" || len(data) == 0 {
		logCtx.Warn("Upload rejected: empty file.")
		return nil, ValidationError("upload rejected", ErrEmptyFile)
	}
	ext := strings.ToLower(path.Ext(base))
	contentType, ok := allowedTypes[ext]
	if !ok {
		logCtx.Warn("Upload rejected: unsupported file type.", "extension", ext)
		return nil, ValidationError(fmt.Sprintf("extension %q is not allowed", ext), ErrUnsupportedType)
	}
	if g.config.MaxUploadBytes > 0 && len(data) > g.config.MaxUploadBytes {
		logCtx.Warn("Upload rejected: file too large.", "size", len(data), "limit", g.config.MaxUploadBytes)
		return nil, ValidationError(fmt.Sprintf("%d bytes exceeds limit of %d", len(data), g.config.MaxUploadBytes), ErrFileTooLarge)
	}
	if ext == ".pdf" {
		if err := g.validatePDF(data); err != nil {
			logCtx.Warn("Upload rejected: PDF failed validation.", "error", err)
			return nil, ValidationError("upload rejected", fmt.Errorf("%w: %v", ErrInvalidPDF, err))
		}
	}

	uniqueName := keys.UniqueName(base)
	key := keys.ImageKey(userID, uniqueName)
	logCtx = logCtx.With("gcsBucket", g.config.Bucket, "gcsObject", key)

	if err := g.store.Create(ctx, g.config.Bucket, key, data, contentType); err != nil {
		if errors.Is(err, blob.ErrAlreadyExists) {
			logCtx.Error("Generated image key already exists.", "error", err)
		} else {
			logCtx.Error("Failed to store uploaded image.", "error", err)
		}
		return nil, StorageError("failed to store upload", err)
	}

	logCtx.Info("Stored uploaded image.", "size", len(data), "contentType", contentType)
	return &models.StoredImage{
		UserID:   userID,
		Filename: uniqueName,
		Bucket:   g.config.Bucket,
		Key:      key,
		Size:     int64(len(data)),
	}, nil
}

// checkUser returns the validation cause for a user id that cannot own keys.
func checkUser(userID string) error {
	switch {
	case userID == "":
		return ErrMissingUser
	case !keys.ValidUser(userID):
		return ErrInvalidUser
	}
	return nil
}

var disablePDFConfigDir sync.Once

// validatePDF runs pdfcpu's relaxed validation over the uploaded bytes.
func validatePDF(data []byte) error {
	disablePDFConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.Validate(bytes.NewReader(data), conf)
}
