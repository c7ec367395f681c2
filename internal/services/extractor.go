package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/ocrdocumentflow/internal/blob"
	"github.com/Lllllllleong/ocrdocumentflow/internal/keys"
	"github.com/Lllllllleong/ocrdocumentflow/internal/models"
)

// Recognizer turns image bytes into detected lines of text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) ([]models.Line, error)
}

// ExtractorFunction runs OCR for one stored image and persists the result.
type ExtractorFunction struct {
	store      blob.Store
	recognizer Recognizer
	logger     *slog.Logger
	now        func() time.Time
}

// NewExtractor creates an ExtractorFunction. A nil logger uses slog.Default().
func NewExtractor(store blob.Store, recognizer Recognizer, logger *slog.Logger) *ExtractorFunction {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractorFunction{
		store:      store,
		recognizer: recognizer,
		logger:     logger,
		now:        time.Now,
	}
}

// Extract fetches the image at imageKey, recognizes its text and writes the
// extraction record to the text key for filename. Either a complete record is
// written or nothing is. Re-running overwrites the previous record.
func (f *ExtractorFunction) Extract(ctx context.Context, bucket, imageKey, userID, filename string) error {
	logCtx := f.logger.With("gcsBucket", bucket, "gcsObject", imageKey, "userId", userID, "filename", filename)
	logCtx.Info("Starting text extraction.")

	// --- 1. Fetch the source image ---
	image, err := f.store.Get(ctx, bucket, imageKey)
	if err != nil {
		logCtx.Error("Failed to read source image", "error", err)
		return StorageError("failed to read "+imageKey, err)
	}

	// --- 2. Recognize ---
	lines, err := f.recognizer.Recognize(ctx, image)
	if err != nil {
		logCtx.Error("Recognition call failed", "error", err)
		return RecognitionError("failed to recognize "+imageKey, err)
	}

	// --- 3. Normalize ---
	text := joinLines(lines)
	if text == "" {
		logCtx.Warn("No text found in image. Storing empty record.")
	}

	record := models.ExtractionRecord{
		UserID:    userID,
		ImageName: filename,
		S3Key:     imageKey,
		Text:      text,
		Timestamp: f.now().Unix(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		logCtx.Error("Failed to marshal extraction record", "error", err)
		return MalformedArtifact("failed to encode record", err)
	}

	// --- 4. Persist the derived artifact ---
	textKey := keys.TextKey(userID, filename)
	if err := f.store.Put(ctx, bucket, textKey, payload, "application/json"); err != nil {
		logCtx.Error("Failed to write extraction record", "error", err, "textKey", textKey)
		return StorageError("failed to write "+textKey, err)
	}

	logCtx.Info("Extraction complete.", "textKey", textKey, "lineCount", len(lines), "textLength", len(text))
	return nil
}

func joinLines(lines []models.Line) string {
	texts := make([]string, len(lines))
	for i, line := range lines {
		texts[i] = line.Text
	}
	return strings.Join(texts, "\n")
}
