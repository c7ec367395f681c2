package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/Lllllllleong/ocrdocumentflow/internal/keys"
	"github.com/Lllllllleong/ocrdocumentflow/internal/models"
)

// Extractor is the stage the trigger delegates each image to.
type Extractor interface {
	Extract(ctx context.Context, bucket, imageKey, userID, filename string) error
}

// Outcome records what the trigger did with one notification.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// BatchResult counts outcomes across a batch of notifications.
type BatchResult struct {
	Processed int
	Skipped   int
	Failed    int
}

func (r *BatchResult) add(o Outcome) {
	switch o {
	case OutcomeProcessed:
		r.Processed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}

// Trigger reacts to object-created notifications on the image prefix.
// Delivery is at-least-once and unordered; each notification is handled on
// its own and extraction overwrites by key, so duplicates are harmless.
type Trigger struct {
	extractor Extractor
	logger    *slog.Logger
}

// NewTrigger creates a Trigger. A nil logger uses slog.Default().
func NewTrigger(extractor Extractor, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{extractor: extractor, logger: logger}
}

// HandleNotification processes one notification. Malformed keys and keys
// outside an images area are skipped. Extraction errors are logged and
// reported as OutcomeFailed; they are never returned.
func (t *Trigger) HandleNotification(ctx context.Context, n models.StorageNotification) Outcome {
	logCtx := t.logger.With("gcsBucket", n.Bucket, "gcsObject", n.Name)

	parsed, ok := keys.Parse(n.Name)
	if !ok {
		logCtx.Warn("Skipping invalid key.")
		return OutcomeSkipped
	}
	if !keys.ValidUser(parsed.User) {
		logCtx.Warn("Skipping key without a user.")
		return OutcomeSkipped
	}
	if parsed.Area != keys.ImagesArea {
		logCtx.Info("Skipping object outside the images area.", "area", parsed.Area)
		return OutcomeSkipped
	}
	if parsed.Filename == "" {
		logCtx.Info("Skipping directory marker.")
		return OutcomeSkipped
	}

	logCtx.Info("Processing new image.", "userId", parsed.User, "filename", parsed.Filename)
	if err := t.extractor.Extract(ctx, n.Bucket, n.Name, parsed.User, parsed.Filename); err != nil {
		// Already logged with context by the extractor.
		return OutcomeFailed
	}
	return OutcomeProcessed
}

// HandleBatch processes notifications one by one. A failure never stops the
// remaining notifications from being handled.
func (t *Trigger) HandleBatch(ctx context.Context, notifications []models.StorageNotification) BatchResult {
	var result BatchResult
	for _, n := range notifications {
		result.add(t.HandleNotification(ctx, n))
	}
	t.logger.Info("Notification batch handled.",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result
}

// eventPayload accepts both the GCS object payload and an S3-style envelope.
type eventPayload struct {
	models.StorageNotification
	models.S3EventEnvelope
}

// DecodeNotifications parses an event body into notifications. S3-style keys
// are form-decoded ('+' is a space).
func DecodeNotifications(data []byte) ([]models.StorageNotification, error) {
	var payload eventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	if len(payload.Records) > 0 {
		notifications := make([]models.StorageNotification, 0, len(payload.Records))
		for _, rec := range payload.Records {
			key := unquotePlus(rec.S3.Object.Key)
			notifications = append(notifications, models.StorageNotification{
				Bucket: rec.S3.Bucket.Name,
				Name:   key,
			})
		}
		return notifications, nil
	}

	if payload.Name == "" {
		return nil, fmt.Errorf("event payload has no object name")
	}
	return []models.StorageNotification{payload.StorageNotification}, nil
}

// unquotePlus form-decodes an S3 key. Malformed escapes are kept literally so
// one bad key never costs the rest of the envelope.
func unquotePlus(raw string) string {
	if key, err := url.QueryUnescape(raw); err == nil {
		return key
	}
	slog.Warn("S3 key has malformed escapes. Keeping them literally.", "s3Key", raw)

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(raw) && isHex(raw[i+1]) && isHex(raw[i+2]):
			v, _ := strconv.ParseUint(raw[i+1:i+3], 16, 8)
			b.WriteByte(byte(v))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
