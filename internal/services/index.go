package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/Lllllllleong/ocrdocumentflow/internal/blob"
	"github.com/Lllllllleong/ocrdocumentflow/internal/gcp"
	"github.com/Lllllllleong/ocrdocumentflow/internal/keys"
	"github.com/Lllllllleong/ocrdocumentflow/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPublicURLBase    = "https://storage.googleapis.com"
	defaultFetchConcurrency = 10
)

// IndexConfig holds configuration for the result index.
type IndexConfig struct {
	Bucket           string
	PublicURLBase    string
	FetchConcurrency int
}

// LoadIndexConfig reads the index's settings from the environment.
func LoadIndexConfig() (*IndexConfig, error) {
	bucket := gcp.GetEnv("IMAGES_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("IMAGES_BUCKET environment variable must be set")
	}
	concurrency, err := gcp.GetEnvInt("INDEX_FETCH_CONCURRENCY", defaultFetchConcurrency)
	if err != nil {
		return nil, err
	}
	return &IndexConfig{
		Bucket:           bucket,
		PublicURLBase:    gcp.GetEnv("PUBLIC_URL_BASE", defaultPublicURLBase),
		FetchConcurrency: concurrency,
	}, nil
}

// ResultIndex joins a user's images with their extraction records at read time.
// It never writes and keeps no cache, so it is safe to poll.
type ResultIndex struct {
	store  blob.Store
	config IndexConfig
	logger *slog.Logger
}

// NewResultIndex creates a ResultIndex. A nil logger uses slog.Default().
func NewResultIndex(store blob.Store, config IndexConfig, logger *slog.Logger) *ResultIndex {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PublicURLBase == "" {
		config.PublicURLBase = defaultPublicURLBase
	}
	if config.FetchConcurrency < 1 {
		config.FetchConcurrency = defaultFetchConcurrency
	}
	return &ResultIndex{store: store, config: config, logger: logger}
}

// ListForUser returns one row per stored image of userID, in key order.
// Images without a matching record report models.PendingText.
func (ix *ResultIndex) ListForUser(ctx context.Context, userID string) ([]models.UnifiedViewRow, error) {
	if err := checkUser(userID); err != nil {
		return nil, ValidationError("cannot list images", err)
	}
	logCtx := ix.logger.With("userId", userID, "gcsBucket", ix.config.Bucket)

	// --- 1. List images, skipping folder placeholders ---
	imageKeys, err := blob.Keys(ctx, ix.store, ix.config.Bucket, keys.ImagePrefix(userID), func(key string) bool {
		return !keys.IsDirMarker(key)
	})
	if err != nil {
		logCtx.Error("Failed to list images", "error", err)
		return nil, StorageError("failed to list images", err)
	}

	// --- 2. Load extraction records and index their text by image name ---
	textByName := textByImageName(ix.loadRecords(ctx, logCtx, userID))

	// --- 3. Join ---
	rows := make([]models.UnifiedViewRow, 0, len(imageKeys))
	for _, key := range imageKeys {
		filename := keys.Filename(key)
		text, ok := textByName[filename]
		if !ok {
			text = models.PendingText
		}
		rows = append(rows, models.UnifiedViewRow{
			Filename: filename,
			Key:      key,
			URL:      ix.PublicURL(key),
			OCRText:  text,
		})
	}

	logCtx.Info("Listed images.", "imageCount", len(rows), "recordCount", len(textByName))
	return rows, nil
}

// PendingForUser returns the rows of userID that have no extraction record yet.
func (ix *ResultIndex) PendingForUser(ctx context.Context, userID string) ([]models.UnifiedViewRow, error) {
	rows, err := ix.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending := rows[:0]
	for _, row := range rows {
		if row.Pending() {
			pending = append(pending, row)
		}
	}
	return pending, nil
}

// Bucket returns the bucket the index reads from.
func (ix *ResultIndex) Bucket() string {
	return ix.config.Bucket
}

// PublicURL builds the display URL of an object in the index's bucket.
func (ix *ResultIndex) PublicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(ix.config.PublicURLBase, "/") + "/" + url.PathEscape(ix.config.Bucket) + "/" + strings.Join(segments, "/")
}

// loadRecords fetches every parseable extraction record of userID. Records
// that cannot be read or parsed are logged and left out. A listing failure
// yields no records, which shows every image as pending.
func (ix *ResultIndex) loadRecords(ctx context.Context, logCtx *slog.Logger, userID string) []models.ExtractionRecord {
	textKeys, err := blob.Keys(ctx, ix.store, ix.config.Bucket, keys.TextPrefix(userID), keys.IsTextRecord)
	if err != nil {
		logCtx.Warn("Failed to list extraction records. Reporting all images as pending.", "error", err)
		return nil
	}

	fetched := make([]*models.ExtractionRecord, len(textKeys))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(ix.config.FetchConcurrency)

	for i, key := range textKeys {
		eg.Go(func() error {
			record, err := ix.readRecord(gctx, key)
			if err != nil {
				logCtx.Warn("Skipping extraction record.", "textKey", key, "error", err)
				return nil
			}
			fetched[i] = record
			return nil
		})
	}
	_ = eg.Wait()

	records := make([]models.ExtractionRecord, 0, len(fetched))
	for _, r := range fetched {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records
}

func (ix *ResultIndex) readRecord(ctx context.Context, key string) (*models.ExtractionRecord, error) {
	data, err := ix.store.Get(ctx, ix.config.Bucket, key)
	if err != nil {
		return nil, StorageError("failed to read "+key, err)
	}
	var record models.ExtractionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, MalformedArtifact("failed to parse "+key, err)
	}
	return &record, nil
}

// textByImageName maps each record's image_name to its text. When a name
// appears more than once the newest timestamp wins.
func textByImageName(records []models.ExtractionRecord) map[string]string {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	out := make(map[string]string, len(records))
	for _, r := range records {
		if _, seen := out[r.ImageName]; !seen {
			out[r.ImageName] = r.Text
		}
	}
	return out
}
