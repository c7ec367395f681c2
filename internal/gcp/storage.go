package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/ocrdocumentflow/internal/blob"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const defaultListPageSize = 500

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt reads an integer environment variable, returning fallback when unset.
func GetEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

// GCSStore implements blob.Store on Cloud Storage.
type GCSStore struct {
	client   *storage.Client
	pageSize int
}

// NewGCSStore wraps an existing storage client.
func NewGCSStore(client *storage.Client, pageSize int) *GCSStore {
	if pageSize < 1 {
		pageSize = defaultListPageSize
	}
	return &GCSStore{client: client, pageSize: pageSize}
}

// NewGCSStoreFromEnv creates a storage client and reads LIST_PAGE_SIZE.
func NewGCSStoreFromEnv(ctx context.Context) (*GCSStore, error) {
	pageSize, err := GetEnvInt("LIST_PAGE_SIZE", defaultListPageSize)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return NewGCSStore(client, pageSize), nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	reader, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gs://%s/%s: %w", bucket, key, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (s *GCSStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	return write(ctx, s.client.Bucket(bucket).Object(key), data, contentType)
}

// Create writes the object only if it doesn't already exist.
func (s *GCSStore) Create(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	obj := s.client.Bucket(bucket).Object(key).If(storage.Conditions{DoesNotExist: true})
	err := write(ctx, obj, data, contentType)

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		slog.Warn("Object already exists.", "gcsBucket", bucket, "gcsObject", key)
		return fmt.Errorf("gs://%s/%s: %w", bucket, key, blob.ErrAlreadyExists)
	}
	return err
}

func write(ctx context.Context, obj *storage.ObjectHandle, data []byte, contentType string) error {
	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// ListPage returns one page of objects under prefix using GCS page tokens.
func (s *GCSStore) ListPage(ctx context.Context, bucket, prefix, pageToken string) (blob.Page, error) {
	query := &storage.Query{Prefix: prefix}
	if err := query.SetAttrSelection([]string{"Name", "Size"}); err != nil {
		return blob.Page{}, fmt.Errorf("failed to build list query: %w", err)
	}

	it := s.client.Bucket(bucket).Objects(ctx, query)
	pager := iterator.NewPager(it, s.pageSize, pageToken)

	var attrs []*storage.ObjectAttrs
	next, err := pager.NextPage(&attrs)
	if err != nil {
		return blob.Page{}, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
	}

	page := blob.Page{NextPageToken: next, Objects: make([]blob.ObjectInfo, 0, len(attrs))}
	for _, a := range attrs {
		page.Objects = append(page.Objects, blob.ObjectInfo{Key: a.Name, Size: a.Size})
	}
	return page, nil
}
