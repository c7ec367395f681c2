// Package blob defines the object-storage contract the OCR pipeline is built on.
// Implementations include the GCS adapter in internal/gcp and the in-memory
// store in internal/testutil.
package blob

import (
	"context"
	"errors"
	"iter"
)

var (
	// ErrNotFound is returned by Get when no object exists at the key.
	ErrNotFound = errors.New("blob: object not found")
	// ErrAlreadyExists is returned by Create when the key is already taken.
	ErrAlreadyExists = errors.New("blob: object already exists")
)

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Page is one slice of a prefix listing. An empty NextPageToken marks the last page.
type Page struct {
	Objects       []ObjectInfo
	NextPageToken string
}

// Store is a key/value blob store with prefix-scoped, paginated listing.
type Store interface {
	// Get returns the full content of the object, or ErrNotFound.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Put writes the object, replacing any existing content.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// Create writes the object only if the key is free, otherwise ErrAlreadyExists.
	Create(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// ListPage returns the page of objects under prefix that starts at pageToken.
	// An empty pageToken starts from the beginning. Keys are in lexical order.
	ListPage(ctx context.Context, bucket, prefix, pageToken string) (Page, error)
}

// All walks every object under prefix, following continuation tokens lazily.
// The sequence can be ranged over again to restart the listing. It stops after
// yielding the first error.
func All(ctx context.Context, s Store, bucket, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		token := ""
		for {
			page, err := s.ListPage(ctx, bucket, prefix, token)
			if err != nil {
				yield(ObjectInfo{}, err)
				return
			}
			for _, obj := range page.Objects {
				if !yield(obj, nil) {
					return
				}
			}
			if page.NextPageToken == "" {
				return
			}
			token = page.NextPageToken
		}
	}
}

// Keys collects every key under prefix that satisfies keep.
func Keys(ctx context.Context, s Store, bucket, prefix string, keep func(key string) bool) ([]string, error) {
	var keys []string
	for obj, err := range All(ctx, s, bucket, prefix) {
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(obj.Key) {
			keys = append(keys, obj.Key)
		}
	}
	return keys, nil
}
