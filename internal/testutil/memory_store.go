// memory_store.go - In-memory blob store for testing
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Lllllllleong/ocrdocumentflow/internal/blob"
)

type object struct {
	data        []byte
	contentType string
}

// MemoryStore implements blob.Store for testing.
type MemoryStore struct {
	mu       sync.RWMutex
	buckets  map[string]map[string]object
	pageSize int

	// Fail* inject errors keyed by object key (Get/Put/Create) or prefix (List).
	FailGet  map[string]error
	FailPut  map[string]error
	FailList map[string]error
	// FailWrites, when set, fails every Put and Create.
	FailWrites error

	puts int
}

// NewMemoryStore creates an empty store that returns at most pageSize objects
// per ListPage call. A pageSize below 1 means unlimited.
func NewMemoryStore(pageSize int) *MemoryStore {
	return &MemoryStore{
		buckets:  make(map[string]map[string]object),
		pageSize: pageSize,
		FailGet:  make(map[string]error),
		FailPut:  make(map[string]error),
		FailList: make(map[string]error),
	}
}

func (m *MemoryStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.FailGet[key]; err != nil {
		return nil, err
	}
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writeErr(key); err != nil {
		return err
	}
	m.write(bucket, key, data, contentType)
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writeErr(key); err != nil {
		return err
	}
	if _, ok := m.buckets[bucket][key]; ok {
		return blob.ErrAlreadyExists
	}
	m.write(bucket, key, data, contentType)
	return nil
}

func (m *MemoryStore) writeErr(key string) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	return m.FailPut[key]
}

func (m *MemoryStore) write(bucket, key string, data []byte, contentType string) {
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = make(map[string]object)
	}
	m.buckets[bucket][key] = object{data: append([]byte(nil), data...), contentType: contentType}
	m.puts++
}

// ListPage pages through keys in lexical order. Tokens are offsets.
func (m *MemoryStore) ListPage(ctx context.Context, bucket, prefix, pageToken string) (blob.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.FailList[prefix]; err != nil {
		return blob.Page{}, err
	}

	var keys []string
	for key := range m.buckets[bucket] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 || n > len(keys) {
			return blob.Page{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		start = n
	}
	end := len(keys)
	if m.pageSize > 0 && start+m.pageSize < end {
		end = start + m.pageSize
	}

	page := blob.Page{}
	for _, key := range keys[start:end] {
		page.Objects = append(page.Objects, blob.ObjectInfo{Key: key, Size: int64(len(m.buckets[bucket][key].data))})
	}
	if end < len(keys) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// Seed writes an object without counting it as a write.
func (m *MemoryStore) Seed(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.write(bucket, key, data, "")
	m.puts--
}

// Writes returns the number of successful Put and Create calls.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// ContentType returns the content type an object was written with.
func (m *MemoryStore) ContentType(bucket, key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buckets[bucket][key].contentType
}

// Keys returns every key in bucket under prefix, sorted.
func (m *MemoryStore) Keys(bucket, prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for key := range m.buckets[bucket] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
