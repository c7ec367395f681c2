package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ocrdocumentflow/internal/models"
	"github.com/Lllllllleong/ocrdocumentflow/internal/testutil"
)

func newTestIndex(store *testutil.MemoryStore) *ResultIndex {
	return NewResultIndex(store, IndexConfig{Bucket: testBucket, PublicURLBase: "https://cdn.example.com/"}, discardLogger())
}

func seedRecord(t *testing.T, store *testutil.MemoryStore, key string, record models.ExtractionRecord) {
	t.Helper()
	data, err := json.Marshal(record)
	require.NoError(t, err)
	store.Seed(testBucket, key, data)
}

func TestResultIndex_ListForUser(t *testing.T) {
	ctx := context.Background()

	t.Run("image without record is pending", func(t *testing.T) {
		store := testutil.NewMemoryStore(0)
		store.Seed(testBucket, testImageKey, []byte("jpeg"))

		rows, err := newTestIndex(store).ListForUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []models.UnifiedViewRow{{
			Filename: testImageName,
			Key:      testImageKey,
			URL:      "https://cdn.example.com/ocr-images/" + testImageKey,
			OCRText:  models.PendingText,
		}}, rows)
		assert.True(t, rows[0].Pending())
	})

	t.Run("record text is joined by filename", func(t *testing.T) {
		store := testutil.NewMemoryStore(0)
		store.Seed(testBucket, testImageKey, []byte("jpeg"))
		seedRecord(t, store, testTextKey, models.ExtractionRecord{UserID: "u1", ImageName: testImageName, S3Key: testImageKey, Text: "Hello\nWorld", Timestamp: 1})

		rows, err := newTestIndex(store).ListForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Hello\nWorld", rows[0].OCRText)
	})

	t.Run("empty text is not pending", func(t *testing.T) {
		store := testutil.NewMemoryStore(0)
		store.Seed(testBucket, testImageKey, []byte("jpeg"))
		seedRecord(t, store, testTextKey, models.ExtractionRecord{ImageName: testImageName, Text: ""})

		rows, err := newTestIndex(store).ListForUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "", rows[0].OCRText)
		assert.False(t, rows[0].Pending())
	})

	t.Run("record without image is not listed", func(t *testing.T) {
		store := testutil.NewMemoryStore(0)
		seedRecord(t, store, "u1/text/orphan.jpg.json", models.ExtractionRecord{ImageName: "orphan.jpg", Text: "ghost"})

		rows, err := newTestIndex(store).ListForUser(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.NotNil(t, rows)
	})

	t.Run("malformed record is skipped", func(t *testing.T) {
		store := testutil.NewMemoryStore(0)
		store.Seed(testBucket, "u1/images/a.jpg", []byte("a"))
		store.Seed(testBucket, "u1/images/b.jpg", []byte("b"))
		store.Seed(testBucket, "u1/text/a.jpg.json", []byte("{not json"))
		seedRecord(t, store, "u1/text/b.jpg.json", models.ExtractionRecord{ImageName: "b.jpg", Text: "bee"})

		rows, err := newTestIndex(store).ListForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, models.PendingText, rows[0].OCRText)
		assert.Equal(t, "bee", rows[1].OCRText)
	})

	t.Run("unreadable record is skipped", func(t *testing.T) {
		store := testutil.NewMemoryStore(0)
		store.Seed(testBucket, testImageKey, []byte("jpeg"))
		seedRecord(t, store, testTextKey, models.ExtractionRecord{ImageName: testImageName, Text: "hidden"})
		store.FailGet[testTextKey] = errors.New("permission denied")

		rows, err := newTestIndex(store).ListForUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, models.PendingText, rows[0].OCRText)
	})

	t.Run("newest record wins for duplicate names", func(t *testing.T) {
		store := testutil.NewMemoryStore(0)
		store.Seed(testBucket, testImageKey, []byte("jpeg"))
		seedRecord(t, store, "u1/text/legacy-copy.json", models.ExtractionRecord{ImageName: testImageName, Text: "old", Timestamp: 100})
		seedRecord(t, store, testTextKey, models.ExtractionRecord{ImageName: testImageName, Text: "new", Timestamp: 300})
		seedRecord(t, store, "u1/text/zz-older.json", models.ExtractionRecord{ImageName: testImageName, Text: "older", Timestamp: 50})

		rows, err := newTestIndex(store).ListForUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "new", rows[0].OCRText)
	})

	t.Run("folder placeholders and non-record keys are ignored", func(t *testing.T) {
		store := testutil.NewMemoryStore(0)
		store.Seed(testBucket, "u1/images/", nil)
		store.Seed(testBucket, "u1/text/", nil)
		store.Seed(testBucket, testImageKey, []byte("jpeg"))
		store.Seed(testBucket, "u1/text/"+testImageName+".txt", []byte("not a record"))

		rows, err := newTestIndex(store).ListForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, testImageKey, rows[0].Key)
		assert.True(t, rows[0].Pending())
	})

	t.Run("other users are invisible", func(t *testing.T) {
		store := testutil.NewMemoryStore(0)
		store.Seed(testBucket, "u1/images/mine.jpg", []byte("a"))
		store.Seed(testBucket, "u10/images/theirs.jpg", []byte("b"))
		seedRecord(t, store, "u10/text/mine.jpg.json", models.ExtractionRecord{ImageName: "mine.jpg", Text: "leak"})

		rows, err := newTestIndex(store).ListForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "mine.jpg", rows[0].Filename)
		assert.Equal(t, models.PendingText, rows[0].OCRText)
	})

	t.Run("user id with slash is rejected", func(t *testing.T) {
		store := testutil.NewMemoryStore(0)
		store.Seed(testBucket, "u1/images/images/abc_evil.jpg", []byte("x"))

		rows, err := newTestIndex(store).ListForUser(ctx, "u1/images")
		assert.Nil(t, rows)
		assert.ErrorIs(t, err, ErrInvalidUser)
		assert.True(t, IsType(err, ErrorTypeValidation))
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := newTestIndex(testutil.NewMemoryStore(0)).ListForUser(ctx, "")
		assert.ErrorIs(t, err, ErrMissingUser)
		assert.True(t, IsType(err, ErrorTypeValidation))
	})
}

func TestResultIndex_Pagination(t *testing.T) {
	store := testutil.NewMemoryStore(3)
	for i := range 10 {
		name := fmt.Sprintf("img%02d.png", i)
		store.Seed(testBucket, "u1/images/"+name, []byte{byte(i)})
		if i%2 == 0 {
			seedRecord(t, store, "u1/text/"+name+".json", models.ExtractionRecord{ImageName: name, Text: fmt.Sprintf("text %d", i)})
		}
	}

	rows, err := newTestIndex(store).ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, rows, 10)
	for i, row := range rows {
		assert.Equal(t, fmt.Sprintf("img%02d.png", i), row.Filename)
		if i%2 == 0 {
			assert.Equal(t, fmt.Sprintf("text %d", i), row.OCRText)
		} else {
			assert.Equal(t, models.PendingText, row.OCRText)
		}
	}
}

func TestResultIndex_ListingFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("image listing failure is an error", func(t *testing.T) {
		store := testutil.NewMemoryStore(0)
		store.Seed(testBucket, testImageKey, []byte("jpeg"))
		store.FailList["u1/images/"] = errors.New("unavailable")

		rows, err := newTestIndex(store).ListForUser(ctx, "u1")
		assert.Nil(t, rows)
		assert.True(t, IsType(err, ErrorTypeStorage))
	})

	t.Run("record listing failure shows everything pending", func(t *testing.T) {
		store := testutil.NewMemoryStore(0)
		store.Seed(testBucket, testImageKey, []byte("jpeg"))
		seedRecord(t, store, testTextKey, models.ExtractionRecord{ImageName: testImageName, Text: "done"})
		store.FailList["u1/text/"] = errors.New("unavailable")

		rows, err := newTestIndex(store).ListForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, models.PendingText, rows[0].OCRText)
	})
}

func TestResultIndex_NeverWrites(t *testing.T) {
	store := testutil.NewMemoryStore(0)
	store.Seed(testBucket, testImageKey, []byte("jpeg"))
	seedRecord(t, store, testTextKey, models.ExtractionRecord{ImageName: testImageName, Text: "x"})
	index := newTestIndex(store)

	for range 3 {
		_, err := index.ListForUser(context.Background(), "u1")
		require.NoError(t, err)
	}
	assert.Equal(t, 0, store.Writes())
}

func TestResultIndex_PendingForUser(t *testing.T) {
	store := testutil.NewMemoryStore(0)
	store.Seed(testBucket, "u1/images/a.jpg", []byte("a"))
	store.Seed(testBucket, "u1/images/b.jpg", []byte("b"))
	store.Seed(testBucket, "u1/images/c.jpg", []byte("c"))
	seedRecord(t, store, "u1/text/b.jpg.json", models.ExtractionRecord{ImageName: "b.jpg", Text: "done"})

	pending, err := newTestIndex(store).PendingForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "u1/images/a.jpg", pending[0].Key)
	assert.Equal(t, "u1/images/c.jpg", pending[1].Key)
}

func TestResultIndex_PublicURL(t *testing.T) {
	index := NewResultIndex(testutil.NewMemoryStore(0), IndexConfig{Bucket: "ocr-images"}, discardLogger())

	assert.Equal(t, "https://storage.googleapis.com/ocr-images/u1/images/abc_my%20photo%231.jpg",
		index.PublicURL("u1/images/abc_my photo#1.jpg"))
	assert.Equal(t, "https://storage.googleapis.com/ocr-images/u1/images/abc_r%C3%A9sum%C3%A9.png",
		index.PublicURL("u1/images/abc_résumé.png"))
}
