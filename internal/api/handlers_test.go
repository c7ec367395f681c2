package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ocrdocumentflow/internal/gcp"
	"github.com/Lllllllleong/ocrdocumentflow/internal/models"
	"github.com/Lllllllleong/ocrdocumentflow/internal/services"
	"github.com/Lllllllleong/ocrdocumentflow/internal/testutil"
)

const testBucket = "ocr-images"

type fakeDirectory struct {
	users map[string]string
	err   error
}

func (d *fakeDirectory) Lookup(ctx context.Context, email string) (*models.UserRecord, error) {
	if d.err != nil {
		return nil, d.err
	}
	id, ok := d.users[email]
	if !ok {
		return nil, gcp.ErrUserNotFound
	}
	return &models.UserRecord{UserID: id, Email: email}, nil
}

type failingLister struct{}

func (failingLister) ListForUser(ctx context.Context, userID string) ([]models.UnifiedViewRow, error) {
	return nil, services.StorageError("failed to list images", errors.New("unavailable"))
}

type testServer struct {
	store   *testutil.MemoryStore
	handler http.Handler
}

func newTestServer(t *testing.T, maxUploadBytes int) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := testutil.NewMemoryStore(0)
	uploads := services.NewUploadGateway(store, services.UploadConfig{Bucket: testBucket, MaxUploadBytes: maxUploadBytes}, logger)
	index := services.NewResultIndex(store, services.IndexConfig{Bucket: testBucket}, logger)
	users := &fakeDirectory{users: map[string]string{"ada@example.com": "u1"}}
	return &testServer{
		store:   store,
		handler: NewRouter(NewHandler(uploads, index, users, maxUploadBytes, logger)),
	}
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func uploadRequest(t *testing.T, email, filename string, data []byte) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, data)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	if email != "" {
		req.Header.Set(UserEmailHeader, email)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	rec := serve(newTestServer(t, 1024).handler, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"service":"ocr-web-gateway"}`, rec.Body.String())
}

func TestUpload(t *testing.T) {
	srv := newTestServer(t, 1024)

	rec := serve(srv.handler, uploadRequest(t, "ada@example.com", "cat.jpg", []byte("jpeg-bytes")))
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[models.UploadResponse](t, rec)
	assert.Equal(t, models.CategorySuccess, resp.Category)
	assert.Equal(t, "File uploaded. Text extraction will finish shortly.", resp.Message)
	assert.Regexp(t, `^u1/images/[0-9a-f]{32}_cat\.jpg$`, resp.Key)
	assert.Equal(t, []string{resp.Key}, srv.store.Keys(testBucket, "u1/"))
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name        string
		req         func(t *testing.T) *http.Request
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "disallowed extension",
			req:         func(t *testing.T) *http.Request { return uploadRequest(t, "ada@example.com", "anim.gif", []byte("gif")) },
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Only JPG, JPEG, PNG and PDF files are allowed.",
		},
		{
			name: "no file part",
			req: func(t *testing.T) *http.Request {
				body, contentType := multipartBody(t, "", "", nil)
				req := httptest.NewRequest(http.MethodPost, "/upload", body)
				req.Header.Set("Content-Type", contentType)
				req.Header.Set(UserEmailHeader, "ada@example.com")
				return req
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "No file selected.",
		},
		{
			name:        "empty file",
			req:         func(t *testing.T) *http.Request { return uploadRequest(t, "ada@example.com", "cat.jpg", nil) },
			wantStatus:  http.StatusBadRequest,
			wantMessage: "No file selected.",
		},
		{
			name:        "over the gateway limit",
			req:         func(t *testing.T) *http.Request { return uploadRequest(t, "ada@example.com", "big.png", make([]byte, 2048)) },
			wantStatus:  http.StatusBadRequest,
			wantMessage: "File is too large.",
		},
		{
			name:        "body over the request limit",
			req:         func(t *testing.T) *http.Request { return uploadRequest(t, "ada@example.com", "huge.png", make([]byte, 2<<20)) },
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantMessage: "File is too large.",
		},
		{
			name:        "unreadable pdf",
			req:         func(t *testing.T) *http.Request { return uploadRequest(t, "ada@example.com", "scan.pdf", []byte("not a pdf")) },
			wantStatus:  http.StatusBadRequest,
			wantMessage: "The PDF file could not be read.",
		},
		{
			name:        "unknown user",
			req:         func(t *testing.T) *http.Request { return uploadRequest(t, "eve@example.com", "cat.jpg", []byte("x")) },
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Please log in.",
		},
		{
			name:        "no identity header",
			req:         func(t *testing.T) *http.Request { return uploadRequest(t, "", "cat.jpg", []byte("x")) },
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Please log in.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, 1024)

			rec := serve(srv.handler, tt.req(t))
			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode[models.UploadResponse](t, rec)
			assert.Equal(t, models.CategoryError, resp.Category)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Equal(t, 0, srv.store.Writes())
		})
	}
}

func TestUploadStorageFailure(t *testing.T) {
	srv := newTestServer(t, 1024)
	srv.store.FailWrites = errors.New("bucket unavailable")

	rec := serve(srv.handler, uploadRequest(t, "ada@example.com", "cat.jpg", []byte("x")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Upload failed. Please try again.", decode[models.UploadResponse](t, rec).Message)
}

func TestUserLookupFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRouter(NewHandler(nil, nil, &fakeDirectory{err: errors.New("firestore unavailable")}, 0, logger))

	req := httptest.NewRequest(http.MethodGet, "/images", nil)
	req.Header.Set(UserEmailHeader, "ada@example.com")
	rec := serve(h, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListImages(t *testing.T) {
	srv := newTestServer(t, 1024)
	srv.store.Seed(testBucket, "u1/images/a_cat.jpg", []byte("a"))
	srv.store.Seed(testBucket, "u1/images/b_dog.png", []byte("b"))
	srv.store.Seed(testBucket, "u1/text/a_cat.jpg.json", []byte(`{"user_id":"u1","image_name":"a_cat.jpg","s3_key":"u1/images/a_cat.jpg","text":"meow","timestamp":1}`))
	srv.store.Seed(testBucket, "u2/images/c_fox.jpg", []byte("c"))

	req := httptest.NewRequest(http.MethodGet, "/images", nil)
	req.Header.Set(UserEmailHeader, "ada@example.com")
	rec := serve(srv.handler, req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.ImagesResponse](t, rec)
	assert.Equal(t, models.CategorySuccess, resp.Category)
	require.Len(t, resp.Images, 2)
	assert.Equal(t, models.UnifiedViewRow{
		Filename: "a_cat.jpg",
		Key:      "u1/images/a_cat.jpg",
		URL:      "https://storage.googleapis.com/ocr-images/u1/images/a_cat.jpg",
		OCRText:  "meow",
	}, resp.Images[0])
	assert.Equal(t, models.PendingText, resp.Images[1].OCRText)
	assert.Equal(t, 0, srv.store.Writes())
}

func TestListImagesEmpty(t *testing.T) {
	srv := newTestServer(t, 1024)

	req := httptest.NewRequest(http.MethodGet, "/images", nil)
	req.Header.Set(UserEmailHeader, "ada@example.com")
	rec := serve(srv.handler, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"category":"success","images":[]}`, rec.Body.String())
}

func TestListImagesFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := &fakeDirectory{users: map[string]string{"ada@example.com": "u1"}}
	h := NewRouter(NewHandler(nil, failingLister{}, users, 0, logger))

	req := httptest.NewRequest(http.MethodGet, "/images", nil)
	req.Header.Set(UserEmailHeader, "ada@example.com")
	rec := serve(h, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[models.ImagesResponse](t, rec)
	assert.Equal(t, "Could not load your images.", resp.Message)
	assert.Empty(t, resp.Images)
}
