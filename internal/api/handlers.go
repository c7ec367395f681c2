// Package api exposes the upload gateway and the result index over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/Lllllllleong/ocrdocumentflow/internal/gcp"
	"github.com/Lllllllleong/ocrdocumentflow/internal/models"
	"github.com/Lllllllleong/ocrdocumentflow/internal/services"
)

// UserEmailHeader carries the caller's email, set by the upstream auth proxy.
const UserEmailHeader = "X-User-Email"

// multipartOverhead is allowed on top of the file size limit for form framing.
const multipartOverhead = 1 << 20

type Uploader interface {
	Upload(ctx context.Context, userID, filename string, data []byte) (*models.StoredImage, error)
}

type Lister interface {
	ListForUser(ctx context.Context, userID string) ([]models.UnifiedViewRow, error)
}

// UserDirectory resolves an authenticated email to the user's record.
type UserDirectory interface {
	Lookup(ctx context.Context, email string) (*models.UserRecord, error)
}

// Handler holds the dependencies of the gateway's HTTP routes.
type Handler struct {
	uploads        Uploader
	index          Lister
	users          UserDirectory
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler creates a Handler. A nil logger uses slog.Default().
func NewHandler(uploads Uploader, index Lister, users UserDirectory, maxUploadBytes int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		uploads:        uploads,
		index:          index,
		users:          users,
		maxUploadBytes: int64(maxUploadBytes),
		logger:         logger,
	}
}

// NewRouter wires the gateway routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"service":"ocr-web-gateway"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requireUser)
		r.Post("/upload", h.handleUpload)
		r.Get("/images", h.handleListImages)
	})
	return r
}

type userIDKey struct{}

// requireUser resolves the caller through the user directory and stores the
// user id in the request context.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := r.Header.Get(UserEmailHeader)
		user, err := h.users.Lookup(r.Context(), email)
		if err != nil {
			if errors.Is(err, gcp.ErrUserNotFound) {
				h.writeJSON(w, http.StatusUnauthorized, models.UploadResponse{Category: models.CategoryError, Message: "Please log in."})
				return
			}
			h.logger.Error("User lookup failed", "error", err)
			h.writeJSON(w, http.StatusInternalServerError, models.UploadResponse{Category: models.CategoryError, Message: "Could not verify your account."})
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, user.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	}

	filename, data, err := readFormFile(r, "file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeJSON(w, http.StatusRequestEntityTooLarge, models.UploadResponse{Category: models.CategoryError, Message: uploadMessage(services.ErrFileTooLarge)})
			return
		}
		h.logger.Warn("Could not read upload form", "error", err)
		h.writeJSON(w, http.StatusBadRequest, models.UploadResponse{Category: models.CategoryError, Message: "Could not read the uploaded form."})
		return
	}

	img, err := h.uploads.Upload(r.Context(), userID(r.Context()), filename, data)
	if err != nil {
		status := http.StatusInternalServerError
		if services.IsType(err, services.ErrorTypeValidation) {
			status = http.StatusBadRequest
		}
		h.writeJSON(w, status, models.UploadResponse{Category: models.CategoryError, Message: uploadMessage(err)})
		return
	}

	h.writeJSON(w, http.StatusCreated, models.UploadResponse{
		Category: models.CategorySuccess,
		Message:  "File uploaded. Text extraction will finish shortly.",
		Key:      img.Key,
		Filename: img.Filename,
	})
}

// readFormFile returns the named multipart file. A missing file yields empty
// results so the gateway can reject it with its own validation error.
func readFormFile(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

func uploadMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrEmptyFile):
		return "No file selected."
	case errors.Is(err, services.ErrUnsupportedType):
		return "Only JPG, JPEG, PNG and PDF files are allowed."
	case errors.Is(err, services.ErrFileTooLarge):
		return "File is too large."
	case errors.Is(err, services.ErrInvalidPDF):
		return "The PDF file could not be read."
	default:
		return "Upload failed. Please try again."
	}
}

func (h *Handler) handleListImages(w http.ResponseWriter, r *http.Request) {
	rows, err := h.index.ListForUser(r.Context(), userID(r.Context()))
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, models.ImagesResponse{
			Category: models.CategoryError,
			Message:  "Could not load your images.",
			Images:   []models.UnifiedViewRow{},
		})
		return
	}
	if rows == nil {
		rows = []models.UnifiedViewRow{}
	}
	h.writeJSON(w, http.StatusOK, models.ImagesResponse{Category: models.CategorySuccess, Images: rows})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}
