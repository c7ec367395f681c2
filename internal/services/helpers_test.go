package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/Lllllllleong/ocrdocumentflow/internal/models"
)

const testBucket = "ocr-images"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRecognizer returns fixed lines, or an error for specific image contents.
type fakeRecognizer struct {
	mu     sync.Mutex
	lines  []models.Line
	err    error
	errFor map[string]error
	calls  int
}

func (f *fakeRecognizer) Recognize(ctx context.Context, image []byte) ([]models.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errFor[string(image)]; err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.lines, nil
}

func lines(texts ...string) []models.Line {
	out := make([]models.Line, len(texts))
	for i, t := range texts {
		out[i] = models.Line{Text: t}
	}
	return out
}
