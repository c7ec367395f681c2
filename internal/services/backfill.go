package services

import (
	"context"
	"sync"

	"github.com/Lllllllleong/ocrdocumentflow/internal/models"
	"golang.org/x/sync/errgroup"
)

// Backfill replays a notification for every image of userID that is still
// pending, as if the storage trigger had redelivered it.
func (t *Trigger) Backfill(ctx context.Context, index *ResultIndex, userID string, concurrency int) (BatchResult, error) {
	pending, err := index.PendingForUser(ctx, userID)
	if err != nil {
		return BatchResult{}, err
	}
	if concurrency < 1 {
		concurrency = 1
	}
	logCtx := t.logger.With("userId", userID)
	logCtx.Info("Starting backfill.", "pendingCount", len(pending), "concurrency", concurrency)

	var (
		mu     sync.Mutex
		result BatchResult
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	for _, row := range pending {
		eg.Go(func() error {
			outcome := t.HandleNotification(gctx, models.StorageNotification{
				Bucket: index.Bucket(),
				Name:   row.Key,
			})
			mu.Lock()
			result.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	logCtx.Info("Backfill complete.", "processed", result.Processed, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}
