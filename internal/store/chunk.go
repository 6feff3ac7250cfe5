package store

import (
	"context"
	"time"

	"github.com/oddsgrid/betgrader/internal/logger"
	"github.com/oddsgrid/betgrader/internal/models"
)

// ChunkFunc submits one chunk of grade records as a single idempotent
// upsert call against the backend.
type ChunkFunc func(ctx context.Context, chunk []models.GradeRecord) error

// UpsertChunks partitions records into fixed-size chunks and submits each
// through submit. A failing chunk is recursively bisected and each half
// retried independently; recursion bottoms out at single records, which are
// logged and dropped on failure rather than retried indefinitely. This
// bounds worst-case cost to O(n log n) calls. A pause is inserted between
// successful submissions to respect remote rate limits.
//
// Every submitted chunk is a complete idempotent unit, so cancellation
// between chunks cannot corrupt the table; the error returned on
// cancellation reflects how far the upsert got.
func UpsertChunks(ctx context.Context, log *logger.Logger, records []models.GradeRecord, chunkSize int, pause time.Duration, submit ChunkFunc) (UpsertStats, error) {
	var stats UpsertStats
	if len(records) == 0 {
		return stats, nil
	}
	if chunkSize < 1 {
		chunkSize = 1
	}

	for start := 0; start < len(records); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		sub, err := submitWithBisection(ctx, log, records[start:end], pause, submit)
		stats.add(sub)
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// submitWithBisection submits one chunk, splitting on failure. Retries are
// depth-first on the failing half. It returns an error only for context
// cancellation; backend failures are absorbed into dropped counts.
func submitWithBisection(ctx context.Context, log *logger.Logger, chunk []models.GradeRecord, pause time.Duration, submit ChunkFunc) (UpsertStats, error) {
	var stats UpsertStats
	if len(chunk) == 0 {
		return stats, nil
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	err := submit(ctx, chunk)
	if err == nil {
		stats.Chunks++
		stats.Upserted += len(chunk)
		sleepCtx(ctx, pause)
		return stats, nil
	}
	if ctx.Err() != nil {
		return stats, ctx.Err()
	}

	if len(chunk) == 1 {
		log.Error("Dropping record %s after upsert failure: %v", chunk[0].BetID, err)
		stats.Dropped++
		return stats, nil
	}

	log.Warn("Chunk of %d failed, bisecting and retrying: %v", len(chunk), err)
	mid := len(chunk) / 2
	left, lerr := submitWithBisection(ctx, log, chunk[:mid], pause, submit)
	stats.add(left)
	if lerr != nil {
		return stats, lerr
	}
	right, rerr := submitWithBisection(ctx, log, chunk[mid:], pause, submit)
	stats.add(right)
	return stats, rerr
}

// sleepCtx pauses between chunk submissions but wakes on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
