// Package store defines the storage capability the pipeline depends on and
// implements the chunked-upsert protocol shared by every backend adapter.
// Pipeline logic never branches on backend identity.
package store

import (
	"context"

	"github.com/oddsgrid/betgrader/internal/models"
)

// Table names shared by all backends.
const (
	BettingTable = "betting_data"
	GradesTable  = "bet_grades"
)

// ConflictKey is the upsert conflict column for grade records.
const ConflictKey = "bet_id"

// Store is the abstract persistence capability. Fetches return the exact
// union of all rows via offset pagination; upserts are idempotent,
// conflict-keyed, and chunked with bisection retry.
type Store interface {
	FetchBettingRecords(ctx context.Context) ([]models.BettingRecord, error)
	FetchGradeRecords(ctx context.Context) ([]models.GradeRecord, error)
	UpsertGradeRecords(ctx context.Context, records []models.GradeRecord) (UpsertStats, error)
	Close() error
}

// UpsertStats summarizes one upsert call.
type UpsertStats struct {
	Chunks   int // successfully submitted chunks, bisected sub-chunks included
	Upserted int // records written
	Dropped  int // single records abandoned after bisection bottomed out
}

func (s *UpsertStats) add(o UpsertStats) {
	s.Chunks += o.Chunks
	s.Upserted += o.Upserted
	s.Dropped += o.Dropped
}
