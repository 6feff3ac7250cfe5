// Package postgres implements the store capability directly against a
// PostgreSQL database, for deployments that bypass the hosted REST layer.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/oddsgrid/betgrader/internal/logger"
	"github.com/oddsgrid/betgrader/internal/models"
	"github.com/oddsgrid/betgrader/internal/store"
)

// Config holds the connection and protocol parameters.
type Config struct {
	DSN        string
	PageSize   int
	ChunkSize  int
	ChunkPause time.Duration
}

// Storage wraps a Postgres connection pool.
type Storage struct {
	db  *sql.DB
	cfg Config
	log *logger.Logger
}

// New connects to Postgres and verifies connectivity before any data is
// touched; an unreachable endpoint is fatal at startup.
func New(cfg Config, log *logger.Logger) (*Storage, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN must be configured")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &Storage{db: db, cfg: cfg, log: log}, nil
}

// Close closes the connection pool.
func (s *Storage) Close() error {
	return s.db.Close()
}

// InsertBettingRecords stores source observations. This is the producer side
// of the table, used by ingestion tooling and tests; the pipeline itself only
// reads betting data.
func (s *Storage) InsertBettingRecords(ctx context.Context, records []models.BettingRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("invalid betting record: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO betting_data
				(bet_id, timestamp, event_time, ev_percent, odds, win_probability,
				 sport_league, bet_type, event_teams, description, sportsbook)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (bet_id, timestamp) DO NOTHING`,
			r.BetID, r.Timestamp.Time, r.EventTime.Time,
			r.EVPercent, r.Odds, r.WinProbability,
			r.SportLeague, r.BetType, r.EventTeams, r.Description, r.Sportsbook,
		)
		if err != nil {
			return fmt.Errorf("failed to insert betting record: %w", err)
		}
	}
	return tx.Commit()
}

// FetchBettingRecords returns every row of the betting table, paging with
// the configured page size.
func (s *Storage) FetchBettingRecords(ctx context.Context) ([]models.BettingRecord, error) {
	var all []models.BettingRecord
	offset := 0
	for {
		rows, err := s.db.QueryContext(ctx, `
			SELECT bet_id, timestamp, event_time,
			       COALESCE(ev_percent, ''), COALESCE(odds, ''), COALESCE(win_probability, ''),
			       COALESCE(sport_league, ''), COALESCE(bet_type, ''),
			       COALESCE(event_teams, ''), COALESCE(description, ''), COALESCE(sportsbook, '')
			FROM betting_data ORDER BY timestamp, bet_id LIMIT $1 OFFSET $2`,
			s.cfg.PageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch betting_data at offset %d: %w", offset, err)
		}
		count := 0
		for rows.Next() {
			var r models.BettingRecord
			var ts, eventTime time.Time
			err := rows.Scan(
				&r.BetID, &ts, &eventTime, &r.EVPercent, &r.Odds, &r.WinProbability,
				&r.SportLeague, &r.BetType, &r.EventTeams, &r.Description, &r.Sportsbook,
			)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan betting record: %w", err)
			}
			r.Timestamp = models.NewTime(ts.UTC())
			r.EventTime = models.NewTime(eventTime.UTC())
			all = append(all, r)
			count++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("fetch betting_data at offset %d: %w", offset, err)
		}
		if count < s.cfg.PageSize {
			return all, nil
		}
		offset += s.cfg.PageSize
	}
}

// FetchGradeRecords returns every row of the grades table.
func (s *Storage) FetchGradeRecords(ctx context.Context) ([]models.GradeRecord, error) {
	var all []models.GradeRecord
	offset := 0
	for {
		rows, err := s.db.QueryContext(ctx, `
			SELECT bet_id, grade, composite_score, ev_score, timing_score,
			       historical_edge, kelly_score, calculated_at
			FROM bet_grades ORDER BY calculated_at, bet_id LIMIT $1 OFFSET $2`,
			s.cfg.PageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch bet_grades at offset %d: %w", offset, err)
		}
		count := 0
		for rows.Next() {
			var g models.GradeRecord
			var calcAt time.Time
			err := rows.Scan(
				&g.BetID, &g.Grade, &g.CompositeScore, &g.EVScore, &g.TimingScore,
				&g.EdgeScore, &g.KellyScore, &calcAt,
			)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan grade record: %w", err)
			}
			g.CalculatedAt = models.NewTime(calcAt.UTC())
			all = append(all, g)
			count++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("fetch bet_grades at offset %d: %w", offset, err)
		}
		if count < s.cfg.PageSize {
			return all, nil
		}
		offset += s.cfg.PageSize
	}
}

// UpsertGradeRecords writes grade records through the shared chunked
// protocol; each chunk is one transaction of ON CONFLICT upserts keyed on
// bet_id.
func (s *Storage) UpsertGradeRecords(ctx context.Context, records []models.GradeRecord) (store.UpsertStats, error) {
	return store.UpsertChunks(ctx, s.log, records, s.cfg.ChunkSize, s.cfg.ChunkPause,
		func(ctx context.Context, chunk []models.GradeRecord) error {
			return s.upsertChunk(ctx, chunk)
		})
}

func (s *Storage) upsertChunk(ctx context.Context, chunk []models.GradeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `
		INSERT INTO bet_grades
			(bet_id, grade, composite_score, ev_score, timing_score,
			 historical_edge, kelly_score, calculated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (bet_id) DO UPDATE SET
			grade = EXCLUDED.grade,
			composite_score = EXCLUDED.composite_score,
			ev_score = EXCLUDED.ev_score,
			timing_score = EXCLUDED.timing_score,
			historical_edge = EXCLUDED.historical_edge,
			kelly_score = EXCLUDED.kelly_score,
			calculated_at = EXCLUDED.calculated_at`

	for _, g := range chunk {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("invalid grade record: %w", err)
		}
		_, err = tx.ExecContext(ctx, query,
			g.BetID, g.Grade, g.CompositeScore, g.EVScore, g.TimingScore,
			g.EdgeScore, g.KellyScore, g.CalculatedAt.Time,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert grade: %w", err)
		}
	}
	return tx.Commit()
}
