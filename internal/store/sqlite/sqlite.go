// Package sqlite implements the store capability on a local SQLite file,
// the second persistence backend the pipeline supports.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oddsgrid/betgrader/internal/logger"
	"github.com/oddsgrid/betgrader/internal/models"
	"github.com/oddsgrid/betgrader/internal/store"
	_ "modernc.org/sqlite"
)

// Config holds the local backend parameters. Page and chunk sizes mirror
// the remote protocol so the two backends stay interchangeable.
type Config struct {
	Path       string
	PageSize   int
	ChunkSize  int
	ChunkPause time.Duration
}

// Storage wraps a SQLite database holding the betting and grade tables.
type Storage struct {
	db  *sql.DB
	cfg Config
	log *logger.Logger
}

// New opens or creates the SQLite database at cfg.Path. An empty path
// defaults to $TMPDIR/betgrader/data.db.
func New(cfg Config, log *logger.Logger) (*Storage, error) {
	if cfg.Path == "" {
		cfg.Path = filepath.Join(os.TempDir(), "betgrader", "data.db")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, cfg: cfg, log: log}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS betting_data (
			bet_id          TEXT NOT NULL,
			timestamp       INTEGER NOT NULL,
			event_time      INTEGER NOT NULL,
			ev_percent      TEXT,
			odds            TEXT,
			win_probability TEXT,
			sport_league    TEXT,
			bet_type        TEXT,
			event_teams     TEXT,
			description     TEXT,
			sportsbook      TEXT,
			PRIMARY KEY (bet_id, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS bet_grades (
			bet_id          TEXT PRIMARY KEY,
			grade           TEXT NOT NULL,
			composite_score REAL NOT NULL,
			ev_score        REAL NOT NULL,
			timing_score    REAL NOT NULL,
			historical_edge REAL NOT NULL,
			kelly_score     REAL NOT NULL,
			calculated_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_betting_timestamp ON betting_data(timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertBettingRecords stores source observations. This is the producer
// side of the table, used by ingestion tooling and tests; the pipeline
// itself only reads betting data.
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
			INSERT OR REPLACE INTO betting_data
				(bet_id, timestamp, event_time, ev_percent, odds, win_probability,
				 sport_league, bet_type, event_teams, description, sportsbook)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			r.BetID, r.Timestamp.UnixNano(), r.EventTime.UnixNano(),
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
			SELECT bet_id, timestamp, event_time, ev_percent, odds, win_probability,
			       sport_league, bet_type, event_teams, description, sportsbook
			FROM betting_data ORDER BY timestamp, bet_id LIMIT ? OFFSET ?`,
			s.cfg.PageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch betting_data at offset %d: %w", offset, err)
		}
		count := 0
		for rows.Next() {
			var r models.BettingRecord
			var tsNano, eventNano int64
			err := rows.Scan(
				&r.BetID, &tsNano, &eventNano, &r.EVPercent, &r.Odds, &r.WinProbability,
				&r.SportLeague, &r.BetType, &r.EventTeams, &r.Description, &r.Sportsbook,
			)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan betting record: %w", err)
			}
			r.Timestamp = models.NewTime(time.Unix(0, tsNano).UTC())
			r.EventTime = models.NewTime(time.Unix(0, eventNano).UTC())
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
			FROM bet_grades ORDER BY calculated_at, bet_id LIMIT ? OFFSET ?`,
			s.cfg.PageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch bet_grades at offset %d: %w", offset, err)
		}
		count := 0
		for rows.Next() {
			var g models.GradeRecord
			var calcNano int64
			err := rows.Scan(
				&g.BetID, &g.Grade, &g.CompositeScore, &g.EVScore, &g.TimingScore,
				&g.EdgeScore, &g.KellyScore, &calcNano,
			)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan grade record: %w", err)
			}
			g.CalculatedAt = models.NewTime(time.Unix(0, calcNano).UTC())
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
// protocol; each chunk is one transaction of whole-row replaces keyed on
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

	for _, g := range chunk {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("invalid grade record: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO bet_grades
				(bet_id, grade, composite_score, ev_score, timing_score,
				 historical_edge, kelly_score, calculated_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			g.BetID, g.Grade, g.CompositeScore, g.EVScore, g.TimingScore,
			g.EdgeScore, g.KellyScore, g.CalculatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert grade: %w", err)
		}
	}
	return tx.Commit()
}
