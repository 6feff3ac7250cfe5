// Package pipeline orchestrates one grading run: fetch both tables, select
// candidates, score them per day group, and upload the results.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oddsgrid/betgrader/internal/logger"
	"github.com/oddsgrid/betgrader/internal/models"
	"github.com/oddsgrid/betgrader/internal/scoring"
	"github.com/oddsgrid/betgrader/internal/selector"
	"github.com/oddsgrid/betgrader/internal/store"
)

// State is the pipeline's lifecycle phase. Transitions only move forward;
// Scoring and Uploading repeat once per day group.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateSelecting State = "selecting"
	StateScoring   State = "scoring"
	StateUploading State = "uploading"
	StateDone      State = "done"
)

// Notifier receives the end-of-run summary and fatal errors. Notification
// failures are logged and never affect the run outcome.
type Notifier interface {
	SendSummary(report *Report) error
	SendError(runErr error) error
}

// Config holds driver behavior.
type Config struct {
	Mode             selector.Mode
	StalenessHorizon time.Duration
}

// Pipeline drives a single-threaded, sequential grading run.
type Pipeline struct {
	store    store.Store
	engine   *scoring.Engine
	cfg      Config
	log      *logger.Logger
	notifier Notifier
	state    State

	// now is swappable for tests.
	now func() time.Time
}

// New creates a pipeline driver. notifier may be nil.
func New(st store.Store, engine *scoring.Engine, cfg Config, log *logger.Logger, notifier Notifier) *Pipeline {
	return &Pipeline{
		store:    st,
		engine:   engine,
		cfg:      cfg,
		log:      log,
		notifier: notifier,
		state:    StateIdle,
		now:      time.Now,
	}
}

// DayReport holds per-day-group counts.
type DayReport struct {
	Day      string
	New      int
	Stale    int
	Scored   int
	Skipped  int
	Upserted int
	Dropped  int
	Chunks   int
}

// Report summarizes one run for logs, dashboards, and notifications.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Days      []DayReport

	TotalSource     int
	TotalCandidates int
	TotalNew        int
	TotalStale      int
	TotalScored     int
	TotalSkipped    int
	TotalUpserted   int
	TotalDropped    int
	TotalChunks     int
}

// Run executes one grading run. Fetch and select failures are fatal and
// returned; per-record skips and per-chunk drops are counted and the run
// continues. Skipped and dropped records are expected steady state.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: p.now(),
	}
	p.log.Info("[run %s] Starting grading run (mode: %s)", report.RunID, p.cfg.Mode)

	report, err := p.run(ctx, report)
	if err != nil {
		p.log.Error("[run %s] Run failed: %v", report.RunID, err)
		if p.notifier != nil {
			if nerr := p.notifier.SendError(err); nerr != nil {
				p.log.Warn("[run %s] Failed to send error notification: %v", report.RunID, nerr)
			}
		}
		return report, err
	}

	p.log.Info("[run %s] Run completed in %v: %d candidates, %d scored, %d skipped, %d upserted, %d dropped",
		report.RunID, report.Duration, report.TotalCandidates, report.TotalScored,
		report.TotalSkipped, report.TotalUpserted, report.TotalDropped)
	if p.notifier != nil {
		if nerr := p.notifier.SendSummary(report); nerr != nil {
			p.log.Warn("[run %s] Failed to send summary notification: %v", report.RunID, nerr)
		}
	}
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, report *Report) (*Report, error) {
	defer func() {
		report.Duration = p.now().Sub(report.StartedAt)
	}()

	p.transition(report.RunID, StateFetching)
	source, err := p.store.FetchBettingRecords(ctx)
	if err != nil {
		return report, fmt.Errorf("fetching betting records: %w", err)
	}
	report.TotalSource = len(source)
	grades, err := p.store.FetchGradeRecords(ctx)
	if err != nil {
		return report, fmt.Errorf("fetching grade records: %w", err)
	}
	p.log.Info("[run %s] Fetched %d betting records, %d existing grades",
		report.RunID, len(source), len(grades))

	p.transition(report.RunID, StateSelecting)
	groups := selector.Select(source, grades, selector.Config{
		Mode:    p.cfg.Mode,
		Horizon: p.cfg.StalenessHorizon,
	}, p.now())
	for _, g := range groups {
		report.TotalCandidates += len(g.Candidates)
	}
	p.log.Info("[run %s] Selected %d candidates across %d day groups",
		report.RunID, report.TotalCandidates, len(groups))

	for _, group := range groups {
		day, err := p.processDayGroup(ctx, report.RunID, group)
		report.Days = append(report.Days, day)
		report.TotalNew += day.New
		report.TotalStale += day.Stale
		report.TotalScored += day.Scored
		report.TotalSkipped += day.Skipped
		report.TotalUpserted += day.Upserted
		report.TotalDropped += day.Dropped
		report.TotalChunks += day.Chunks
		if err != nil {
			return report, err
		}
	}

	p.transition(report.RunID, StateDone)
	return report, nil
}

// processDayGroup scores and uploads one day group. Only context
// cancellation is returned as an error; everything else is absorbed into
// the day report.
func (p *Pipeline) processDayGroup(ctx context.Context, runID string, group selector.DayGroup) (DayReport, error) {
	day := DayReport{Day: group.Day}

	p.transition(runID, StateScoring)
	p.log.Info("[run %s] Scoring %d candidates for %s", runID, len(group.Candidates), group.Day)
	var graded []models.GradeRecord
	for _, cand := range group.Candidates {
		switch cand.Status {
		case selector.StatusNew:
			day.New++
		case selector.StatusStale:
			day.Stale++
		}
		outcome := p.engine.Score(cand.Record, p.now())
		if outcome.Skipped() {
			day.Skipped++
			p.log.Warn("[run %s] Skipping bet %s: %s", runID, cand.Record.BetID, outcome.SkipReason)
			continue
		}
		day.Scored++
		graded = append(graded, *outcome.Grade)
	}

	p.transition(runID, StateUploading)
	stats, err := p.store.UpsertGradeRecords(ctx, graded)
	day.Upserted = stats.Upserted
	day.Dropped = stats.Dropped
	day.Chunks = stats.Chunks
	if err != nil {
		return day, fmt.Errorf("uploading grades for %s: %w", group.Day, err)
	}
	p.log.Info("[run %s] Day %s: %d new, %d stale, %d scored, %d skipped, %d upserted, %d dropped",
		runID, group.Day, day.New, day.Stale, day.Scored, day.Skipped, day.Upserted, day.Dropped)
	return day, nil
}

func (p *Pipeline) transition(runID string, next State) {
	if p.state != next {
		p.log.Debug("[run %s] State %s -> %s", runID, p.state, next)
		p.state = next
	}
}

// State reports the driver's current phase.
func (p *Pipeline) State() State {
	return p.state
}
