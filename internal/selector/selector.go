// Package selector determines the minimal set of betting records that need
// (re)grading, given the full source and grade tables.
package selector

import (
	"sort"
	"time"

	"github.com/oddsgrid/betgrader/internal/models"
)

// Status classifies why a candidate was selected.
type Status string

const (
	StatusNew   Status = "new"   // no grade record exists for this bet
	StatusStale Status = "stale" // a newer observation exists than the grade
)

// Mode controls how much history the selector considers.
type Mode string

const (
	// ModeRestricted bounds work to still-actionable opportunities by
	// dropping candidates whose event is further in the past than the
	// configured horizon.
	ModeRestricted Mode = "restricted"
	// ModeFull processes the entire history.
	ModeFull Mode = "full"
)

// Config holds selector behavior.
type Config struct {
	Mode Mode
	// Horizon is how far in the past an event may be and still be graded
	// in restricted mode.
	Horizon time.Duration
}

// Candidate is one betting record that requires (re)scoring.
type Candidate struct {
	Record models.BettingRecord
	Status Status
}

// DayGroup holds the candidates whose observation timestamp falls on one
// UTC calendar day. Groups bound per-batch memory and give the pipeline
// driver natural checkpoint boundaries.
type DayGroup struct {
	Day        string // "2006-01-02"
	Candidates []Candidate
}

// Select computes the minimal candidate set. Only the newest observation of
// each bet is considered; a bet is selected when it has no grade, or when
// its newest observation is strictly newer than the grade's CalculatedAt.
// Results are grouped by observation day in ascending order.
func Select(records []models.BettingRecord, grades []models.GradeRecord, cfg Config, now time.Time) []DayGroup {
	latest := latestByBetID(records)
	graded := newestGradeByBetID(grades)

	cutoff := now.Add(-cfg.Horizon)

	byDay := make(map[string][]Candidate)
	for _, rec := range latest {
		status := StatusNew
		if grade, ok := graded[rec.BetID]; ok {
			if !rec.Timestamp.After(grade.CalculatedAt.Time) {
				continue // grade already reflects the newest observation
			}
			status = StatusStale
		}
		if cfg.Mode == ModeRestricted && rec.EventTime.Before(cutoff) {
			continue
		}
		day := rec.Timestamp.Day()
		byDay[day] = append(byDay[day], Candidate{Record: rec, Status: status})
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	groups := make([]DayGroup, 0, len(days))
	for _, day := range days {
		candidates := byDay[day]
		sort.Slice(candidates, func(i, j int) bool {
			ti, tj := candidates[i].Record.Timestamp.Time, candidates[j].Record.Timestamp.Time
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return candidates[i].Record.BetID < candidates[j].Record.BetID
		})
		groups = append(groups, DayGroup{Day: day, Candidates: candidates})
	}
	return groups
}

// latestByBetID keeps only the observation with the maximum timestamp per
// bet ID. Older observations of the same logical bet are never rescored.
func latestByBetID(records []models.BettingRecord) map[string]models.BettingRecord {
	latest := make(map[string]models.BettingRecord)
	for _, rec := range records {
		if rec.BetID == "" || rec.Timestamp.IsZero() {
			continue
		}
		if cur, ok := latest[rec.BetID]; !ok || rec.Timestamp.After(cur.Timestamp.Time) {
			latest[rec.BetID] = rec
		}
	}
	return latest
}

// newestGradeByBetID indexes grades by bet ID, keeping the newest
// CalculatedAt when historical rows survive for the same bet.
func newestGradeByBetID(grades []models.GradeRecord) map[string]models.GradeRecord {
	newest := make(map[string]models.GradeRecord)
	for _, g := range grades {
		if g.BetID == "" {
			continue
		}
		if cur, ok := newest[g.BetID]; !ok || g.CalculatedAt.After(cur.CalculatedAt.Time) {
			newest[g.BetID] = g
		}
	}
	return newest
}
