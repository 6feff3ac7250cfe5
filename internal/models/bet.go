// Package models defines the core domain entities: betting records, grade
// records, and parlay results.
package models

import (
	"errors"
	"time"
)

// BettingRecord is one observed betting opportunity at one point in time.
// Each re-scrape of the same opportunity produces a new row with the same
// BetID and a newer Timestamp; rows are never updated in place.
//
// EVPercent, Odds, and WinProbability are kept as the raw strings emitted by
// the upstream scraper (values like "5.2%", "-110", or "N/A"); parsing them
// is the scoring engine's concern so that a malformed field downgrades a
// single record to a skip rather than failing a whole page decode.
type BettingRecord struct {
	BetID          string   `json:"bet_id"`
	Timestamp      FlexTime `json:"timestamp"`
	EventTime      FlexTime `json:"event_time"`
	EVPercent      string   `json:"ev_percent"`
	Odds           string   `json:"odds"`
	WinProbability string   `json:"win_probability"`
	SportLeague    string   `json:"sport_league"`
	BetType        string   `json:"bet_type"`
	EventTeams     string   `json:"event_teams"`
	Description    string   `json:"description"`
	Sportsbook     string   `json:"sportsbook"`
}

// Validate checks betting record field constraints.
func (r *BettingRecord) Validate() error {
	if r.BetID == "" {
		return errors.New("bet ID must not be empty")
	}
	if r.Timestamp.IsZero() {
		return errors.New("timestamp must not be zero")
	}
	return nil
}

// Letter grades assigned from the composite score.
const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
	GradeD = "D"
	GradeF = "F"
)

// GradeRecord is the computed grade for the latest known state of a bet.
// At most one current row exists per BetID; a regrade replaces the whole row
// with a newer CalculatedAt, never a partial update.
//
// EdgeScore is persisted under the legacy column name historical_edge.
type GradeRecord struct {
	BetID          string   `json:"bet_id"`
	Grade          string   `json:"grade"`
	CompositeScore float64  `json:"composite_score"`
	EVScore        float64  `json:"ev_score"`
	TimingScore    float64  `json:"timing_score"`
	EdgeScore      float64  `json:"historical_edge"`
	KellyScore     float64  `json:"kelly_score"`
	CalculatedAt   FlexTime `json:"calculated_at"`
}

// Validate checks grade record field constraints.
func (g *GradeRecord) Validate() error {
	if g.BetID == "" {
		return errors.New("bet ID must not be empty")
	}
	switch g.Grade {
	case GradeA, GradeB, GradeC, GradeD, GradeF:
	default:
		return errors.New("grade must be one of A, B, C, D, F")
	}
	if g.CompositeScore < 0 || g.CompositeScore > 100 {
		return errors.New("composite score must be between 0 and 100")
	}
	if g.CalculatedAt.IsZero() {
		return errors.New("calculated at must not be zero")
	}
	return nil
}

// ParlayResult holds the combined metrics for a multi-leg parlay. It is
// computed on demand and never persisted.
type ParlayResult struct {
	DecimalOdds       float64 `json:"decimal_odds"`
	AmericanOdds      int     `json:"american_odds"`
	MarketImpliedProb float64 `json:"implied_prob_from_odds"`
	TrueWinProb       float64 `json:"true_win_prob"`
	EV                float64 `json:"ev"`
	KellyFraction     float64 `json:"kelly_fraction"`
	TotalEdge         float64 `json:"total_edge"`
	CorrelatedWarning bool    `json:"correlated_warning"`

	// Viable is false when the true probability product is zero, in which
	// case DecimalOdds and AmericanOdds carry no meaning.
	Viable bool `json:"viable"`
}

// NewTime wraps t in a FlexTime.
func NewTime(t time.Time) FlexTime {
	return FlexTime{Time: t}
}
