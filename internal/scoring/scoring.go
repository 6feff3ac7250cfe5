// Package scoring computes component scores, the weighted composite, and the
// letter grade for a single betting record. All functions are pure; the
// engine performs no I/O.
package scoring

import (
	"time"

	"github.com/oddsgrid/betgrader/internal/models"
)

// Composite weights. Fixed constants that sum to 1.0 exactly.
const (
	WeightEV     = 0.60
	WeightEdge   = 0.30
	WeightTiming = 0.05
	WeightKelly  = 0.05
)

// TimingPolicy selects how the timing score maps hours-before-event to a
// score. The linear policy is authoritative; the stepped variant is retained
// as a configuration option.
type TimingPolicy string

const (
	TimingLinear  TimingPolicy = "linear"
	TimingStepped TimingPolicy = "stepped"
)

// Engine scores betting records under a fixed timing policy.
type Engine struct {
	policy TimingPolicy
}

// NewEngine creates a scoring engine. An empty policy defaults to linear.
func NewEngine(policy TimingPolicy) *Engine {
	if policy == "" {
		policy = TimingLinear
	}
	return &Engine{policy: policy}
}

// Outcome is the explicit per-record result of scoring: either a grade
// record or a skip with a reason. Expected missing-field conditions are
// skips, never errors.
type Outcome struct {
	Grade      *models.GradeRecord
	SkipReason string
}

// Skipped reports whether the record was skipped instead of graded.
func (o Outcome) Skipped() bool {
	return o.Grade == nil
}

// Score grades one betting record. A record missing any of EV percent,
// odds, win probability, or event time is skipped entirely; scoring with
// degraded inputs would silently bias the composite.
func (e *Engine) Score(rec models.BettingRecord, now time.Time) Outcome {
	ev, ok := ParseNumeric(rec.EVPercent)
	if !ok {
		return Outcome{SkipReason: "missing or unparseable ev_percent"}
	}
	odds, ok := ParseNumeric(rec.Odds)
	if !ok || odds == 0 {
		return Outcome{SkipReason: "missing or unparseable odds"}
	}
	winProb, ok := ParseNumeric(rec.WinProbability)
	if !ok {
		return Outcome{SkipReason: "missing or unparseable win_probability"}
	}
	if rec.EventTime.IsZero() {
		return Outcome{SkipReason: "missing event_time"}
	}
	if rec.Timestamp.IsZero() {
		return Outcome{SkipReason: "missing timestamp"}
	}

	evScore := EVScore(ev)
	timingScore := TimingScore(rec.EventTime.Time, rec.Timestamp.Time, e.policy)
	kellyScore := KellyScore(winProb, odds)
	edgeScore := EdgeScore(winProb, odds)

	composite := WeightEV*evScore +
		WeightEdge*edgeScore +
		WeightTiming*timingScore +
		WeightKelly*kellyScore

	return Outcome{Grade: &models.GradeRecord{
		BetID:          rec.BetID,
		Grade:          AssignGrade(composite),
		CompositeScore: composite,
		EVScore:        evScore,
		TimingScore:    timingScore,
		EdgeScore:      edgeScore,
		KellyScore:     kellyScore,
		CalculatedAt:   models.NewTime(now.UTC()),
	}}
}

// EVScore maps an expected-value percentage onto [0,100]. EVs typically
// range from -10% to +10%, so -10 maps to 0 and +10 to 100.
func EVScore(evPercent float64) float64 {
	return clamp((evPercent + 10) * 5)
}

// TimingScore scores how early the bet was observed relative to event start.
func TimingScore(eventTime, observedAt time.Time, policy TimingPolicy) float64 {
	hoursBefore := eventTime.Sub(observedAt).Hours()
	if hoursBefore <= 0 {
		return 0 // event already started or timestamps inverted
	}
	if policy == TimingStepped {
		return steppedTimingScore(hoursBefore)
	}
	if hoursBefore >= 24 {
		return 100
	}
	return hoursBefore / 24 * 100
}

// steppedTimingScore is the discrete-bucket variant of the timing score.
func steppedTimingScore(hoursBefore float64) float64 {
	switch {
	case hoursBefore <= 1:
		return 100
	case hoursBefore <= 3:
		return 90
	case hoursBefore <= 6:
		return 80
	case hoursBefore <= 12:
		return 70
	case hoursBefore <= 24:
		return 60
	case hoursBefore <= 48:
		return 50
	case hoursBefore <= 72:
		return 40
	default:
		return 30
	}
}

// KellyScore scores the Kelly fraction implied by the win probability and
// American odds. A Kelly fraction of -0.1 maps to 0 and +0.1 to 100.
func KellyScore(winProbability, odds float64) float64 {
	d, ok := AmericanToDecimal(odds)
	if !ok || d == 1 {
		return 0
	}
	p := winProbability / 100
	b := d - 1
	kelly := (p*b - (1 - p)) / b
	return clamp((kelly + 0.1) * 500)
}

// EdgeScore scores the model's edge over the market-implied probability.
// An edge of -10 points maps to 0 and +10 to 100.
func EdgeScore(winProbability, odds float64) float64 {
	implied, ok := MarketImpliedProb(odds)
	if !ok {
		return 0
	}
	edge := winProbability - implied
	return clamp((edge + 10) * 5)
}

// AssignGrade maps a composite score to a letter grade. Thresholds are
// inclusive lower bounds.
func AssignGrade(composite float64) string {
	switch {
	case composite >= 90:
		return models.GradeA
	case composite >= 80:
		return models.GradeB
	case composite >= 70:
		return models.GradeC
	case composite >= 60:
		return models.GradeD
	default:
		return models.GradeF
	}
}

// AmericanToDecimal converts American odds to decimal odds. It reports
// false for zero odds, which have no defined conversion.
func AmericanToDecimal(odds float64) (float64, bool) {
	if odds == 0 {
		return 0, false
	}
	if odds > 0 {
		return odds/100 + 1, true
	}
	return 100/-odds + 1, true
}

// MarketImpliedProb returns the win probability (0..100) implied by fair
// American odds.
func MarketImpliedProb(odds float64) (float64, bool) {
	if odds == 0 {
		return 0, false
	}
	if odds > 0 {
		return 100 / (odds + 100) * 100, true
	}
	abs := -odds
	return abs / (abs + 100) * 100, true
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
