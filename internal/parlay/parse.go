package parlay

import (
	"strconv"
	"strings"

	"github.com/oddsgrid/betgrader/internal/scoring"
)

// Defaults assumed when a bet string omits odds or probability.
const (
	defaultOdds    = -110
	defaultWinProb = 50
)

// ParseBet parses a free-text bet description like "Lakers -5.5 (-110) 60%"
// into a Leg plus the cleaned description. Odds are read from the
// parenthesized token, win probability from the trailing percentage; missing
// values fall back to -110 and 50%. The leg's EV is derived from the parsed
// odds and probability.
func ParseBet(betString string) (Leg, string) {
	leg := Leg{Odds: defaultOdds, WinProbability: defaultWinProb}

	parts := strings.Fields(strings.TrimSpace(betString))
	var kept []string
	for _, part := range parts {
		if odds, ok := parseOddsToken(part); ok {
			leg.Odds = odds
			continue
		}
		if prob, ok := parseProbToken(part); ok {
			leg.WinProbability = prob
			continue
		}
		kept = append(kept, part)
	}

	d, _ := scoring.AmericanToDecimal(leg.Odds)
	trueProb := leg.WinProbability / 100
	leg.EVPercent = (trueProb*(d-1) - (1 - trueProb)) * 100

	description := strings.Join(kept, " ")
	if description == "" {
		description = strings.TrimSpace(betString)
	}
	return leg, description
}

// parseOddsToken matches "(-110)" or "(+250)".
func parseOddsToken(tok string) (float64, bool) {
	if len(tok) < 3 || !strings.HasPrefix(tok, "(") || !strings.HasSuffix(tok, ")") {
		return 0, false
	}
	inner := tok[1 : len(tok)-1]
	if !strings.HasPrefix(inner, "+") && !strings.HasPrefix(inner, "-") {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(inner, "+"), 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

// parseProbToken matches "60%" style win probabilities.
func parseProbToken(tok string) (float64, bool) {
	if len(tok) < 2 || !strings.HasSuffix(tok, "%") {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok[:len(tok)-1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
