// Package parlay combines independently scored bets into one synthetic
// bet's true probability, odds, edge, and Kelly fraction.
package parlay

import (
	"errors"
	"math"

	"github.com/oddsgrid/betgrader/internal/models"
	"github.com/oddsgrid/betgrader/internal/scoring"
)

// legDecay discounts the blended EV by 20% per additional leg, modeling
// compounding uncertainty.
const legDecay = 0.8

// Leg is one component bet of a parlay.
type Leg struct {
	Odds           float64 // American
	WinProbability float64 // 0..100
	EVPercent      float64
	Game           string
	Player         string
}

// Compute aggregates the legs into a ParlayResult. It returns an error only
// for structurally invalid input (no legs, zero odds on a leg); a zero true
// probability product is reported through Viable=false, not an error.
func Compute(legs []Leg) (models.ParlayResult, error) {
	if len(legs) == 0 {
		return models.ParlayResult{}, errors.New("parlay requires at least one leg")
	}

	marketDecimalProduct := 1.0
	trueProbProduct := 1.0
	totalWeightedEV := 0.0
	totalWeight := 0.0

	for _, leg := range legs {
		d, ok := scoring.AmericanToDecimal(leg.Odds)
		if !ok {
			return models.ParlayResult{}, errors.New("leg has zero odds")
		}
		marketDecimalProduct *= d

		winProb := leg.WinProbability / 100
		trueProbProduct *= winProb

		totalWeightedEV += leg.EVPercent * winProb
		totalWeight += winProb
	}

	avgEV := 0.0
	if totalWeight > 0 {
		avgEV = totalWeightedEV / totalWeight
	}
	scaledEV := avgEV * math.Pow(legDecay, float64(len(legs)-1))

	marketImpliedProb := 1 / marketDecimalProduct
	edge := trueProbProduct - marketImpliedProb

	result := models.ParlayResult{
		MarketImpliedProb: marketImpliedProb,
		TrueWinProb:       trueProbProduct,
		EV:                scaledEV,
		TotalEdge:         edge * 100,
		CorrelatedWarning: correlated(legs),
	}

	if trueProbProduct <= 0 {
		// No viable combined odds; leave odds fields zeroed.
		return result, nil
	}

	trueDecimalOdds := 1 / trueProbProduct
	result.Viable = true
	result.DecimalOdds = trueDecimalOdds
	result.AmericanOdds = decimalToAmerican(trueDecimalOdds)
	result.KellyFraction = kellyFraction(trueDecimalOdds, trueProbProduct)
	return result, nil
}

// decimalToAmerican converts decimal odds to the American representation.
func decimalToAmerican(decimal float64) int {
	if decimal >= 2 {
		return int(math.Round((decimal - 1) * 100))
	}
	return int(math.Round(-100 / (decimal - 1)))
}

// kellyFraction computes the Kelly criterion fraction, clamped at 0.
func kellyFraction(decimalOdds, winProb float64) float64 {
	if winProb <= 0 || winProb >= 1 {
		return 0
	}
	b := decimalOdds - 1
	q := 1 - winProb
	return math.Max(0, (b*winProb-q)/b)
}

// correlated reports whether any two legs share a game or a player. It is a
// heuristic warning, not a hard rejection.
func correlated(legs []Leg) bool {
	games := make(map[string]struct{})
	players := make(map[string]struct{})
	gameLegs := 0
	playerLegs := 0
	for _, leg := range legs {
		if leg.Game != "" {
			games[leg.Game] = struct{}{}
			gameLegs++
		}
		if leg.Player != "" {
			players[leg.Player] = struct{}{}
			playerLegs++
		}
	}
	return (gameLegs > 0 && len(games) < gameLegs) ||
		(playerLegs > 0 && len(players) < playerLegs)
}
