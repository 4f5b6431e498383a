package elo

import (
	"math"

	"github.com/google/uuid"
)

const (
	// DefaultRating is the rating every new player starts at.
	DefaultRating = 1200
	// MinRating is the floor a rating can never drop below.
	MinRating = 100
)

// ExpectedScore returns the probability of A scoring against B under the
// standard logistic curve. ExpectedScore(a,b) + ExpectedScore(b,a) == 1.
func ExpectedScore(ratingA, ratingB int) float64 {
	return 1 / (1 + math.Pow(10, float64(ratingB-ratingA)/400))
}

// KFactor returns the maximum rating exchange for a player. Provisional
// players (fewer than 30 rated matches) swing harder; 2400+ players barely
// move.
func KFactor(ratedMatchCount, rating int) int {
	if rating >= 2400 {
		return 10
	}
	if ratedMatchCount < 30 {
		return 40
	}
	return 20
}

// Delta computes A's rating change for a single match.
// outcomeA must be 0, 0.5 or 1.
func Delta(ratingA, ratingB int, outcomeA float64, kA int) int {
	return int(math.Round(float64(kA) * (outcomeA - ExpectedScore(ratingA, ratingB))))
}

// Outcomes resolves the (A, B) match outcomes from whichever signal is
// available: an explicit winner takes precedence, otherwise the scores
// decide, and equal scores with no winner count as a draw. The score
// fallback keeps deltas computable for matches that are not yet completed.
func Outcomes(scoreA, scoreB int, winnerID *uuid.UUID, idA, idB uuid.UUID) (float64, float64) {
	if winnerID != nil {
		if *winnerID == idA {
			return 1, 0
		}
		if *winnerID == idB {
			return 0, 1
		}
	}
	if scoreA > scoreB {
		return 1, 0
	}
	if scoreA < scoreB {
		return 0, 1
	}
	return 0.5, 0.5
}

// Clamp applies the rating floor.
func Clamp(rating int) int {
	if rating < MinRating {
		return MinRating
	}
	return rating
}

// OutcomeDeltas is the rating change a player would receive per outcome.
type OutcomeDeltas struct {
	Win  int `json:"win"`
	Draw int `json:"draw"`
	Lose int `json:"lose"`
}

// Preview returns the per-outcome deltas for both sides of a prospective
// match, each computed with that side's own K-factor. Pure; no state.
func Preview(ratingA, countA, ratingB, countB int) (OutcomeDeltas, OutcomeDeltas) {
	kA := KFactor(countA, ratingA)
	kB := KFactor(countB, ratingB)

	a := OutcomeDeltas{
		Win:  Delta(ratingA, ratingB, 1, kA),
		Draw: Delta(ratingA, ratingB, 0.5, kA),
		Lose: Delta(ratingA, ratingB, 0, kA),
	}
	b := OutcomeDeltas{
		Win:  Delta(ratingB, ratingA, 1, kB),
		Draw: Delta(ratingB, ratingA, 0.5, kB),
		Lose: Delta(ratingB, ratingA, 0, kB),
	}
	return a, b
}
