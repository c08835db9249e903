// Package fsrs implements the spaced-repetition scheduler as a pure
// function: given a card's prior state, the current time, and a rating, it
// returns the card's next state. It holds no global state and performs no
// I/O, so two devices replaying the same reviews always converge on the
// same schedule.
package fsrs

import (
	"math"
	"time"
)

// Rating is the grade a reviewer assigns a card at review time.
type Rating int

const (
	Again Rating = iota + 1
	Hard
	Good
	Easy
)

// State is the card's learning-phase classification.
type State int

const (
	New State = iota
	Learning
	Review
	Relearning
)

// weights are the FSRS model parameters governing initial stability,
// initial difficulty, and the stability/difficulty update rules. Indices
// follow the standard 17-parameter FSRS layout.
var weights = [17]float64{
	0.40, 0.60, 2.40, 5.80,
	4.93, 0.94, 0.86, 0.01,
	1.49, 0.14, 0.94, 2.18,
	0.05, 0.34, 1.26, 0.29,
	2.61,
}

const (
	decay            = -0.5
	requestRetention = 0.9
	maxIntervalDays  = 36500.0
)

var factor = math.Pow(requestRetention, 1/decay) - 1

// Card is the per-card FSRS scheduling state. The two surprise accumulators
// are not part of classic FSRS; they are the evidence the priors consume: on
// every review the signed gap between predicted and actual recall is added
// to whichever accumulator matches the outcome.
type Card struct {
	Due              time.Time
	Stability        float64
	Difficulty       float64
	ElapsedDays      float64
	ScheduledDays    float64
	Reps             int
	Lapses           int
	State            State
	LastReview       time.Time
	CreatedAt        time.Time
	PositiveSurprise float64
	NegativeSurprise float64
}

// NewCard returns a fresh card in the New state, created at now.
func NewCard(now time.Time) Card {
	return Card{
		State:     New,
		Due:       now,
		CreatedAt: now,
	}
}

// Schedule computes the next card state for a review occurring at now with
// the given rating. It never mutates its input.
func Schedule(card Card, now time.Time, rating Rating) Card {
	next := card
	if !card.LastReview.IsZero() {
		next.ElapsedDays = now.Sub(card.LastReview).Hours() / 24
	} else {
		next.ElapsedDays = 0
	}
	next.LastReview = now
	next.Reps = card.Reps + 1

	predicted := retrievability(card, next.ElapsedDays)

	switch card.State {
	case New:
		next.Difficulty = initDifficulty(rating)
		next.Stability = initStability(rating)
	default:
		next.Difficulty = nextDifficulty(card.Difficulty, rating)
		if rating == Again {
			next.Stability = nextForgetStability(card.Difficulty, card.Stability, predicted)
		} else {
			next.Stability = nextRecallStability(card.Difficulty, card.Stability, predicted, rating)
		}
	}

	if rating == Again {
		next.Lapses = card.Lapses + 1
		next.State = Relearning
		next.NegativeSurprise = card.NegativeSurprise + predicted
	} else {
		switch card.State {
		case New:
			if rating == Easy {
				next.State = Review
			} else {
				next.State = Learning
			}
		case Learning, Relearning:
			next.State = Review
		default:
			next.State = Review
		}
		next.PositiveSurprise = card.PositiveSurprise + (1 - predicted)
	}

	interval := nextInterval(next.Stability)
	next.ScheduledDays = interval
	next.Due = now.Add(time.Duration(interval * 24 * float64(time.Hour)))

	return next
}

// retrievability estimates recall probability at elapsed given the card's
// prior stability, using the DSR forgetting-curve form.
func retrievability(card Card, elapsedDays float64) float64 {
	if card.Stability <= 0 {
		return 0
	}
	return math.Pow(1+factor*elapsedDays/card.Stability, decay)
}

func initStability(rating Rating) float64 {
	idx := int(rating) - 1
	if idx < 0 || idx > 3 {
		idx = 2
	}
	s := weights[idx]
	if s <= 0 {
		s = 0.1
	}
	return s
}

func initDifficulty(rating Rating) float64 {
	d := weights[4] - (float64(rating)-3)*weights[5]
	return clampDifficulty(d)
}

func nextDifficulty(prior float64, rating Rating) float64 {
	d := prior - weights[6]*(float64(rating)-3)
	meanReversionTarget := initDifficulty(Easy)
	d = weights[7]*meanReversionTarget + (1-weights[7])*d
	return clampDifficulty(d)
}

func clampDifficulty(d float64) float64 {
	if d < 1 {
		return 1
	}
	if d > 10 {
		return 10
	}
	return d
}

func nextRecallStability(difficulty, stability, predicted float64, rating Rating) float64 {
	hardPenalty := 1.0
	if rating == Hard {
		hardPenalty = weights[15]
	}
	easyBonus := 1.0
	if rating == Easy {
		easyBonus = weights[16]
	}
	growth := math.Exp(weights[8]) *
		(11 - difficulty) *
		math.Pow(stability, -weights[9]) *
		(math.Exp((1-predicted)*weights[10]) - 1) *
		hardPenalty * easyBonus
	next := stability * (1 + growth)
	if next <= 0 {
		next = stability
	}
	return next
}

func nextForgetStability(difficulty, stability, predicted float64) float64 {
	next := weights[11] *
		math.Pow(difficulty, -weights[12]) *
		(math.Pow(stability+1, weights[13]) - 1) *
		math.Exp((1-predicted)*weights[14])
	if next <= 0 {
		next = 0.1
	}
	return next
}

// nextInterval derives the next scheduled interval, in days, from stability
// at the target request retention. At decay=-0.5 the interval that drives
// retrievability down to requestRetention is exactly the stability itself,
// by construction of factor above.
func nextInterval(stability float64) float64 {
	interval := stability
	if interval < 1 {
		interval = 1
	}
	if interval > maxIntervalDays {
		interval = maxIntervalDays
	}
	return interval
}
