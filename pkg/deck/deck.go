// Package deck folds a user's event log into the queryable card-state
// machine the rest of the engine schedules over: per-card FSRS state, review
// stats, XP, streak, and the isotonic-regression priors used for
// comprehensibility gating and add-card ranking. The fold is a single
// reducer over incoming envelopes that never panics on bad input (drops
// instead), keyed per-card in a map, with derived views (queues, priors,
// values) recomputed only at finalization.
package deck

import (
	"math"
	"sort"
	"time"

	"github.com/lingocore/engine/pkg/eventstore"
	"github.com/lingocore/engine/pkg/fsrs"
	"github.com/lingocore/engine/pkg/langpack"
	"github.com/lingocore/engine/pkg/priors"
)

// CardStatus is a card's lifecycle stage.
type CardStatus int

const (
	// Unadded is the default for any indicator the language pack can name
	// but which no event has ever touched.
	StatusUnadded CardStatus = iota
	// StatusGhost marks a card reviewed implicitly through a sentence
	// challenge but never explicitly added.
	StatusGhost
	// StatusAdded marks a card explicitly added by an AddCards event.
	StatusAdded
)

// Card is one entry in the finalized, queryable deck: an indicator, its
// status, and (for Ghost/Added) its FSRS scheduling state.
type Card struct {
	Indicator langpack.CardIndicator
	Status    CardStatus
	FSRS      fsrs.Card
}

// Streak tracks the learner's daily-review streak.
type Streak struct {
	Start time.Time
	Last  time.Time
}

// Stats aggregates the per-deck counters the fold maintains.
type Stats struct {
	SentencesReviewed map[langpack.SentenceID]uint32
	WordsListenedTo   map[langpack.HeteronymID]uint32
	TotalReviews      uint32
	XP                float64
	DailyStreak       *Streak
	PastWeekChallenges map[int64]uint32 // keyed by unix-day (timestamp/86400 UTC)
}

func newStats() Stats {
	return Stats{
		SentencesReviewed:  make(map[langpack.SentenceID]uint32),
		WordsListenedTo:    make(map[langpack.HeteronymID]uint32),
		PastWeekChallenges: make(map[int64]uint32),
	}
}

// Deck is the finalized read model produced by Finalize: every schedulable
// card (Unadded, Ghost, or Added), user stats, and the fitted priors used
// for comprehensibility gating and add-card ranking.
type Deck struct {
	Pack  *langpack.Pack
	Cards map[langpack.CardIndicator]Card
	Stats Stats

	targetLanguageRegression *priors.Regression
	listeningRegression      *priors.Regression
}

// NumCards returns the count of cards that are not Unadded, matching the
// seed scenario's num_cards().
func (d *Deck) NumCards() int {
	n := 0
	for _, c := range d.Cards {
		if c.Status != StatusUnadded {
			n++
		}
	}
	return n
}

// Card looks up a single indicator's finalized state, defaulting to Unadded
// when the pack knows the indicator but no event ever touched it.
func (d *Deck) Card(ind langpack.CardIndicator) Card {
	if c, ok := d.Cards[ind]; ok {
		return c
	}
	return Card{Indicator: ind, Status: StatusUnadded}
}

// trackedCard is the fold's internal mutable per-card state; only cards that
// have actually been touched by an event ever get an entry.
type trackedCard struct {
	status CardStatus
	card   fsrs.Card
}

// foldState is the accumulator threaded through Apply across the sorted
// envelope stream.
type foldState struct {
	pack  *langpack.Pack
	cards map[langpack.CardIndicator]*trackedCard
	stats Stats
}

// BuildDeck replays envs (already merged and ordered the way
// eventstore.Store.Iter returns them: globally by (timestamp, device,
// index), which preserves per-device order) against pack and
// returns the finalized Deck. Envelopes are re-sorted defensively with
// Envelope.Less so callers that assembled their own slice still get a
// commutative, deterministic result.
func BuildDeck(pack *langpack.Pack, envs []eventstore.Envelope) *Deck {
	sorted := make([]eventstore.Envelope, len(envs))
	copy(sorted, envs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	st := &foldState{
		pack:  pack,
		cards: make(map[langpack.CardIndicator]*trackedCard),
		stats: newStats(),
	}
	for _, env := range sorted {
		st.apply(env)
	}
	return st.finalize()
}

func (st *foldState) touchStreakAndBuckets(ts time.Time) {
	touchStreak(&st.stats, ts)
	touchPastWeek(&st.stats, ts)
}

// touchStreak maintains the daily streak: unset starts it; a strictly
// newer timestamp extends it when the gap is <= 30h, else restarts it at the
// new timestamp; a timestamp no newer than the current anchor (a re-applied
// or out-of-order event) leaves the streak untouched.
func touchStreak(stats *Stats, ts time.Time) {
	if stats.DailyStreak == nil {
		stats.DailyStreak = &Streak{Start: ts, Last: ts}
		return
	}
	if !ts.After(stats.DailyStreak.Last) {
		return
	}
	gap := ts.Sub(stats.DailyStreak.Last)
	if gap <= 30*time.Hour {
		stats.DailyStreak.Last = ts
	} else {
		stats.DailyStreak = &Streak{Start: ts, Last: ts}
	}
}

const secondsPerDay = 86400

// touchPastWeek buckets ts into its UTC day-of-epoch and retains only the
// most recent seven buckets seen so far.
func touchPastWeek(stats *Stats, ts time.Time) {
	day := ts.UTC().Unix() / secondsPerDay
	stats.PastWeekChallenges[day]++

	if len(stats.PastWeekChallenges) <= 7 {
		return
	}
	days := make([]int64, 0, len(stats.PastWeekChallenges))
	for d := range stats.PastWeekChallenges {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })
	for _, d := range days[7:] {
		delete(stats.PastWeekChallenges, d)
	}
}

// addXP credits xp += max(0, new_stability - old_stability)/10 per review.
func addXP(stats *Stats, before, after fsrs.Card) {
	gain := after.Stability - before.Stability
	if gain > 0 {
		stats.XP += gain / 10
	}
}

// observedKnowledge is the evidence a reviewed card itself carries, read
// from one FSRS surprise accumulator, never both: a card that has lapsed is
// judged by its negative accumulator alone — a lapse outweighs any amount
// of earlier success — otherwise by its positive one.
func observedKnowledge(card fsrs.Card) float64 {
	if card.Lapses == 0 {
		return card.PositiveSurprise
	}
	return -card.NegativeSurprise
}

// knowledgeFor resolves the combined-knowledge
// supplement: a New card (tracked or not) always falls back to the plain
// regression prediction; a reviewed (state != New) Added card relies on its
// own observed evidence alone; a reviewed Ghost combines observed evidence
// with the regression prediction — pessimistically (the min) once it has
// lapsed, additively while it never has.
func knowledgeFor(tc *trackedCard, predicted float64) float64 {
	if tc == nil || tc.card.State == fsrs.New {
		return predicted
	}
	observed := observedKnowledge(tc.card)
	switch tc.status {
	case StatusAdded:
		return observed
	case StatusGhost:
		if tc.card.Lapses > 0 {
			return math.Min(observed, predicted)
		}
		return observed + predicted
	default:
		return predicted
	}
}
