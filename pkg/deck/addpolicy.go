package deck

import (
	"sort"

	"github.com/lingocore/engine/pkg/eventstore"
	"github.com/lingocore/engine/pkg/langpack"
)

// deckSizeStaircase is the gradual-onboarding clamp: the number
// of new cards offered in one AddCards batch grows with how many cards the
// learner already has.
func deckSizeStaircase(deckSize int) int {
	switch {
	case deckSize < 5:
		return 1
	case deckSize < 11:
		return 2
	default:
		return 5
	}
}

// AddNextUnknownCards ranks every Unadded indicator of
// an allowed kind by value descending and returns a single AddCards event
// payload naming the top n (clamped by the onboarding staircase), or false
// if n is zero or nothing qualifies.
func (d *Deck) AddNextUnknownCards(allowedKinds map[langpack.CardIndicatorKind]struct{}, n int, bannedTypes map[ChallengeType]struct{}) (eventstore.AddCards, bool) {
	if n <= 0 {
		return eventstore.AddCards{}, false
	}
	limit := deckSizeStaircase(d.NumCards())
	if n > limit {
		n = limit
	}

	type candidate struct {
		ind   langpack.CardIndicator
		value float64
	}
	var candidates []candidate
	for ind, c := range d.Cards {
		if c.Status != StatusUnadded {
			continue
		}
		if _, ok := allowedKinds[ind.Kind]; !ok {
			continue
		}
		if anyBanned(challengeTypesFor(ind.Kind), bannedTypes) {
			continue
		}
		candidates = append(candidates, candidate{ind: ind, value: d.Value(ind)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].value != candidates[j].value {
			return candidates[i].value > candidates[j].value
		}
		return indicatorLess(candidates[i].ind, candidates[j].ind)
	})
	if len(candidates) == 0 {
		return eventstore.AddCards{}, false
	}
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	out := make([]langpack.CardIndicator, len(candidates))
	for i, c := range candidates {
		out[i] = c.ind
	}
	return eventstore.AddCards{Cards: out}, true
}
