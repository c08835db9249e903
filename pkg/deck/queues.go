package deck

import (
	"sort"
	"time"

	"github.com/lingocore/engine/pkg/langpack"
)

// ChallengeType tags the kind of challenge a card can be reviewed with, used
// to filter review queues against a caller-supplied ban list.
type ChallengeType int

const (
	ChallengeFlashcard ChallengeType = iota
	ChallengeTranslation
	ChallengeTranscription
)

// challengeTypesFor returns every challenge type the selector could pick for an
// indicator's kind, used to test a ban list against a queue entry before the
// selector has actually run.
func challengeTypesFor(kind langpack.CardIndicatorKind) []ChallengeType {
	switch kind {
	case langpack.IndicatorListeningLexeme, langpack.IndicatorListeningHomophonous:
		return []ChallengeType{ChallengeTranscription, ChallengeFlashcard}
	case langpack.IndicatorTargetLanguage:
		return []ChallengeType{ChallengeTranslation, ChallengeFlashcard}
	default:
		return []ChallengeType{ChallengeFlashcard}
	}
}

func anyBanned(types []ChallengeType, banned map[ChallengeType]struct{}) bool {
	for _, t := range types {
		if _, ok := banned[t]; ok {
			return true
		}
	}
	return false
}

// ReviewQueues partitions Added cards into due, due-but-banned,
// and future, each stably sorted by (due, indicator) for determinism.
type ReviewQueues struct {
	Due          []Card
	DueButBanned []Card
	Future       []Card
}

// BuildReviewQueues partitions every Added card in d by due time against
// now, honoring bannedTypes. Ghost and Unadded cards never enter a
// review queue: only explicit Added cards are scheduled for review.
func (d *Deck) BuildReviewQueues(now time.Time, bannedTypes map[ChallengeType]struct{}) ReviewQueues {
	var q ReviewQueues
	for _, c := range d.Cards {
		if c.Status != StatusAdded {
			continue
		}
		banned := anyBanned(challengeTypesFor(c.Indicator.Kind), bannedTypes)
		switch {
		case c.FSRS.Due.After(now):
			q.Future = append(q.Future, c)
		case banned:
			q.DueButBanned = append(q.DueButBanned, c)
		default:
			q.Due = append(q.Due, c)
		}
	}
	sortByDueThenIndicator(q.Due)
	sortByDueThenIndicator(q.DueButBanned)
	sortByDueThenIndicator(q.Future)
	return q
}

func sortByDueThenIndicator(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		if !cards[i].FSRS.Due.Equal(cards[j].FSRS.Due) {
			return cards[i].FSRS.Due.Before(cards[j].FSRS.Due)
		}
		return indicatorLess(cards[i].Indicator, cards[j].Indicator)
	})
}

// indicatorLess gives CardIndicator a total, deterministic order for tie
// breaking in sorts.
func indicatorLess(a, b langpack.CardIndicator) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	switch a.Kind {
	case langpack.IndicatorTargetLanguage, langpack.IndicatorListeningLexeme:
		if a.Lexeme.Kind != b.Lexeme.Kind {
			return a.Lexeme.Kind < b.Lexeme.Kind
		}
		return a.Lexeme.Index < b.Lexeme.Index
	case langpack.IndicatorListeningHomophonous:
		return a.Pronunciation < b.Pronunciation
	case langpack.IndicatorLetterPronunciation:
		if a.Pattern != b.Pattern {
			return a.Pattern < b.Pattern
		}
		return a.Position < b.Position
	default:
		return false
	}
}
