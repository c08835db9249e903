package deck

import (
	"github.com/lingocore/engine/pkg/fsrs"
	"github.com/lingocore/engine/pkg/langpack"
	"github.com/lingocore/engine/pkg/priors"
)

// finalize computes the queryable Deck from the accumulated fold state: it
// fits the two isotonic regressions from reviewed
// cards, then builds the full card index — every indicator the pack can
// name becomes Unadded, overwritten by whatever Added/Ghost state the fold
// actually produced.
func (st *foldState) finalize() *Deck {
	d := &Deck{
		Pack:  st.pack,
		Cards: make(map[langpack.CardIndicator]Card, len(st.cards)),
		Stats: st.stats,
	}
	d.targetLanguageRegression, d.listeningRegression = st.fitRegressions()

	for _, ind := range st.pack.AllIndicators() {
		d.Cards[ind] = Card{Indicator: ind, Status: StatusUnadded}
	}
	for ind, tc := range st.cards {
		d.Cards[ind] = Card{Indicator: ind, Status: tc.status, FSRS: tc.card}
	}
	return d
}

// fitRegressions builds the TargetLanguage and combined-listening isotonic
// regressions from every reviewed (state != New) Added/Ghost card with a
// known frequency, plus the fixed bias anchors.
func (st *foldState) fitRegressions() (targetLanguage, listening *priors.Regression) {
	var targetPoints, listeningPoints []priors.Point
	targetPoints = append(targetPoints, priors.BiasPoints()...)
	listeningPoints = append(listeningPoints, priors.BiasPoints()...)

	for ind, tc := range st.cards {
		if tc.card.State == fsrs.New {
			continue
		}
		freq, ok := st.frequencyFor(ind)
		if !ok {
			continue
		}
		point := priors.Point{X: langpack.SqrtFrequency(freq), Y: observedKnowledge(tc.card)}
		switch ind.Kind {
		case langpack.IndicatorTargetLanguage:
			targetPoints = append(targetPoints, point)
		case langpack.IndicatorListeningHomophonous, langpack.IndicatorListeningLexeme:
			listeningPoints = append(listeningPoints, point)
		}
	}

	return priors.Fit(targetPoints), priors.Fit(listeningPoints)
}

// frequencyFor resolves the frequency to fit a card's training point
// against: TargetLanguage uses the lexeme's own frequency;
// ListeningHomophonous/ListeningLexeme use the max frequency across every
// word sharing the relevant pronunciation.
func (st *foldState) frequencyFor(ind langpack.CardIndicator) (uint32, bool) {
	switch ind.Kind {
	case langpack.IndicatorTargetLanguage:
		return st.pack.FrequencyOf(ind.Lexeme)
	case langpack.IndicatorListeningHomophonous:
		return st.pack.MaxFrequencyForPronunciation(ind.Pronunciation)
	case langpack.IndicatorListeningLexeme:
		h, ok := st.pack.Heteronyms.Lookup(langpack.HeteronymID(ind.Lexeme.Index))
		if !ok {
			return 0, false
		}
		pron, ok := st.pack.PronunciationOf(h.Word)
		if !ok {
			return 0, false
		}
		return st.pack.MaxFrequencyForPronunciation(pron)
	default:
		return 0, false
	}
}

// PredictKnowledge returns the raw knowledge estimate (not a probability)
// for ind given its finalized Card. LetterPronunciation cards use no
// regression: their prior is
// the discrete familiarity tag from the pack's pronunciation guide.
func (d *Deck) PredictKnowledge(ind langpack.CardIndicator) float64 {
	card := d.Card(ind)
	var tc *trackedCard
	if card.Status != StatusUnadded {
		tc = &trackedCard{status: card.Status, card: card.FSRS}
	}

	if ind.Kind == langpack.IndicatorLetterPronunciation {
		return familiarityKnowledge(d.Pack.PronunciationGuide[langpack.LetterPatternKey{Pattern: ind.Pattern, Position: ind.Position}])
	}

	freq, ok := d.frequencyForIndicator(ind)
	if !ok {
		return knowledgeFor(tc, 0)
	}
	sqrtFreq := langpack.SqrtFrequency(freq)

	var predicted float64
	switch ind.Kind {
	case langpack.IndicatorTargetLanguage:
		predicted = d.targetLanguageRegression.SmoothedPredict(sqrtFreq)
	case langpack.IndicatorListeningHomophonous, langpack.IndicatorListeningLexeme:
		predicted = d.listeningRegression.SmoothedPredict(sqrtFreq)
	}
	return knowledgeFor(tc, predicted)
}

// familiarityKnowledge maps a discrete pronunciation-guide familiarity tag
// to a value that already is a probability; ProbabilityKnown returns it as
// is instead of passing it through priors.KnowledgeToProbability.
func familiarityKnowledge(f langpack.Familiarity) float64 {
	switch f {
	case langpack.FamiliarityLikelyAlreadyKnows:
		return 0.85
	case langpack.FamiliarityMaybe:
		return 0.50
	case langpack.FamiliarityProbablyDoesNotKnow:
		return 0.15
	default:
		return 0.10
	}
}

// ProbabilityKnown returns P(already knows ind) in [0.02, 0.95]. For
// LetterPronunciation cards the discrete familiarity value produced by
// PredictKnowledge already is the probability; every other kind goes
// through the shared piecewise knowledge->probability mapping.
func (d *Deck) ProbabilityKnown(ind langpack.CardIndicator) float64 {
	knowledge := d.PredictKnowledge(ind)
	if ind.Kind == langpack.IndicatorLetterPronunciation {
		return knowledge
	}
	return priors.KnowledgeToProbability(knowledge)
}

func (d *Deck) frequencyForIndicator(ind langpack.CardIndicator) (uint32, bool) {
	switch ind.Kind {
	case langpack.IndicatorTargetLanguage:
		return d.Pack.FrequencyOf(ind.Lexeme)
	case langpack.IndicatorListeningHomophonous:
		return d.Pack.MaxFrequencyForPronunciation(ind.Pronunciation)
	case langpack.IndicatorListeningLexeme:
		h, ok := d.Pack.Heteronyms.Lookup(langpack.HeteronymID(ind.Lexeme.Index))
		if !ok {
			return 0, false
		}
		pron, ok := d.Pack.PronunciationOf(h.Word)
		if !ok {
			return 0, false
		}
		return d.Pack.MaxFrequencyForPronunciation(pron)
	default:
		return 0, false
	}
}

// Value ranks an Unadded card for add-card selection.
func (d *Deck) Value(ind langpack.CardIndicator) float64 {
	freq, ok := d.frequencyForIndicator(ind)
	if !ok {
		return 0
	}
	return priors.CardValue(d.ProbabilityKnown(ind), langpack.SqrtFrequency(freq))
}
