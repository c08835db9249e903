package deck

import (
	"time"

	"github.com/lingocore/engine/pkg/eventstore"
	"github.com/lingocore/engine/pkg/fsrs"
	"github.com/lingocore/engine/pkg/langpack"
)

// apply is the fold's single reducer entry point: one event, mutating st in
// place. It never panics on bad input — unknown or invalid references are
// dropped, keeping the log tolerant of version drift.
func (st *foldState) apply(env eventstore.Envelope) {
	st.touchStreakAndBuckets(env.Timestamp)

	switch payload := env.Payload.(type) {
	case eventstore.AddCards:
		st.applyAddCards(payload, env.Timestamp)
	case eventstore.ReviewCard:
		st.applyReviewCard(payload, env.Timestamp)
	case eventstore.TranslationChallenge:
		st.applyTranslationChallenge(payload, env.Timestamp)
	case eventstore.TranscriptionChallenge:
		st.applyTranscriptionChallenge(payload, env.Timestamp)
	}
}

// applyAddCards: unknown indicators are ignored, absent ones are inserted
// Added at due=timestamp, Ghosts are
// promoted to Added with due reset but accumulators preserved, and an
// already-Added card is left untouched (idempotent re-application).
func (st *foldState) applyAddCards(payload eventstore.AddCards, ts time.Time) {
	for _, ind := range payload.Cards {
		if !st.pack.Exists(ind) {
			continue
		}
		tc, ok := st.cards[ind]
		if !ok {
			st.cards[ind] = &trackedCard{status: StatusAdded, card: fsrs.NewCard(ts)}
			continue
		}
		if tc.status == StatusGhost {
			tc.status = StatusAdded
			tc.card.Due = ts
		}
	}
}

// applyReviewCard: only a card already known (Added or Ghost) is reviewed;
// unknown indicators are ignored rather than creating a Ghost, unlike the
// sentence-challenge handlers below.
func (st *foldState) applyReviewCard(payload eventstore.ReviewCard, ts time.Time) {
	tc, ok := st.cards[payload.Reviewed]
	if !ok {
		return
	}
	st.review(tc, payload.Rating, ts)
}

// review applies a single rating to an already-tracked card, normalizing
// eventstore's wire-level Rating (which includes the synthetic Remembered
// grade) into the scheduler's four-grade Rating, and folds the resulting
// stability gain into XP.
func (st *foldState) review(tc *trackedCard, rating eventstore.Rating, ts time.Time) {
	normalized := normalizeRating(rating, tc.card.State)
	before := tc.card
	tc.card = fsrs.Schedule(tc.card, ts, normalized)
	st.stats.TotalReviews++
	addXP(&st.stats, before, tc.card)
}

// normalizeRating: Remembered becomes Easy against a New card (first-ever contact with a word judged correct
// deserves the strongest grade) and Good otherwise; every other rating
// passes through unchanged.
func normalizeRating(r eventstore.Rating, prevState fsrs.State) fsrs.Rating {
	switch r {
	case eventstore.RatingRemembered:
		if prevState == fsrs.New {
			return fsrs.Easy
		}
		return fsrs.Good
	case eventstore.RatingHard:
		return fsrs.Hard
	case eventstore.RatingEasy:
		return fsrs.Easy
	case eventstore.RatingAgain:
		return fsrs.Again
	default:
		return fsrs.Good
	}
}

// ensureGhost returns the tracked card for ind, creating it as a fresh Ghost
// at due=ts if it did not already exist.
func (st *foldState) ensureGhost(ind langpack.CardIndicator, ts time.Time) *trackedCard {
	tc, ok := st.cards[ind]
	if !ok {
		tc = &trackedCard{status: StatusGhost, card: fsrs.NewCard(ts)}
		st.cards[ind] = tc
	}
	return tc
}

// applyTranslationChallenge grades a translation attempt into card reviews.
// Reviews always land on TargetLanguage cards, keyed by the sentence's full
// lexeme set (AllLexemes: translation comprehension is judged against every
// lexeme the tagger found, not just the high-confidence subset used for
// comprehensibility gating).
func (st *foldState) applyTranslationChallenge(payload eventstore.TranslationChallenge, ts time.Time) {
	sentence, ok := st.pack.Sentence(payload.Sentence)
	if !ok {
		return
	}

	switch payload.Outcome.Kind {
	case eventstore.OutcomePerfect:
		tapped := toSet(payload.Outcome.Taps)
		for _, lex := range sentence.AllLexemes {
			rating := eventstore.RatingRemembered
			if _, tappedLex := tapped[lex]; tappedLex {
				rating = eventstore.RatingAgain
			}
			ind := langpack.TargetLanguageIndicator(lex)
			st.review(st.ensureGhost(ind, ts), rating, ts)
		}
		st.stats.SentencesReviewed[payload.Sentence]++

	case eventstore.OutcomeWrong:
		tapped := toSet(payload.Outcome.Taps)
		forgotten := toSet(payload.Outcome.Forgotten)

		remembered := make([]langpack.LexemeID, 0, len(payload.Outcome.Remembered))
		for _, lex := range payload.Outcome.Remembered {
			if _, isTapped := tapped[lex]; !isTapped {
				remembered = append(remembered, lex)
			}
		}
		again := make(map[langpack.LexemeID]struct{}, len(forgotten)+len(tapped))
		for lex := range forgotten {
			again[lex] = struct{}{}
		}
		for lex := range tapped {
			again[lex] = struct{}{}
		}

		for _, lex := range remembered {
			ind := langpack.TargetLanguageIndicator(lex)
			st.review(st.ensureGhost(ind, ts), eventstore.RatingRemembered, ts)
		}
		for lex := range again {
			ind := langpack.TargetLanguageIndicator(lex)
			st.review(st.ensureGhost(ind, ts), eventstore.RatingAgain, ts)
		}
	}
}

// worstGrade returns the maximum (worst) TranscriptGrade among grades, the
// ordering declared by TranscriptGrade's iota.
func worstGrade(grades []eventstore.TranscriptGrade) eventstore.TranscriptGrade {
	worst := eventstore.GradePerfect
	for _, g := range grades {
		if g > worst {
			worst = g
		}
	}
	return worst
}

// gradeToRating maps a transcript grade onto a review rating.
func gradeToRating(g eventstore.TranscriptGrade) eventstore.Rating {
	switch g {
	case eventstore.GradePerfect, eventstore.GradeCorrectWithTypo:
		return eventstore.RatingRemembered
	case eventstore.GradePhoneticallyIdenticalButContextuallyIncorrect:
		return eventstore.RatingHard
	default:
		return eventstore.RatingAgain
	}
}

// applyTranscriptionChallenge grades a transcription attempt: the worst
// grade per heteronym drives a ListeningHomophonous
// review always, and a ListeningLexeme review additionally when the
// challenge covered the whole sentence (no heteronym literal was merely
// Provided; provided punctuation literals do not count).
func (st *foldState) applyTranscriptionChallenge(payload eventstore.TranscriptionChallenge, ts time.Time) {
	gradesByHeteronym := make(map[langpack.HeteronymID][]eventstore.TranscriptGrade)
	wholeSentence := true
	for _, part := range payload.Parts {
		if part.Heteronym == nil {
			continue
		}
		if part.Provided {
			wholeSentence = false
			continue
		}
		gradesByHeteronym[*part.Heteronym] = append(gradesByHeteronym[*part.Heteronym], part.Grade)
	}
	if len(gradesByHeteronym) == 0 {
		return
	}

	allNonAgain := true
	for hid, grades := range gradesByHeteronym {
		grade := worstGrade(grades)
		rating := gradeToRating(grade)
		if rating == eventstore.RatingAgain {
			allNonAgain = false
		}

		heteronym, ok := st.pack.Heteronyms.Lookup(hid)
		if !ok {
			continue
		}
		if pron, ok := st.pack.PronunciationOf(heteronym.Word); ok {
			ind := langpack.ListeningHomophonousIndicator(pron)
			st.review(st.ensureGhost(ind, ts), rating, ts)
		}

		if wholeSentence {
			ind := langpack.ListeningLexemeIndicator(langpack.HeteronymLexeme(hid))
			tc, exists := st.cards[ind]
			if !exists {
				if rating != eventstore.RatingRemembered {
					continue
				}
				tc = &trackedCard{status: StatusAdded, card: fsrs.NewCard(ts)}
				st.cards[ind] = tc
			}
			st.review(tc, rating, ts)
		}

		if rating != eventstore.RatingAgain {
			st.stats.WordsListenedTo[hid]++
		}
	}

	if wholeSentence && allNonAgain {
		st.stats.SentencesReviewed[payload.Sentence]++
	}
}

func toSet(lexemes []langpack.LexemeID) map[langpack.LexemeID]struct{} {
	out := make(map[langpack.LexemeID]struct{}, len(lexemes))
	for _, lex := range lexemes {
		out[lex] = struct{}{}
	}
	return out
}
