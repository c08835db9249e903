package challenge

import (
	"sort"

	"github.com/lingocore/engine/pkg/deck"
	"github.com/lingocore/engine/pkg/fsrs"
	"github.com/lingocore/engine/pkg/langpack"
)

// writtenComprehensibleThreshold is the P(known) gate for an Unadded
// lexeme to still count toward written comprehension.
const writtenComprehensibleThreshold = 0.80

// Selector picks the next Challenge for a due card, plus the policy knobs
// that are host concerns rather than pack data: the audio provider and the
// language-specific "the word is ..." prefix for listening flashcards.
type Selector struct {
	Pack            *langpack.Pack
	Deck            *deck.Deck
	Language        string
	AudioProvider   string
	ListeningPrefix string // e.g. "The word is: " — prepended for listening flashcards only
}

// Select runs the challenge cascade for the given due card: a whole-sentence
// transcription for a listening-lexeme card, a single-word transcription for
// a listening-homophonous card, a translation for a target-language card
// with a comprehensible sentence, and a flashcard when nothing better fits.
func (s *Selector) Select(card deck.Card) Challenge {
	switch card.Indicator.Kind {
	case langpack.IndicatorListeningLexeme:
		if ch, ok := s.listeningLexemeTranscription(card.Indicator.Lexeme); ok {
			return ch
		}
	case langpack.IndicatorListeningHomophonous:
		if ch, ok := s.listeningHomophonousTranscription(card.Indicator.Pronunciation); ok {
			return ch
		}
	case langpack.IndicatorTargetLanguage:
		if ch, ok := s.targetLanguageTranslation(card.Indicator.Lexeme); ok {
			return ch
		}
	}
	return s.flashcard(card)
}

// listeningLexemeTranscription emits a whole-sentence transcription: a fully
// listening-known sentence containing lexeme, transcribed whole.
func (s *Selector) listeningLexemeTranscription(lexeme langpack.LexemeID) (Challenge, bool) {
	candidates := s.sentencesContaining(lexeme, s.listeningComprehensible)
	sid, ok := s.pickLeastReviewed(candidates)
	if !ok {
		return Challenge{}, false
	}
	return s.wholeSentenceTranscription(sid), true
}

// listeningHomophonousTranscription picks a
// heteronym sharing pron (preferring the least-recently-listened), then a
// written-comprehensible sentence containing it, asking only that
// heteronym's literal.
func (s *Selector) listeningHomophonousTranscription(pron langpack.PronunciationID) (Challenge, bool) {
	words, ok := s.Pack.PronunciationToWords[pron]
	if !ok {
		return Challenge{}, false
	}
	wordSet := make(map[langpack.PronunciationID]struct{}, len(words))
	for _, w := range words {
		wordSet[w] = struct{}{}
	}

	var heteronyms []langpack.HeteronymID
	for i := 0; i < s.Pack.Heteronyms.Len(); i++ {
		h, _ := s.Pack.Heteronyms.Lookup(langpack.HeteronymID(i))
		if _, ok := wordSet[h.Word]; ok {
			heteronyms = append(heteronyms, langpack.HeteronymID(i))
		}
	}
	sort.SliceStable(heteronyms, func(i, j int) bool {
		return s.Deck.Stats.WordsListenedTo[heteronyms[i]] < s.Deck.Stats.WordsListenedTo[heteronyms[j]]
	})

	for _, hid := range heteronyms {
		candidates := s.sentencesContaining(langpack.HeteronymLexeme(hid), s.writtenComprehensible)
		sid, ok := s.pickLeastReviewed(candidates)
		if !ok {
			continue
		}
		return s.singleLiteralTranscription(sid, hid), true
	}
	return Challenge{}, false
}

// targetLanguageTranslation emits a translation challenge over a
// written-comprehensible sentence containing the card's lexeme.
func (s *Selector) targetLanguageTranslation(lexeme langpack.LexemeID) (Challenge, bool) {
	candidates := s.sentencesContaining(lexeme, s.writtenComprehensible)
	sid, ok := s.pickLeastReviewed(candidates)
	if !ok {
		return Challenge{}, false
	}
	sentence, _ := s.Pack.Sentence(sid)
	return Challenge{
		Kind: KindTranslation,
		Translation: &TranslationChallenge{
			Sentence:          sid,
			SentenceText:      s.Pack.Strings.MustLookup(sentence.Text),
			LexemeDefinitions: s.lexemeDefinitions(sentence),
			Audio:             AudioRequest{Text: s.Pack.Strings.MustLookup(sentence.Text), Language: s.Language, Provider: s.AudioProvider},
		},
	}, true
}

// flashcard is the universal fallback when no suitable sentence exists.
func (s *Selector) flashcard(card deck.Card) Challenge {
	text := s.surfaceTextFor(card.Indicator)
	isListening := card.Indicator.Kind == langpack.IndicatorListeningHomophonous || card.Indicator.Kind == langpack.IndicatorListeningLexeme
	if isListening && s.ListeningPrefix != "" {
		text = s.ListeningPrefix + text
	}
	return Challenge{
		Kind: KindFlashcard,
		Flashcard: &FlashcardChallenge{
			Indicator: card.Indicator,
			IsNew:     card.FSRS.State == fsrs.New,
			Audio:     AudioRequest{Text: text, Language: s.Language, Provider: s.AudioProvider},
		},
	}
}

func (s *Selector) surfaceTextFor(ind langpack.CardIndicator) string {
	switch ind.Kind {
	case langpack.IndicatorTargetLanguage, langpack.IndicatorListeningLexeme:
		if ind.Lexeme.Kind == langpack.LexemeKindHeteronym {
			h, ok := s.Pack.Heteronyms.Lookup(langpack.HeteronymID(ind.Lexeme.Index))
			if ok {
				return s.Pack.Strings.MustLookup(h.Word)
			}
		} else {
			term, ok := s.Pack.Multiwords.Lookup(langpack.MultiwordID(ind.Lexeme.Index))
			if ok {
				return s.Pack.Strings.MustLookup(term)
			}
		}
	case langpack.IndicatorListeningHomophonous:
		if words, ok := s.Pack.PronunciationToWords[ind.Pronunciation]; ok && len(words) > 0 {
			return s.Pack.Strings.MustLookup(words[0])
		}
	case langpack.IndicatorLetterPronunciation:
		return s.Pack.Strings.MustLookup(ind.Pattern)
	}
	return ""
}

// sentencesContaining returns every sentence (by id) holding lexeme that
// satisfies comprehensible.
func (s *Selector) sentencesContaining(lexeme langpack.LexemeID, comprehensible func(langpack.Sentence) bool) []langpack.SentenceID {
	var out []langpack.SentenceID
	for _, sid := range s.Pack.SentencesContaining(lexeme) {
		sentence, ok := s.Pack.Sentence(sid)
		if !ok {
			continue
		}
		if comprehensible(sentence) {
			out = append(out, sid)
		}
	}
	return out
}

// pickLeastReviewed ranks candidates by how often each sentence has been
// reviewed, ascending, and returns the least-seen one.
func (s *Selector) pickLeastReviewed(candidates []langpack.SentenceID) (langpack.SentenceID, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	best := candidates[0]
	bestCount := s.Deck.Stats.SentencesReviewed[best]
	for _, sid := range candidates[1:] {
		if count := s.Deck.Stats.SentencesReviewed[sid]; count < bestCount {
			best, bestCount = sid, count
		}
	}
	return best, true
}

// writtenComprehensible reports whether every high-confidence
// lexeme in the sentence is either already in Review state or its Unadded
// prediction gives P(known) >= 0.80.
func (s *Selector) writtenComprehensible(sentence langpack.Sentence) bool {
	for _, lex := range sentence.HighConfidenceLexemes {
		ind := langpack.TargetLanguageIndicator(lex)
		card := s.Deck.Card(ind)
		if card.FSRS.State == fsrs.Review {
			continue
		}
		if s.Deck.ProbabilityKnown(ind) >= writtenComprehensibleThreshold {
			continue
		}
		return false
	}
	return true
}

// listeningComprehensible reports whether every high-confidence lexeme in
// the sentence has
// a ListeningLexeme card already tracked (Added or Ghost).
func (s *Selector) listeningComprehensible(sentence langpack.Sentence) bool {
	for _, lex := range sentence.HighConfidenceLexemes {
		ind := langpack.ListeningLexemeIndicator(lex)
		if s.Deck.Card(ind).Status == deck.StatusUnadded {
			return false
		}
	}
	return true
}

func (s *Selector) lexemeDefinitions(sentence langpack.Sentence) map[langpack.LexemeID][]string {
	out := make(map[langpack.LexemeID][]string, len(sentence.AllLexemes))
	for _, lex := range sentence.AllLexemes {
		switch lex.Kind {
		case langpack.LexemeKindHeteronym:
			if defs, ok := s.Pack.Dictionary[langpack.HeteronymID(lex.Index)]; ok {
				out[lex] = defs
			}
		case langpack.LexemeKindMultiword:
			if entry, ok := s.Pack.Phrasebook[langpack.MultiwordID(lex.Index)]; ok {
				out[lex] = []string{entry.Translation}
			}
		}
	}
	return out
}

// wholeSentenceTranscription builds a TranscriptionChallenge where every
// word-literal is asked-to-transcribe and every punctuation-literal is
// provided.
func (s *Selector) wholeSentenceTranscription(sid langpack.SentenceID) Challenge {
	sentence, _ := s.Pack.Sentence(sid)
	parts := make([]TranscriptionPart, 0, len(sentence.Literals))
	for _, lit := range sentence.Literals {
		parts = append(parts, TranscriptionPart{
			Text:               s.Pack.Strings.MustLookup(lit.Text),
			TrailingWhitespace: lit.TrailingWhitespace,
			Heteronym:          lit.Heteronym,
			AskedToTranscribe:  lit.Heteronym != nil,
		})
	}
	text := s.Pack.Strings.MustLookup(sentence.Text)
	return Challenge{
		Kind: KindTranscription,
		Transcription: &TranscriptionChallenge{
			Sentence: sid,
			Parts:    parts,
			Audio:    AudioRequest{Text: text, Language: s.Language, Provider: s.AudioProvider},
		},
	}
}

// singleLiteralTranscription builds a TranscriptionChallenge where only the
// literal naming hid is asked-to-transcribe; every other literal is
// provided.
func (s *Selector) singleLiteralTranscription(sid langpack.SentenceID, hid langpack.HeteronymID) Challenge {
	sentence, _ := s.Pack.Sentence(sid)
	parts := make([]TranscriptionPart, 0, len(sentence.Literals))
	for _, lit := range sentence.Literals {
		asked := lit.Heteronym != nil && *lit.Heteronym == hid
		parts = append(parts, TranscriptionPart{
			Text:               s.Pack.Strings.MustLookup(lit.Text),
			TrailingWhitespace: lit.TrailingWhitespace,
			Heteronym:          lit.Heteronym,
			AskedToTranscribe:  asked,
		})
	}
	text := s.Pack.Strings.MustLookup(sentence.Text)
	return Challenge{
		Kind: KindTranscription,
		Transcription: &TranscriptionChallenge{
			Sentence: sid,
			Parts:    parts,
			Audio:    AudioRequest{Text: text, Language: s.Language, Provider: s.AudioProvider},
		},
	}
}
