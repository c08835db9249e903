// Package challenge picks the single best next Challenge for a due card,
// given the finalized deck and its language pack. It never performs I/O
// itself: it only ever returns an AudioRequest value describing what audio
// a host could fetch, never fetching it — the TTS client is an external
// collaborator.
package challenge

import "github.com/lingocore/engine/pkg/langpack"

// Kind discriminates the three challenge shapes the selector can produce.
type Kind int

const (
	KindFlashcard Kind = iota
	KindTranslation
	KindTranscription
)

// AudioRequest is the selector's only side-effect-shaped output: a request
// for a host to fetch TTS audio, never fetched here.
type AudioRequest struct {
	Text     string
	Language string
	Provider string
}

// Challenge is the sum type the selector returns; exactly one of the
// Flashcard/Translation/Transcription fields is populated, matching Kind.
type Challenge struct {
	Kind Kind

	Flashcard     *FlashcardChallenge
	Translation   *TranslationChallenge
	Transcription *TranscriptionChallenge
}

// FlashcardChallenge is the selector's fallback when no sentence-based
// challenge applies.
type FlashcardChallenge struct {
	Indicator langpack.CardIndicator
	IsNew     bool
	Audio     AudioRequest
}

// TranslationChallenge asks the learner to translate a written-comprehensible
// sentence. Pack has no dedicated per-sentence translation table, so
// LexemeDefinitions surfaces the dictionary/phrasebook entries already
// carried for each lexeme in the sentence; a host's NLP/translation layer
// is expected to supply any full-sentence gloss on top of these.
type TranslationChallenge struct {
	Sentence          langpack.SentenceID
	SentenceText      string
	LexemeDefinitions map[langpack.LexemeID][]string
	Audio             AudioRequest
}

// TranscriptionPart is one literal of the challenge sentence as presented to
// the learner: either asked to transcribe, or given away (Provided).
type TranscriptionPart struct {
	Text               string
	TrailingWhitespace bool
	Heteronym          *langpack.HeteronymID
	AskedToTranscribe  bool
}

// TranscriptionChallenge asks the learner to transcribe some or all literals
// of a sentence by ear.
type TranscriptionChallenge struct {
	Sentence langpack.SentenceID
	Parts    []TranscriptionPart
	Audio    AudioRequest
}
