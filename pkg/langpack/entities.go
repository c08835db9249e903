// Package langpack holds the read-only, interned language data the deck
// engine schedules over: sentences, tokenized literals, lexemes, frequencies,
// a dictionary, a phrasebook, and pronunciation maps. A Pack is immutable
// once loaded; every entity is referenced by a dense id from pkg/intern or a
// small table defined in this package, never by raw string.
package langpack

import "github.com/lingocore/engine/pkg/intern"

// PartOfSpeech tags a Heteronym's grammatical category.
type PartOfSpeech int

const (
	POSUnknown PartOfSpeech = iota
	POSNoun
	POSVerb
	POSAdjective
	POSAdverb
	POSPronoun
	POSPreposition
	POSConjunction
	POSInterjection
	POSDeterminer
	POSNumeral
	POSParticle
)

// Heteronym is a specific reading of a surface word, distinguished by its
// lemma and part of speech.
type Heteronym struct {
	Word         intern.ID
	Lemma        intern.ID
	PartOfSpeech PartOfSpeech
}

// HeteronymID identifies an interned Heteronym within a Pack.
type HeteronymID uint32

// MultiwordID identifies an interned multiword term within a Pack.
type MultiwordID uint32

// PronunciationID identifies an interned pronunciation pattern within a Pack.
type PronunciationID = intern.ID

// LexemeKind discriminates the two Lexeme variants.
type LexemeKind uint8

const (
	LexemeKindHeteronym LexemeKind = iota
	LexemeKindMultiword
)

// LexemeID is a unit of meaning for scheduling: either a Heteronym or a
// multiword term. It is a small comparable struct rather than a single dense
// integer so it can name either variant without a shared namespace between
// the two underlying tables.
type LexemeID struct {
	Kind  LexemeKind
	Index uint32
}

// HeteronymLexeme builds a LexemeID naming the given heteronym.
func HeteronymLexeme(id HeteronymID) LexemeID {
	return LexemeID{Kind: LexemeKindHeteronym, Index: uint32(id)}
}

// MultiwordLexeme builds a LexemeID naming the given multiword term.
func MultiwordLexeme(id MultiwordID) LexemeID {
	return LexemeID{Kind: LexemeKindMultiword, Index: uint32(id)}
}

// Literal is a token as it appears in a sentence.
type Literal struct {
	Text               intern.ID
	TrailingWhitespace bool
	Heteronym          *HeteronymID
}

// SentenceID identifies an interned Sentence within a Pack.
type SentenceID uint32

// Sentence is an interned string plus its ordered literals and the lexemes
// it contains, split into the full set and a high-confidence subset (lexemes
// the tagger was confident about).
type Sentence struct {
	Text                  intern.ID
	Literals              []Literal
	AllLexemes            []LexemeID
	HighConfidenceLexemes []LexemeID
}

// PhrasebookEntry is the translation/notes pairing for a multiword term.
type PhrasebookEntry struct {
	Translation string
	Notes       string
}

// Familiarity is a discrete prior tag from the pronunciation guide, used
// directly by LetterPronunciation cards instead of a fitted regression.
type Familiarity int

const (
	FamiliarityUnknown Familiarity = iota
	FamiliarityLikelyAlreadyKnows
	FamiliarityMaybe
	FamiliarityProbablyDoesNotKnow
)

// LetterPatternKey identifies one (pattern, position) entry in the
// pronunciation guide.
type LetterPatternKey struct {
	Pattern  intern.ID
	Position int
}

// CardIndicatorKind discriminates the four CardIndicator variants.
type CardIndicatorKind uint8

const (
	IndicatorTargetLanguage CardIndicatorKind = iota
	IndicatorListeningHomophonous
	IndicatorListeningLexeme
	IndicatorLetterPronunciation
)

// CardIndicator names a schedulable card. Exactly the fields relevant to
// Kind are meaningful; it is comparable so it can key maps directly.
type CardIndicator struct {
	Kind          CardIndicatorKind
	Lexeme        LexemeID        // TargetLanguage, ListeningLexeme
	Pronunciation PronunciationID // ListeningHomophonous
	Pattern       intern.ID       // LetterPronunciation
	Position      int             // LetterPronunciation
}

// TargetLanguageIndicator builds a CardIndicator for translating a lexeme.
func TargetLanguageIndicator(lexeme LexemeID) CardIndicator {
	return CardIndicator{Kind: IndicatorTargetLanguage, Lexeme: lexeme}
}

// ListeningHomophonousIndicator builds a CardIndicator for a shared
// pronunciation across one or more heteronyms.
func ListeningHomophonousIndicator(pron PronunciationID) CardIndicator {
	return CardIndicator{Kind: IndicatorListeningHomophonous, Pronunciation: pron}
}

// ListeningLexemeIndicator builds a CardIndicator for recognizing a specific
// lexeme by ear.
func ListeningLexemeIndicator(lexeme LexemeID) CardIndicator {
	return CardIndicator{Kind: IndicatorListeningLexeme, Lexeme: lexeme}
}

// LetterPronunciationIndicator builds a CardIndicator for a letter-pattern
// pronunciation rule at a given position.
func LetterPronunciationIndicator(pattern intern.ID, position int) CardIndicator {
	return CardIndicator{Kind: IndicatorLetterPronunciation, Pattern: pattern, Position: position}
}
