package langpack

import (
	"math"
	"sort"

	"github.com/lingocore/engine/pkg/intern"
)

// HeteronymTable interns Heteronym values to dense ids, deduplicating on the
// full (word, lemma, part-of-speech) tuple.
type HeteronymTable struct {
	byID    []Heteronym
	byValue map[Heteronym]HeteronymID
}

// NewHeteronymTable builds an empty table sized to capacityHint.
func NewHeteronymTable(capacityHint int) *HeteronymTable {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &HeteronymTable{
		byID:    make([]Heteronym, 0, capacityHint),
		byValue: make(map[Heteronym]HeteronymID, capacityHint),
	}
}

// Intern returns the id for h, assigning a new one if not already present.
func (t *HeteronymTable) Intern(h Heteronym) HeteronymID {
	if id, ok := t.byValue[h]; ok {
		return id
	}
	id := HeteronymID(len(t.byID))
	t.byID = append(t.byID, h)
	t.byValue[h] = id
	return id
}

// Lookup returns the Heteronym for id.
func (t *HeteronymTable) Lookup(id HeteronymID) (Heteronym, bool) {
	if int(id) >= len(t.byID) {
		return Heteronym{}, false
	}
	return t.byID[id], true
}

// Len returns the number of distinct heteronyms.
func (t *HeteronymTable) Len() int { return len(t.byID) }

// MultiwordTable interns multiword terms (strings, already-tokenized phrases)
// to dense ids.
type MultiwordTable struct {
	byID    []intern.ID
	byValue map[intern.ID]MultiwordID
}

// NewMultiwordTable builds an empty table sized to capacityHint.
func NewMultiwordTable(capacityHint int) *MultiwordTable {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &MultiwordTable{
		byID:    make([]intern.ID, 0, capacityHint),
		byValue: make(map[intern.ID]MultiwordID, capacityHint),
	}
}

// Intern returns the id for the interned term text, assigning a new one if
// not already present.
func (t *MultiwordTable) Intern(term intern.ID) MultiwordID {
	if id, ok := t.byValue[term]; ok {
		return id
	}
	id := MultiwordID(len(t.byID))
	t.byID = append(t.byID, term)
	t.byValue[term] = id
	return id
}

// Lookup returns the interned term text for id.
func (t *MultiwordTable) Lookup(id MultiwordID) (intern.ID, bool) {
	if int(id) >= len(t.byID) {
		return 0, false
	}
	return t.byID[id], true
}

// Len returns the number of distinct multiword terms.
func (t *MultiwordTable) Len() int { return len(t.byID) }

// Pack is the fully loaded, immutable language pack: the interned string
// table plus every typed table layered on top of it.
type Pack struct {
	Strings    *intern.Table
	Heteronyms *HeteronymTable
	Multiwords *MultiwordTable

	Sentences []Sentence

	Frequencies          map[LexemeID]uint32
	Dictionary           map[HeteronymID][]string
	Phrasebook           map[MultiwordID]PhrasebookEntry
	WordToPronunciation  map[intern.ID]PronunciationID
	PronunciationToWords map[PronunciationID][]intern.ID
	PronunciationGuide   map[LetterPatternKey]Familiarity

	TotalWordCount uint64

	// sentencesByLexeme is a derived index built once after load, mapping a
	// lexeme to every sentence (by index into Sentences) that contains it.
	sentencesByLexeme map[LexemeID][]SentenceID
}

// NewPack wraps already-populated tables into a Pack and builds derived
// indices. Called once at the end of loading (see loader.go / bundle.go).
func NewPack(strings *intern.Table, heteronyms *HeteronymTable, multiwords *MultiwordTable, sentences []Sentence) *Pack {
	p := &Pack{
		Strings:              strings,
		Heteronyms:           heteronyms,
		Multiwords:           multiwords,
		Sentences:            sentences,
		Frequencies:          make(map[LexemeID]uint32),
		Dictionary:           make(map[HeteronymID][]string),
		Phrasebook:           make(map[MultiwordID]PhrasebookEntry),
		WordToPronunciation:  make(map[intern.ID]PronunciationID),
		PronunciationToWords: make(map[PronunciationID][]intern.ID),
		PronunciationGuide:   make(map[LetterPatternKey]Familiarity),
	}
	p.reindex()
	return p
}

// reindex rebuilds every derived index from Sentences. Safe to call again
// after mutating Sentences directly (e.g. in tests).
func (p *Pack) reindex() {
	p.sentencesByLexeme = make(map[LexemeID][]SentenceID, len(p.Sentences))
	for i, s := range p.Sentences {
		seen := make(map[LexemeID]struct{}, len(s.AllLexemes))
		for _, lex := range s.AllLexemes {
			if _, ok := seen[lex]; ok {
				continue
			}
			seen[lex] = struct{}{}
			p.sentencesByLexeme[lex] = append(p.sentencesByLexeme[lex], SentenceID(i))
		}
	}
}

// SentencesContaining returns every sentence that contains the given lexeme,
// ordered by SentenceID.
func (p *Pack) SentencesContaining(lexeme LexemeID) []SentenceID {
	return p.sentencesByLexeme[lexeme]
}

// Sentence returns the Sentence for id.
func (p *Pack) Sentence(id SentenceID) (Sentence, bool) {
	if int(id) >= len(p.Sentences) {
		return Sentence{}, false
	}
	return p.Sentences[id], true
}

// FrequencyOf returns a lexeme's raw frequency count.
func (p *Pack) FrequencyOf(lexeme LexemeID) (uint32, bool) {
	f, ok := p.Frequencies[lexeme]
	return f, ok
}

// PronunciationOf returns the pronunciation id for an interned word.
func (p *Pack) PronunciationOf(word intern.ID) (PronunciationID, bool) {
	pron, ok := p.WordToPronunciation[word]
	return pron, ok
}

// MaxFrequencyForPronunciation returns the largest lexeme frequency among
// every heteronym sharing the given pronunciation, used by the priors for
// ListeningHomophonous/ListeningLexeme lookups.
func (p *Pack) MaxFrequencyForPronunciation(pron PronunciationID) (uint32, bool) {
	words, ok := p.PronunciationToWords[pron]
	if !ok || len(words) == 0 {
		return 0, false
	}
	var max uint32
	var found bool
	for _, word := range words {
		for hid := 0; hid < p.Heteronyms.Len(); hid++ {
			h, _ := p.Heteronyms.Lookup(HeteronymID(hid))
			if h.Word != word {
				continue
			}
			freq, ok := p.Frequencies[HeteronymLexeme(HeteronymID(hid))]
			if !ok {
				continue
			}
			found = true
			if freq > max {
				max = freq
			}
		}
	}
	return max, found
}

// Exists reports whether a CardIndicator names a unit actually present in
// this pack, used by AddCards validation (unknown indicators are ignored,
// never deleted).
func (p *Pack) Exists(ind CardIndicator) bool {
	switch ind.Kind {
	case IndicatorTargetLanguage, IndicatorListeningLexeme:
		return p.lexemeExists(ind.Lexeme)
	case IndicatorListeningHomophonous:
		_, ok := p.PronunciationToWords[ind.Pronunciation]
		return ok
	case IndicatorLetterPronunciation:
		_, ok := p.PronunciationGuide[LetterPatternKey{Pattern: ind.Pattern, Position: ind.Position}]
		return ok
	default:
		return false
	}
}

func (p *Pack) lexemeExists(lex LexemeID) bool {
	switch lex.Kind {
	case LexemeKindHeteronym:
		return int(lex.Index) < p.Heteronyms.Len()
	case LexemeKindMultiword:
		return int(lex.Index) < p.Multiwords.Len()
	default:
		return false
	}
}

// AllIndicators enumerates every CardIndicator this pack can schedule: one
// TargetLanguage per lexeme, one ListeningLexeme per heteronym (none for
// multiword terms), one ListeningHomophonous
// per distinct pronunciation, and one LetterPronunciation per guide entry.
// Used by the deck fold's finalization step to build the full card index.
func (p *Pack) AllIndicators() []CardIndicator {
	out := make([]CardIndicator, 0, p.estimateIndicatorCount())

	for i := 0; i < p.Heteronyms.Len(); i++ {
		lex := HeteronymLexeme(HeteronymID(i))
		out = append(out, TargetLanguageIndicator(lex), ListeningLexemeIndicator(lex))
	}
	for i := 0; i < p.Multiwords.Len(); i++ {
		lex := MultiwordLexeme(MultiwordID(i))
		out = append(out, TargetLanguageIndicator(lex))
	}

	prons := make([]PronunciationID, 0, len(p.PronunciationToWords))
	for pron := range p.PronunciationToWords {
		prons = append(prons, pron)
	}
	sort.Slice(prons, func(i, j int) bool { return prons[i] < prons[j] })
	for _, pron := range prons {
		out = append(out, ListeningHomophonousIndicator(pron))
	}

	keys := make([]LetterPatternKey, 0, len(p.PronunciationGuide))
	for k := range p.PronunciationGuide {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Pattern != keys[j].Pattern {
			return keys[i].Pattern < keys[j].Pattern
		}
		return keys[i].Position < keys[j].Position
	})
	for _, k := range keys {
		out = append(out, LetterPronunciationIndicator(k.Pattern, k.Position))
	}

	return out
}

func (p *Pack) estimateIndicatorCount() int {
	return p.Heteronyms.Len()*2 + p.Multiwords.Len() + len(p.PronunciationToWords) + len(p.PronunciationGuide)
}

// SqrtFrequency is a small shared helper: the priors regression always
// operates on sqrt(frequency), never raw frequency.
func SqrtFrequency(freq uint32) float64 {
	return math.Sqrt(float64(freq))
}
