package langpack

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/lingocore/engine/pkg/intern"
)

// bundleMagic is the BundleHeader.Magic value of a language-pack bundle;
// the on-disk file framing carries its own bundleFileMagic (loader.go).
const bundleMagic = "LPK1"

// BundleHeader carries the capacity hints needed to allocate the intern
// table and typed maps once during load, without incremental growth, plus
// the hash the loader verifies the payload against.
type BundleHeader struct {
	Magic          string
	Hash           uint64
	StringCount    int
	SentenceCount  int
	HeteronymCount int
	MultiwordCount int
}

// wireBundle is the gob-encodable mirror of Pack. Pack's own fields are
// unexported/derived in places (the sentencesByLexeme index) that must never
// be part of the wire format; wireBundle only carries what the original NLP
// pipeline actually produces.
type wireBundle struct {
	Strings    []string
	Heteronyms []Heteronym
	Multiwords []string // interned text for each multiword term, by MultiwordID

	Sentences []Sentence

	Frequencies          map[LexemeID]uint32
	Dictionary           map[HeteronymID][]string
	Phrasebook           map[MultiwordID]PhrasebookEntry
	WordToPronunciation  map[uint32]uint32 // intern.ID -> PronunciationID, as plain uint32 for gob stability
	PronunciationToWords map[uint32][]uint32
	PronunciationGuide   map[LetterPatternKey]Familiarity

	TotalWordCount uint64
}

func init() {
	gob.Register(Heteronym{})
	gob.Register(LexemeID{})
}

// EncodeBundle serializes a Pack into a header + zstd-compressed gob body.
func EncodeBundle(p *Pack) (BundleHeader, []byte, error) {
	wb := toWireBundle(p)

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(wb); err != nil {
		return BundleHeader{}, nil, fmt.Errorf("langpack: encode bundle: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return BundleHeader{}, nil, fmt.Errorf("langpack: create zstd encoder: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(raw.Bytes(), nil)

	header := BundleHeader{
		Magic:          bundleMagic,
		Hash:           HashBytes(compressed),
		StringCount:    len(wb.Strings),
		SentenceCount:  len(wb.Sentences),
		HeteronymCount: len(wb.Heteronyms),
		MultiwordCount: len(wb.Multiwords),
	}
	return header, compressed, nil
}

// DecodeBundle verifies the payload hash against header and decodes it into
// a Pack, preallocating tables using the header's capacity hints.
func DecodeBundle(header BundleHeader, payload []byte) (*Pack, error) {
	if header.Magic != bundleMagic {
		return nil, fmt.Errorf("langpack: bad bundle magic %q", header.Magic)
	}
	if got := HashBytes(payload); got != header.Hash {
		return nil, fmt.Errorf("langpack: bundle hash mismatch: header %d, computed %d", header.Hash, got)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("langpack: create zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("langpack: decompress bundle: %w", err)
	}

	var wb wireBundle
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&wb); err != nil {
		return nil, fmt.Errorf("langpack: decode bundle: %w", err)
	}

	return fromWireBundle(header, wb), nil
}

func toWireBundle(p *Pack) wireBundle {
	wb := wireBundle{
		Strings:              p.Strings.Strings(),
		Heteronyms:           make([]Heteronym, p.Heteronyms.Len()),
		Multiwords:           make([]string, p.Multiwords.Len()),
		Sentences:            p.Sentences,
		Frequencies:          p.Frequencies,
		Dictionary:           p.Dictionary,
		Phrasebook:           p.Phrasebook,
		WordToPronunciation:  make(map[uint32]uint32, len(p.WordToPronunciation)),
		PronunciationToWords: make(map[uint32][]uint32, len(p.PronunciationToWords)),
		PronunciationGuide:   p.PronunciationGuide,
		TotalWordCount:       p.TotalWordCount,
	}
	for i := 0; i < p.Heteronyms.Len(); i++ {
		h, _ := p.Heteronyms.Lookup(HeteronymID(i))
		wb.Heteronyms[i] = h
	}
	for i := 0; i < p.Multiwords.Len(); i++ {
		term, _ := p.Multiwords.Lookup(MultiwordID(i))
		s, _ := p.Strings.Lookup(term)
		wb.Multiwords[i] = s
	}
	for word, pron := range p.WordToPronunciation {
		wb.WordToPronunciation[uint32(word)] = uint32(pron)
	}
	for pron, words := range p.PronunciationToWords {
		ids := make([]uint32, len(words))
		for i, w := range words {
			ids[i] = uint32(w)
		}
		wb.PronunciationToWords[uint32(pron)] = ids
	}
	return wb
}

func fromWireBundle(header BundleHeader, wb wireBundle) *Pack {
	strTable := intern.FromStrings(wb.Strings)

	heteronyms := NewHeteronymTable(header.HeteronymCount)
	for _, h := range wb.Heteronyms {
		heteronyms.Intern(h)
	}
	multiwords := NewMultiwordTable(header.MultiwordCount)
	for _, term := range wb.Multiwords {
		id := strTable.Intern(term)
		multiwords.Intern(id)
	}

	p := NewPack(strTable, heteronyms, multiwords, wb.Sentences)
	p.Frequencies = wb.Frequencies
	p.Dictionary = wb.Dictionary
	p.Phrasebook = wb.Phrasebook
	p.PronunciationGuide = wb.PronunciationGuide
	p.TotalWordCount = wb.TotalWordCount

	p.WordToPronunciation = make(map[intern.ID]PronunciationID, len(wb.WordToPronunciation))
	for word, pron := range wb.WordToPronunciation {
		p.WordToPronunciation[intern.ID(word)] = PronunciationID(pron)
	}
	p.PronunciationToWords = make(map[PronunciationID][]intern.ID, len(wb.PronunciationToWords))
	for pron, words := range wb.PronunciationToWords {
		ids := make([]intern.ID, len(words))
		for i, w := range words {
			ids[i] = intern.ID(w)
		}
		p.PronunciationToWords[PronunciationID(pron)] = ids
	}
	p.reindex()
	return p
}
