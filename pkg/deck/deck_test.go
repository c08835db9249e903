package deck

import (
	"testing"
	"time"

	"github.com/lingocore/engine/pkg/eventstore"
	"github.com/lingocore/engine/pkg/intern"
	"github.com/lingocore/engine/pkg/langpack"
)

// buildTestPack returns a one-sentence pack ("Bonjour!") with a single
// heteronym, mirroring pkg/langpack's own test fixture so deck tests stay
// consistent with how the pack is actually built.
func buildTestPack(t *testing.T) (*langpack.Pack, langpack.HeteronymID, langpack.SentenceID) {
	t.Helper()
	strings := intern.NewTable(8)
	heteronyms := langpack.NewHeteronymTable(2)
	multiwords := langpack.NewMultiwordTable(1)

	bonjourWord := strings.Intern("bonjour")
	bonjour := heteronyms.Intern(langpack.Heteronym{Word: bonjourWord, Lemma: bonjourWord, PartOfSpeech: langpack.POSInterjection})

	sentenceText := strings.Intern("Bonjour!")
	hid := bonjour
	sentence := langpack.Sentence{
		Text: sentenceText,
		Literals: []langpack.Literal{
			{Text: bonjourWord, TrailingWhitespace: false, Heteronym: &hid},
		},
		AllLexemes:            []langpack.LexemeID{langpack.HeteronymLexeme(bonjour)},
		HighConfidenceLexemes: []langpack.LexemeID{langpack.HeteronymLexeme(bonjour)},
	}

	p := langpack.NewPack(strings, heteronyms, multiwords, []langpack.Sentence{sentence})
	p.Frequencies[langpack.HeteronymLexeme(bonjour)] = 500
	pron := strings.Intern("bɔ̃ʒuʁ")
	p.WordToPronunciation[bonjourWord] = pron
	p.PronunciationToWords[pron] = []intern.ID{bonjourWord}
	return p, bonjour, 0
}

const device = eventstore.DeviceID("device-a")

func TestFreshDeckSingleAddCreatesOneAddedCard(t *testing.T) {
	pack, bonjour, _ := buildTestPack(t)
	ind := langpack.TargetLanguageIndicator(langpack.HeteronymLexeme(bonjour))
	now := time.Now().UTC()

	envs := []eventstore.Envelope{
		{DeviceID: device, Timestamp: now, WithinDeviceIndex: 0, Payload: eventstore.AddCards{Cards: []langpack.CardIndicator{ind}}},
	}
	d := BuildDeck(pack, envs)

	if d.NumCards() != 1 {
		t.Fatalf("expected 1 card, got %d", d.NumCards())
	}
	card := d.Card(ind)
	if card.Status != StatusAdded {
		t.Fatalf("expected Added status, got %v", card.Status)
	}
}

func TestTranslatePerfectReviewsEveryLexemeAsRemembered(t *testing.T) {
	pack, bonjour, sid := buildTestPack(t)
	now := time.Now().UTC()

	envs := []eventstore.Envelope{
		{DeviceID: device, Timestamp: now, WithinDeviceIndex: 0, Payload: eventstore.TranslationChallenge{
			Sentence: sid,
			Outcome:  eventstore.TranslationOutcome{Kind: eventstore.OutcomePerfect, Submission: "Hello!"},
		}},
	}
	d := BuildDeck(pack, envs)

	ind := langpack.TargetLanguageIndicator(langpack.HeteronymLexeme(bonjour))
	card := d.Card(ind)
	if card.Status != StatusGhost {
		t.Fatalf("expected a perfect translation to create a Ghost card, got %v", card.Status)
	}
	if card.FSRS.Reps != 1 {
		t.Fatalf("expected exactly one review, got %d reps", card.FSRS.Reps)
	}
	if d.Stats.SentencesReviewed[sid] != 1 {
		t.Fatalf("expected sentence review count 1, got %d", d.Stats.SentencesReviewed[sid])
	}
}

func TestTranslateWrongWithTapsMarksTappedLexemesAgain(t *testing.T) {
	pack, bonjour, sid := buildTestPack(t)
	now := time.Now().UTC()
	lex := langpack.HeteronymLexeme(bonjour)

	envs := []eventstore.Envelope{
		{DeviceID: device, Timestamp: now, WithinDeviceIndex: 0, Payload: eventstore.TranslationChallenge{
			Sentence: sid,
			Outcome: eventstore.TranslationOutcome{
				Kind:       eventstore.OutcomeWrong,
				Submission: "wrong",
				Taps:       []langpack.LexemeID{lex},
			},
		}},
	}
	d := BuildDeck(pack, envs)

	ind := langpack.TargetLanguageIndicator(lex)
	card := d.Card(ind)
	if card.FSRS.Lapses != 1 {
		t.Fatalf("expected a tapped lexeme to lapse, got %d lapses", card.FSRS.Lapses)
	}
}

func TestTranscriptionWholeSentenceAllPerfectPromotesBothIndicators(t *testing.T) {
	pack, bonjour, sid := buildTestPack(t)
	now := time.Now().UTC()
	hid := bonjour

	envs := []eventstore.Envelope{
		{DeviceID: device, Timestamp: now, WithinDeviceIndex: 0, Payload: eventstore.TranscriptionChallenge{
			Sentence: sid,
			Parts: []eventstore.TranscriptionPart{
				{Heteronym: &hid, Provided: false, Grade: eventstore.GradePerfect},
			},
		}},
	}
	d := BuildDeck(pack, envs)

	pron, _ := pack.PronunciationOf(pack.Sentences[0].Literals[0].Text)
	homophonous := d.Card(langpack.ListeningHomophonousIndicator(pron))
	if homophonous.Status == StatusUnadded {
		t.Fatalf("expected listening-homophonous card to be touched")
	}
	lexeme := d.Card(langpack.ListeningLexemeIndicator(langpack.HeteronymLexeme(hid)))
	if lexeme.Status == StatusUnadded {
		t.Fatalf("expected listening-lexeme card to be touched on a whole-sentence perfect transcription")
	}
	if d.Stats.SentencesReviewed[sid] != 1 {
		t.Fatalf("expected sentence review count 1, got %d", d.Stats.SentencesReviewed[sid])
	}
}

func TestGhostPromotedToAddedPreservesAccumulatorsButResetsDue(t *testing.T) {
	pack, bonjour, sid := buildTestPack(t)
	t0 := time.Now().UTC()
	t1 := t0.Add(time.Hour)
	lex := langpack.HeteronymLexeme(bonjour)
	ind := langpack.TargetLanguageIndicator(lex)

	envs := []eventstore.Envelope{
		{DeviceID: device, Timestamp: t0, WithinDeviceIndex: 0, Payload: eventstore.TranslationChallenge{
			Sentence: sid,
			Outcome:  eventstore.TranslationOutcome{Kind: eventstore.OutcomePerfect},
		}},
		{DeviceID: device, Timestamp: t1, WithinDeviceIndex: 1, Payload: eventstore.AddCards{Cards: []langpack.CardIndicator{ind}}},
	}
	d := BuildDeck(pack, envs)

	card := d.Card(ind)
	if card.Status != StatusAdded {
		t.Fatalf("expected Ghost to be promoted to Added, got %v", card.Status)
	}
	if !card.FSRS.Due.Equal(t1) {
		t.Fatalf("expected due reset to promotion timestamp %v, got %v", t1, card.FSRS.Due)
	}
	if card.FSRS.PositiveSurprise <= 0 {
		t.Fatalf("expected promotion to preserve the Ghost's accumulated positive surprise")
	}
}

func TestLapsedCardIsJudgedByNegativeAccumulatorAlone(t *testing.T) {
	pack, bonjour, _ := buildTestPack(t)
	ind := langpack.TargetLanguageIndicator(langpack.HeteronymLexeme(bonjour))
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	// A long run of successes followed by a single lapse: the card keeps its
	// accumulated positive history, but once lapsed its observed knowledge
	// must come from the negative accumulator alone, not the net of the two.
	envs := []eventstore.Envelope{
		{DeviceID: device, Timestamp: t0, WithinDeviceIndex: 0, Payload: eventstore.AddCards{Cards: []langpack.CardIndicator{ind}}},
		{DeviceID: device, Timestamp: t0.Add(1 * day), WithinDeviceIndex: 1, Payload: eventstore.ReviewCard{Reviewed: ind, Rating: eventstore.RatingEasy}},
		{DeviceID: device, Timestamp: t0.Add(2 * day), WithinDeviceIndex: 2, Payload: eventstore.ReviewCard{Reviewed: ind, Rating: eventstore.RatingEasy}},
		{DeviceID: device, Timestamp: t0.Add(3 * day), WithinDeviceIndex: 3, Payload: eventstore.ReviewCard{Reviewed: ind, Rating: eventstore.RatingEasy}},
		{DeviceID: device, Timestamp: t0.Add(4 * day), WithinDeviceIndex: 4, Payload: eventstore.ReviewCard{Reviewed: ind, Rating: eventstore.RatingAgain}},
	}
	d := BuildDeck(pack, envs)

	card := d.Card(ind)
	if card.FSRS.Lapses != 1 {
		t.Fatalf("expected exactly one lapse, got %d", card.FSRS.Lapses)
	}
	if card.FSRS.PositiveSurprise <= 0 {
		t.Fatal("fixture expects retained positive history before the lapse")
	}

	got := d.PredictKnowledge(ind)
	want := -card.FSRS.NegativeSurprise
	if got != want {
		t.Fatalf("expected a lapsed card's knowledge to be -negative_surprise (%v), got %v", want, got)
	}
	if got >= 0 {
		t.Fatalf("expected a lapsed card to read as unknown despite its positive history, got %v", got)
	}

	p := d.ProbabilityKnown(ind)
	if p < 0.02 || p >= 0.10 {
		t.Fatalf("expected a lapsed card's P(known) in the negative band [0.02, 0.10), got %v", p)
	}
}

func TestTwoDeviceMergeIsCommutative(t *testing.T) {
	pack, bonjour, sid := buildTestPack(t)
	now := time.Now().UTC()
	deviceB := eventstore.DeviceID("device-b")
	lex := langpack.HeteronymLexeme(bonjour)
	ind := langpack.TargetLanguageIndicator(lex)

	a := eventstore.Envelope{DeviceID: device, Timestamp: now, WithinDeviceIndex: 0, Payload: eventstore.AddCards{Cards: []langpack.CardIndicator{ind}}}
	b := eventstore.Envelope{DeviceID: deviceB, Timestamp: now.Add(time.Second), WithinDeviceIndex: 0, Payload: eventstore.TranslationChallenge{
		Sentence: sid,
		Outcome:  eventstore.TranslationOutcome{Kind: eventstore.OutcomePerfect},
	}}

	forward := BuildDeck(pack, []eventstore.Envelope{a, b})
	backward := BuildDeck(pack, []eventstore.Envelope{b, a})

	cardF := forward.Card(ind)
	cardB := backward.Card(ind)
	if cardF.Status != cardB.Status {
		t.Fatalf("expected commutative merge, statuses differ: %v vs %v", cardF.Status, cardB.Status)
	}
	if cardF.FSRS.Reps != cardB.FSRS.Reps {
		t.Fatalf("expected commutative merge, rep counts differ: %d vs %d", cardF.FSRS.Reps, cardB.FSRS.Reps)
	}
}

func TestAddNextUnknownCardsRespectsOnboardingStaircase(t *testing.T) {
	pack, _, _ := buildTestPack(t)
	d := BuildDeck(pack, nil)

	allowed := map[langpack.CardIndicatorKind]struct{}{langpack.IndicatorTargetLanguage: {}}
	_, ok := d.AddNextUnknownCards(allowed, 0, nil)
	if ok {
		t.Fatal("expected n=0 to return no event")
	}

	event, ok := d.AddNextUnknownCards(allowed, 5, nil)
	if !ok {
		t.Fatal("expected at least one candidate card")
	}
	if len(event.Cards) > 1 {
		t.Fatalf("expected the onboarding staircase to clamp a fresh deck to 1 card, got %d", len(event.Cards))
	}
}
