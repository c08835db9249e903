package deck

import (
	"testing"
	"time"

	"github.com/lingocore/engine/pkg/eventstore"
)

// statsAfter folds a series of bare AddCards envelopes at the given
// timestamps; every event touches the streak and past-week buckets even when
// its payload changes no card.
func statsAfter(t *testing.T, times ...time.Time) Stats {
	t.Helper()
	pack, _, _ := buildTestPack(t)
	envs := make([]eventstore.Envelope, len(times))
	for i, ts := range times {
		envs[i] = eventstore.Envelope{DeviceID: device, Timestamp: ts, WithinDeviceIndex: uint64(i), Payload: eventstore.AddCards{}}
	}
	return BuildDeck(pack, envs).Stats
}

func TestStreakExtendsAtExactlyThirtyHours(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stats := statsAfter(t, t0, t0.Add(30*time.Hour))

	if stats.DailyStreak == nil {
		t.Fatal("expected a streak to exist")
	}
	if !stats.DailyStreak.Start.Equal(t0) {
		t.Fatalf("expected a 30h gap to extend the streak from %v, got start %v", t0, stats.DailyStreak.Start)
	}
}

func TestStreakRestartsOneMillisecondPastThirtyHours(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(30*time.Hour + time.Millisecond)
	stats := statsAfter(t, t0, t1)

	if !stats.DailyStreak.Start.Equal(t1) {
		t.Fatalf("expected 30h+1ms to restart the streak at %v, got start %v", t1, stats.DailyStreak.Start)
	}
}

func TestStreakIgnoresReappliedOlderEvents(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	stats := statsAfter(t, t0, t1, t0)

	if !stats.DailyStreak.Last.Equal(t1) {
		t.Fatalf("expected an older timestamp to leave the streak at %v, got %v", t1, stats.DailyStreak.Last)
	}
}

func TestPastWeekRetainsOnlySevenBuckets(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	times := make([]time.Time, 9)
	for i := range times {
		times[i] = t0.Add(time.Duration(i) * 24 * time.Hour)
	}
	stats := statsAfter(t, times...)

	if len(stats.PastWeekChallenges) != 7 {
		t.Fatalf("expected 7 retained buckets, got %d", len(stats.PastWeekChallenges))
	}
	oldest := t0.Unix() / secondsPerDay
	if _, ok := stats.PastWeekChallenges[oldest]; ok {
		t.Fatal("expected the oldest bucket to have been evicted")
	}
	newest := times[8].Unix() / secondsPerDay
	if stats.PastWeekChallenges[newest] != 1 {
		t.Fatalf("expected the newest bucket to hold 1 challenge, got %d", stats.PastWeekChallenges[newest])
	}
}

func TestXPGrowsWithSuccessfulReviews(t *testing.T) {
	pack, bonjour, sid := buildTestPack(t)
	_ = bonjour
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	envs := []eventstore.Envelope{
		{DeviceID: device, Timestamp: t0, WithinDeviceIndex: 0, Payload: eventstore.TranslationChallenge{
			Sentence: sid,
			Outcome:  eventstore.TranslationOutcome{Kind: eventstore.OutcomePerfect},
		}},
	}
	d := BuildDeck(pack, envs)

	if d.Stats.XP <= 0 {
		t.Fatalf("expected a perfect review to grant XP, got %v", d.Stats.XP)
	}
	if d.Stats.TotalReviews != 1 {
		t.Fatalf("expected 1 total review, got %d", d.Stats.TotalReviews)
	}
}
