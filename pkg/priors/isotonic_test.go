package priors

import "testing"

func TestFitProducesNonDecreasingSequence(t *testing.T) {
	points := []Point{
		{X: 1, Y: 5},
		{X: 2, Y: 1}, // violates monotonicity against the previous point
		{X: 3, Y: 4},
		{X: 4, Y: 4},
		{X: 5, Y: 8},
	}
	r := Fit(points)
	for i := 1; i < len(r.ys); i++ {
		if r.ys[i] < r.ys[i-1] {
			t.Fatalf("expected non-decreasing fit, got %v", r.ys)
		}
	}
}

func TestFitOnEmptyInputPredictsZero(t *testing.T) {
	r := Fit(nil)
	if got := r.Predict(3); got != 0 {
		t.Fatalf("expected 0 from an empty regression, got %v", got)
	}
}

func TestPredictClampsOutsideFittedRange(t *testing.T) {
	r := Fit([]Point{{X: 1, Y: 2}, {X: 5, Y: 9}})
	if got := r.Predict(-10); got != 2 {
		t.Fatalf("expected clamp to lowest fitted Y, got %v", got)
	}
	if got := r.Predict(100); got != 9 {
		t.Fatalf("expected clamp to highest fitted Y, got %v", got)
	}
}

func TestPredictInterpolatesBetweenKnots(t *testing.T) {
	r := Fit([]Point{{X: 0, Y: 0}, {X: 10, Y: 10}})
	if got := r.Predict(5); got != 5 {
		t.Fatalf("expected linear interpolation to the midpoint, got %v", got)
	}
}

func TestKnowledgeToProbabilityStaysWithinBounds(t *testing.T) {
	cases := []float64{-100, -2, -0.5, 0, 0.5, 2, 3, 4.5, 10}
	for _, k := range cases {
		p := KnowledgeToProbability(k)
		if p < 0.02 || p > 0.95 {
			t.Fatalf("KnowledgeToProbability(%v) = %v, want within [0.02, 0.95]", k, p)
		}
	}
}

func TestKnowledgeToProbabilityIsMonotonic(t *testing.T) {
	xs := []float64{-5, -2, -1, 0, 1, 2, 3, 4.5, 6}
	prev := KnowledgeToProbability(xs[0])
	for _, x := range xs[1:] {
		cur := KnowledgeToProbability(x)
		if cur < prev {
			t.Fatalf("expected KnowledgeToProbability to be non-decreasing, got %v after %v", cur, prev)
		}
		prev = cur
	}
}

func TestCardValueFavorsUnknownFrequentCards(t *testing.T) {
	unknownFrequent := CardValue(0.1, 10)
	knownFrequent := CardValue(0.9, 10)
	unknownRare := CardValue(0.1, 1)

	if unknownFrequent <= knownFrequent {
		t.Fatalf("expected an unknown card to rank above a known one at equal frequency")
	}
	if unknownFrequent <= unknownRare {
		t.Fatalf("expected a frequent unknown card to rank above a rare unknown one")
	}
}

func TestBiasPointsAnchorLowAndHighFrequency(t *testing.T) {
	r := Fit(BiasPoints())
	low := r.Predict(sqrtOf(1))
	high := r.Predict(sqrtOf(25))
	if low >= high {
		t.Fatalf("expected the low-frequency anchor to fit below the high-frequency anchor, got %v vs %v", low, high)
	}
}
