// Package priors learns, from reviewed cards, an ascending isotonic
// regression mapping sqrt(frequency) to pre-existing knowledge, and converts
// that knowledge into a probability of already knowing a card. It backs
// both comprehensibility gating and new-card value ranking. The
// pool-adjacent-violators fit below needs no external numeric dependency.
package priors

import (
	"math"
	"sort"
)

// Point is one observation fed to the regression: an x (sqrt-frequency) and
// a y (pre-existing knowledge estimate for that observation).
type Point struct {
	X float64
	Y float64
}

// Regression is a fitted ascending isotonic step function: pairs of
// (x, fitted-y) in increasing x order, ready for linear interpolation.
type Regression struct {
	xs []float64
	ys []float64
}

// Fit runs pool-adjacent-violators over points (sorted internally by X) and
// returns the ascending isotonic fit. Ties in X are kept as separate knots
// in input order; PAVA still produces a non-decreasing sequence across them.
func Fit(points []Point) *Regression {
	if len(points) == 0 {
		return &Regression{}
	}
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	// Each pooled block tracks its mean Y, the count of points folded into
	// it, and the span of X values it covers (for later interpolation).
	type block struct {
		sumY  float64
		count int
		minX  float64
		maxX  float64
		meanY float64
	}
	blocks := make([]block, 0, len(sorted))
	for _, p := range sorted {
		next := block{sumY: p.Y, count: 1, minX: p.X, maxX: p.X, meanY: p.Y}
		blocks = append(blocks, next)
		// Pool backward while the new block's mean violates monotonicity
		// against its predecessor.
		for len(blocks) > 1 && blocks[len(blocks)-2].meanY > blocks[len(blocks)-1].meanY {
			prev := blocks[len(blocks)-2]
			cur := blocks[len(blocks)-1]
			merged := block{
				sumY:  prev.sumY + cur.sumY,
				count: prev.count + cur.count,
				minX:  prev.minX,
				maxX:  cur.maxX,
			}
			merged.meanY = merged.sumY / float64(merged.count)
			blocks = append(blocks[:len(blocks)-2], merged)
		}
	}

	r := &Regression{xs: make([]float64, len(blocks)), ys: make([]float64, len(blocks))}
	for i, b := range blocks {
		// A block's representative X is its midpoint so interpolation
		// doesn't bias toward whichever edge happened to trigger the pool.
		r.xs[i] = (b.minX + b.maxX) / 2
		r.ys[i] = b.meanY
	}
	return r
}

// Predict linearly interpolates the fitted step function at x, clamping to
// the boundary value outside the fitted range. An empty regression predicts
// zero knowledge everywhere.
func (r *Regression) Predict(x float64) float64 {
	if r == nil || len(r.xs) == 0 {
		return 0
	}
	if len(r.xs) == 1 || x <= r.xs[0] {
		return r.ys[0]
	}
	if x >= r.xs[len(r.xs)-1] {
		return r.ys[len(r.ys)-1]
	}
	i := sort.SearchFloat64s(r.xs, x)
	if i < len(r.xs) && r.xs[i] == x {
		return r.ys[i]
	}
	lo, hi := i-1, i
	span := r.xs[hi] - r.xs[lo]
	if span <= 0 {
		return r.ys[lo]
	}
	t := (x - r.xs[lo]) / span
	return r.ys[lo] + t*(r.ys[hi]-r.ys[lo])
}

// SmoothedPredict averages the prediction at x*0.8, x, x*1.2 to smooth over
// the step discontinuities PAVA introduces.
func (r *Regression) SmoothedPredict(x float64) float64 {
	if r == nil {
		return 0
	}
	return (r.Predict(x*0.8) + r.Predict(x) + r.Predict(x*1.2)) / 3
}

// KnowledgeToProbability maps a raw knowledge estimate to a probability of
// already knowing the card, via a piecewise mapping.
func KnowledgeToProbability(knowledge float64) float64 {
	switch {
	case knowledge >= 4.5:
		return 0.95
	case knowledge >= 2.0:
		return scale(knowledge, 2.0, 4.5, 0.70, 0.95)
	case knowledge > 0:
		return scale(knowledge, 0, 2.0, 0.10, 0.70)
	case knowledge == 0:
		return 0.10
	default:
		// Negative knowledge descends toward the floor. The spec names no
		// explicit lower anchor besides the 0.02 floor, so the descent uses
		// the same span width as the positive low band, clamped at the
		// bottom.
		p := scale(knowledge, -2.0, 0, 0.02, 0.10)
		if p < 0.02 {
			p = 0.02
		}
		return p
	}
}

// scale linearly maps x from [xLo, xHi] into [yLo, yHi], clamping x to the
// source range first.
func scale(x, xLo, xHi, yLo, yHi float64) float64 {
	if x < xLo {
		x = xLo
	}
	if x > xHi {
		x = xHi
	}
	if xHi == xLo {
		return yLo
	}
	t := (x - xLo) / (xHi - xLo)
	return yLo + t*(yHi-yLo)
}

// CardValue ranks an unknown card for add-card selection: higher is more
// valuable to learn next.
func CardValue(probabilityKnown float64, sqrtFrequency float64) float64 {
	return (1 - probabilityKnown) * sqrtFrequency
}

// BiasPoints anchors the regression curve with fixed points so sparsely
// reviewed languages still fit a sane low-frequency/high-frequency prior.
// Weight is expressed by repeating the anchor point weight times, which is
// how PAVA (an unweighted mean-pooling algorithm) represents point weight.
func BiasPoints() []Point {
	return appendRepeated(nil,
		repeatedPoint{x: sqrtOf(1), y: -10, weight: 8},
		repeatedPoint{x: sqrtOf(25), y: 0, weight: 3},
	)
}

type repeatedPoint struct {
	x, y   float64
	weight int
}

func appendRepeated(points []Point, reps ...repeatedPoint) []Point {
	for _, r := range reps {
		for i := 0; i < r.weight; i++ {
			points = append(points, Point{X: r.x, Y: r.y})
		}
	}
	return points
}

func sqrtOf(freq uint32) float64 {
	return math.Sqrt(float64(freq))
}
