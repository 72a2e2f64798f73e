// Package reservoir implements bounded-memory sampling with running
// summary statistics, grounded on original_source/rsv.c (Algorithm R
// reservoir sampling) and the Welford-algorithm moments in
// original_source/cf.c. Unlike the original, which allocated a distinct,
// narrowly-sized struct per consolidation function, Reservoir tracks every
// running statistic unconditionally; internal/consolidate picks which one
// to report.
package reservoir

import (
	"math"
	"math/rand"
	"sort"
)

// Reservoir holds up to cap sampled values along with running sum, min,
// max, Welford mean/variance accumulators, and first/last for delta.
type Reservoir struct {
	cap   int
	items []float64
	n     int // total number of values ever sampled, unclamped

	sum      float64
	min, max float64

	mean, m2 float64

	first, last    float64
	haveFirst      bool
	carry          float64
	carrySet       bool
}

// New returns a reservoir with the given sample capacity.
func New(cap int) *Reservoir {
	if cap < 1 {
		cap = 1
	}
	return &Reservoir{cap: cap, items: make([]float64, 0, cap)}
}

// Cap reports the reservoir's sample capacity.
func (r *Reservoir) Cap() int { return r.cap }

// N reports the total number of values sampled since the last Reset.
func (r *Reservoir) N() int { return r.n }

// Reset clears the reservoir for a new bucket, remembering the last
// sampled value as a carry so a subsequent Delta() call can measure
// across the reset (used for running-delta semantics over multiple
// consecutive buckets of the same series).
func (r *Reservoir) Reset() {
	if r.haveFirst {
		r.carry = r.last
		r.carrySet = true
	}
	r.items = r.items[:0]
	r.n = 0
	r.sum, r.min, r.max = 0, 0, 0
	r.mean, r.m2 = 0, 0
	r.first, r.last, r.haveFirst = 0, 0, false
}

// Sample records v into the reservoir, updating every running statistic.
func (r *Reservoir) Sample(v float64) {
	if r.n == 0 {
		r.min, r.max = v, v
	} else {
		if v < r.min {
			r.min = v
		}
		if v > r.max {
			r.max = v
		}
	}
	r.sum += v

	delta1 := v - r.mean
	r.mean += delta1 / float64(r.n+1)
	delta2 := v - r.mean
	r.m2 += delta1 * delta2

	if !r.haveFirst {
		if r.carrySet {
			r.first = r.carry
		} else {
			r.first = v
		}
		r.haveFirst = true
	}
	r.last = v

	if r.n == len(r.items) && len(r.items) < r.cap {
		r.items = append(r.items, v)
	} else {
		j := rand.Intn(r.n + 1)
		if j < r.cap {
			r.items[j] = v
		}
	}

	r.n++
}

// Min returns the smallest sampled value, or NaN if empty.
func (r *Reservoir) Min() float64 {
	if r.n == 0 {
		return math.NaN()
	}
	return r.min
}

// Max returns the largest sampled value, or NaN if empty.
func (r *Reservoir) Max() float64 {
	if r.n == 0 {
		return math.NaN()
	}
	return r.max
}

// Sum returns the sum of every sampled value, or NaN if empty.
func (r *Reservoir) Sum() float64 {
	if r.n == 0 {
		return math.NaN()
	}
	return r.sum
}

// Mean returns the Welford-computed online mean, or NaN if empty.
func (r *Reservoir) Mean() float64 {
	if r.n == 0 {
		return math.NaN()
	}
	return r.mean
}

// Variance returns the sample variance (Welford's m2 / (n-1)), or NaN if
// fewer than two samples were taken.
func (r *Reservoir) Variance() float64 {
	if r.n < 2 {
		return math.NaN()
	}
	return r.m2 / float64(r.n-1)
}

// Stdev returns the sample standard deviation, or NaN if fewer than two
// samples were taken.
func (r *Reservoir) Stdev() float64 {
	v := r.Variance()
	if math.IsNaN(v) {
		return v
	}
	return math.Sqrt(v)
}

// Median returns the median of the values currently held in the reservoir
// (exact when n <= cap, an estimate otherwise), or NaN if empty.
func (r *Reservoir) Median() float64 {
	if len(r.items) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), r.items...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return sorted[mid-1]/2.0 + sorted[mid]/2.0
	}
	return sorted[mid]
}

// Delta returns the last sampled value minus the first, or 0 if empty.
// If Reset carried a value forward, that carried value stands in for the
// "first" sample, giving running-delta semantics across buckets.
func (r *Reservoir) Delta() float64 {
	if r.n == 0 {
		return 0
	}
	return r.last - r.first
}
