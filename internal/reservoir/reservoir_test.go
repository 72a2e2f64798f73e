package reservoir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyReservoirSummariesAreNaN(t *testing.T) {
	r := New(5)
	require.True(t, math.IsNaN(r.Min()))
	require.True(t, math.IsNaN(r.Max()))
	require.True(t, math.IsNaN(r.Sum()))
	require.True(t, math.IsNaN(r.Mean()))
	require.True(t, math.IsNaN(r.Median()))
	require.Equal(t, 0.0, r.Delta())
}

func TestReservoirBelowCapacitySummaries(t *testing.T) {
	r := New(5)
	for _, v := range []float64{0, 1, 2, 3} {
		r.Sample(v)
	}
	require.InDelta(t, 0.0, r.Min(), 0.001)
	require.InDelta(t, 3.0, r.Max(), 0.001)
	require.InDelta(t, 6.0, r.Sum(), 0.001)
	require.InDelta(t, 1.5, r.Mean(), 0.001)
	require.InDelta(t, 1.5, r.Median(), 0.001)
}

func TestReservoirAtCapacitySummaries(t *testing.T) {
	r := New(5)
	for _, v := range []float64{0, 1, 2, 3, 4} {
		r.Sample(v)
	}
	require.InDelta(t, 0.0, r.Min(), 0.001)
	require.InDelta(t, 4.0, r.Max(), 0.001)
	require.InDelta(t, 10.0, r.Sum(), 0.001)
	require.InDelta(t, 2.0, r.Mean(), 0.001)
	require.InDelta(t, 2.0, r.Median(), 0.001)
}

func TestReservoirCapacityNeverExceeded(t *testing.T) {
	r := New(5)
	for _, v := range []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9} {
		r.Sample(v)
	}
	require.Equal(t, 5, len(r.items))
	require.Equal(t, 10, r.N())
}

// Scenario 6 from the literal test suite: capacity 5, fed 0..4 -> median
// 2.0; fed 0..3 (a fresh reservoir) -> median 1.5.
func TestReservoirMedianScenario(t *testing.T) {
	full := New(5)
	for _, v := range []float64{0, 1, 2, 3, 4} {
		full.Sample(v)
	}
	require.Equal(t, 2.0, full.Median())

	partial := New(5)
	for _, v := range []float64{0, 1, 2, 3} {
		partial.Sample(v)
	}
	require.Equal(t, 1.5, partial.Median())
}

func TestReservoirVarianceAndStdevSequence(t *testing.T) {
	r := New(5)
	require.True(t, math.IsNaN(r.Stdev()))

	r.Sample(10.0)
	require.True(t, math.IsNaN(r.Stdev()))

	r.Sample(2.0)
	require.InDelta(t, 5.6568, r.Stdev(), 0.0001)
	require.InDelta(t, 32.0, r.Variance(), 0.0001)

	r.Sample(38.0)
	require.InDelta(t, 18.9033, r.Stdev(), 0.0001)
	require.InDelta(t, 357.3333, r.Variance(), 0.0001)

	r.Sample(23.0)
	require.InDelta(t, 15.75595, r.Stdev(), 0.0001)
	require.InDelta(t, 248.25, r.Variance(), 0.0001)
}

func TestReservoirDeltaCarriesAcrossReset(t *testing.T) {
	r := New(5)
	r.Sample(2.0)
	r.Sample(1.0)
	require.Equal(t, -1.0, r.Delta())

	r.Reset()
	r.Sample(5.0)
	require.Equal(t, 4.0, r.Delta()) // measured against the carried-over last value (1.0)

	r.Sample(9.0)
	require.Equal(t, 8.0, r.Delta())
}
