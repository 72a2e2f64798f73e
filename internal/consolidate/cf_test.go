package consolidate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Polqt/bolodb/internal/reservoir"
)

func TestValueMean(t *testing.T) {
	r := reservoir.New(8)
	require.True(t, math.IsNaN(Value(Mean, r)))

	for _, pair := range []struct {
		v, want float64
	}{
		{0.0, 0.0},
		{1.0, 0.5},
		{2.0, 1.0},
		{3.0, 1.5},
		{15.0, 4.2},
		{5.0, 4.3333},
	} {
		r.Sample(pair.v)
		require.InDelta(t, pair.want, Value(Mean, r), 0.001)
	}
}

func TestValueVariance(t *testing.T) {
	r := reservoir.New(8)
	for _, pair := range []struct {
		v, want float64
	}{
		{10.0, math.NaN()},
		{2.0, 32.0},
		{38.0, 357.3333},
		{23.0, 248.25},
		{38.0, 264.2},
		{23.0, 211.4666},
		{21.0, 176.47619},
	} {
		r.Sample(pair.v)
		if math.IsNaN(pair.want) {
			require.True(t, math.IsNaN(Value(Variance, r)))
			continue
		}
		require.InDelta(t, pair.want, Value(Variance, r), 0.001)
	}
}

func TestValueMinMaxSumDelta(t *testing.T) {
	r := reservoir.New(8)
	require.True(t, math.IsNaN(Value(Min, r)))
	require.True(t, math.IsNaN(Value(Max, r)))
	require.True(t, math.IsNaN(Value(Sum, r)))
	require.Equal(t, 0.0, Value(Delta, r))

	r.Sample(2.0)
	require.Equal(t, 2.0, Value(Min, r))
	require.Equal(t, 2.0, Value(Max, r))
	require.Equal(t, 2.0, Value(Sum, r))
	require.Equal(t, 0.0, Value(Delta, r))

	r.Sample(1.0)
	require.Equal(t, 1.0, Value(Min, r))
	require.Equal(t, 2.0, Value(Max, r))
	require.Equal(t, 3.0, Value(Sum, r))
	require.Equal(t, -1.0, Value(Delta, r))

	r.Sample(3.0)
	require.Equal(t, 1.0, Value(Min, r))
	require.Equal(t, 3.0, Value(Max, r))
	require.Equal(t, 6.0, Value(Sum, r))
	require.Equal(t, 1.0, Value(Delta, r))
}

func TestParseRoundTripsWithString(t *testing.T) {
	for _, name := range []string{"min", "max", "sum", "mean", "median", "stdev", "variance", "delta"} {
		cf, err := Parse(name)
		require.NoError(t, err)
		_ = cf.String()
	}

	_, err := Parse("bogus")
	require.Error(t, err)
}
