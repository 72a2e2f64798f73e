// Package consolidate dispatches a reservoir's running statistics into
// one of the enumerated consolidation functions, grounded on
// original_source/cf.c's cf_value() switch.
package consolidate

import (
	"fmt"

	"github.com/Polqt/bolodb/internal/reservoir"
)

// CF names one of the enumerated consolidation functions.
type CF int

const (
	Min CF = iota
	Max
	Sum
	Mean
	Median
	Stdev
	Variance
	Delta
)

func (cf CF) String() string {
	switch cf {
	case Min:
		return "min"
	case Max:
		return "max"
	case Sum:
		return "sum"
	case Mean:
		return "mean"
	case Median:
		return "median"
	case Stdev:
		return "stdev"
	case Variance:
		return "variance"
	case Delta:
		return "delta"
	default:
		return "unknown"
	}
}

// Parse maps a lowercase CF name to its CF value.
func Parse(name string) (CF, error) {
	switch name {
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	case "sum":
		return Sum, nil
	case "mean", "avg", "average":
		return Mean, nil
	case "median":
		return Median, nil
	case "stdev":
		return Stdev, nil
	case "variance", "var":
		return Variance, nil
	case "delta":
		return Delta, nil
	default:
		return 0, fmt.Errorf("consolidate: unknown consolidation function %q", name)
	}
}

// Value reports r's summary statistic for the given consolidation function.
func Value(cf CF, r *reservoir.Reservoir) float64 {
	switch cf {
	case Min:
		return r.Min()
	case Max:
		return r.Max()
	case Sum:
		return r.Sum()
	case Mean:
		return r.Mean()
	case Median:
		return r.Median()
	case Stdev:
		return r.Stdev()
	case Variance:
		return r.Variance()
	case Delta:
		return r.Delta()
	default:
		return r.Mean()
	}
}
