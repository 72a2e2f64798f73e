package query

import (
	"fmt"

	"github.com/Polqt/bolodb/internal/catalog"
	"github.com/Polqt/bolodb/internal/consolidate"
	"github.com/Polqt/bolodb/internal/errs"
)

const (
	defaultWindowFromSeconds = -14400 // 4h
	defaultWindowUntil       = 0
	defaultBucketStride      = 60
	defaultBucketSamples     = 2048
)

// ApplyDefaults fills in field names, the default time window, and the
// default bucket stride and sample count wherever the parser left a zero
// value, and a default CF of Median wherever CFSet is false, matching the
// planner's fill-defaults step.
func ApplyDefaults(q *Query) {
	for i := range q.Select {
		if q.Select[i].Name == "" {
			q.Select[i].Name = fmt.Sprintf("metric_%d", i+1)
		}
	}
	if q.FromSeconds == 0 && q.UntilSeconds == 0 {
		q.FromSeconds = defaultWindowFromSeconds
		q.UntilSeconds = defaultWindowUntil
	}
	if q.Bucket.StrideSeconds == 0 {
		q.Bucket.StrideSeconds = defaultBucketStride
	}
	if q.Bucket.Samples == 0 {
		q.Bucket.Samples = defaultBucketSamples
	}
	if !q.Bucket.CFSet {
		q.Bucket.CF = consolidate.Median
		q.Bucket.CFSet = true
	}
	if q.Aggregate.StrideSeconds != 0 && !q.Aggregate.CFSet {
		q.Aggregate.CF = consolidate.Median
		q.Aggregate.CFSet = true
	}
	if q.Aggregate.StrideSeconds != 0 && q.Aggregate.Samples == 0 {
		q.Aggregate.Samples = defaultBucketSamples
	}
}

// Validate rejects a query with no select list, or a window that's empty
// or backwards.
func Validate(q *Query) error {
	if len(q.Select) == 0 {
		return errs.New(errs.Invalid, "query: select list is empty")
	}
	if q.UntilSeconds <= q.FromSeconds {
		return errs.New(errs.Invalid, "query: window [%d, %d) is empty or backwards", q.FromSeconds, q.UntilSeconds)
	}
	return nil
}

// ResolvedField pairs a field with the catalog index set each of its PUSH
// ops resolved to, after intersecting with the where-predicate.
type ResolvedField struct {
	Field   Field
	PerPush []map[catalog.IndexID]bool // parallel to the PUSH ops in Field.Ops, in order
}

// Plan resolves every PUSH op's metric to a catalog index set, keeping
// only indexes that also satisfy the where-predicate.
func Plan(q *Query, cat *catalog.Catalog) ([]ResolvedField, error) {
	if err := Validate(q); err != nil {
		return nil, err
	}

	out := make([]ResolvedField, len(q.Select))
	for i, f := range q.Select {
		rf := ResolvedField{Field: f}
		for _, op := range f.Ops {
			if op.Kind != OpPush {
				continue
			}
			candidates := cat.ByMetric(op.Metric)
			matched := make(map[catalog.IndexID]bool, len(candidates))
			for id := range candidates {
				if q.Where == nil || q.Where.evaluate(id, cat) {
					matched[id] = true
				}
			}
			rf.PerPush = append(rf.PerPush, matched)
		}
		out[i] = rf
	}
	return out, nil
}
