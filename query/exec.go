package query

import (
	"math"

	"github.com/Polqt/bolodb/internal/catalog"
	"github.com/Polqt/bolodb/internal/consolidate"
	"github.com/Polqt/bolodb/internal/errs"
	"github.com/Polqt/bolodb/internal/reservoir"
)

// BlockReader is the subset of the DB facade the executor needs: resolving
// a catalog index to its B-tree, and mapping a block id to its cells.
type BlockReader interface {
	Tree(id catalog.IndexID) (Btree, bool)
	Block(id uint64) (Block, error)
}

// Btree is the subset of internal/btree.Btree used here, kept as an
// interface so executor tests can fake it without real slab files.
type Btree interface {
	Find(ts uint64) (value uint64, ok bool, err error)
}

// Block is the subset of internal/block.Block used here.
type Block interface {
	Cells() uint16
	Read(i int) (ts uint64, value float64, err error)
	Link() uint64
}

// series is one stack entry: bucket-aligned values plus the stride they're
// aligned to (bucket.stride, or aggregate.stride after an AGGR op).
type series struct {
	values []float64
	stride int64
}

// Execute runs the planned query against db, returning one result series
// per select field in order.
func Execute(q *Query, resolved []ResolvedField, db BlockReader, now int64) ([][]float64, error) {
	from := now + q.FromSeconds
	until := now + q.UntilSeconds
	if q.UntilSeconds == 0 {
		until = now
	}

	out := make([][]float64, len(resolved))
	for i, rf := range resolved {
		vals, err := execField(q, rf, db, from, until)
		if err != nil {
			return nil, err
		}
		out[i] = vals
	}
	return out, nil
}

func execField(q *Query, rf ResolvedField, db BlockReader, from, until int64) ([]float64, error) {
	var stack []series
	pushIdx := 0
	aggregated := false

	for _, op := range rf.Field.Ops {
		switch op.Kind {
		case OpPush:
			idxSet := rf.PerPush[pushIdx]
			pushIdx++
			vals, err := bucketize(db, idxSet, from, until, q.Bucket)
			if err != nil {
				return nil, err
			}
			stack = append(stack, series{values: vals, stride: q.Bucket.StrideSeconds})

		case OpAdd, OpSub, OpMul, OpDiv:
			if len(stack) < 2 {
				return nil, errs.New(errs.Invalid, "query: binary op on a stack of size %d", len(stack))
			}
			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			combined, err := combine(a, b, op.Kind)
			if err != nil {
				return nil, err
			}
			stack = append(stack, combined)

		case OpAddC, OpSubC, OpMulC, OpDivC:
			if len(stack) < 1 {
				return nil, errs.New(errs.Invalid, "query: scalar op on an empty stack")
			}
			top := stack[len(stack)-1]
			stack[len(stack)-1] = scale(top, op.Imm, op.Kind)

		case OpAggr:
			if len(stack) < 1 {
				return nil, errs.New(errs.Invalid, "query: aggr on an empty stack")
			}
			if aggregated {
				return nil, errs.New(errs.Invalid, "query: nested aggregation is not allowed")
			}
			top := stack[len(stack)-1]
			agg, err := aggregate(top, q.Aggregate)
			if err != nil {
				return nil, err
			}
			stack[len(stack)-1] = agg
			aggregated = true

		case OpReturn:
			if len(stack) != 1 {
				return nil, errs.New(errs.Invalid, "query: return requires exactly one set on the stack, got %d", len(stack))
			}
			top := stack[0]
			if !aggregated && q.Aggregate.StrideSeconds != 0 {
				agg, err := aggregate(top, q.Aggregate)
				if err != nil {
					return nil, err
				}
				top = agg
			}
			return top.values, nil
		}
	}
	return nil, errs.New(errs.Invalid, "query: field op stream has no return")
}

// bucketize is query.c's phase 1: for each [start, finish] bucket, sample
// every cell in range from every resolved index's block chain, then
// summarize with the bucket cf.
func bucketize(db BlockReader, idxSet map[catalog.IndexID]bool, from, until int64, cfg Consolidation) ([]float64, error) {
	stride := cfg.StrideSeconds
	n := int((until - from + stride - 1) / stride)
	if n < 0 {
		n = 0
	}
	values := make([]float64, n)

	for j := 0; j < n; j++ {
		start := uint64(from + int64(j)*stride)
		finish := start + uint64(stride) - 1

		r := reservoir.New(cfg.Samples)
		for id := range idxSet {
			tree, ok := db.Tree(id)
			if !ok {
				continue
			}
			blockID, found, err := tree.Find(start)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			if err := sampleChain(db, blockID, start, finish, r); err != nil {
				return nil, err
			}
		}
		values[j] = consolidate.Value(cfg.CF, r)
	}
	return values, nil
}

// sampleChain walks a block's forward-link chain, sampling every cell
// within [start, finish] and stopping once a block's cells run past finish.
func sampleChain(db BlockReader, blockID uint64, start, finish uint64, r *reservoir.Reservoir) error {
	for {
		b, err := db.Block(blockID)
		if err != nil {
			return err
		}

		exhausted := false
		for i := 0; i < int(b.Cells()); i++ {
			ts, v, err := b.Read(i)
			if err != nil {
				return err
			}
			if ts > finish {
				exhausted = true
				break
			}
			if ts < start {
				continue
			}
			r.Sample(v)
		}
		if exhausted || b.Link() == 0 {
			return nil
		}
		blockID = b.Link()
	}
}

// aggregate is phase 2: fold b2a consecutive bucket values into one
// aggregate-stride value apiece using a fresh reservoir per output slot.
func aggregate(s series, cfg Consolidation) (series, error) {
	if s.stride == 0 || cfg.StrideSeconds%s.stride != 0 {
		return series{}, errs.New(errs.Invalid, "query: aggregate stride %d is not a multiple of bucket stride %d", cfg.StrideSeconds, s.stride)
	}
	b2a := int(cfg.StrideSeconds / s.stride)
	if b2a <= 0 {
		return series{}, errs.New(errs.Invalid, "query: aggregate stride must be a positive multiple of bucket stride")
	}

	n := (len(s.values) + b2a - 1) / b2a
	out := make([]float64, n)
	for j := 0; j < n; j++ {
		r := reservoir.New(cfg.Samples)
		for k := j * b2a; k < (j+1)*b2a && k < len(s.values); k++ {
			if !math.IsNaN(s.values[k]) {
				r.Sample(s.values[k])
			}
		}
		out[j] = consolidate.Value(cfg.CF, r)
	}
	return series{values: out, stride: cfg.StrideSeconds}, nil
}

func combine(a, b series, kind OpKind) (series, error) {
	if len(a.values) != len(b.values) {
		return series{}, errs.New(errs.Invalid, "query: binary op on sets of length %d and %d", len(a.values), len(b.values))
	}
	out := make([]float64, len(a.values))
	for i := range out {
		switch kind {
		case OpAdd:
			out[i] = a.values[i] + b.values[i]
		case OpSub:
			out[i] = a.values[i] - b.values[i]
		case OpMul:
			out[i] = a.values[i] * b.values[i]
		case OpDiv:
			if b.values[i] == 0 {
				out[i] = math.NaN()
			} else {
				out[i] = a.values[i] / b.values[i]
			}
		}
	}
	return series{values: out, stride: a.stride}, nil
}

func scale(s series, imm float64, kind OpKind) series {
	out := make([]float64, len(s.values))
	for i, v := range s.values {
		switch kind {
		case OpAddC:
			out[i] = v + imm
		case OpSubC:
			out[i] = v - imm
		case OpMulC:
			out[i] = v * imm
		case OpDivC:
			if imm == 0 {
				out[i] = math.NaN()
			} else {
				out[i] = v / imm
			}
		}
	}
	return series{values: out, stride: s.stride}
}
