package query

import (
	"math"
	"testing"

	"github.com/Polqt/bolodb/internal/catalog"
	"github.com/Polqt/bolodb/internal/consolidate"
	"github.com/stretchr/testify/require"
)

// fakeBlock is an in-memory stand-in for internal/block.Block, letting the
// executor be tested without real mmap'd slab files.
type fakeBlock struct {
	cells []struct {
		ts uint64
		v  float64
	}
	link uint64
}

func (b *fakeBlock) Cells() uint16 { return uint16(len(b.cells)) }
func (b *fakeBlock) Link() uint64  { return b.link }
func (b *fakeBlock) Read(i int) (uint64, float64, error) {
	c := b.cells[i]
	return c.ts, c.v, nil
}

type fakeTree struct {
	// sorted ascending; Find returns the entry with the greatest key <= ts.
	entries []struct {
		ts      uint64
		blockID uint64
	}
}

func (t *fakeTree) Find(ts uint64) (uint64, bool, error) {
	var best *uint64
	for _, e := range t.entries {
		if e.ts <= ts {
			id := e.blockID
			best = &id
		}
	}
	if best == nil {
		return 0, false, nil
	}
	return *best, true, nil
}

type fakeReader struct {
	trees  map[catalog.IndexID]*fakeTree
	blocks map[uint64]*fakeBlock
}

func (r *fakeReader) Tree(id catalog.IndexID) (Btree, bool) {
	t, ok := r.trees[id]
	return t, ok
}

func (r *fakeReader) Block(id uint64) (Block, error) {
	b, ok := r.blocks[id]
	if !ok {
		return nil, errNotFound
	}
	return b, nil
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "block not found" }

func newFixture() *fakeReader {
	block0 := &fakeBlock{cells: []struct {
		ts uint64
		v  float64
	}{{0, 10}, {30, 20}, {60, 30}, {90, 40}}}

	return &fakeReader{
		trees: map[catalog.IndexID]*fakeTree{
			1: {entries: []struct {
				ts      uint64
				blockID uint64
			}{{0, 100}}},
		},
		blocks: map[uint64]*fakeBlock{100: block0},
	}
}

func TestBucketizeSummarizesCellsPerStride(t *testing.T) {
	r := newFixture()
	idxSet := map[catalog.IndexID]bool{1: true}

	vals, err := bucketize(r, idxSet, 0, 120, Consolidation{CF: consolidate.Mean, StrideSeconds: 60, Samples: 16})
	require.NoError(t, err)
	require.Len(t, vals, 2)
	require.InDelta(t, 15.0, vals[0], 0.0001) // mean(10, 20) for ts in [0,59]
	require.InDelta(t, 35.0, vals[1], 0.0001) // mean(30, 40) for ts in [60,119]
}

func TestExecuteSimplePushReturn(t *testing.T) {
	r := newFixture()
	q := &Query{
		Select: []Field{
			{Name: "cpu", Ops: []Op{{Kind: OpPush, Metric: "cpu"}, {Kind: OpReturn}}},
		},
		FromSeconds:  0,
		UntilSeconds: 120,
		Bucket:       Consolidation{CF: consolidate.Mean, StrideSeconds: 60, Samples: 16},
	}
	resolved := []ResolvedField{
		{Field: q.Select[0], PerPush: []map[catalog.IndexID]bool{{1: true}}},
	}

	out, err := Execute(q, resolved, r, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.InDelta(t, 15.0, out[0][0], 0.0001)
	require.InDelta(t, 35.0, out[0][1], 0.0001)
}

func TestExecuteDivideByZeroYieldsNaN(t *testing.T) {
	a := series{values: []float64{1, 2}, stride: 60}
	b := series{values: []float64{0, 2}, stride: 60}
	out, err := combine(a, b, OpDiv)
	require.NoError(t, err)
	require.True(t, math.IsNaN(out.values[0]))
	require.InDelta(t, 1.0, out.values[1], 0.0001)
}

func TestAggregateRejectsNonMultipleStride(t *testing.T) {
	s := series{values: []float64{1, 2, 3}, stride: 60}
	_, err := aggregate(s, Consolidation{CF: consolidate.Mean, StrideSeconds: 70, Samples: 16})
	require.Error(t, err)
}

func TestApplyDefaultsFillsNamesAndWindow(t *testing.T) {
	q := &Query{Select: []Field{{Ops: []Op{{Kind: OpPush, Metric: "cpu"}, {Kind: OpReturn}}}}}
	ApplyDefaults(q)

	require.Equal(t, "metric_1", q.Select[0].Name)
	require.EqualValues(t, -14400, q.FromSeconds)
	require.EqualValues(t, 0, q.UntilSeconds)
	require.EqualValues(t, 60, q.Bucket.StrideSeconds)
	require.EqualValues(t, 2048, q.Bucket.Samples)
	require.Equal(t, consolidate.Median, q.Bucket.CF)
}

func TestValidateRejectsEmptySelectAndBackwardsWindow(t *testing.T) {
	require.Error(t, Validate(&Query{}))
	require.Error(t, Validate(&Query{
		Select:       []Field{{Name: "a"}},
		FromSeconds:  100,
		UntilSeconds: 50,
	}))
}
