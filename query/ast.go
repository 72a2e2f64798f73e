// Package query implements the query language's planner and executor:
// full query parsing is assumed done upstream (bqip only frames the query
// text; ParseSimple here handles one narrow form), this package owns default
// filling, catalog resolution, and the stack-machine execution described
// in spec terms as PUSH/ADD/SUB/MUL/DIV/ADDC/SUBC/MULC/DIVC/AGGR/RETURN.
// Grounded on original_source/query.c's two-phase bucket/aggregate
// consolidation model.
package query

import (
	"github.com/Polqt/bolodb/internal/catalog"
	"github.com/Polqt/bolodb/internal/consolidate"
)

// OpKind identifies one stack-machine instruction.
type OpKind int

const (
	OpPush OpKind = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAddC
	OpSubC
	OpMulC
	OpDivC
	OpAggr
	OpReturn
)

// Op is one instruction in a field's op stream.
type Op struct {
	Kind   OpKind
	Metric string          // set on OpPush
	Imm    float64         // set on the *C scalar ops
	CF     consolidate.CF  // set on OpAggr
}

// Field is one result column: a name plus its op stream.
type Field struct {
	Name string
	Ops  []Op
}

// Where is a boolean predicate over catalog tag membership.
type Where interface {
	evaluate(id catalog.IndexID, cat *catalog.Catalog) bool
}

// EQ matches "key=value" tag membership exactly.
type EQ struct{ Key, Value string }

func (e EQ) evaluate(id catalog.IndexID, cat *catalog.Catalog) bool {
	return cat.ByTag(e.Key+"="+e.Value)[id]
}

// Exist matches any value for key.
type Exist struct{ Key string }

func (e Exist) evaluate(id catalog.IndexID, cat *catalog.Catalog) bool {
	return cat.ByTag(e.Key)[id]
}

// Not negates a sub-predicate.
type Not struct{ X Where }

func (n Not) evaluate(id catalog.IndexID, cat *catalog.Catalog) bool {
	return !n.X.evaluate(id, cat)
}

// And requires both sub-predicates.
type And struct{ L, R Where }

func (a And) evaluate(id catalog.IndexID, cat *catalog.Catalog) bool {
	return a.L.evaluate(id, cat) && a.R.evaluate(id, cat)
}

// Or requires either sub-predicate.
type Or struct{ L, R Where }

func (o Or) evaluate(id catalog.IndexID, cat *catalog.Catalog) bool {
	return o.L.evaluate(id, cat) || o.R.evaluate(id, cat)
}

// Consolidation configures one phase of bucket/aggregate reduction. CFSet
// distinguishes "the parser never specified a cf" from "the parser chose
// Min" (CF's zero value), since ApplyDefaults needs to fall back to Median
// only in the former case.
type Consolidation struct {
	CF            consolidate.CF
	CFSet         bool
	StrideSeconds int64
	Samples       int
}

// Query is the parsed AST: a select list, an optional where predicate, a
// relative time window, and the bucket/aggregate consolidation configs.
type Query struct {
	Select []Field
	Where  Where

	FromSeconds  int64 // relative to Now, typically negative
	UntilSeconds int64 // 0 means "now"

	Bucket    Consolidation
	Aggregate Consolidation // Aggregate.StrideSeconds == 0 means "no aggregate phase"
}
