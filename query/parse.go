package query

import (
	"strings"

	"github.com/Polqt/bolodb/internal/errs"
)

// ParseSimple parses the minimal query surface the BQIP protocol test
// vectors exercise: "SELECT <metric> [FROM <key>=<value>]". It's
// intentionally narrow — a single pushed metric, an optional equality
// where-clause, no arithmetic ops — since a full query grammar is outside
// this package's scope; richer queries can be constructed directly via
// the Query/Field/Op types.
func ParseSimple(payload string) (*Query, error) {
	fields := strings.Fields(payload)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "SELECT") {
		return nil, errs.New(errs.Invalid, "query: expected \"SELECT <metric> ...\", got %q", payload)
	}
	metric := fields[1]

	var where Where
	if len(fields) >= 4 && strings.EqualFold(fields[2], "FROM") {
		kv := fields[3]
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			return nil, errs.New(errs.Invalid, "query: malformed predicate %q", kv)
		}
		where = EQ{Key: kv[:i], Value: kv[i+1:]}
	}

	q := &Query{
		Select: []Field{{
			Name: metric,
			Ops: []Op{
				{Kind: OpPush, Metric: metric},
				{Kind: OpReturn},
			},
		}},
		Where: where,
	}
	ApplyDefaults(q)
	return q, nil
}
