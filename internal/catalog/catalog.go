// Package catalog resolves canonical series strings and tag predicates to
// B-tree index roots. Grounded on original_source/db.c's three hash
// tables, reimplemented over Go maps per the design note that hand-rolled
// hash-bucket linked lists should give way to map iteration rather than
// leaking that plumbing through the API.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// IndexID is a stable identifier for a series' B-tree index, assigned by
// the DB facade at creation time. Catalog entries reference indexes by id
// rather than by pointer, since the DB (not the catalog) owns the index
// list.
type IndexID uint64

// Catalog holds the primary series map plus the two reverse maps rebuilt
// from it on every mount.
type Catalog struct {
	primary map[string]IndexID          // canonical series -> index id
	byOrder []string                    // insertion order, for deterministic main.db serialization
	metric  map[string]map[IndexID]bool // bare metric name -> index set
	tag     map[string]map[IndexID]bool // "k" or "k=v" -> index set
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		primary: make(map[string]IndexID),
		metric:  make(map[string]map[IndexID]bool),
		tag:     make(map[string]map[IndexID]bool),
	}
}

// Lookup returns the index id for an exact canonical series string.
func (c *Catalog) Lookup(series string) (IndexID, bool) {
	id, ok := c.primary[series]
	return id, ok
}

// Insert records series -> id in the primary map if not already present,
// and always (re-)populates the by-metric and by-tag reverse indexes for
// it. Returns whether a new primary entry was created.
func (c *Catalog) Insert(series string, id IndexID) (created bool, err error) {
	if _, ok := c.primary[series]; !ok {
		c.primary[series] = id
		c.byOrder = append(c.byOrder, series)
		created = true
	} else {
		id = c.primary[series]
	}

	metric, tags, ok := splitSeries(series)
	if !ok {
		return created, fmt.Errorf("catalog: malformed series %q", series)
	}

	c.addToSet(c.metric, metric, id)

	for _, tag := range ParseTags(tags) {
		c.addToSet(c.tag, tag.Key, id)
		c.addToSet(c.tag, tag.Key+"="+tag.Value, id)
	}

	return created, nil
}

func (c *Catalog) addToSet(m map[string]map[IndexID]bool, key string, id IndexID) {
	set, ok := m[key]
	if !ok {
		set = make(map[IndexID]bool)
		m[key] = set
	}
	set[id] = true
}

// ByMetric returns the set of index ids whose series matches the given
// bare metric name.
func (c *Catalog) ByMetric(metric string) map[IndexID]bool {
	return c.metric[metric]
}

// ByTag returns the set of index ids matching a tag predicate key, where
// key is either "tagname" (existence) or "tagname=value" (equality).
func (c *Catalog) ByTag(key string) map[IndexID]bool {
	return c.tag[key]
}

// Series returns every canonical series string in insertion order, for
// serialization to main.db.
func (c *Catalog) Series() []string {
	out := make([]string, len(c.byOrder))
	copy(out, c.byOrder)
	return out
}

// Rebuild clears and recomputes the by-metric and by-tag reverse indexes
// by walking the primary map, exactly as DB.Mount does after
// deserializing main.db (only the primary is ever persisted).
func (c *Catalog) Rebuild() error {
	c.metric = make(map[string]map[IndexID]bool)
	c.tag = make(map[string]map[IndexID]bool)

	series := c.Series()
	sort.Strings(series) // deterministic rebuild order, not semantically required
	for _, s := range series {
		id := c.primary[s]
		metric, tags, ok := splitSeries(s)
		if !ok {
			return fmt.Errorf("catalog: malformed series %q in primary map", s)
		}
		c.addToSet(c.metric, metric, id)
		for _, tag := range ParseTags(tags) {
			c.addToSet(c.tag, tag.Key, id)
			c.addToSet(c.tag, tag.Key+"="+tag.Value, id)
		}
	}
	return nil
}

// CanonicalSeries joins a metric name and an already-canonicalized tag
// string into the `metric|k=v,...` form.
func CanonicalSeries(metric, canonTags string) string {
	return metric + "|" + canonTags
}

func splitSeries(series string) (metric, tags string, ok bool) {
	i := strings.IndexByte(series, '|')
	if i < 0 {
		return "", "", false
	}
	return series[:i], series[i+1:], true
}
