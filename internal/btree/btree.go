package btree

import (
	"github.com/Polqt/bolodb/internal/errs"
)

// Btree is a single index: an eager-split B-tree rooted at a node in an
// Allocator-managed set of slab files, keyed by timestamp and valued by
// block-id (leaves) or child node-id (interior nodes).
type Btree struct {
	alloc *Allocator
	root  NodeID
}

// New allocates a fresh, empty root leaf and returns the tree rooted there.
func New(alloc *Allocator) (*Btree, error) {
	root, err := alloc.New(true)
	if err != nil {
		return nil, err
	}
	return &Btree{alloc: alloc, root: root.id}, nil
}

// Open attaches to an existing tree given its root node id (recovered from
// main.db on mount).
func Open(alloc *Allocator, root NodeID) *Btree {
	return &Btree{alloc: alloc, root: root}
}

// Root returns the current root node id, to be persisted in main.db.
func (t *Btree) Root() NodeID { return t.root }

// sfind is the binary search for the smallest index whose key is >= target,
// matching btree.c's s_find.
func sfind(n *Node, key uint64) int {
	used := n.Used()
	lo, hi := 0, used
	for lo < hi {
		mid := (lo + hi) / 2
		if n.Key(mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Find returns the value associated with the greatest key <= ts, matching
// btree.c's nearest-lesser-or-equal btree_find semantics. An empty tree, or
// a lookup below every stored key, reports ok=false.
func (t *Btree) Find(ts uint64) (value uint64, ok bool, err error) {
	id := t.root
	for {
		n, err := t.alloc.Get(id)
		if err != nil {
			return 0, false, err
		}
		if n.Leaf() {
			used := n.Used()
			if used == 0 {
				return 0, false, nil
			}
			i := sfind(n, ts)
			if i < used && n.Key(i) == ts {
				return n.Value(i), true, nil
			}
			if i == 0 {
				return 0, false, nil
			}
			return n.Value(i - 1), true, nil
		}
		i := sfind(n, ts)
		if i < n.Used() && n.Key(i) == ts {
			i++
		}
		id = NodeID(n.Value(i))
	}
}

// splitResult carries a promoted median key plus the new right sibling
// back up to the caller after a node splits.
type splitResult struct {
	median uint64
	right  NodeID
}

// Insert writes (ts, value) into the tree, overwriting the value if ts
// already exists as a leaf key.
func (t *Btree) Insert(ts uint64, value uint64) error {
	root, err := t.alloc.Get(t.root)
	if err != nil {
		return err
	}

	split, err := t.insert(root, ts, value)
	if err != nil {
		return err
	}
	if split == nil {
		return nil
	}

	// The root itself split: clone it into a new left sibling, and
	// reinitialize the root page as the interior [left, median, right].
	left, err := t.alloc.New(root.Leaf())
	if err != nil {
		return err
	}
	copyNode(left, root)

	root.setLeaf(false)
	root.setUsed(1)
	root.setKey(0, split.median)
	root.setValue(0, uint64(left.id))
	root.setValue(1, uint64(split.right))
	return nil
}

// copyNode duplicates src's full key/value contents into dst, preserving
// its leaf flag.
func copyNode(dst, src *Node) {
	dst.setLeaf(src.Leaf())
	used := src.Used()
	dst.setUsed(used)
	for i := 0; i < used; i++ {
		dst.setKey(i, src.Key(i))
	}
	valCount := used
	if !src.Leaf() {
		valCount = used + 1
	}
	for i := 0; i < valCount; i++ {
		dst.setValue(i, src.Value(i))
	}
}

// insert recurses to the target leaf, writes the key in sorted position,
// and reports a split back to the caller when the node overflows.
func (t *Btree) insert(n *Node, ts, value uint64) (*splitResult, error) {
	if n.Leaf() {
		used := n.Used()
		i := sfind(n, ts)
		if i < used && n.Key(i) == ts {
			n.setValue(i, value)
			return nil, nil
		}
		n.shiftRight(i)
		n.setKey(i, ts)
		n.setValue(i, value)
		n.setUsed(used + 1)

		if n.Used() >= Degree {
			return t.splitLeaf(n)
		}
		return nil, nil
	}

	i := sfind(n, ts)
	if i < n.Used() && n.Key(i) == ts {
		i++
	}
	child, err := t.alloc.Get(NodeID(n.Value(i)))
	if err != nil {
		return nil, err
	}
	split, err := t.insert(child, ts, value)
	if err != nil || split == nil {
		return nil, err
	}

	used := n.Used()
	n.shiftRight(i)
	n.setKey(i, split.median)
	n.setValue(i+1, uint64(split.right))
	n.setUsed(used + 1)

	if n.Used() >= Degree {
		return t.splitInterior(n)
	}
	return nil, nil
}

// splitLeaf divides an overflowing leaf, keeping splitAt() keys on the
// left and copying the remainder (including the median) to a new right
// sibling, since leaf values have no separate "promoted" slot.
func (t *Btree) splitLeaf(n *Node) (*splitResult, error) {
	mid := splitAt()
	used := n.Used()

	right, err := t.alloc.New(true)
	if err != nil {
		return nil, err
	}
	rightCount := used - mid
	for i := 0; i < rightCount; i++ {
		right.setKey(i, n.Key(mid+i))
		right.setValue(i, n.Value(mid+i))
	}
	right.setUsed(rightCount)
	n.setUsed(mid)

	return &splitResult{median: right.Key(0), right: right.id}, nil
}

// splitInterior divides an overflowing interior node: the key at mid is
// promoted (not duplicated into either sibling), with children straddling
// it distributed accordingly.
func (t *Btree) splitInterior(n *Node) (*splitResult, error) {
	mid := splitAt()
	used := n.Used()
	median := n.Key(mid)

	right, err := t.alloc.New(false)
	if err != nil {
		return nil, err
	}
	rightCount := used - mid - 1
	for i := 0; i < rightCount; i++ {
		right.setKey(i, n.Key(mid+1+i))
	}
	for i := 0; i <= rightCount; i++ {
		right.setValue(i, n.Value(mid+1+i))
	}
	right.setUsed(rightCount)
	n.setUsed(mid)

	return &splitResult{median: median, right: right.id}, nil
}

// IsEmpty reports whether the tree has never had a value inserted.
func (t *Btree) IsEmpty() (bool, error) {
	n, err := t.alloc.Get(t.root)
	if err != nil {
		return false, err
	}
	return n.Leaf() && n.Used() == 0, nil
}

// First returns the value at the smallest key in the tree.
func (t *Btree) First() (ts, value uint64, err error) {
	id := t.root
	for {
		n, err := t.alloc.Get(id)
		if err != nil {
			return 0, 0, err
		}
		if n.Leaf() {
			if n.Used() == 0 {
				return 0, 0, errs.New(errs.NoSuchRef, "btree: empty tree has no first key")
			}
			return n.Key(0), n.Value(0), nil
		}
		id = NodeID(n.Value(0))
	}
}

// Last returns the value at the greatest key in the tree.
func (t *Btree) Last() (ts, value uint64, err error) {
	id := t.root
	for {
		n, err := t.alloc.Get(id)
		if err != nil {
			return 0, 0, err
		}
		if n.Leaf() {
			used := n.Used()
			if used == 0 {
				return 0, 0, errs.New(errs.NoSuchRef, "btree: empty tree has no last key")
			}
			return n.Key(used - 1), n.Value(used - 1), nil
		}
		id = NodeID(n.Value(n.Used()))
	}
}
