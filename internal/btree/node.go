// Package btree implements the on-disk B-tree index keyed by timestamp and
// valued by block-id (or, for interior nodes, by child node-id). Grounded on
// original_source/btree.c: the eager-split insertion algorithm, the
// nearest-lesser-or-equal find semantics, and the hex-path slab-file
// allocator all carry over; the hand-rolled page struct is replaced by
// internal/page, and child pointers live only in the on-disk value array
// (no parallel in-memory kids array) since every node is mmap'd directly.
package btree

import (
	"github.com/Polqt/bolodb/internal/errs"
	"github.com/Polqt/bolodb/internal/page"
)

const (
	// PageSize is the fixed size of a btree node page.
	PageSize = 8192

	// Degree is the maximum number of keys a node holds before it splits.
	// Derived from the page layout: 8 (header) + Degree*8 (keys) +
	// (Degree+1)*8 (values/children) == PageSize.
	Degree = 511

	// SplitFactor biases the left sibling of a split towards fuller
	// occupancy, matching the "eager split" behavior for write-mostly,
	// monotonically increasing timestamp workloads.
	SplitFactor = 0.9

	headerLen = 8
	keysOff   = headerLen
	valuesOff = keysOff + Degree*8

	offMagic = 0 // 5 bytes, "BTREE"
	offFlags = 5 // 1 byte, bit 0x80 = leaf
	offUsed  = 6 // u16

	leafFlag = 0x80
)

var magic = [5]byte{'B', 'T', 'R', 'E', 'E'}

// splitAt is the number of keys the left sibling keeps on a split.
func splitAt() int {
	return int(float64(Degree) * SplitFactor)
}

// NodeID identifies a node's page, globally across all slab files.
type NodeID uint64

// Node is one mmap'd 8 KiB btree page.
type Node struct {
	id NodeID
	pg *page.Page
}

func newNode(id NodeID, pg *page.Page) *Node {
	return &Node{id: id, pg: pg}
}

// initEmpty stamps a freshly allocated page as an empty node.
func (n *Node) initEmpty(leaf bool) {
	for i, b := range magic {
		n.pg.WriteU8(offMagic+i, b)
	}
	var flags uint8
	if leaf {
		flags = leafFlag
	}
	n.pg.WriteU8(offFlags, flags)
	n.pg.WriteU16(offUsed, 0)
}

func (n *Node) checkMagic() error {
	for i, b := range magic {
		got, err := n.pg.ReadU8(offMagic + i)
		if err != nil {
			return err
		}
		if got != b {
			return errs.New(errs.BadTree, "btree: bad node magic at id %d", n.id)
		}
	}
	return nil
}

// Leaf reports whether this node is a leaf (its values are block ids,
// rather than child node ids).
func (n *Node) Leaf() bool {
	flags, _ := n.pg.ReadU8(offFlags)
	return flags&leafFlag != 0
}

func (n *Node) setLeaf(v bool) {
	var flags uint8
	if v {
		flags = leafFlag
	}
	n.pg.WriteU8(offFlags, flags)
}

// Used returns the number of populated keys in this node.
func (n *Node) Used() int {
	u, _ := n.pg.ReadU16(offUsed)
	return int(u)
}

func (n *Node) setUsed(k int) {
	n.pg.WriteU16(offUsed, uint16(k))
}

// Key returns the key at index i.
func (n *Node) Key(i int) uint64 {
	v, _ := n.pg.ReadU64(keysOff + i*8)
	return v
}

func (n *Node) setKey(i int, k uint64) {
	n.pg.WriteU64(keysOff+i*8, k)
}

// Value returns the value (block id, or child node id) at index i.
func (n *Node) Value(i int) uint64 {
	v, _ := n.pg.ReadU64(valuesOff + i*8)
	return v
}

func (n *Node) setValue(i int, v uint64) {
	n.pg.WriteU64(valuesOff+i*8, v)
}

// shiftRight opens a gap at index i by shifting keys[i:used) and
// values[i:used+extra) one slot to the right, where extra accounts for
// interior nodes carrying one more child than key.
func (n *Node) shiftRight(i int) {
	used := n.Used()
	valCount := used
	if !n.Leaf() {
		valCount = used + 1
	}
	for j := used; j > i; j-- {
		n.setKey(j, n.Key(j-1))
	}
	for j := valCount; j > i; j-- {
		n.setValue(j, n.Value(j-1))
	}
}
