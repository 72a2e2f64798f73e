package tsdb

import (
	"fmt"
	"os"
	"sync"

	"github.com/Polqt/bolodb/internal/block"
	"github.com/Polqt/bolodb/internal/btree"
	"github.com/Polqt/bolodb/internal/catalog"
	"github.com/Polqt/bolodb/internal/errs"
	"github.com/Polqt/bolodb/internal/seal"
)

// slabAlignment is the coarse bucket width used to align a block's index
// key, so that consecutive inserts into the same rough time range resolve
// to the same block chain instead of minting a new block per sample.
const slabAlignment = 512

// DB is a mounted bolodb database root: the catalog, its B-tree indexes,
// and the slab-backed block storage beneath them, guarded by one mutex per
// the single-writer concurrency model.
type DB struct {
	root   string
	sealer *seal.Sealer

	mu     sync.Mutex
	cat    *catalog.Catalog
	alloc  *btree.Allocator
	trees  map[catalog.IndexID]*btree.Btree
	slabs  *slabStore
	nextID catalog.IndexID
}

// Init creates a new database at an empty directory, seeding its HMAC
// trailer verification with key.
func Init(path string, key []byte) (*DB, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return nil, fmt.Errorf("tsdb: create root %s: %w", path, err)
			}
		} else {
			return nil, fmt.Errorf("tsdb: stat root %s: %w", path, err)
		}
	} else if len(entries) != 0 {
		return nil, errs.New(errs.Invalid, "tsdb: init requires an empty directory, %s is not empty", path)
	}

	for _, sub := range []string{"idx", "slabs"} {
		if err := os.MkdirAll(path+"/"+sub, 0o755); err != nil {
			return nil, fmt.Errorf("tsdb: mkdir %s: %w", sub, err)
		}
	}

	sealer := seal.New(key)
	cat := catalog.New()
	if err := writeMainDB(path, sealer, cat, nil); err != nil {
		return nil, err
	}

	return Mount(path, key)
}

// Mount opens an existing database root: main.db must exist and verify.
func Mount(path string, key []byte) (*DB, error) {
	sealer := seal.New(key)

	names, roots, err := readMainDB(path, sealer)
	if err != nil {
		return nil, err
	}

	alloc, err := btree.OpenAllocator(path, sealer)
	if err != nil {
		return nil, err
	}

	store := newSlabStore(path, sealer)
	if err := store.scan(); err != nil {
		return nil, err
	}

	cat := catalog.New()
	trees := make(map[catalog.IndexID]*btree.Btree)
	var nextID catalog.IndexID
	for _, name := range names {
		rootID := roots[name]
		id := nextID
		nextID++
		if _, err := cat.Insert(name, id); err != nil {
			return nil, fmt.Errorf("tsdb: rebuilding catalog: %w", err)
		}
		trees[id] = btree.Open(alloc, btree.NodeID(rootID))
	}
	if err := cat.Rebuild(); err != nil {
		return nil, err
	}

	return &DB{
		root:   path,
		sealer: sealer,
		cat:    cat,
		alloc:  alloc,
		trees:  trees,
		slabs:  store,
		nextID: nextID,
	}, nil
}

// Catalog exposes the read-only catalog for query planning.
func (db *DB) Catalog() *catalog.Catalog { return db.cat }

// Tree returns the B-tree index for a catalog index id, used by the query
// executor to walk a resolved series' blocks.
func (db *DB) Tree(id catalog.IndexID) (*btree.Btree, bool) {
	t, ok := db.trees[id]
	return t, ok
}

// Block maps and returns the block for a global block id, for the query
// executor's forward-link traversal.
func (db *DB) Block(id uint64) (*block.Block, error) {
	return db.slabs.block(id)
}

// Insert upserts series' catalog entry (allocating a fresh index on first
// write) and appends (ts, value) to the appropriate block, chaining a new
// block when the current one is full or can't represent ts.
func (db *DB) Insert(series string, ts uint64, value float64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.cat.Lookup(series)
	var tree *btree.Btree
	if !ok {
		newTree, err := btree.New(db.alloc)
		if err != nil {
			return err
		}
		id = db.nextID
		db.nextID++
		if _, err := db.cat.Insert(series, id); err != nil {
			return err
		}
		db.trees[id] = newTree
		tree = newTree
	} else {
		tree = db.trees[id]
	}

	slabTs := ts - (ts % slabAlignment)

	blockID, found, err := tree.Find(slabTs)
	if err != nil {
		return err
	}

	var target *block.Block
	var prev *block.Block
	if found {
		b, err := db.slabs.block(blockID)
		if err != nil {
			return err
		}
		if !b.IsFull() && b.CanHold(ts) {
			target = b
		} else {
			prev = b
		}
	}

	if target == nil {
		nb, nid, err := db.slabs.newBlock(ts)
		if err != nil {
			return err
		}
		if err := tree.Insert(slabTs, nid); err != nil {
			return err
		}
		if prev != nil {
			if err := prev.SetLink(nid); err != nil {
				return err
			}
		}
		target = nb
	}

	return target.Append(ts, value)
}

// Sync flushes every slab, every btree page, and rewrites main.db
// atomically.
func (db *DB) Sync() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.syncLocked()
}

func (db *DB) syncLocked() error {
	if err := db.slabs.sync(); err != nil {
		return err
	}
	if err := db.alloc.Sync(); err != nil {
		return err
	}

	roots := make(map[string]uint64, len(db.trees))
	for name, id := range db.seriesToRoot() {
		roots[name] = id
	}
	return writeMainDB(db.root, db.sealer, db.cat, roots)
}

func (db *DB) seriesToRoot() map[string]uint64 {
	out := make(map[string]uint64)
	for _, series := range db.cat.Series() {
		id, _ := db.cat.Lookup(series)
		tree, ok := db.trees[id]
		if !ok {
			continue
		}
		out[series] = uint64(tree.Root())
	}
	return out
}

// Unmount syncs, then releases every mapped resource.
func (db *DB) Unmount() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.syncLocked(); err != nil {
		return err
	}
	if err := db.slabs.unmap(); err != nil {
		return err
	}
	return db.alloc.Close()
}
