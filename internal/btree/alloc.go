package btree

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Polqt/bolodb/internal/page"
	"github.com/Polqt/bolodb/internal/seal"
	"golang.org/x/sys/unix"
)

// Density is how many node pages a single slab file holds before a new one
// is created, matching btree.c's "density cap" rollover.
const Density = 8192

// Allocator hands out and maps btree node pages, splitting them across
// slab files under "<root>/idx/" named by the hex id of their first node,
// per spec's §6.1 on-disk layout:
//
//	idx/<AAAA.BBBB>/<AAAA.BBBB.CCCC.DDDD>.idx
type Allocator struct {
	root   string
	mu     sync.Mutex
	files  map[uint64]*os.File // fileIndex -> open file
	next   NodeID
	sealer *seal.Sealer
}

// OpenAllocator scans <root>/idx for existing slab files to recover the
// next free node id, then returns a ready Allocator. A fresh root (no idx
// directory yet) starts empty.
func OpenAllocator(root string, sealer *seal.Sealer) (*Allocator, error) {
	a := &Allocator{
		root:   root,
		files:  make(map[uint64]*os.File),
		sealer: sealer,
	}
	if err := os.MkdirAll(filepath.Join(root, "idx"), 0o755); err != nil {
		return nil, fmt.Errorf("btree: mkdir idx: %w", err)
	}
	if err := a.bootstrap(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Allocator) bootstrap() error {
	idxDir := filepath.Join(a.root, "idx")
	var fileIndexes []uint64
	err := filepath.Walk(idxDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".idx") {
			return nil
		}
		firstID, ok := parseIdxName(filepath.Base(path))
		if !ok {
			return nil
		}
		fileIndexes = append(fileIndexes, firstID/Density)
		return nil
	})
	if err != nil {
		return fmt.Errorf("btree: scan idx dir: %w", err)
	}
	if len(fileIndexes) == 0 {
		a.next = 0
		return nil
	}
	sort.Slice(fileIndexes, func(i, j int) bool { return fileIndexes[i] < fileIndexes[j] })
	maxFileIndex := fileIndexes[len(fileIndexes)-1]

	f, err := a.openFile(maxFileIndex)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("btree: stat idx file: %w", err)
	}
	pages := st.Size() / PageSize
	a.next = NodeID(maxFileIndex*Density + uint64(pages))
	return nil
}

// hexPath renders a node's containing file path from that file's first id.
func hexPath(firstID uint64) (dir, name string) {
	a := uint16(firstID >> 48)
	b := uint16(firstID >> 32)
	c := uint16(firstID >> 16)
	d := uint16(firstID)
	dir = fmt.Sprintf("%04x.%04x", a, b)
	name = fmt.Sprintf("%04x.%04x.%04x.%04x.idx", a, b, c, d)
	return dir, name
}

// parseIdxName recovers the first-node-id encoded in an ".idx" file name.
func parseIdxName(name string) (uint64, bool) {
	name = strings.TrimSuffix(name, ".idx")
	parts := strings.Split(name, ".")
	if len(parts) != 4 {
		return 0, false
	}
	var id uint64
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 16, 16)
		if err != nil {
			return 0, false
		}
		id = id<<16 | v
	}
	return id, true
}

func (a *Allocator) openFile(fileIndex uint64) (*os.File, error) {
	if f, ok := a.files[fileIndex]; ok {
		return f, nil
	}
	firstID := fileIndex * Density
	dir, name := hexPath(firstID)
	full := filepath.Join(a.root, "idx", dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return nil, fmt.Errorf("btree: mkdir %s: %w", full, err)
	}
	f, err := os.OpenFile(filepath.Join(full, name), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("btree: open idx file: %w", err)
	}
	a.files[fileIndex] = f
	return f, nil
}

func (a *Allocator) mapNode(id NodeID) (*Node, error) {
	fileIndex := uint64(id) / Density
	local := uint64(id) % Density

	f, err := a.openFile(fileIndex)
	if err != nil {
		return nil, err
	}
	offset := int64(local) * PageSize
	if st, err := f.Stat(); err == nil && st.Size() < offset+PageSize {
		if err := f.Truncate(offset + PageSize); err != nil {
			return nil, fmt.Errorf("btree: extend idx file: %w", err)
		}
	}
	pg, err := page.Map(int(f.Fd()), offset, PageSize)
	if err != nil {
		return nil, fmt.Errorf("btree: mmap node %d: %w", id, err)
	}
	return newNode(id, pg), nil
}

// New allocates a fresh node page (leaf or interior) and returns it mapped.
func (a *Allocator) New(leaf bool) (*Node, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.next
	a.next++

	n, err := a.mapNode(id)
	if err != nil {
		return nil, err
	}
	n.initEmpty(leaf)
	return n, nil
}

// Get maps an existing node by id.
func (a *Allocator) Get(id NodeID) (*Node, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, err := a.mapNode(id)
	if err != nil {
		return nil, err
	}
	if err := n.checkMagic(); err != nil {
		return nil, err
	}
	return n, nil
}

// Sync flushes every open slab file to stable storage.
func (a *Allocator) Sync() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range a.files {
		if err := unix.Fsync(int(f.Fd())); err != nil {
			return fmt.Errorf("btree: fsync: %w", err)
		}
	}
	return nil
}

// Close releases every open slab file.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for fi, f := range a.files {
		if err := f.Close(); err != nil {
			return fmt.Errorf("btree: close idx file: %w", err)
		}
		delete(a.files, fi)
	}
	return nil
}
