// Package block implements TBlock, the append-only, HMAC-sealed region
// holding up to 2048 (timestamp-delta, value) cells for one series within
// one time range. It is grounded on original_source/tblock.c, extended
// with the forward-link field the specification formalizes (the original
// left block chaining as an ad-hoc, unwired field).
package block

import (
	"github.com/Polqt/bolodb/internal/errs"
	"github.com/Polqt/bolodb/internal/page"
	"github.com/Polqt/bolodb/internal/seal"
)

const (
	// Size is the length of the mmap region backing one block: 512 KiB,
	// matching the slab's fixed block-size exponent of 19.
	Size = 1 << 19

	// MaxCells is the maximum number of (delta, value) cells a block holds.
	MaxCells = 2048

	cellSize   = 12 // u32 delta_ms + f64 value
	headerSize = 32 // magic(6) + cells(2) + base(8) + number(8) + link(8)

	offMagic  = 0
	offCells  = 6
	offBase   = 8
	offNumber = 16
	offLink   = 24
	offCells0 = headerSize

	// cellsEnd is the fixed offset just past the last possible cell slot;
	// the HMAC trailer always sits here regardless of how many cells are
	// actually populated, so a re-map can find it without knowing cells
	// ahead of time.
	cellsEnd = headerSize + MaxCells*cellSize

	// sealedLen is the size of the region the trailer authenticates plus
	// the trailer itself.
	sealedLen = cellsEnd + seal.Size
)

var magic = [6]byte{'B', 'L', 'O', 'K', 'v', '1'}

// maxDelta is the largest timestamp delta a block can represent relative
// to its base (2^32 - 1 ms, about 49.7 days).
const maxDelta = uint64(1<<32) - 1

// Block is a mapped, HMAC-sealed 512 KiB time-series block.
type Block struct {
	pg     *page.Page
	sealer *seal.Sealer

	number uint64
	base   uint64
	link   uint64
	cells  uint16
}

// Init maps fd at offset and writes a fresh block header for the given
// block number and base timestamp, sealing it before returning.
func Init(fd int, offset int64, sealer *seal.Sealer, number, base uint64) (*Block, error) {
	pg, err := page.Map(fd, offset, Size)
	if err != nil {
		return nil, err
	}

	b := &Block{pg: pg, sealer: sealer, number: number, base: base}

	zero := make([]byte, sealedLen)
	if err := pg.WriteN(0, zero); err != nil {
		return nil, err
	}
	if err := pg.WriteN(offMagic, magic[:]); err != nil {
		return nil, err
	}
	if err := b.writeHeader(); err != nil {
		return nil, err
	}
	b.reseal()
	return b, nil
}

// Map maps fd at offset and rehydrates cells, base, number, and link from
// the existing header, verifying the magic and the trailer HMAC.
func Map(fd int, offset int64, sealer *seal.Sealer) (*Block, error) {
	pg, err := page.Map(fd, offset, Size)
	if err != nil {
		return nil, err
	}

	got := make([]byte, 6)
	if _, err := pg.ReadN(offMagic, got); err != nil {
		return nil, err
	}
	if string(got) != string(magic[:]) {
		return nil, errs.New(errs.BadTree, "block at offset %d has invalid magic", offset)
	}

	if !sealer.Check(pg.Bytes()[:sealedLen]) {
		return nil, errs.New(errs.BadHmac, "block at offset %d failed HMAC verification", offset)
	}

	cells, err := pg.ReadU16(offCells)
	if err != nil {
		return nil, err
	}
	base, err := pg.ReadU64(offBase)
	if err != nil {
		return nil, err
	}
	number, err := pg.ReadU64(offNumber)
	if err != nil {
		return nil, err
	}
	link, err := pg.ReadU64(offLink)
	if err != nil {
		return nil, err
	}
	if cells > MaxCells {
		return nil, errs.New(errs.BadTree, "block at offset %d reports %d cells (max %d)", offset, cells, MaxCells)
	}

	return &Block{pg: pg, sealer: sealer, number: number, base: base, link: link, cells: cells}, nil
}

func (b *Block) writeHeader() error {
	if err := b.pg.WriteU16(offCells, b.cells); err != nil {
		return err
	}
	if err := b.pg.WriteU64(offBase, b.base); err != nil {
		return err
	}
	if err := b.pg.WriteU64(offNumber, b.number); err != nil {
		return err
	}
	return b.pg.WriteU64(offLink, b.link)
}

func (b *Block) reseal() { b.sealer.Seal(b.pg.Bytes()[:sealedLen]) }

// Number returns the block's id.
func (b *Block) Number() uint64 { return b.number }

// Base returns the block's base timestamp in milliseconds.
func (b *Block) Base() uint64 { return b.base }

// Cells returns the number of populated cells.
func (b *Block) Cells() uint16 { return b.cells }

// Link returns the forward-link block id (0 means none).
func (b *Block) Link() uint64 { return b.link }

// SetLink rewrites the forward-link field and reseals the block. Used to
// chain a full block to its successor once the successor exists.
func (b *Block) SetLink(next uint64) error {
	b.link = next
	if err := b.pg.WriteU64(offLink, b.link); err != nil {
		return err
	}
	b.reseal()
	return nil
}

// IsFull reports whether the block has no remaining cell slots.
func (b *Block) IsFull() bool { return b.cells == MaxCells }

// CanHold reports whether ts can be represented as a delta from base.
func (b *Block) CanHold(ts uint64) bool {
	if ts < b.base {
		return false
	}
	return ts-b.base <= maxDelta
}

// Append writes a new cell. It fails with a BlockFull or BlockRange domain
// error rather than silently truncating data.
func (b *Block) Append(ts uint64, value float64) error {
	if b.IsFull() {
		return errs.New(errs.BlockFull, "block %d has no remaining cell slots", b.number)
	}
	if !b.CanHold(ts) {
		return errs.New(errs.BlockRange, "ts %d is out of range for block %d (base %d)", ts, b.number, b.base)
	}

	off := offCells0 + int(b.cells)*cellSize
	if err := b.pg.WriteU32(off, uint32(ts-b.base)); err != nil {
		return err
	}
	if err := b.pg.WriteF64(off+4, value); err != nil {
		return err
	}
	b.cells++
	if err := b.pg.WriteU16(offCells, b.cells); err != nil {
		return err
	}
	b.reseal()
	return nil
}

// Read returns the timestamp and value of cell i.
func (b *Block) Read(i int) (ts uint64, value float64, err error) {
	if i < 0 || i >= int(b.cells) {
		return 0, 0, errs.New(errs.Invalid, "cell index %d out of range (cells=%d)", i, b.cells)
	}
	off := offCells0 + i*cellSize
	delta, err := b.pg.ReadU32(off)
	if err != nil {
		return 0, 0, err
	}
	v, err := b.pg.ReadF64(off + 4)
	if err != nil {
		return 0, 0, err
	}
	return b.base + uint64(delta), v, nil
}

// Sync flushes the block's mapped region to disk.
func (b *Block) Sync() error { return b.pg.Sync() }

// Unmap releases the block's mapped region.
func (b *Block) Unmap() error { return b.pg.Unmap() }
