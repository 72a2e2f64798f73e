// Package slab implements TSlab, the file format that backs up to 2048
// TBlocks sharing a common slab number. Grounded on original_source/tslab.c,
// generalized to accept an injected seal.Sealer instead of a compile-time
// FIXME_DEFAULT_KEY, and to return the errs taxonomy instead of errno.
package slab

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"github.com/Polqt/bolodb/internal/block"
	"github.com/Polqt/bolodb/internal/errs"
	"github.com/Polqt/bolodb/internal/seal"
)

const (
	// BlockSizeExponent is fixed at 19, i.e. 512 KiB blocks.
	BlockSizeExponent = 19
	// BlockSize is 1 << BlockSizeExponent.
	BlockSize = 1 << BlockSizeExponent
	// BlocksPerSlab is how many TBlocks a single slab file can hold; the
	// low 11 bits of a block id select one of these.
	BlocksPerSlab = 2048

	headerSize = 4096 // one page, to keep blocks page-aligned after it

	offMagic  = 0
	offExp    = 6
	offEndian = 8
	offNumber = 16

	// EndianMagic is the sentinel written into every slab header so a
	// mount on a host of the opposite byte order is rejected outright
	// rather than silently misreading every block.
	EndianMagic = uint32(0x7ED1324C)
)

var magic = [6]byte{'S', 'L', 'A', 'B', 'v', '1'}

var nativeEndian = func() binary.ByteOrder {
	var probe uint16 = 1
	if *(*byte)(unsafe.Pointer(&probe)) == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// Slab is an open TSlab file with zero or more lazily-mapped blocks.
type Slab struct {
	f      *os.File
	sealer *seal.Sealer

	number    uint64
	blockSize int
	blocks    [BlocksPerSlab]*block.Block
}

// Init creates a brand-new slab file: writes the header, seals it, and
// extends the file to one page so subsequent blocks land page-aligned.
func Init(f *os.File, sealer *seal.Sealer, number uint64) (*Slab, error) {
	header := make([]byte, headerSize)
	copy(header[offMagic:], magic[:])
	header[offExp] = BlockSizeExponent
	nativeEndian.PutUint32(header[offEndian:], EndianMagic)
	nativeEndian.PutUint64(header[offNumber:], number&^uint64(BlocksPerSlab-1))
	sealer.Seal(header[:headerSize])

	if _, err := f.WriteAt(header, 0); err != nil {
		return nil, fmt.Errorf("slab: write header: %w", err)
	}
	if err := f.Truncate(headerSize); err != nil {
		return nil, fmt.Errorf("slab: truncate to header size: %w", err)
	}

	return &Slab{f: f, sealer: sealer, number: number, blockSize: BlockSize}, nil
}

// Map opens an existing slab file, validating its magic, HMAC, and endian
// sentinel, then maps every block trailing the header, failing if any
// block's magic or HMAC does not verify.
func Map(f *os.File, sealer *seal.Sealer) (*Slab, error) {
	header := make([]byte, headerSize)
	n, err := f.ReadAt(header, 0)
	if err != nil && n != headerSize {
		return nil, errs.New(errs.BadSlab, "short read of slab header: %v", err)
	}
	if string(header[offMagic:offMagic+6]) != string(magic[:]) {
		return nil, errs.New(errs.BadSlab, "slab header has invalid magic")
	}
	if !sealer.Check(header) {
		return nil, errs.New(errs.BadHmac, "slab header failed HMAC verification")
	}
	if got := nativeEndian.Uint32(header[offEndian:]); got != EndianMagic {
		return nil, errs.New(errs.EndianMismatch, "slab endian sentinel %#x does not match host", got)
	}

	exponent := header[offExp]
	blockSize := 1 << exponent
	number := nativeEndian.Uint64(header[offNumber:])

	s := &Slab{f: f, sealer: sealer, number: number, blockSize: blockSize}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("slab: stat: %w", err)
	}
	remaining := info.Size() - headerSize

	for i := 0; i < BlocksPerSlab && remaining >= int64(blockSize); i, remaining = i+1, remaining-int64(blockSize) {
		b, err := block.Map(int(f.Fd()), headerSize+int64(i)*int64(blockSize), sealer)
		if err != nil {
			return nil, err
		}
		s.blocks[i] = b
	}

	return s, nil
}

// Number returns the slab's base id (its low 11 bits, the intra-slab block
// index, are zero).
func (s *Slab) Number() uint64 { return s.number }

// IsFull reports whether every block slot is populated.
func (s *Slab) IsFull() bool {
	for _, b := range s.blocks {
		if b == nil {
			return false
		}
	}
	return true
}

// Block returns the block at intra-slab index i, or nil if unallocated.
func (s *Slab) Block(i int) *block.Block {
	if i < 0 || i >= BlocksPerSlab {
		return nil
	}
	return s.blocks[i]
}

// Extend locates the first unallocated block slot, grows the file by one
// block's worth of space, maps it, and initializes a fresh TBlock there.
func (s *Slab) Extend(base uint64) (*block.Block, int, error) {
	for i, b := range s.blocks {
		if b != nil {
			continue
		}

		start := int64(headerSize) + int64(i)*int64(s.blockSize)
		if err := s.f.Truncate(start + int64(s.blockSize)); err != nil {
			return nil, 0, fmt.Errorf("slab: extend: %w", err)
		}

		number := (s.number &^ uint64(BlocksPerSlab-1)) | uint64(i)
		nb, err := block.Init(int(s.f.Fd()), start, s.sealer, number, base)
		if err != nil {
			_ = s.f.Truncate(start)
			return nil, 0, err
		}

		s.blocks[i] = nb
		return nb, i, nil
	}

	return nil, 0, errs.New(errs.NoSlab, "slab %d has no free block slots", s.number)
}

// Sync flushes every mapped block to disk.
func (s *Slab) Sync() error {
	for _, b := range s.blocks {
		if b == nil {
			break
		}
		if err := b.Sync(); err != nil {
			return err
		}
	}
	return nil
}

// Unmap releases every mapped block and closes the underlying file.
func (s *Slab) Unmap() error {
	var first error
	for i, b := range s.blocks {
		if b == nil {
			break
		}
		if err := b.Unmap(); err != nil && first == nil {
			first = err
		}
		s.blocks[i] = nil
	}
	if err := s.f.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
