// Package page implements fixed-size memory-mapped regions over a file
// descriptor range, with typed bounds-checked accessors. Multi-byte values
// are stored in host byte order; callers that need cross-host portability
// are responsible for validating an endian sentinel of their own (see
// internal/slab), since page itself never byte-swaps.
package page

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/sys/unix"
)

// nativeEndian matches whatever this process's architecture actually uses,
// the same host-byte-order contract the on-disk format assumes.
var nativeEndian binary.ByteOrder = func() binary.ByteOrder {
	var probe uint16 = 0x0001
	if *(*byte)(unsafe.Pointer(&probe)) == 0x01 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// Page is a mapped view of part of a file. The zero value is not usable;
// construct one with Map.
type Page struct {
	fd   int
	data []byte
}

// Map maps len bytes of fd starting at offset. The protection mode is
// derived from the descriptor's access mode: O_RDONLY maps PROT_READ,
// O_WRONLY maps PROT_WRITE, O_RDWR maps both.
func Map(fd int, offset int64, length int) (*Page, error) {
	if fd < 0 {
		return nil, fmt.Errorf("page: invalid file descriptor %d", fd)
	}
	if offset < 0 {
		return nil, fmt.Errorf("page: invalid offset %d", offset)
	}
	if length <= 0 {
		return nil, fmt.Errorf("page: invalid length %d", length)
	}

	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return nil, fmt.Errorf("page: fcntl(F_GETFL): %w", err)
	}

	var prot int
	switch flags & unix.O_ACCMODE {
	case unix.O_RDONLY:
		prot = unix.PROT_READ
	case unix.O_WRONLY:
		prot = unix.PROT_WRITE
	case unix.O_RDWR:
		prot = unix.PROT_READ | unix.PROT_WRITE
	default:
		return nil, fmt.Errorf("page: descriptor %d has an unsupported access mode", fd)
	}

	data, err := unix.Mmap(fd, offset, length, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("page: mmap: %w", err)
	}

	return &Page{fd: fd, data: data}, nil
}

// Len reports the mapped region's length in bytes.
func (p *Page) Len() int { return len(p.data) }

// Sync flushes the mapped region back to the backing file, blocking until
// the write completes (MS_SYNC).
func (p *Page) Sync() error {
	if p.data == nil {
		return fmt.Errorf("page: sync of an unmapped page")
	}
	return unix.Msync(p.data, unix.MS_SYNC)
}

// Unmap releases the mapping. Calling Unmap twice, or on a page that was
// never mapped, is a no-op.
func (p *Page) Unmap() error {
	if p.data == nil {
		return nil
	}
	if err := unix.Munmap(p.data); err != nil {
		return fmt.Errorf("page: munmap: %w", err)
	}
	p.data = nil
	p.fd = -1
	return nil
}

func (p *Page) bounds(offset, size int) error {
	if p.data == nil {
		return fmt.Errorf("page: access to an unmapped page")
	}
	if offset < 0 || offset+size > len(p.data) {
		return fmt.Errorf("page: offset %d+%d out of range (len=%d)", offset, size, len(p.data))
	}
	return nil
}

func (p *Page) ReadU8(offset int) (uint8, error) {
	if err := p.bounds(offset, 1); err != nil {
		return 0, err
	}
	return p.data[offset], nil
}

func (p *Page) ReadU16(offset int) (uint16, error) {
	if err := p.bounds(offset, 2); err != nil {
		return 0, err
	}
	return nativeEndian.Uint16(p.data[offset:]), nil
}

func (p *Page) ReadU32(offset int) (uint32, error) {
	if err := p.bounds(offset, 4); err != nil {
		return 0, err
	}
	return nativeEndian.Uint32(p.data[offset:]), nil
}

func (p *Page) ReadU64(offset int) (uint64, error) {
	if err := p.bounds(offset, 8); err != nil {
		return 0, err
	}
	return nativeEndian.Uint64(p.data[offset:]), nil
}

func (p *Page) ReadF64(offset int) (float64, error) {
	bits, err := p.ReadU64(offset)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (p *Page) ReadN(offset int, buf []byte) (int, error) {
	if err := p.bounds(offset, len(buf)); err != nil {
		return 0, err
	}
	return copy(buf, p.data[offset:offset+len(buf)]), nil
}

func (p *Page) WriteU8(offset int, v uint8) error {
	if err := p.bounds(offset, 1); err != nil {
		return err
	}
	p.data[offset] = v
	return nil
}

func (p *Page) WriteU16(offset int, v uint16) error {
	if err := p.bounds(offset, 2); err != nil {
		return err
	}
	nativeEndian.PutUint16(p.data[offset:], v)
	return nil
}

func (p *Page) WriteU32(offset int, v uint32) error {
	if err := p.bounds(offset, 4); err != nil {
		return err
	}
	nativeEndian.PutUint32(p.data[offset:], v)
	return nil
}

func (p *Page) WriteU64(offset int, v uint64) error {
	if err := p.bounds(offset, 8); err != nil {
		return err
	}
	nativeEndian.PutUint64(p.data[offset:], v)
	return nil
}

func (p *Page) WriteF64(offset int, v float64) error {
	return p.WriteU64(offset, math.Float64bits(v))
}

func (p *Page) WriteN(offset int, buf []byte) error {
	if err := p.bounds(offset, len(buf)); err != nil {
		return err
	}
	copy(p.data[offset:offset+len(buf)], buf)
	return nil
}

// Bytes exposes the raw mapped region, for components (the sealer) that
// need to HMAC a byte range rather than go through typed accessors.
func (p *Page) Bytes() []byte { return p.data }
