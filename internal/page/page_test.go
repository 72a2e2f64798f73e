package page

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempMappable(t *testing.T, size int) int {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "page-*.dat")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(size)))
	t.Cleanup(func() { f.Close() })
	return int(f.Fd())
}

func TestPageReadWriteRoundTrip(t *testing.T) {
	fd := tempMappable(t, os.Getpagesize())

	p, err := Map(fd, 0, os.Getpagesize())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Unmap() })

	require.NoError(t, p.WriteU8(0, 0x41))
	require.NoError(t, p.WriteU16(1, 0x4242))
	require.NoError(t, p.WriteU32(3, 0x43434343))
	require.NoError(t, p.WriteU64(7, 0x4545454545454545))
	require.NoError(t, p.WriteF64(15, 12345.6789))
	require.NoError(t, p.WriteN(0x100, []byte("Hello, World")))

	require.NoError(t, p.Sync())

	u8, err := p.ReadU8(0)
	require.NoError(t, err)
	require.EqualValues(t, 0x41, u8)

	u16, err := p.ReadU16(1)
	require.NoError(t, err)
	require.EqualValues(t, 0x4242, u16)

	u32, err := p.ReadU32(3)
	require.NoError(t, err)
	require.EqualValues(t, 0x43434343, u32)

	u64, err := p.ReadU64(7)
	require.NoError(t, err)
	require.EqualValues(t, 0x4545454545454545, u64)

	f64, err := p.ReadF64(15)
	require.NoError(t, err)
	require.Equal(t, 12345.6789, f64)

	buf := make([]byte, 12)
	n, err := p.ReadN(0x100, buf)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.Equal(t, "Hello, World", string(buf))
}

func TestPageOutOfRangeAccessIsRejected(t *testing.T) {
	fd := tempMappable(t, os.Getpagesize())
	p, err := Map(fd, 0, os.Getpagesize())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Unmap() })

	_, err = p.ReadU64(p.Len() - 1)
	require.Error(t, err)
}

func TestPageUnmapIsIdempotent(t *testing.T) {
	fd := tempMappable(t, os.Getpagesize())
	p, err := Map(fd, 0, os.Getpagesize())
	require.NoError(t, err)
	require.NoError(t, p.Unmap())
	require.NoError(t, p.Unmap())
}
