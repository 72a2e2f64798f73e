package block

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Polqt/bolodb/internal/errs"
	"github.com/Polqt/bolodb/internal/seal"
)

func tempFD(t *testing.T, size int64) int {
	fd, _ := tempFile(t, size)
	return fd
}

func tempFile(t *testing.T, size int64) (int, string) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "block-*.dat")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	t.Cleanup(func() { f.Close() })
	return int(f.Fd()), f.Name()
}

func TestBlockInitAppendRead(t *testing.T) {
	sealer := seal.New([]byte("test-key"))
	fd := tempFD(t, Size)

	b, err := Init(fd, 0, sealer, 1, 123456789)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Unmap() })

	require.NoError(t, b.Append(123456789, 34.567))
	require.EqualValues(t, 1, b.Cells())

	ts, v, err := b.Read(0)
	require.NoError(t, err)
	require.EqualValues(t, 123456789, ts)
	require.Equal(t, 34.567, v)
}

func TestBlockMapRehydratesAndVerifiesHmac(t *testing.T) {
	sealer := seal.New([]byte("test-key"))
	fd := tempFD(t, Size)

	b, err := Init(fd, 0, sealer, 7, 1000)
	require.NoError(t, err)
	require.NoError(t, b.Append(1000, 1.0))
	require.NoError(t, b.Append(1500, 2.0))
	require.NoError(t, b.Sync())
	require.NoError(t, b.Unmap())

	reopened, err := Map(fd, 0, sealer)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Unmap() })

	require.EqualValues(t, 7, reopened.Number())
	require.EqualValues(t, 2, reopened.Cells())
	ts, v, err := reopened.Read(1)
	require.NoError(t, err)
	require.EqualValues(t, 1500, ts)
	require.Equal(t, 2.0, v)
}

func TestBlockBitFlipFailsHmac(t *testing.T) {
	sealer := seal.New([]byte("test-key"))
	fd, path := tempFile(t, Size)

	b, err := Init(fd, 0, sealer, 1, 0)
	require.NoError(t, err)
	require.NoError(t, b.Append(0, 1.0))
	require.NoError(t, b.Sync())
	require.NoError(t, b.Unmap())

	raw, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = raw.WriteAt([]byte{0xff}, offCells0)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	reopened, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	_, err = Map(int(reopened.Fd()), 0, sealer)
	require.Error(t, err)
	require.ErrorIs(t, err, errs.Sentinel(errs.BadHmac))
}

func TestBlockFullRejectsAppend(t *testing.T) {
	sealer := seal.New([]byte("test-key"))
	fd := tempFD(t, Size)

	b, err := Init(fd, 0, sealer, 1, 0)
	require.NoError(t, err)
	for i := 0; i < MaxCells; i++ {
		require.NoError(t, b.Append(uint64(i), float64(i)))
	}
	require.True(t, b.IsFull())
	require.Error(t, b.Append(uint64(MaxCells), 0))
}

func TestBlockRangeRejectsFarTimestamp(t *testing.T) {
	sealer := seal.New([]byte("test-key"))
	fd := tempFD(t, Size)

	b, err := Init(fd, 0, sealer, 1, 0)
	require.NoError(t, err)
	require.Error(t, b.Append(uint64(1)<<33, 1.0))
}

func TestBlockLinkRoundTrips(t *testing.T) {
	sealer := seal.New([]byte("test-key"))
	fd := tempFD(t, Size)

	b, err := Init(fd, 0, sealer, 1, 0)
	require.NoError(t, err)
	require.EqualValues(t, 0, b.Link())

	require.NoError(t, b.SetLink(42))
	require.EqualValues(t, 42, b.Link())
}
