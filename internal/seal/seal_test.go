package seal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealAndCheckRoundTrip(t *testing.T) {
	s := New([]byte("a test key"))
	buf := make([]byte, 128+Size)
	copy(buf, []byte("some header bytes worth authenticating"))

	s.Seal(buf)
	require.True(t, s.Check(buf))
}

func TestCheckFailsOnBitFlip(t *testing.T) {
	s := New([]byte("a test key"))
	buf := make([]byte, 128+Size)
	copy(buf, []byte("some header bytes worth authenticating"))
	s.Seal(buf)

	buf[0] ^= 0x01
	require.False(t, s.Check(buf))
}

func TestCheckFailsOnWrongKey(t *testing.T) {
	buf := make([]byte, 128+Size)
	copy(buf, []byte("payload"))
	New([]byte("key-a")).Seal(buf)

	require.False(t, New([]byte("key-b")).Check(buf))
}

func TestCheckRejectsShortBuffers(t *testing.T) {
	s := New([]byte("k"))
	require.False(t, s.Check(make([]byte, Size-1)))
}
