package netio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestWatchAndUnwatchTrackHandlerCount(t *testing.T) {
	p, err := New(4)
	require.NoError(t, err)
	defer p.Close()

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	defer unix.Close(fds[1])

	called := false
	require.NoError(t, p.Watch(fds[0], Read, func(fd int) (bool, error) {
		called = true
		return true, nil
	}))
	require.Len(t, p.handler, 1)

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		n := 0
		done <- p.Run(func() bool {
			n++
			return n > 1
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not return")
	}
	require.True(t, called)
	require.Len(t, p.handler, 0)
}

func TestWatchRejectsBeyondCapacity(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	defer p.Close()

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	fds2 := make([]int, 2)
	require.NoError(t, unix.Pipe(fds2))
	defer unix.Close(fds2[0])
	defer unix.Close(fds2[1])

	require.NoError(t, p.Watch(fds[0], Read, func(int) (bool, error) { return false, nil }))
	err = p.Watch(fds2[0], Read, func(int) (bool, error) { return false, nil })
	require.Error(t, err)
}
