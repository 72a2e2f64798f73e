package server

import (
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// doAccept wraps accept4() with SOCK_NONBLOCK so the accepted connection's
// fd starts non-blocking, matching net_bind()'s style of always setting
// O_NONBLOCK on fds handed to the event loop.
func doAccept(listenFD int) (fd int, sa unix.Sockaddr, err error) {
	return unix.Accept4(listenFD, unix.SOCK_NONBLOCK)
}

func closeFD(fd int) error {
	return unix.Close(fd)
}

// newOSFile wraps a raw fd as an *os.File so it can be promoted to a
// net.Conn via net.FileConn.
func newOSFile(fd int) *os.File {
	return os.NewFile(uintptr(fd), "conn")
}

// stringsReader is a small adapter so internal/ingest.New (which wants an
// io.Reader) can consume a BQIP measurement payload string directly.
func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}

func nowUnix() int64 {
	return time.Now().Unix()
}
