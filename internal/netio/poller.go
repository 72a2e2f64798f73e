// Package netio implements the single-threaded, cooperative epoll event
// loop the network server drives its listeners with. Grounded on
// original_source/fdpoll.c: fixed-capacity fd table, a handler callback
// per watched descriptor that returns whether to unwatch+close, and an
// optional on-timeout / on-every-tick hook, reimplemented over
// golang.org/x/sys/unix's epoll bindings instead of cgo's <sys/epoll.h>.
package netio

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Flags selects which readiness events a watched descriptor wants.
type Flags int

const (
	Read Flags = 1 << iota
	Write
)

// Handler is invoked when fd becomes ready. Returning true unwatches and
// closes fd; returning an error also unwatches+closes fd and surfaces the
// error to the caller of Run.
type Handler func(fd int) (done bool, err error)

const maxEvents = 64

// Poller is a single epoll instance and the fixed set of fds it watches.
type Poller struct {
	epfd    int
	maxFds  int
	handler map[int]Handler

	timeoutMS int // -1 means block indefinitely
	onTimeout func()
	onEvery   func()
}

// New creates a poller bounded to max concurrently watched descriptors.
func New(max int) (*Poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("netio: epoll_create1: %w", err)
	}
	return &Poller{
		epfd:      epfd,
		maxFds:    max,
		handler:   make(map[int]Handler, max),
		timeoutMS: -1,
	}, nil
}

// Watch registers fd for the given readiness flags, setting it
// non-blocking first (handlers must never block the shared loop).
func (p *Poller) Watch(fd int, flags Flags, h Handler) error {
	if len(p.handler) >= p.maxFds {
		return fmt.Errorf("netio: watch list full (max %d)", p.maxFds)
	}

	cur, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return fmt.Errorf("netio: fcntl(F_GETFL): %w", err)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, cur|unix.O_NONBLOCK); err != nil {
		return fmt.Errorf("netio: fcntl(F_SETFL): %w", err)
	}

	var events uint32
	if flags&Read != 0 {
		events |= unix.EPOLLIN
	}
	if flags&Write != 0 {
		events |= unix.EPOLLOUT
	}

	ev := unix.EpollEvent{Fd: int32(fd), Events: events}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("netio: epoll_ctl(ADD, %d): %w", fd, err)
	}
	p.handler[fd] = h
	return nil
}

// Unwatch removes fd from the epoll set and the handler table. It does not
// close fd; callers that want the fd closed too should do so themselves.
func (p *Poller) Unwatch(fd int) error {
	if _, ok := p.handler[fd]; !ok {
		return fmt.Errorf("netio: fd %d is not watched", fd)
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("netio: epoll_ctl(DEL, %d): %w", fd, err)
	}
	delete(p.handler, fd)
	return nil
}

// OnTimeout sets the wallclock tick timeout (the loop's scheduler hook)
// and the callback to run when epoll_wait returns with no ready fds.
func (p *Poller) OnTimeout(d time.Duration, fn func()) {
	p.timeoutMS = int(d.Milliseconds())
	p.onTimeout = fn
}

// OnEvery sets a callback that runs after every non-empty readiness batch,
// matching fdpoll.c's on_every hook.
func (p *Poller) OnEvery(fn func()) {
	p.onEvery = fn
}

// Run drives the loop until a handler returns a fatal error or stop
// reports true. It blocks the calling goroutine; run it on its own
// goroutine per listener, matching the one-OS-thread-per-listener model.
func (p *Poller) Run(stop func() bool) error {
	events := make([]unix.EpollEvent, maxEvents)

	for !stop() {
		n, err := unix.EpollWait(p.epfd, events, p.timeoutMS)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("netio: epoll_wait: %w", err)
		}

		if n == 0 {
			if p.onTimeout != nil {
				p.onTimeout()
			}
			continue
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			h, ok := p.handler[fd]
			if !ok {
				continue // stale event for a just-unwatched fd
			}

			done, err := h(fd)
			if err != nil || done {
				_ = p.Unwatch(fd)
				_ = unix.Close(fd)
				if err != nil {
					return fmt.Errorf("netio: handler for fd %d: %w", fd, err)
				}
			}
		}

		if p.onEvery != nil {
			p.onEvery()
		}
	}
	return nil
}

// Close releases the epoll descriptor.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}
