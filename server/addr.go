// Package server drives the network-facing half of bolodb: binding the
// query and metrics listener sockets, running one cooperative epoll loop
// per listener via internal/netio, and serializing all database access
// behind the DB's own mutex. Grounded on original_source/net.c (address
// parsing, one-shot bind-and-listen) and fdpoll.c (the loop itself, via
// internal/netio).
package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ParseBindAddr accepts the same three address forms net_bind() did:
//
//	[<ipv6>]:<port>   - bind a specific IPv6 address
//	<ipv4>:<port>     - bind a specific IPv4 address
//	*:<port>          - bind all interfaces
//
// It returns the node to resolve (empty for "*") and the numeric port.
func ParseBindAddr(addr string) (node string, port int, err error) {
	if addr == "" {
		return "", 0, fmt.Errorf("server: empty bind address")
	}

	if addr[0] == '*' {
		rest := strings.TrimPrefix(addr, "*")
		if !strings.HasPrefix(rest, ":") {
			return "", 0, fmt.Errorf("server: invalid bind address %q", addr)
		}
		port, err = parsePort(rest[1:])
		return "", port, err
	}

	if addr[0] == '[' {
		end := strings.IndexByte(addr, ']')
		if end < 0 || end+1 >= len(addr) || addr[end+1] != ':' {
			return "", 0, fmt.Errorf("server: invalid bind address %q", addr)
		}
		port, err = parsePort(addr[end+2:])
		return addr[1:end], port, err
	}

	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return "", 0, fmt.Errorf("server: invalid bind address %q (missing port)", addr)
	}
	port, err = parsePort(addr[i+1:])
	return addr[:i], port, err
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil || p < 0 || p > 65535 {
		return 0, fmt.Errorf("server: invalid port %q", s)
	}
	return p, nil
}

// Bind resolves addr and returns a listening, non-blocking socket fd ready
// to be handed to a netio.Poller, with SO_REUSEADDR set as net_bind() did.
func Bind(addr string, backlog int) (int, error) {
	node, port, err := ParseBindAddr(addr)
	if err != nil {
		return -1, err
	}

	var ip net.IP
	family := unix.AF_INET6
	if node == "" {
		ip = net.IPv6zero
	} else {
		ip = net.ParseIP(node)
		if ip == nil {
			resolved, err := net.ResolveIPAddr("ip", node)
			if err != nil {
				return -1, fmt.Errorf("server: resolve %q: %w", node, err)
			}
			ip = resolved.IP
		}
		if v4 := ip.To4(); v4 != nil {
			family = unix.AF_INET
			ip = v4
		}
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("server: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("server: setsockopt(SO_REUSEADDR): %w", err)
	}

	var sa unix.Sockaddr
	if family == unix.AF_INET {
		var a [4]byte
		copy(a[:], ip.To4())
		sa = &unix.SockaddrInet4{Port: port, Addr: a}
	} else {
		var a [16]byte
		copy(a[:], ip.To16())
		sa = &unix.SockaddrInet6{Port: port, Addr: a}
	}

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("server: bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("server: listen: %w", err)
	}
	return fd, nil
}
