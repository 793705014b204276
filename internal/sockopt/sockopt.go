// Package sockopt prepares and tunes the raw, non-blocking listening and
// connection file descriptors that the kitserv worker pool drives through
// internal/ioqueue. It generalizes original_source/src/socket.c's
// getaddrinfo-based dual-stack bind, using a rawConn.Control-style
// option-setting idiom adapted from tuning an already-accepted net.Conn to
// tuning a bare fd.
package sockopt

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Family selects which address family to bind.
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

// Tuning carries the socket options kitserv's core needs to vary across
// deployments; the core always wants NoDelay+KeepAlive on, and applies
// DeferAccept/FastOpen only where the platform supports them.
type Tuning struct {
	RecvBuffer int
	SendBuffer int
}

// DefaultTuning matches original_source/src/socket.c's fixed choices.
func DefaultTuning() Tuning {
	return Tuning{}
}

// Listen creates, binds, and starts listening on a non-blocking TCP socket
// for the given family/port. SO_REUSEADDR is always set, matching socket.c.
func Listen(family Family, port int, tuning Tuning) (fd int, err error) {
	domain := unix.AF_INET
	if family == FamilyIPv6 {
		domain = unix.AF_INET6
	}

	fd, err = unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("sockopt: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("sockopt: SO_REUSEADDR: %w", err)
	}
	if family == FamilyIPv6 {
		// Bind only the IPv6 wildcard; dual-stack is handled by running two
		// listeners (one per family) rather than relying on IPV6_V6ONLY=0,
		// matching the CLI's explicit -4/-6 semantics.
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("sockopt: IPV6_V6ONLY: %w", err)
		}
	}

	if err := bindWildcard(fd, family, port); err != nil {
		unix.Close(fd)
		return -1, err
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("sockopt: set nonblocking: %w", err)
	}

	applyListenerTuning(fd, tuning)

	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("sockopt: listen: %w", err)
	}

	return fd, nil
}

func bindWildcard(fd int, family Family, port int) error {
	if family == FamilyIPv6 {
		var addr unix.SockaddrInet6
		addr.Port = port
		return unix.Bind(fd, &addr)
	}
	var addr unix.SockaddrInet4
	addr.Port = port
	return unix.Bind(fd, &addr)
}

// Accept accepts one pending connection as a non-blocking fd, returning the
// remote address in string form for diagnostics.
func Accept(listenFd int) (fd int, remote string, err error) {
	return acceptNonblocking(listenFd)
}

// ApplyConnTuning sets the per-connection options kitserv always wants:
// TCP_NODELAY and SO_KEEPALIVE, matching socket.c's connection setup.
func ApplyConnTuning(fd int, tuning Tuning) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	if tuning.RecvBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, tuning.RecvBuffer)
	}
	if tuning.SendBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, tuning.SendBuffer)
	}
}

// Close shuts down and closes fd, matching socket.c's
// shutdown(SHUT_RDWR)+close pairing so a half-open peer observes a clean
// reset rather than a lingering FIN_WAIT.
func Close(fd int) error {
	_ = unix.Shutdown(fd, unix.SHUT_RDWR)
	return unix.Close(fd)
}

// sockaddrString renders a unix.Sockaddr for diagnostics.
func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return (&net.TCPAddr{IP: a.Addr[:], Port: a.Port}).String()
	case *unix.SockaddrInet6:
		return (&net.TCPAddr{IP: a.Addr[:], Port: a.Port}).String()
	default:
		return ""
	}
}
