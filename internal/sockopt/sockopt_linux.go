//go:build linux

package sockopt

import "golang.org/x/sys/unix"

// Linux-only TCP options not exposed by the portable unix constant set on
// every platform.
const (
	tcpDeferAccept = 9
	tcpFastOpen    = 23
)

// acceptNonblocking uses accept4(SOCK_NONBLOCK) to avoid the accept+fcntl
// race window, matching original_source/src/socket.c's Linux path.
func acceptNonblocking(listenFd int) (int, string, error) {
	fd, sa, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK)
	if err != nil {
		return -1, "", err
	}
	return fd, sockaddrString(sa), nil
}

// applyListenerTuning sets TCP_DEFER_ACCEPT so the kernel doesn't wake a
// worker until request data has actually arrived.
func applyListenerTuning(fd int, _ Tuning) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, tcpDeferAccept, 5)
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, tcpFastOpen, 256)
}
