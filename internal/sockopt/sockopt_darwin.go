//go:build darwin

package sockopt

import "golang.org/x/sys/unix"

// acceptNonblocking falls back to accept()+set-nonblocking since Darwin has
// no accept4, matching original_source/src/socket.c's non-Linux path
// (plain accept then fcntl).
func acceptNonblocking(listenFd int) (int, string, error) {
	fd, sa, err := unix.Accept(listenFd)
	if err != nil {
		return -1, "", err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, "", err
	}
	return fd, sockaddrString(sa), nil
}

// applyListenerTuning enables TCP Fast Open where available; Darwin has no
// TCP_DEFER_ACCEPT equivalent exposed through this constant set.
func applyListenerTuning(fd int, _ Tuning) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, 1)
}
