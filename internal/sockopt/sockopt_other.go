//go:build !linux && !darwin

package sockopt

import "golang.org/x/sys/unix"

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

func applyListenerTuning(fd int, _ Tuning) {}
