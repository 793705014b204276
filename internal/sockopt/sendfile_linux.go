//go:build linux

package sockopt

import (
	"golang.org/x/sys/unix"
)

// SendFile transmits up to count bytes of file fd srcFd starting at *offset
// to connection fd dstFd using the zero-copy sendfile(2) syscall, advancing
// *offset by the number of bytes written. It returns (n, ErrWouldBlock) when
// the socket would block, matching the retry contract response.go expects;
// any other error aborts the connection.
//
// Adapted to raw connection/file fds rather than a net.Conn/*os.File pair,
// since the core drives readiness through internal/ioqueue rather than
// net.Conn.
func SendFile(dstFd, srcFd int, offset *int64, count int64) (int64, error) {
	if count <= 0 {
		return 0, nil
	}
	n, err := unix.Sendfile(dstFd, srcFd, offset, int(count))
	if n < 0 {
		n = 0
	}
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return int64(n), ErrWouldBlock
		}
		if err == unix.EINTR {
			return int64(n), nil
		}
		return int64(n), err
	}
	return int64(n), nil
}
