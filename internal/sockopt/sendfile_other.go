//go:build !linux

package sockopt

import (
	"io"
	"os"
	"runtime"
	"syscall"
)

// SendFile falls back to a plain read/write copy loop via io.Copy on
// platforms without a zero-copy sendfile binding wired up, adapted to raw
// fds and to this package's WouldBlock contract.
//
// os.NewFile wraps fds the caller still owns, so the finalizer that would
// otherwise close them on GC is disarmed with SetFinalizer(f, nil).
func SendFile(dstFd, srcFd int, offset *int64, count int64) (int64, error) {
	if count <= 0 {
		return 0, nil
	}
	f := os.NewFile(uintptr(srcFd), "")
	runtime.SetFinalizer(f, nil)
	dst := os.NewFile(uintptr(dstFd), "")
	runtime.SetFinalizer(dst, nil)
	section := io.NewSectionReader(f, *offset, count)
	n, err := io.Copy(dst, section)
	*offset += n
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok && (errno == syscall.EAGAIN || errno == syscall.EWOULDBLOCK) {
			return n, ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}
