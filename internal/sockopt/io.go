package sockopt

import "golang.org/x/sys/unix"

// Read performs one non-blocking read, translating EAGAIN/EWOULDBLOCK into
// ErrWouldBlock and retrying transparently on EINTR.
func Read(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		if err == nil {
			return n, nil
		}
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, ErrWouldBlock
		default:
			return 0, err
		}
	}
}

// Write performs one non-blocking write, translating EAGAIN/EWOULDBLOCK into
// ErrWouldBlock and retrying transparently on EINTR.
func Write(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		if err == nil {
			return n, nil
		}
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, ErrWouldBlock
		default:
			return n, err
		}
	}
}

// Writev performs a best-effort vectored write across up to three segments,
// the response emitter's scatter-gather step, and writes whichever prefix
// of segments fits without blocking, returning the total
// bytes written; a short result (including zero) with a nil error means the
// socket blocked on the remainder and the caller should re-arm and retry.
//
// This iterates unix.Write per segment rather than issuing a single
// writev(2) syscall: it is simpler to reason about across EAGAIN/EINTR and
// is still a single-digit number of syscalls per call, since the emitter
// only ever has up to three segments in flight.
func Writev(fd int, segments [][]byte) (int64, error) {
	var total int64
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		n, err := Write(fd, seg)
		total += int64(n)
		if err != nil {
			if err == ErrWouldBlock {
				return total, nil
			}
			return total, err
		}
		if n < len(seg) {
			return total, nil
		}
	}
	return total, nil
}
