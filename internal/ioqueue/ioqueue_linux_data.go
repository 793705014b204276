//go:build linux

package ioqueue

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// epollDataPtr returns a pointer to the 8-byte data union of an EpollEvent
// (the Fd/Pad pair), letting us stash an arbitrary uint64 user tag instead
// of relying on the Fd field alone.
func epollDataPtr(ev *unix.EpollEvent) unsafe.Pointer {
	return unsafe.Pointer(&ev.Fd)
}
