//go:build linux

package ioqueue

import (
	"golang.org/x/sys/unix"
)

// epollQueue is the edge-triggered readiness queue used on Linux, grounded
// on original_source/src/queue.c's epoll_create1/epoll_ctl/epoll_wait usage.
type epollQueue struct {
	fd int
}

// NewQueue creates a new platform readiness queue.
func NewQueue() (Queue, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollQueue{fd: fd}, nil
}

func toEpollEvents(interest Interest) uint32 {
	var ev uint32 = unix.EPOLLET
	if interest&In != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&Out != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (q *epollQueue) Add(fd int, userData uint64, interest Interest) error {
	ev := &unix.EpollEvent{Events: toEpollEvents(interest)}
	ev.Fd = int32(fd)
	*(*uint64)(epollDataPtr(ev)) = userData
	return unix.EpollCtl(q.fd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (q *epollQueue) Rearm(fd int, userData uint64, interest Interest) error {
	ev := &unix.EpollEvent{Events: toEpollEvents(interest)}
	ev.Fd = int32(fd)
	*(*uint64)(epollDataPtr(ev)) = userData
	return unix.EpollCtl(q.fd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (q *epollQueue) Remove(fd int) error {
	err := unix.EpollCtl(q.fd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (q *epollQueue) Wait(events []Event) (int, error) {
	raw := make([]unix.EpollEvent, len(events))
	n, err := unix.EpollWait(q.fd, raw, -1)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		events[i] = Event{
			UserData: *(*uint64)(epollDataPtr(&raw[i])),
			Readable: raw[i].Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: raw[i].Events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Hangup:   raw[i].Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
		}
	}
	return n, nil
}

func (q *epollQueue) Close() error {
	return unix.Close(q.fd)
}
