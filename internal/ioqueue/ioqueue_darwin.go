//go:build darwin

package ioqueue

import (
	"sync"

	"golang.org/x/sys/unix"
)

// kqueueQueue is the level-triggered readiness queue used on Darwin.
// original_source/src/queue.c has no non-Linux backend (it compiles a
// literal #error on any platform but Linux); this file is original
// construction shaped like the epoll backend, built on x/sys/unix's kqueue
// bindings.
type kqueueQueue struct {
	fd int

	mu   sync.Mutex
	tags map[int]uint64 // fd -> last registered user tag, for Event.UserData lookup
}

// NewQueue creates a new platform readiness queue.
func NewQueue() (Queue, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueueQueue{fd: fd, tags: make(map[int]uint64)}, nil
}

func (q *kqueueQueue) changelist(fd int, interest Interest, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if interest&In != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags,
		})
	}
	if interest&Out != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags,
		})
	}
	return changes
}

func (q *kqueueQueue) Add(fd int, userData uint64, interest Interest) error {
	q.mu.Lock()
	q.tags[fd] = userData
	q.mu.Unlock()
	changes := q.changelist(fd, interest, unix.EV_ADD|unix.EV_ENABLE)
	_, err := unix.Kevent(q.fd, changes, nil, nil)
	return err
}

func (q *kqueueQueue) Rearm(fd int, userData uint64, interest Interest) error {
	// kqueue is level-triggered here and registrations persist, so Rearm is
	// only needed to update the interest set (e.g. switching from read to
	// write interest) or to refresh the user tag.
	q.mu.Lock()
	q.tags[fd] = userData
	q.mu.Unlock()
	changes := q.changelist(fd, In|Out, unix.EV_DELETE)
	_, _ = unix.Kevent(q.fd, changes, nil, nil)
	changes = q.changelist(fd, interest, unix.EV_ADD|unix.EV_ENABLE)
	_, err := unix.Kevent(q.fd, changes, nil, nil)
	return err
}

func (q *kqueueQueue) Remove(fd int) error {
	q.mu.Lock()
	delete(q.tags, fd)
	q.mu.Unlock()
	changes := q.changelist(fd, In|Out, unix.EV_DELETE)
	_, err := unix.Kevent(q.fd, changes, nil, nil)
	return err
}

func (q *kqueueQueue) Wait(events []Event) (int, error) {
	raw := make([]unix.Kevent_t, len(events))
	n, err := unix.Kevent(q.fd, nil, raw, nil)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		fd := int(raw[i].Ident)
		q.mu.Lock()
		tag := q.tags[fd]
		q.mu.Unlock()
		events[i] = Event{
			UserData: tag,
			Readable: raw[i].Filter == unix.EVFILT_READ,
			Writable: raw[i].Filter == unix.EVFILT_WRITE,
			Hangup:   raw[i].Flags&unix.EV_EOF != 0,
		}
	}
	return n, nil
}

func (q *kqueueQueue) Close() error {
	return unix.Close(q.fd)
}
