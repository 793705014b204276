//go:build !linux && !darwin

package ioqueue

// NewQueue reports ErrUnsupportedPlatform. The original C implementation
// refuses to compile at all on non-Linux platforms (queue.c has a literal
// #error); Go has no portable equivalent of that, so the failure is
// deferred to this constructor call instead.
func NewQueue() (Queue, error) {
	return nil, ErrUnsupportedPlatform
}
