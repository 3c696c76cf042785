// Package lazy provides reusable collaborator handles that connect on first use.
package lazy

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("lazy handle closed")

// Handle builds a value once on demand and hands the same value to every
// later caller. A failed build is not cached, so the next Get retries.
type Handle[T any] struct {
	build func(context.Context) (T, error)
	close func(T) error

	mu     sync.Mutex
	value  T
	ready  bool
	closed bool
}

// New returns a handle that calls build on first Get. closeFn may be nil.
func New[T any](build func(context.Context) (T, error), closeFn func(T) error) *Handle[T] {
	return &Handle[T]{build: build, close: closeFn}
}

// Get returns the shared value, building it if needed.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero T
	if h.closed {
		return zero, ErrClosed
	}
	if h.ready {
		return h.value, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	value, err := h.build(ctx)
	if err != nil {
		return zero, err
	}
	h.value = value
	h.ready = true
	return value, nil
}

// Warm builds the value ahead of first use.
func (h *Handle[T]) Warm(ctx context.Context) error {
	_, err := h.Get(ctx)
	return err
}

// Ready reports whether a value has been built.
func (h *Handle[T]) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// Close releases the built value, if any. Later Gets fail with ErrClosed.
func (h *Handle[T]) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if !h.ready || h.close == nil {
		return nil
	}
	value := h.value
	var zero T
	h.value = zero
	h.ready = false
	return h.close(value)
}
