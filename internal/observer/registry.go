// Package observer provides a value registry that fans state changes out to
// subscribers.
package observer

import (
	"context"
	"log/slog"
	"sync"
)

// Registry holds a current value and the callbacks interested in it.
// Callbacks run synchronously on the goroutine that changed the value and
// must not call Set or Subscribe on the same registry.
type Registry[T comparable] struct {
	logger *slog.Logger

	// fanoutMu serializes deliveries so every subscriber sees values in the
	// order they were set.
	fanoutMu sync.Mutex

	mu     sync.Mutex
	value  T
	nextID uint64
	subs   map[uint64]func(T)
	closed bool
	done   chan struct{}
}

// NewRegistry creates a registry holding initial.
func NewRegistry[T comparable](initial T, logger *slog.Logger) *Registry[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry[T]{
		logger: logger,
		value:  initial,
		subs:   make(map[uint64]func(T)),
		done:   make(chan struct{}),
	}
}

// Get returns the current value.
func (r *Registry[T]) Get() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Subscribe registers fn and calls it once with the current value before
// returning. The returned function removes fn; calling it again, or after
// Close, does nothing.
func (r *Registry[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	r.fanoutMu.Lock()
	defer r.fanoutMu.Unlock()

	r.mu.Lock()
	current := r.value
	if r.closed {
		r.mu.Unlock()
		r.deliver(fn, current)
		return func() {}
	}
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()

	r.deliver(fn, current)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// Set stores v and, when it differs from the current value, calls every
// subscriber with it. It reports whether the value changed.
func (r *Registry[T]) Set(v T) bool {
	r.fanoutMu.Lock()
	defer r.fanoutMu.Unlock()

	r.mu.Lock()
	if r.value == v {
		r.mu.Unlock()
		return false
	}
	r.value = v
	if r.closed {
		r.mu.Unlock()
		return true
	}
	subs := make([]func(T), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		r.deliver(fn, v)
	}
	return true
}

// Watch returns a channel that receives the current value and every later
// change until ctx ends or the registry is closed, after which the channel is
// closed. A slow reader only misses intermediate values; the newest value
// replaces any unread one.
func (r *Registry[T]) Watch(ctx context.Context) <-chan T {
	ch := make(chan T, 1)
	send := func(v T) {
		for {
			select {
			case ch <- v:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}

	unsubscribe := r.Subscribe(send)

	go func() {
		select {
		case <-ctx.Done():
		case <-r.done:
		}
		unsubscribe()
		// Wait out any delivery that captured send before it was removed.
		r.fanoutMu.Lock()
		close(ch)
		r.fanoutMu.Unlock()
	}()

	return ch
}

// Len returns the number of registered subscribers.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Close removes every subscriber and stops all watchers. Later Set calls
// still update the value but notify no one.
func (r *Registry[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	clear(r.subs)
	close(r.done)
}

// deliver calls fn, containing any panic so one subscriber cannot break the
// others.
func (r *Registry[T]) deliver(fn func(T), v T) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber panicked", "value", v, "panic", rec)
		}
	}()
	fn(v)
}
