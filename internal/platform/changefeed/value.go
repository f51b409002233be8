package changefeed

import (
	"context"
	"sync"
)

// Observable is a read-only view of a Value.
type Observable[T any] interface {
	Get() T
	Subscribe(ctx context.Context) <-chan T
}

// Value holds the latest state of something and pushes every new state to
// its subscribers. New subscribers receive the current state first.
type Value[T any] struct {
	mu   sync.Mutex
	v    T
	subs map[chan T]struct{}
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{v: initial, subs: make(map[chan T]struct{})}
}

// Get returns the current state.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.v
}

// Set replaces the state and notifies subscribers.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setLocked(x)
}

// Update applies f to the current state atomically and publishes the result.
func (v *Value[T]) Update(f func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	x := f(v.v)
	v.setLocked(x)
	return x
}

func (v *Value[T]) setLocked(x T) {
	v.v = x
	for ch := range v.subs {
		offer(ch, x)
	}
}

// Subscribe returns a channel carrying the current state followed by every
// later state, latest-wins. The channel is closed when ctx is done.
func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	v.mu.Lock()
	v.subs[ch] = struct{}{}
	ch <- v.v
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.subs, ch)
		close(ch)
		v.mu.Unlock()
	}()
	return ch
}
