package changefeed

import (
	"context"
	"time"
)

// Query is a live query: Fetch re-reads the result and Topics names the
// tables whose changes make the result stale. A positive Every also re-reads
// on that interval, for results that depend on the clock as well as the data.
type Query[T any] struct {
	Hub     *Hub
	Topics  []string
	Fetch   func(ctx context.Context) (T, error)
	OnError func(err error)
	Every   time.Duration
}

// Get runs the query once.
func (q Query[T]) Get(ctx context.Context) (T, error) {
	return q.Fetch(ctx)
}

// Watch emits the current result immediately and again after every change
// on one of the query's topics. Only the latest result is buffered; a slow
// reader skips intermediate results. The channel is closed once ctx is done.
//
// The subscription is registered before the first fetch, so a change that
// commits between the fetch and the first read still triggers a re-read.
func (q Query[T]) Watch(ctx context.Context) <-chan T {
	out := make(chan T, 1)
	sub := q.Hub.Listen(1, q.Topics...)

	var tick <-chan time.Time
	var ticker *time.Ticker
	if q.Every > 0 {
		ticker = time.NewTicker(q.Every)
		tick = ticker.C
	}

	go func() {
		defer close(out)
		defer sub.Close()
		if ticker != nil {
			defer ticker.Stop()
		}

		q.emit(ctx, out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.Send:
				if !ok {
					return
				}
				q.emit(ctx, out)
			case <-tick:
				q.emit(ctx, out)
			}
		}
	}()
	return out
}

func (q Query[T]) emit(ctx context.Context, out chan T) {
	v, err := q.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil && q.OnError != nil {
			q.OnError(err)
		}
		return
	}
	offer(out, v)
}

// offer replaces whatever is pending in a one-slot channel with v. The
// caller must be the channel's only sender.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}
