package gateway

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Latest.Fetch when a newer fetch was issued
// before this one completed. Callers drop the result.
var ErrSuperseded = errors.New("gateway: superseded by a newer request")

// Latest runs fetches for one logical resource so that only the newest result
// is delivered. Starting a fetch cancels the context of the one in flight.
type Latest[T any] struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// Fetch runs fn and returns its result unless a newer Fetch started in the
// meantime, in which case it returns ErrSuperseded.
func (l *Latest[T]) Fetch(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	l.gen++
	gen := l.gen
	l.cancel = cancel
	l.mu.Unlock()

	v, err := fn(fctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	cancel()
	if gen != l.gen {
		var zero T
		return zero, ErrSuperseded
	}
	l.cancel = nil
	return v, err
}

// Cancel aborts the fetch in flight, if any.
func (l *Latest[T]) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}
