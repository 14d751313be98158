package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of oracle calls in flight at once. Waiters are
// served in FIFO order by the underlying semaphore, so no task starves as
// long as slots keep being released.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter creates a limiter with the given number of slots.
func NewLimiter(slots int) (*Limiter, error) {
	if slots < 1 {
		return nil, fmt.Errorf("limiter needs at least 1 slot, got %d", slots)
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(slots))}, nil
}

// Acquire blocks until a slot is free or the context is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire oracle slot: %w", err)
	}
	return nil
}

// Release frees a slot. Must run on every exit path of the task that
// acquired it.
func (l *Limiter) Release() {
	l.sem.Release(1)
}
