// Package runlock serializes committing planner runs.
package runlock

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when another holder owns the lock
var ErrBusy = errors.New("runlock: lock is held")

// ReleaseFunc gives the lock back
type ReleaseFunc func(ctx context.Context) error

// Locker hands out named, non-blocking locks
type Locker interface {
	TryAcquire(ctx context.Context, key string) (ReleaseFunc, error)
}

// Local is an in-process Locker
type Local struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocal creates an in-process Locker
func NewLocal() *Local {
	return &Local{held: make(map[string]bool)}
}

func (l *Local) TryAcquire(_ context.Context, key string) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, ErrBusy
	}
	l.held[key] = true

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
