// Package locking provides the in-process per-community lock used when the
// bot runs as a single process.
package locking

import (
	"context"
	"sync"

	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// Local is a keyed mutex. Each community gets a one-slot channel so that
// waiting can be abandoned when ctx is done.
type Local struct {
	mu    sync.Mutex
	slots map[shared.CommunityID]chan struct{}
}

// NewLocal creates an empty Local locker.
func NewLocal() *Local {
	return &Local{slots: make(map[shared.CommunityID]chan struct{})}
}

func (l *Local) slot(community shared.CommunityID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[community]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[community] = ch
	}
	return ch
}

// Acquire blocks until the community's lock is held or ctx is done.
func (l *Local) Acquire(ctx context.Context, community shared.CommunityID) (func(), error) {
	ch := l.slot(community)

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
