package acquisition

import (
	"context"
	"sync"
)

// entityLocks hands out one lock per normalized entity so two runs never
// share a staging directory. Entries are dropped when the last holder or
// waiter leaves.
type entityLocks struct {
	mu    sync.Mutex
	slots map[string]*entitySlot
}

type entitySlot struct {
	ch   chan struct{}
	refs int
}

func newEntityLocks() *entityLocks {
	return &entityLocks{slots: make(map[string]*entitySlot)}
}

// acquire blocks until entity is free or ctx ends. The returned func
// releases the lock.
func (l *entityLocks) acquire(ctx context.Context, entity string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[entity]
	if !ok {
		slot = &entitySlot{ch: make(chan struct{}, 1)}
		l.slots[entity] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return func() {
			<-slot.ch
			l.leave(entity, slot)
		}, nil
	case <-ctx.Done():
		l.leave(entity, slot)
		return nil, ctx.Err()
	}
}

func (l *entityLocks) leave(entity string, slot *entitySlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, entity)
	}
}

func (l *entityLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
