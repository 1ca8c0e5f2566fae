package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// LineKey identifies one line item slot: a (cart, product, size) triple.
type LineKey struct {
	CartID    uuid.UUID
	ProductID uuid.UUID
	SizeID    uuid.UUID
}

func (k LineKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.CartID, k.ProductID, k.SizeID)
}

// Locker serializes work on a single key. Acquire blocks until the key is free or ctx ends;
// the returned func releases it and is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
	Backend() string
}

// MemoryLocker is a keyed mutex for single-process deployments.
// Entries are reference counted and dropped once no caller holds or waits on them.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	token chan struct{}
	refs  int
}

// NewMemoryLocker returns an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*lockSlot)}
}

func (l *MemoryLocker) Backend() string { return "memory" }

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{token: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.token <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.token
			l.drop(key, slot)
		})
	}, nil
}

// Len reports how many keys are currently held or awaited.
func (l *MemoryLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *MemoryLocker) drop(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
