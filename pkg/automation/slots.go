package automation

import (
	"context"
	"slices"
	"sync"
)

// dealSlots serializes work per deal id. Waiters for a busy deal are granted
// the slot in arrival order; different deals never block each other.
type dealSlots struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	waiters []chan struct{}
}

func newDealSlots() *dealSlots {
	return &dealSlots{slots: make(map[string]*slot)}
}

// Acquire blocks until the slot for dealID is held by the caller or ctx is
// done. The returned function releases the slot and must be called once.
func (d *dealSlots) Acquire(ctx context.Context, dealID string) (func(), error) {
	d.mu.Lock()

	current, busy := d.slots[dealID]
	if !busy {
		d.slots[dealID] = &slot{}
		d.mu.Unlock()

		return d.releaser(dealID), nil
	}

	granted := make(chan struct{})
	current.waiters = append(current.waiters, granted)
	d.mu.Unlock()

	select {
	case <-granted:
		return d.releaser(dealID), nil
	case <-ctx.Done():
		d.mu.Lock()

		index := slices.Index(current.waiters, granted)
		if index >= 0 {
			current.waiters = slices.Delete(current.waiters, index, index+1)
			d.mu.Unlock()

			return nil, ctx.Err()
		}

		d.mu.Unlock()

		// The slot was handed over while giving up; pass it on.
		d.release(dealID)

		return nil, ctx.Err()
	}
}

func (d *dealSlots) releaser(dealID string) func() {
	var once sync.Once

	return func() {
		once.Do(func() { d.release(dealID) })
	}
}

func (d *dealSlots) release(dealID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.slots[dealID]
	if !ok {
		return
	}

	if len(current.waiters) == 0 {
		delete(d.slots, dealID)

		return
	}

	next := current.waiters[0]
	current.waiters = current.waiters[1:]
	close(next)
}

// Len returns the number of deals currently holding a slot.
func (d *dealSlots) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.slots)
}

func (d *dealSlots) waiting(dealID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.slots[dealID]
	if !ok {
		return 0
	}

	return len(current.waiters)
}
