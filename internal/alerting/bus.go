package alerting

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/good-yellow-bee/feedwatch/internal/metrics"
	"github.com/good-yellow-bee/feedwatch/internal/models"
)

// TriggerFunc receives each batch of new triggers.
type TriggerFunc func(triggers []*models.AlertTrigger)

// Bus is an in-memory fanout of trigger batches to subscribers.
//
// Contract:
//   - Publish calls every subscriber synchronously, in registration
//     order snapshot.
//   - A panic in one subscriber is recovered and logged; remaining
//     subscribers still run and engine state is unaffected.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]TriggerFunc
	seq  atomic.Uint64
}

// NewBus creates an empty subscriber bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]TriggerFunc)}
}

// Subscribe registers a callback and returns its unsubscribe function.
// Unsubscribing twice is safe.
func (b *Bus) Subscribe(fn TriggerFunc) func() {
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers a trigger batch to all current subscribers.
func (b *Bus) Publish(triggers []*models.AlertTrigger) {
	// Snapshot subscribers so callbacks run without the lock held and
	// may unsubscribe themselves.
	b.mu.RLock()
	fns := make([]TriggerFunc, 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.SubscriberPanics.Inc()
					log.Printf("alert subscriber panic recovered: %v", r)
				}
			}()
			fn(triggers)
		}()
	}
}

// Len returns the number of registered subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
