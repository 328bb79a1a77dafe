package storage

import (
	"log"
	"sync"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// eventBroker fans change events out to subscriber channels. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type eventBroker struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.ChangeEvent
	nextID int
	closed bool
}

func newEventBroker() *eventBroker {
	return &eventBroker{subs: make(map[int]chan domain.ChangeEvent)}
}

func (b *eventBroker) subscribe(buffer int) (<-chan domain.ChangeEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.ChangeEvent, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *eventBroker) publish(ev domain.ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("WARN: Dropped %s event for subscriber %d (buffer full)", ev.Type, id)
		}
	}
}

// close ends every subscription
func (b *eventBroker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *eventBroker) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

func (b *eventBroker) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
