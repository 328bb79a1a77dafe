package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

func TestEventBroker_FanOut(t *testing.T) {
	b := newEventBroker()
	first, cancelFirst := b.subscribe(4)
	second, cancelSecond := b.subscribe(4)
	defer cancelFirst()
	defer cancelSecond()
	assert.Equal(t, 2, b.count())

	b.publish(domain.ChangeEvent{Type: domain.EventDocumentInserted, Collection: "users"})

	assert.Equal(t, "users", (<-first).Collection)
	assert.Equal(t, "users", (<-second).Collection)
}

func TestEventBroker_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	b := newEventBroker()
	events, cancel := b.subscribe(1)
	defer cancel()

	b.publish(domain.ChangeEvent{Type: domain.EventDocumentInserted, Count: 1})
	b.publish(domain.ChangeEvent{Type: domain.EventDocumentInserted, Count: 2})

	assert.Equal(t, 1, (<-events).Count)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestEventBroker_Close(t *testing.T) {
	b := newEventBroker()
	events, cancel := b.subscribe(1)

	b.close()
	b.close()
	_, open := <-events
	assert.False(t, open)
	assert.Zero(t, b.count())
	cancel() // no panic after close

	late, _ := b.subscribe(1)
	_, open = <-late
	assert.False(t, open, "subscriptions on a closed broker are closed immediately")
}
