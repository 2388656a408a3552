package pipeline

import "sync"

// subscriberBuffer is the per-subscriber event queue depth. A subscriber
// that falls further behind than this misses intermediate events but still
// receives the terminal one.
const subscriberBuffer = 16

// broadcaster fans progress events out to any number of subscribers without
// coupling stage code to a single callback signature.
type broadcaster struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool
	last   *Event
}

func newBroadcaster() *broadcaster {
	return &broadcaster{}
}

// Subscribe returns a channel of events. If the stream already ended, the
// channel delivers the terminal event and closes immediately.
func (b *broadcaster) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		if b.last != nil {
			ch <- *b.last
		}
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers an event to all subscribers. Slow subscribers drop
// intermediate events rather than blocking stage execution; a terminal
// event always evicts one queued event to guarantee delivery.
func (b *broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last = &ev

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			if ev.Terminal {
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- ev:
				default:
				}
			}
		}
	}

	if ev.Terminal {
		for _, ch := range b.subs {
			close(ch)
		}
		b.subs = nil
		b.closed = true
	}
}
