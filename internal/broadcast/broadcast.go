package broadcast

import (
	"sync"
	"sync/atomic"

	"mathrace/internal/metrics"
)

const DefaultBuffer = 16

// Broadcaster fans each published message out to every subscriber's own
// bounded queue. A full queue loses that message; the publisher never blocks.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[chan string]bool
	buffer  int
	dropped atomic.Int64
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster{
		clients: make(map[chan string]bool),
		buffer:  buffer,
	}
}

// Subscribe returns a queue that receives every message published from now on.
func (b *Broadcaster) Subscribe() chan string {
	ch := make(chan string, b.buffer)
	b.mu.Lock()
	b.clients[ch] = true
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) Unsubscribe(ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; !ok {
		return
	}
	delete(b.clients, ch)
	close(ch)
}

func (b *Broadcaster) Publish(messages ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, msg := range messages {
		for ch := range b.clients {
			select {
			case ch <- msg:
			default:
				b.dropped.Add(1)
				metrics.BroadcastsDropped.Inc()
			}
		}
	}
}

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Dropped reports how many per-subscriber deliveries were skipped.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// Close unsubscribes everyone, closing their queues.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
}
