// Package eventbus is an in-process fanout of poster events. Metrics and
// tests observe the posting loop through it.
package eventbus

import (
	"sync"
	"time"
)

// Event is one signal from the posting loop. Data holds one of the payload
// types in events.go.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Bus delivers events to every current subscriber. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

const defaultBuffer = 8

// Memory is the in-process Bus. It owns no goroutines.
type Memory struct {
	mu      sync.Mutex
	subs    []chan Event
	dropped uint64
}

func New() *Memory { return &Memory{} }

// Publish stamps e with the current time when unset. Sends happen under the
// lock, so an unsubscribe cannot close a channel mid-send.
func (b *Memory) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped++
		}
	}
}

func (b *Memory) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	var once sync.Once
	return ch, func() { once.Do(func() { b.remove(ch) }) }
}

func (b *Memory) remove(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.subs {
		if c == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	close(ch)
}

// Dropped counts deliveries skipped because a subscriber was full.
func (b *Memory) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

func (Nop) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}
}
