package events

import (
	"sync"
	"time"
)

type Kind string

const (
	KindClassified    Kind = "classified"
	KindDegraded      Kind = "degraded"
	KindStorageFailed Kind = "storage_failed"
	KindKeywordsAdded Kind = "keywords_added"
	KindReconciled    Kind = "reconciled"
)

// Event is what the pipeline publishes. Fields not relevant to a Kind are
// left empty.
type Event struct {
	Kind      Kind      `json:"kind"`
	Time      time.Time `json:"time"`
	ID        string    `json:"id,omitempty"`
	InputKind string    `json:"input_kind,omitempty"`
	Category  string    `json:"category,omitempty"`
	Method    string    `json:"method,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Bus provides simple in-process pub/sub for observability. Slow subscribers
// miss events rather than block publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Subscribe() <-chan Event {
	return b.SubscribeBuffered(64)
}

func (b *Bus) SubscribeBuffered(size int) <-chan Event {
	ch := make(chan Event, size)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends every subscription. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
