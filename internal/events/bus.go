// Package events provides the in-process pub/sub bus carrying plan and timer
// change notifications to the presentation surface and the activity log.
package events

import (
	"sync"
	"time"
)

// EventType identifies what changed.
type EventType string

const (
	// EventPlanUpdated is published whenever the authoritative DayPlan is
	// replaced, by a local mutation or a remote snapshot.
	EventPlanUpdated EventType = "plan_updated"
	// EventTimerStarted is published when a countdown begins for a task.
	EventTimerStarted EventType = "timer_started"
	// EventTimerStopped is published when a running countdown is cancelled.
	EventTimerStopped EventType = "timer_stopped"
	// EventTimerExpired is published when a countdown reaches zero.
	EventTimerExpired EventType = "timer_expired"
)

// Event is a single bus notification.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]any
}

// Bus is a non-blocking pub/sub fanout. Each subscriber receives events on a
// buffered channel drained by its own goroutine; a full buffer drops the
// event for that subscriber rather than blocking the publisher.
type Bus struct {
	mu         sync.RWMutex
	nextID     int
	subs       map[EventType]map[int]chan Event
	bufferSize int
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		subs:       make(map[EventType]map[int]chan Event),
		bufferSize: bufferSize,
	}
}

// Subscribe registers fn for one event type and returns an unsubscribe
// function. fn runs on a dedicated goroutine; a panic in fn is swallowed so
// one bad subscriber cannot take down delivery for the rest.
func (b *Bus) Subscribe(eventType EventType, fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufferSize)
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[int]chan Event)
	}
	b.subs[eventType][id] = ch
	b.mu.Unlock()

	go func() {
		for ev := range ch {
			deliver(fn, ev)
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[eventType][id]; ok {
			delete(b.subs[eventType], id)
			close(c)
		}
	}
}

func deliver(fn func(Event), ev Event) {
	defer func() {
		_ = recover()
	}()
	fn(ev)
}

// Publish fans an event out to every subscriber of its type without blocking.
func (b *Bus) Publish(eventType EventType, data map[string]any) {
	ev := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[eventType] {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full; drop rather than block.
		}
	}
}

// Close tears down all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for eventType, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, eventType)
	}
}
