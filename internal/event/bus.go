// Package event provides a pub/sub event system using watermill.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/oklog/ulid/v2"
)

// Subscriber is a function that receives events.
type Subscriber func(event Event)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus delivers events to in-process subscribers by direct call, and carries
// JSON-encoded topic messages over a watermill GoChannel for consumers that
// live on the other side of a transport.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[EventType][]subscriberEntry
	global      []subscriberEntry

	nextID uint64
	closed bool
}

// NewBus creates a new event bus instance.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers: make(map[EventType][]subscriberEntry),
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers a subscriber for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribe(eventType, id)
	}
}

// SubscribeAll registers a subscriber for all events.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribeGlobal(id)
	}
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == id {
			b.global = append(b.global[:i:i], b.global[i+1:]...)
			break
		}
	}
}

func (b *Bus) collect(eventType EventType) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	subs := make([]Subscriber, 0, len(b.subscribers[eventType])+len(b.global))
	for _, entry := range b.subscribers[eventType] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	return subs
}

// Publish sends an event to all subscribers asynchronously.
// Each subscriber is called in its own goroutine.
func (b *Bus) Publish(event Event) {
	for _, sub := range b.collect(event.Type) {
		go sub(event)
	}
}

// PublishSync calls every subscriber in the current goroutine before returning.
// Subscribers must not publish re-entrantly or block.
func (b *Bus) PublishSync(event Event) {
	for _, sub := range b.collect(event.Type) {
		sub(event)
	}
}

// PublishMessage encodes payload as JSON and publishes it on a watermill topic.
// The message UUID is a ULID so consumers can order deliveries.
func (b *Bus) PublishMessage(topic string, payload any) (string, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return "", fmt.Errorf("publish %s: bus closed", topic)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", topic, err)
	}

	id := ulid.Make().String()
	msg := message.NewMessage(id, data)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return "", fmt.Errorf("publish %s: %w", topic, err)
	}
	return id, nil
}

// SubscribeMessages subscribes to a watermill topic. Consumers must Ack each
// message to receive the next one.
func (b *Bus) SubscribeMessages(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Close closes the bus and all its subscribers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscribers = make(map[EventType][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}
