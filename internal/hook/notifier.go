package hook

import (
	"context"

	"github.com/opencode-ai/toolguard/internal/event"
)

// Notifier resolves tool calls an observer has already rendered as pending.
type Notifier interface {
	ToolCallFailed(ctx context.Context, data event.ToolCallFailedData) error
}

// EventNotifier delivers failures over the event bus. In-process
// subscribers receive an event.Event; transports subscribe to the
// event.ToolCallFailed topic and receive JSON messages.
type EventNotifier struct {
	bus *event.Bus
}

// NewEventNotifier creates a notifier publishing on bus.
func NewEventNotifier(bus *event.Bus) *EventNotifier {
	return &EventNotifier{bus: bus}
}

// ToolCallFailed publishes data.
func (n *EventNotifier) ToolCallFailed(ctx context.Context, data event.ToolCallFailedData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.bus.PublishMessage(string(event.ToolCallFailed), data); err != nil {
		return err
	}
	n.bus.Publish(event.Event{Type: event.ToolCallFailed, Data: data})
	return nil
}
