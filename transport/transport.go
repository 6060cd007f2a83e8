// Package transport delivers market messages to brokers.
//
// The market core hands plain Go values to a Transport. Encoding happens
// only at the edge, in Codec, so domain types never carry wire concerns.
package transport

import (
	"context"
	"sync"
)

// Transport sends messages to one broker or to every broker.
type Transport interface {
	SendTo(ctx context.Context, brokerID string, msg any) error
	Broadcast(ctx context.Context, msg any) error
}

// Delivery is one message captured by an Outbox. To is empty for broadcasts.
type Delivery struct {
	To      string
	Message any
}

// Outbox is a Transport that keeps every message in memory.
type Outbox struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// NewOutbox returns an empty Outbox.
func NewOutbox() *Outbox { return &Outbox{} }

// SendTo implements Transport.
func (o *Outbox) SendTo(_ context.Context, brokerID string, msg any) error {
	o.mu.Lock()
	o.deliveries = append(o.deliveries, Delivery{To: brokerID, Message: msg})
	o.mu.Unlock()
	return nil
}

// Broadcast implements Transport.
func (o *Outbox) Broadcast(_ context.Context, msg any) error {
	o.mu.Lock()
	o.deliveries = append(o.deliveries, Delivery{Message: msg})
	o.mu.Unlock()
	return nil
}

// SentTo returns the messages sent to brokerID in order.
func (o *Outbox) SentTo(brokerID string) []any {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []any
	for _, d := range o.deliveries {
		if d.To == brokerID {
			out = append(out, d.Message)
		}
	}
	return out
}

// Broadcasts returns the broadcast messages in order.
func (o *Outbox) Broadcasts() []any {
	return o.SentTo("")
}

// Deliveries returns everything sent so far.
func (o *Outbox) Deliveries() []Delivery {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Delivery, len(o.deliveries))
	copy(out, o.deliveries)
	return out
}

// Reset drops all captured messages.
func (o *Outbox) Reset() {
	o.mu.Lock()
	o.deliveries = nil
	o.mu.Unlock()
}

// Discard is a Transport that drops every message.
type Discard struct{}

func (Discard) SendTo(context.Context, string, any) error { return nil }
func (Discard) Broadcast(context.Context, any) error      { return nil }

// Fanout sends every message through each of its transports in order and
// returns the first error.
type Fanout []Transport

// SendTo implements Transport.
func (f Fanout) SendTo(ctx context.Context, brokerID string, msg any) error {
	var first error
	for _, t := range f {
		if err := t.SendTo(ctx, brokerID, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Broadcast implements Transport.
func (f Fanout) Broadcast(ctx context.Context, msg any) error {
	var first error
	for _, t := range f {
		if err := t.Broadcast(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
