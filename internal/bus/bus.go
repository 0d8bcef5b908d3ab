// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus is the event transport between playback sessions and the
// clients watching them. Payloads are opaque bytes (JSON envelopes in
// practice) so the in-memory and Redis transports behave the same.
package bus

import "context"

// Message is an opaque event payload.
type Message []byte

// Subscriber is one subscription to a topic.
type Subscriber interface {
	// C returns the message channel. It is closed by Close.
	C() <-chan Message
	// Close unsubscribes.
	Close() error
}

// Bus is the event transport abstraction.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}

// subscriberBuffer is the per-subscriber queue length.
const subscriberBuffer = 64
