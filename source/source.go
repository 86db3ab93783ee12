// Package source defines where the bridge's inbound messages come from.
package source

import (
	"context"

	"github.com/nisfeb/mqtt-rest-bridge/message"
)

// Subscriber delivers inbound messages from some transport.
type Subscriber interface {
	// Subscribe returns an output channel with messages from the provided topic.
	// The channel is closed after Close or when ctx is cancelled.
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)

	// Close closes the subscriber and all its output channels.
	Close() error
}
