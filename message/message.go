package message

import (
	"time"
)

// Message is a single inbound message: a topic and a raw payload, stamped
// with the time it was received.
//
// A Message is immutable at ingress. Transform stages never mutate the
// payload in place; they produce a new Message with WithPayload, so every
// stage can be tested in isolation on its own input.
type Message struct {
	// UUID is a unique identifier of the message, assigned by the source.
	UUID string

	// Topic is the topic the message was published on.
	Topic string

	// Metadata contains the message metadata.
	//
	// Can be used to store data which doesn't require unmarshalling the entire payload.
	Metadata Metadata

	// Payload is the message's payload.
	Payload []byte

	// ReceivedAt is the time the message was pulled from the source.
	ReceivedAt time.Time
}

// NewMessage creates a new Message with given uuid, topic and payload.
func NewMessage(uuid string, topic string, payload []byte) *Message {
	return &Message{
		UUID:       uuid,
		Topic:      topic,
		Metadata:   make(Metadata),
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
}

// Copy returns a deep copy of the message.
func (m *Message) Copy() *Message {
	msg := &Message{
		UUID:       m.UUID,
		Topic:      m.Topic,
		Metadata:   make(Metadata, len(m.Metadata)),
		Payload:    make([]byte, len(m.Payload)),
		ReceivedAt: m.ReceivedAt,
	}

	for k, v := range m.Metadata {
		msg.Metadata.Set(k, v)
	}
	copy(msg.Payload, m.Payload)

	return msg
}

// WithPayload returns a copy of the message carrying the given payload.
// The original message is left untouched.
func (m *Message) WithPayload(payload []byte) *Message {
	msg := m.Copy()
	msg.Payload = payload

	return msg
}
