// Package gochannel provides an in-process source backed by Go channels.
package gochannel

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	bridge "github.com/nisfeb/mqtt-rest-bridge"
	"github.com/nisfeb/mqtt-rest-bridge/message"
)

type Config struct {
	// Output channel buffer size.
	OutputChannelBuffer int64
}

// GoChannel is the simplest source implementation. It is based on Go
// channels sent within the process, so the same instance must be used
// for publishing and subscribing.
type GoChannel struct {
	config Config
	logger bridge.LoggerAdapter

	subscribersWg   sync.WaitGroup
	subscribers     map[string][]*subscriber
	subscribersLock sync.RWMutex

	closed     bool
	closedLock sync.Mutex
	closing    chan struct{}
}

// NewGoChannel creates a new GoChannel source.
//
// Messages are not persisted: a message published to a topic with no
// subscribers is discarded.
func NewGoChannel(config Config, logger bridge.LoggerAdapter) *GoChannel {
	if logger == nil {
		logger = bridge.NopLogger{}
	}

	return &GoChannel{
		config:      config,
		subscribers: make(map[string][]*subscriber),
		logger: logger.With(bridge.LogFields{
			"gochannel_uuid": bridge.NewShortUUID(),
		}),

		closing: make(chan struct{}),
	}
}

// Publish sends messages to all subscribers of the topic. It does not block
// until consumers consume; messages are sent in the background.
func (g *GoChannel) Publish(topic string, messages ...*message.Message) error {
	if g.isClosed() {
		return errors.New("source closed")
	}

	for i, msg := range messages {
		messages[i] = msg.Copy()
	}

	g.subscribersLock.RLock()
	defer g.subscribersLock.RUnlock()

	for i := range messages {
		g.sendMessage(topic, messages[i])
	}

	return nil
}

func (g *GoChannel) sendMessage(topic string, msg *message.Message) {
	subscribers := g.subscribers[topic]
	logFields := bridge.LogFields{"message_uuid": msg.UUID, "topic": topic}

	if len(subscribers) == 0 {
		g.logger.Info("No subscribers to send message", logFields)
		return
	}

	go func(subscribers []*subscriber) {
		for i := range subscribers {
			subscribers[i].send(msg, logFields)
		}
	}(subscribers)
}

// Subscribe returns a channel to which all messages published to the topic
// are sent. Every subscriber receives every produced message.
func (g *GoChannel) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	g.closedLock.Lock()
	if g.closed {
		g.closedLock.Unlock()
		return nil, errors.New("source closed")
	}
	g.subscribersWg.Add(1)
	g.closedLock.Unlock()

	g.subscribersLock.Lock()
	defer g.subscribersLock.Unlock()

	s := &subscriber{
		uuid:          bridge.NewUUID(),
		outputChannel: make(chan *message.Message, g.config.OutputChannelBuffer),
		logger:        g.logger,
		closing:       make(chan struct{}),
	}

	go func(s *subscriber) {
		select {
		case <-ctx.Done():
			// unblock
		case <-g.closing:
			// unblock
		}

		s.Close()

		g.subscribersLock.Lock()
		defer g.subscribersLock.Unlock()

		g.removeSubscriber(topic, s)
		g.subscribersWg.Done()
	}(s)

	g.subscribers[topic] = append(g.subscribers[topic], s)

	return s.outputChannel, nil
}

func (g *GoChannel) removeSubscriber(topic string, toRemove *subscriber) {
	for i, sub := range g.subscribers[topic] {
		if sub == toRemove {
			g.subscribers[topic] = append(g.subscribers[topic][:i], g.subscribers[topic][i+1:]...)
			return
		}
	}
	panic("cannot remove subscriber, not found " + toRemove.uuid)
}

func (g *GoChannel) isClosed() bool {
	g.closedLock.Lock()
	defer g.closedLock.Unlock()

	return g.closed
}

// Close closes the source and waits until all subscribers are removed.
func (g *GoChannel) Close() error {
	g.closedLock.Lock()
	defer g.closedLock.Unlock()

	if g.closed {
		return nil
	}

	g.closed = true
	close(g.closing)

	g.logger.Debug("Closing source, waiting for subscribers", nil)
	g.subscribersWg.Wait()

	g.logger.Info("Source closed", nil)

	return nil
}

type subscriber struct {
	uuid string

	sending       sync.Mutex
	outputChannel chan *message.Message

	logger  bridge.LoggerAdapter
	closed  bool
	closing chan struct{}
}

func (s *subscriber) Close() {
	if s.closed {
		return
	}
	close(s.closing)

	// ensuring that we are not sending to a closed channel
	s.sending.Lock()
	defer s.sending.Unlock()

	s.closed = true
	close(s.outputChannel)
}

func (s *subscriber) send(msg *message.Message, logFields bridge.LogFields) {
	s.sending.Lock()
	defer s.sending.Unlock()

	if s.closed {
		s.logger.Info("Subscriber closed, discarding msg", logFields)
		return
	}

	// copy so that downstream transforms never share state across subscribers
	msgToSend := msg.Copy()

	select {
	case s.outputChannel <- msgToSend:
		s.logger.Trace("Sent message to subscriber", logFields)
	case <-s.closing:
		s.logger.Trace("Closing, message discarded", logFields)
	}
}
