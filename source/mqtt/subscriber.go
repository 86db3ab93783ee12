// Package mqtt provides a source consuming messages from an MQTT broker.
package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	bridge "github.com/nisfeb/mqtt-rest-bridge"
	"github.com/nisfeb/mqtt-rest-bridge/message"
)

type Config struct {
	// Broker is the hostname or IP of the MQTT broker.
	Broker string

	// Port is the broker's TCP port.
	//
	// Defaults to 1883.
	Port int

	// ClientID identifies this client to the broker. A random suffix is
	// appended so that multiple bridge instances do not kick each other off
	// the broker.
	//
	// Defaults to "mqtt-rest-bridge".
	ClientID string

	Username string
	Password string

	// QoS used for subscriptions.
	QoS byte

	// ConnectTimeout limits how long to wait for the initial connection.
	//
	// Defaults to 10 seconds.
	ConnectTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = 1883
	}
	if c.ClientID == "" {
		c.ClientID = "mqtt-rest-bridge"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = time.Second * 10
	}
}

func (c Config) validate() error {
	if c.Broker == "" {
		return errors.New("empty Broker")
	}

	return nil
}

// Subscriber consumes messages from an MQTT broker.
//
// A connection failure at construction time is fatal: the bridge cannot do
// anything useful without its broker, so the error is returned instead of
// retried.
type Subscriber struct {
	config Config
	client paho.Client
	logger bridge.LoggerAdapter

	subscribersWg sync.WaitGroup

	closed     bool
	closedLock sync.Mutex
	closing    chan struct{}
}

// NewSubscriber connects to the broker and returns a ready subscriber.
func NewSubscriber(config Config, logger bridge.LoggerAdapter) (*Subscriber, error) {
	config.setDefaults()
	if err := config.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid mqtt config")
	}

	if logger == nil {
		logger = bridge.NopLogger{}
	}
	logger = logger.With(bridge.LogFields{
		"broker": fmt.Sprintf("%s:%d", config.Broker, config.Port),
	})

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", config.Broker, config.Port)).
		SetClientID(config.ClientID + "-" + bridge.NewShortUUID()).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(config.ConnectTimeout)

	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Error("Connection to broker lost", err, nil)
	}
	opts.OnConnect = func(_ paho.Client) {
		logger.Info("Connected to broker", nil)
	}

	client := paho.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(config.ConnectTimeout) {
		return nil, errors.New("timeout connecting to broker")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "cannot connect to broker")
	}

	return &Subscriber{
		config:  config,
		client:  client,
		logger:  logger,
		closing: make(chan struct{}),
	}, nil
}

// Subscribe subscribes to the MQTT topic filter and returns an output
// channel with the received messages.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.closedLock.Lock()
	if s.closed {
		s.closedLock.Unlock()
		return nil, errors.New("subscriber closed")
	}
	s.subscribersWg.Add(1)
	s.closedLock.Unlock()

	logFields := bridge.LogFields{"topic": topic}
	s.logger.Info("Subscribing to MQTT topic", logFields)

	output := make(chan *message.Message)

	token := s.client.Subscribe(topic, s.config.QoS, func(_ paho.Client, m paho.Message) {
		msg := message.NewMessage(bridge.NewULID(), m.Topic(), m.Payload())

		select {
		case output <- msg:
			s.logger.Trace("Message consumed", logFields.Add(bridge.LogFields{"message_uuid": msg.UUID}))
		case <-ctx.Done():
		case <-s.closing:
		}
	})
	if !token.WaitTimeout(s.config.ConnectTimeout) {
		s.subscribersWg.Done()
		return nil, errors.Errorf("timeout subscribing to topic %s", topic)
	}
	if err := token.Error(); err != nil {
		s.subscribersWg.Done()
		return nil, errors.Wrapf(err, "cannot subscribe to topic %s", topic)
	}

	go func() {
		defer s.subscribersWg.Done()

		select {
		case <-ctx.Done():
		case <-s.closing:
		}

		s.client.Unsubscribe(topic)
		close(output)
	}()

	return output, nil
}

// Close unsubscribes everything and disconnects from the broker.
func (s *Subscriber) Close() error {
	s.closedLock.Lock()
	defer s.closedLock.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	close(s.closing)

	s.subscribersWg.Wait()
	s.client.Disconnect(uint(s.config.ConnectTimeout.Milliseconds()))

	s.logger.Info("Disconnected from broker", nil)

	return nil
}
