package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	bridge "github.com/nisfeb/mqtt-rest-bridge"
	sync_internal "github.com/nisfeb/mqtt-rest-bridge/internal/sync"
	"github.com/nisfeb/mqtt-rest-bridge/message"
	"github.com/nisfeb/mqtt-rest-bridge/source"
)

type RunnerConfig struct {
	// Topic is the topic filter passed to the subscriber.
	Topic string

	// CloseTimeout determines how long the runner will wait for in-flight
	// messages when closing.
	//
	// Defaults to 30 seconds.
	CloseTimeout time.Duration
}

func (c *RunnerConfig) setDefaults() {
	if c.CloseTimeout == 0 {
		c.CloseTimeout = time.Second * 30
	}
}

func (c RunnerConfig) validate() error {
	if c.Topic == "" {
		return errors.New("empty Topic")
	}

	return nil
}

// Runner connects a message source to a pipeline: every message consumed
// from the source is processed by the pipeline in its own goroutine.
type Runner struct {
	config RunnerConfig

	subscriber source.Subscriber
	pipeline   *Pipeline

	runningHandlersWg sync.WaitGroup

	closeCh    chan struct{}
	closedCh   chan struct{}
	closed     bool
	closedLock sync.Mutex

	logger bridge.LoggerAdapter

	running bool
}

// NewRunner creates a Runner consuming config.Topic from the subscriber.
func NewRunner(config RunnerConfig, subscriber source.Subscriber, p *Pipeline, logger bridge.LoggerAdapter) (*Runner, error) {
	config.setDefaults()
	if err := config.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid runner config")
	}
	if subscriber == nil {
		return nil, errors.New("nil subscriber")
	}
	if p == nil {
		return nil, errors.New("nil pipeline")
	}
	if logger == nil {
		logger = bridge.NopLogger{}
	}

	return &Runner{
		config: config,

		subscriber: subscriber,
		pipeline:   p,

		closeCh:  make(chan struct{}),
		closedCh: make(chan struct{}),

		logger: logger,
	}, nil
}

// Run subscribes and consumes messages until Close is called or ctx is
// cancelled. It blocks while running.
func (r *Runner) Run(ctx context.Context) error {
	if r.running {
		return errors.New("runner is already running")
	}
	r.running = true

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.logger.Debug("Subscribing to topic", bridge.LogFields{"topic": r.config.Topic})

	messages, err := r.subscriber.Subscribe(ctx, r.config.Topic)
	if err != nil {
		return errors.Wrapf(err, "cannot subscribe to topic %s", r.config.Topic)
	}

	go func() {
		select {
		case <-r.closeCh:
			// Close was called
		case <-ctx.Done():
		}
		cancel()
	}()

	r.logger.Info("Consuming messages", bridge.LogFields{"topic": r.config.Topic})

	for msg := range messages {
		r.runningHandlersWg.Add(1)

		go func(msg *message.Message) {
			defer r.runningHandlersWg.Done()
			r.pipeline.Process(msg)
		}(msg)
	}

	r.logger.Debug("Message channel closed, waiting for processors", nil)

	if sync_internal.WaitGroupTimeout(&r.runningHandlersWg, r.config.CloseTimeout) {
		return errors.New("timeout waiting for in-flight messages")
	}

	close(r.closedCh)
	r.logger.Info("Runner stopped", nil)

	return nil
}

// Close stops the runner and closes the subscriber, waiting for in-flight
// messages up to CloseTimeout.
func (r *Runner) Close() error {
	r.closedLock.Lock()
	defer r.closedLock.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	r.logger.Info("Closing runner", nil)
	defer r.logger.Info("Runner closed", nil)

	close(r.closeCh)

	if err := r.subscriber.Close(); err != nil {
		return errors.Wrap(err, "cannot close subscriber")
	}

	select {
	case <-r.closedCh:
	case <-time.After(r.config.CloseTimeout):
		return errors.New("runner close timeout")
	}

	return nil
}
