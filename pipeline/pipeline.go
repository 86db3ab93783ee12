package pipeline

import (
	"sync"

	bridge "github.com/nisfeb/mqtt-rest-bridge"
	"github.com/nisfeb/mqtt-rest-bridge/message"
)

// Config holds the pipeline's own settings and the configuration exposed to
// stages through the execution context.
type Config struct {
	// NewCorrelationID generates a correlation id for every processed
	// message. Defaults to bridge.NewUUID.
	NewCorrelationID func() string

	// Global is shared, read-only configuration visible to every stage.
	// It must not be mutated after the pipeline is built.
	Global Values

	// StageOverrides are per-stage option bags, keyed by stage name.
	StageOverrides map[string]Values

	// Core is the terminal handler at the center of the chain.
	// Defaults to PassThrough.
	Core HandlerFunc
}

func (c *Config) setDefaults() {
	if c.NewCorrelationID == nil {
		c.NewCorrelationID = bridge.NewUUID
	}
	if c.Core == nil {
		c.Core = PassThrough
	}
}

// Pipeline composes an ordered list of stages into a single handler.
//
// The chain is built exactly once, lazily, on the first call to Process.
// Stages added after that point have no effect on the built chain; callers
// must create a new Pipeline to change the stage list.
type Pipeline struct {
	config Config
	logger bridge.LoggerAdapter

	stages []stage

	buildOnce sync.Once
	handler   HandlerFunc
}

type stage struct {
	name string
	wrap Middleware
}

// NewPipeline creates a Pipeline with no stages.
func NewPipeline(config Config, logger bridge.LoggerAdapter) *Pipeline {
	config.setDefaults()

	if logger == nil {
		logger = bridge.NopLogger{}
	}

	return &Pipeline{
		config: config,
		logger: logger,
	}
}

// AddStage appends a stage to the chain.
//
// The order matters: the first added stage is the outermost one and sees the
// raw message first; the last added stage is the closest to the core.
// AddStage returns the pipeline so calls can be chained.
func (p *Pipeline) AddStage(name string, m Middleware) *Pipeline {
	p.logger.Debug("Adding stage", bridge.LogFields{"stage": name})

	p.stages = append(p.stages, stage{name: name, wrap: m})
	return p
}

func (p *Pipeline) build() {
	handler := p.config.Core

	// first added stages should be executed first (so should be at the top of call stack)
	for i := len(p.stages) - 1; i >= 0; i-- {
		handler = p.stages[i].wrap(handler)
	}

	p.handler = handler

	p.logger.Debug("Pipeline built", bridge.LogFields{"stages_count": len(p.stages)})
}

// Process runs one message through the chain and returns the terminal
// result.
//
// Process builds the chain on first use and is safe to call concurrently:
// every invocation gets a fresh execution context and the built chain is
// immutable. Errors never escape Process; a failing stage is logged and the
// message is reported as dropped.
func (p *Pipeline) Process(msg *message.Message) Result {
	p.buildOnce.Do(p.build)

	ctx := &Context{
		CorrelationID: p.config.NewCorrelationID(),

		global:    p.config.Global,
		overrides: p.config.StageOverrides,
	}

	logger := p.logger.With(bridge.LogFields{
		"correlation_id": ctx.CorrelationID,
		"message_uuid":   msg.UUID,
		"topic":          msg.Topic,
	})

	logger.Trace("Processing message", nil)

	result, err := p.handler(ctx, msg)
	if err != nil {
		logger.Error("Message dropped", err, nil)
		return ResultDropped
	}

	logger.Trace("Message processed", bridge.LogFields{"result": result})

	return result
}
