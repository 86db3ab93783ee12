package pipeline_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridge "github.com/nisfeb/mqtt-rest-bridge"
	"github.com/nisfeb/mqtt-rest-bridge/message"
	"github.com/nisfeb/mqtt-rest-bridge/pipeline"
)

// recordingStage appends its name to order before forwarding the message.
func recordingStage(name string, order *[]string) pipeline.Middleware {
	return func(next pipeline.HandlerFunc) pipeline.HandlerFunc {
		return func(ctx *pipeline.Context, msg *message.Message) (pipeline.Result, error) {
			*order = append(*order, name)
			return next(ctx, msg)
		}
	}
}

func TestPipeline_stage_order(t *testing.T) {
	var order []string

	p := pipeline.NewPipeline(pipeline.Config{}, nil)
	for i := 1; i <= 5; i++ {
		p.AddStage(fmt.Sprintf("stage_%d", i), recordingStage(fmt.Sprintf("stage_%d", i), &order))
	}

	result := p.Process(message.NewMessage("1", "topic", nil))

	require.Equal(t, pipeline.ResultDelivered, result)
	assert.Equal(t, []string{"stage_1", "stage_2", "stage_3", "stage_4", "stage_5"}, order,
		"first declared stage should be the first to see the message")
}

func TestPipeline_stage_sees_previous_output(t *testing.T) {
	appendStage := func(suffix string) pipeline.Middleware {
		return func(next pipeline.HandlerFunc) pipeline.HandlerFunc {
			return func(ctx *pipeline.Context, msg *message.Message) (pipeline.Result, error) {
				return next(ctx, msg.WithPayload(append(msg.Payload, []byte(suffix)...)))
			}
		}
	}

	var corePayload []byte
	p := pipeline.NewPipeline(pipeline.Config{
		Core: func(ctx *pipeline.Context, msg *message.Message) (pipeline.Result, error) {
			corePayload = msg.Payload
			return pipeline.ResultDelivered, nil
		},
	}, nil)
	p.AddStage("a", appendStage("a")).AddStage("b", appendStage("b"))

	msg := message.NewMessage("1", "topic", []byte("raw-"))
	p.Process(msg)

	assert.Equal(t, []byte("raw-ab"), corePayload)
	assert.Equal(t, []byte("raw-"), msg.Payload, "ingress message should stay immutable")
}

func TestPipeline_build_is_idempotent(t *testing.T) {
	run := func() []string {
		var order []string
		p := pipeline.NewPipeline(pipeline.Config{}, nil)
		p.AddStage("one", recordingStage("one", &order))
		p.AddStage("two", recordingStage("two", &order))

		p.Process(message.NewMessage("1", "topic", nil))
		p.Process(message.NewMessage("2", "topic", nil))

		return order
	}

	assert.Equal(t, run(), run(), "identical configuration should yield identical behaviour")
}

func TestPipeline_stages_added_after_build_are_ignored(t *testing.T) {
	var order []string

	p := pipeline.NewPipeline(pipeline.Config{}, nil)
	p.AddStage("before", recordingStage("before", &order))

	p.Process(message.NewMessage("1", "topic", nil))

	p.AddStage("after", recordingStage("after", &order))
	p.Process(message.NewMessage("2", "topic", nil))

	assert.Equal(t, []string{"before", "before"}, order,
		"stages added after the first Process should not affect the built chain")
}

func TestPipeline_short_circuit(t *testing.T) {
	coreCalled := false

	p := pipeline.NewPipeline(pipeline.Config{
		Core: func(ctx *pipeline.Context, msg *message.Message) (pipeline.Result, error) {
			coreCalled = true
			return pipeline.ResultDelivered, nil
		},
	}, nil)
	p.AddStage("dropper", func(next pipeline.HandlerFunc) pipeline.HandlerFunc {
		return func(ctx *pipeline.Context, msg *message.Message) (pipeline.Result, error) {
			return pipeline.ResultDropped, nil
		}
	})

	result := p.Process(message.NewMessage("1", "topic", nil))

	assert.Equal(t, pipeline.ResultDropped, result)
	assert.False(t, coreCalled, "short-circuiting stage must not call the rest of the chain")
}

func TestPipeline_error_is_contained(t *testing.T) {
	logger := bridge.NewCaptureLogger()
	stageErr := errors.New("malformed payload")

	p := pipeline.NewPipeline(pipeline.Config{}, logger)
	p.AddStage("failing", func(next pipeline.HandlerFunc) pipeline.HandlerFunc {
		return func(ctx *pipeline.Context, msg *message.Message) (pipeline.Result, error) {
			return pipeline.ResultDropped, stageErr
		}
	})

	result := p.Process(message.NewMessage("1", "topic", nil))

	assert.Equal(t, pipeline.ResultDropped, result)
	assert.True(t, logger.HasError(stageErr))

	// the next message is processed as if nothing happened
	assert.Equal(t, pipeline.ResultDropped, p.Process(message.NewMessage("2", "topic", nil)))
}

func TestPipeline_fresh_context_per_message(t *testing.T) {
	seen := map[string]struct{}{}
	var lock sync.Mutex

	p := pipeline.NewPipeline(pipeline.Config{}, nil)
	p.AddStage("collect", func(next pipeline.HandlerFunc) pipeline.HandlerFunc {
		return func(ctx *pipeline.Context, msg *message.Message) (pipeline.Result, error) {
			lock.Lock()
			seen[ctx.CorrelationID] = struct{}{}
			lock.Unlock()
			return next(ctx, msg)
		}
	})

	messagesCount := 50

	var wg sync.WaitGroup
	wg.Add(messagesCount)
	for i := 0; i < messagesCount; i++ {
		go func(i int) {
			defer wg.Done()
			p.Process(message.NewMessage(fmt.Sprintf("%d", i), "topic", nil))
		}(i)
	}
	wg.Wait()

	assert.Len(t, seen, messagesCount, "every message should receive its own correlation id")
}

func TestContext_stage_overrides_are_isolated(t *testing.T) {
	p := pipeline.NewPipeline(pipeline.Config{
		Global: pipeline.Values{"environment": "test"},
		StageOverrides: map[string]pipeline.Values{
			"rest_put": {"path": "/sink"},
		},
	}, nil)

	p.AddStage("meddling", func(next pipeline.HandlerFunc) pipeline.HandlerFunc {
		return func(ctx *pipeline.Context, msg *message.Message) (pipeline.Result, error) {
			ctx.StageOverrides("rest_put")["path"] = "/hijacked"
			return next(ctx, msg)
		}
	})
	p.AddStage("rest_put", func(next pipeline.HandlerFunc) pipeline.HandlerFunc {
		return func(ctx *pipeline.Context, msg *message.Message) (pipeline.Result, error) {
			assert.Equal(t, "/sink", ctx.StageOverrides("rest_put").String("path"))

			env, ok := ctx.Global("environment")
			assert.True(t, ok)
			assert.Equal(t, "test", env)

			return next(ctx, msg)
		}
	})

	result := p.Process(message.NewMessage("1", "topic", nil))
	assert.Equal(t, pipeline.ResultDelivered, result)
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "delivered", pipeline.ResultDelivered.String())
	assert.Equal(t, "dropped", pipeline.ResultDropped.String())
	assert.Equal(t, "unknown", pipeline.Result(42).String())
}
