package delivery

import (
	"context"

	bridge "github.com/nisfeb/mqtt-rest-bridge"
	"github.com/nisfeb/mqtt-rest-bridge/message"
	"github.com/nisfeb/mqtt-rest-bridge/pipeline"
)

// StageName is the delivery stage's name in pipeline configuration.
const StageName = "rest_put"

// Stage is the pipeline stage performing outbound transmission.
//
// On success the chain continues with the delivered message; a rejected or
// exhausted delivery short-circuits the chain and drops the message. Either
// way the stage never fails the pipeline: the outcome is observable through
// logs only.
type Stage struct {
	publisher *Publisher
	logger    bridge.LoggerAdapter
}

// NewStage creates the delivery stage around an already-built Publisher.
func NewStage(publisher *Publisher, logger bridge.LoggerAdapter) *Stage {
	if logger == nil {
		logger = bridge.NopLogger{}
	}

	return &Stage{
		publisher: publisher,
		logger:    logger.With(bridge.LogFields{"stage": StageName}),
	}
}

// Middleware returns the stage ready to be added to a pipeline.
func (s *Stage) Middleware(next pipeline.HandlerFunc) pipeline.HandlerFunc {
	return func(ctx *pipeline.Context, msg *message.Message) (pipeline.Result, error) {
		logFields := bridge.LogFields{
			"correlation_id": ctx.CorrelationID,
			"message_uuid":   msg.UUID,
		}

		outcome := s.publisher.Deliver(context.Background(), msg.Payload, logFields)
		if outcome != OutcomeSuccess {
			s.logger.Info("Message dropped after delivery", logFields.Add(bridge.LogFields{
				"outcome": outcome,
			}))
			return pipeline.ResultDropped, nil
		}

		return next(ctx, msg)
	}
}
