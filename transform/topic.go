package transform

import (
	"github.com/pkg/errors"

	bridge "github.com/nisfeb/mqtt-rest-bridge"
	"github.com/nisfeb/mqtt-rest-bridge/message"
	"github.com/nisfeb/mqtt-rest-bridge/pipeline"
)

// TopicStageName is the topic-keyed format stage's name in pipeline configuration.
const TopicStageName = "topic_format"

// TopicConfig configures the topic-keyed format stage.
type TopicConfig struct {
	// Author is the identity the posts are written as.
	Author string

	// Destinations maps an inbound topic to the destination channel
	// receiving its messages.
	Destinations map[string]string
}

func (c TopicConfig) validate() error {
	if c.Author == "" {
		return errors.New("empty Author")
	}
	if len(c.Destinations) == 0 {
		return errors.New("no destinations configured")
	}

	return nil
}

// TopicFormat formats a raw topic/payload pair as a chat post, resolving the
// destination channel through a per-topic mapping.
//
// Unlike ChatFormat it does not expect any envelope: the payload text
// becomes the post body, the topic becomes the signature line and the
// message's receive time becomes the timestamp. A topic with no mapped
// destination is a recoverable failure: the message is dropped before any
// delivery attempt.
type TopicFormat struct {
	config TopicConfig
	seq    *Sequence
	logger bridge.LoggerAdapter
}

// NewTopicFormat creates the stage. Configuration problems are reported
// here, at build time.
func NewTopicFormat(config TopicConfig, seq *Sequence, logger bridge.LoggerAdapter) (*TopicFormat, error) {
	if err := config.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid topic format config")
	}
	if seq == nil {
		return nil, errors.New("nil Sequence")
	}

	if logger == nil {
		logger = bridge.NopLogger{}
	}

	return &TopicFormat{
		config: config,
		seq:    seq,
		logger: logger.With(bridge.LogFields{"stage": TopicStageName}),
	}, nil
}

// Middleware returns the stage ready to be added to a pipeline.
func (f *TopicFormat) Middleware(next pipeline.HandlerFunc) pipeline.HandlerFunc {
	return func(ctx *pipeline.Context, msg *message.Message) (pipeline.Result, error) {
		logFields := bridge.LogFields{
			"correlation_id": ctx.CorrelationID,
			"message_uuid":   msg.UUID,
			"topic":          msg.Topic,
		}

		destination, ok := f.config.Destinations[msg.Topic]
		if !ok {
			f.logger.Info("No destination mapped for topic, dropping message", logFields)
			return pipeline.ResultDropped, nil
		}

		payload, err := encodePost(
			f.seq.Next(),
			f.config.Author,
			destination,
			string(msg.Payload),
			msg.Topic,
			msg.ReceivedAt,
		)
		if err != nil {
			return pipeline.ResultDropped, errors.Wrap(err, "cannot encode chat post")
		}

		formatted := msg.WithPayload(payload)
		formatted.Metadata.Set(DestinationMetadataKey, destination)

		return next(ctx, formatted)
	}
}
