package transform

import (
	"fmt"

	"github.com/pkg/errors"

	bridge "github.com/nisfeb/mqtt-rest-bridge"
	"github.com/nisfeb/mqtt-rest-bridge/message"
	"github.com/nisfeb/mqtt-rest-bridge/pipeline"
)

// ChatStageName is the envelope-keyed format stage's name in pipeline configuration.
const ChatStageName = "chat_format"

// ChatConfig configures the envelope-keyed format stage.
type ChatConfig struct {
	// Author is the identity the posts are written as, e.g. "~sampel-palnet".
	Author string

	// Channel is the destination channel nest, e.g. "chat/~sampel-palnet/bridge".
	Channel string
}

func (c ChatConfig) validate() error {
	if c.Author == "" {
		return errors.New("empty Author")
	}
	if c.Channel == "" {
		return errors.New("empty Channel")
	}

	return nil
}

// ChatFormat decodes a binary envelope from the message payload and
// re-encodes it as a chat post for a single configured channel.
//
// The post body is the envelope payload; the signature line names the
// gateway and channel the message travelled through, and the timestamp is
// the envelope's sender-side rx time. A payload that does not decode is a
// recoverable failure: the message is dropped with no delivery attempt.
type ChatFormat struct {
	config ChatConfig
	seq    *Sequence
	logger bridge.LoggerAdapter
}

// NewChatFormat creates the stage. Configuration problems are reported here,
// at build time.
func NewChatFormat(config ChatConfig, seq *Sequence, logger bridge.LoggerAdapter) (*ChatFormat, error) {
	if err := config.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid chat format config")
	}
	if seq == nil {
		return nil, errors.New("nil Sequence")
	}

	if logger == nil {
		logger = bridge.NopLogger{}
	}

	return &ChatFormat{
		config: config,
		seq:    seq,
		logger: logger.With(bridge.LogFields{"stage": ChatStageName}),
	}, nil
}

// Middleware returns the stage ready to be added to a pipeline.
func (f *ChatFormat) Middleware(next pipeline.HandlerFunc) pipeline.HandlerFunc {
	return func(ctx *pipeline.Context, msg *message.Message) (pipeline.Result, error) {
		logFields := bridge.LogFields{
			"correlation_id": ctx.CorrelationID,
			"message_uuid":   msg.UUID,
		}

		envelope, err := DecodeEnvelope(msg.Payload)
		if err != nil {
			f.logger.Error("Cannot decode envelope, dropping message", err, logFields)
			return pipeline.ResultDropped, nil
		}

		signature := fmt.Sprintf("%s via %s", envelope.GatewayID, envelope.ChannelID)

		payload, err := encodePost(
			f.seq.Next(),
			f.config.Author,
			f.config.Channel,
			string(envelope.Payload),
			signature,
			envelope.RxTime,
		)
		if err != nil {
			return pipeline.ResultDropped, errors.Wrap(err, "cannot encode chat post")
		}

		formatted := msg.WithPayload(payload)
		formatted.Metadata.Set(DestinationMetadataKey, f.config.Channel)

		return next(ctx, formatted)
	}
}
