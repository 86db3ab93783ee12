package gochannel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nisfeb/mqtt-rest-bridge/message"
	"github.com/nisfeb/mqtt-rest-bridge/source/gochannel"
)

func TestGoChannel_publish_subscribe(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 10}, nil)
	defer pubSub.Close()

	messagesCh, err := pubSub.Subscribe(context.Background(), "topic")
	require.NoError(t, err)

	sent := message.NewMessage("1", "topic", []byte("payload"))
	require.NoError(t, pubSub.Publish("topic", sent))

	select {
	case received := <-messagesCh:
		assert.Equal(t, sent.UUID, received.UUID)
		assert.Equal(t, sent.Payload, received.Payload)
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestGoChannel_no_subscribers(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, nil)
	defer pubSub.Close()

	err := pubSub.Publish("topic", message.NewMessage("1", "topic", nil))
	assert.NoError(t, err, "publishing to a topic without subscribers discards the message")
}

func TestGoChannel_subscriber_receives_copy(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1}, nil)
	defer pubSub.Close()

	messagesCh, err := pubSub.Subscribe(context.Background(), "topic")
	require.NoError(t, err)

	sent := message.NewMessage("1", "topic", []byte("payload"))
	require.NoError(t, pubSub.Publish("topic", sent))

	received := <-messagesCh
	received.Payload[0] = 'X'
	assert.Equal(t, []byte("payload"), sent.Payload)
}

func TestGoChannel_close_closes_output_channels(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, nil)

	messagesCh, err := pubSub.Subscribe(context.Background(), "topic")
	require.NoError(t, err)

	require.NoError(t, pubSub.Close())

	select {
	case _, open := <-messagesCh:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("output channel not closed")
	}

	_, err = pubSub.Subscribe(context.Background(), "topic")
	assert.Error(t, err, "subscribing after close must fail")

	err = pubSub.Publish("topic", message.NewMessage("1", "topic", nil))
	assert.Error(t, err, "publishing after close must fail")
}

func TestGoChannel_context_cancel_closes_output_channel(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, nil)
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	messagesCh, err := pubSub.Subscribe(ctx, "topic")
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-messagesCh:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("output channel not closed")
	}
}
