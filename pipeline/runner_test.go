package pipeline_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nisfeb/mqtt-rest-bridge/delivery"
	"github.com/nisfeb/mqtt-rest-bridge/message"
	"github.com/nisfeb/mqtt-rest-bridge/pipeline"
	"github.com/nisfeb/mqtt-rest-bridge/source/gochannel"
	"github.com/nisfeb/mqtt-rest-bridge/transform"
)

// TestRunner_end_to_end consumes from an in-process source, formats per-topic
// and delivers to an HTTP sink. A message on an unmapped topic must never
// reach the sink.
func TestRunner_end_to_end(t *testing.T) {
	requestBodies := make(chan string, 10)

	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		requestBodies <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	publisher, err := delivery.NewPublisher(delivery.Target{BaseURL: sink.URL}, nil)
	require.NoError(t, err)

	formatStage, err := transform.NewTopicFormat(transform.TopicConfig{
		Author:       "~sampel-palnet",
		Destinations: map[string]string{"sensors/temp": "chat/~sampel-palnet/sensors"},
	}, transform.NewSequence(), nil)
	require.NoError(t, err)

	p := pipeline.NewPipeline(pipeline.Config{}, nil).
		AddStage(transform.TopicStageName, formatStage.Middleware).
		AddStage(delivery.StageName, delivery.NewStage(publisher, nil).Middleware)

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 10}, nil)

	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		Topic:        "ingest",
		CloseTimeout: time.Second * 5,
	}, pubSub, p, nil)
	require.NoError(t, err)

	runStopped := make(chan error, 1)
	go func() {
		runStopped <- runner.Run(context.Background())
	}()

	// give the runner a moment to subscribe
	time.Sleep(time.Millisecond * 100)

	require.NoError(t, pubSub.Publish("ingest", message.NewMessage("1", "sensors/temp", []byte("23.5"))))
	require.NoError(t, pubSub.Publish("ingest", message.NewMessage("2", "sensors/unknown", []byte("42"))))

	select {
	case body := <-requestBodies:
		assert.Contains(t, body, "23.5")
		assert.Contains(t, body, "chat/~sampel-palnet/sensors")
	case <-time.After(time.Second * 5):
		t.Fatal("sink received no request")
	}

	require.NoError(t, runner.Close())
	require.NoError(t, <-runStopped)

	select {
	case body := <-requestBodies:
		t.Fatalf("unexpected extra request: %s", body)
	default:
	}
}

func TestNewRunner_invalid(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, nil)
	defer pubSub.Close()

	p := pipeline.NewPipeline(pipeline.Config{}, nil)

	_, err := pipeline.NewRunner(pipeline.RunnerConfig{}, pubSub, p, nil)
	assert.Error(t, err, "empty topic should be a build-time error")

	_, err = pipeline.NewRunner(pipeline.RunnerConfig{Topic: "t"}, nil, p, nil)
	assert.Error(t, err)

	_, err = pipeline.NewRunner(pipeline.RunnerConfig{Topic: "t"}, pubSub, nil, nil)
	assert.Error(t, err)
}

func TestRunner_close_is_idempotent(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, nil)

	p := pipeline.NewPipeline(pipeline.Config{}, nil)

	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{Topic: "t"}, pubSub, p, nil)
	require.NoError(t, err)

	runStopped := make(chan error, 1)
	go func() {
		runStopped <- runner.Run(context.Background())
	}()

	time.Sleep(time.Millisecond * 100)

	require.NoError(t, runner.Close())
	require.NoError(t, runner.Close())
	require.NoError(t, <-runStopped)
}
