// Command mqtt-rest-bridge consumes messages from an MQTT broker, formats
// them as chat posts and delivers them to an HTTP endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	bridge "github.com/nisfeb/mqtt-rest-bridge"
	"github.com/nisfeb/mqtt-rest-bridge/config"
	"github.com/nisfeb/mqtt-rest-bridge/delivery"
	"github.com/nisfeb/mqtt-rest-bridge/metrics"
	"github.com/nisfeb/mqtt-rest-bridge/pipeline"
	"github.com/nisfeb/mqtt-rest-bridge/pipeline/middleware"
	"github.com/nisfeb/mqtt-rest-bridge/source/mqtt"
	"github.com/nisfeb/mqtt-rest-bridge/transform"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "mqtt-rest-bridge: %s\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Log)

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	subscriber, err := mqtt.NewSubscriber(mqtt.Config{
		Broker:   cfg.MQTT.Broker,
		Port:     cfg.MQTT.Port,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		QoS:      byte(cfg.MQTT.QoS),
	}, logger)
	if err != nil {
		return err
	}

	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		Topic: cfg.MQTT.Topic,
	}, subscriber, p, logger)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigs
		logger.Info(fmt.Sprintf("Received %s signal, closing", sig), nil)

		if err := runner.Close(); err != nil {
			logger.Error("Cannot close runner", err, nil)
		}
	}()

	return runner.Run(context.Background())
}

func newLogger(cfg config.LogConfig) bridge.LoggerAdapter {
	var level slog.Level
	switch cfg.Level {
	case "trace":
		level = bridge.LevelTrace
	case "debug":
		level = slog.LevelDebug
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return bridge.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

func newPipeline(cfg *config.Config, logger bridge.LoggerAdapter) (*pipeline.Pipeline, error) {
	publisher, err := delivery.NewPublisher(delivery.Target{
		BaseURL:     cfg.Delivery.BaseURL,
		Path:        cfg.Delivery.Path,
		Method:      cfg.Delivery.Method,
		Headers:     cfg.Delivery.Headers,
		Timeout:     cfg.Delivery.Timeout,
		MaxAttempts: cfg.Delivery.MaxAttempts,
		RetryDelay:  cfg.Delivery.RetryDelay,
	}, logger)
	if err != nil {
		return nil, err
	}

	p := pipeline.NewPipeline(pipeline.Config{}, logger).
		AddStage("recoverer", middleware.Recoverer)

	if cfg.Metrics.Enabled {
		registry, _ := metrics.CreateRegistryAndServeHTTP(cfg.Metrics.Addr)
		builder := metrics.NewPrometheusMetricsBuilder(registry, "bridge", "pipeline")
		p.AddStage("metrics", builder.NewPipelineMiddleware().Middleware)
	}

	seq := transform.NewSequence()

	switch cfg.Format.Mode {
	case config.FormatModeChat:
		stage, err := transform.NewChatFormat(transform.ChatConfig{
			Author:  cfg.Format.Author,
			Channel: cfg.Format.Channel,
		}, seq, logger)
		if err != nil {
			return nil, err
		}
		p.AddStage(transform.ChatStageName, stage.Middleware)
	case config.FormatModeTopic:
		stage, err := transform.NewTopicFormat(transform.TopicConfig{
			Author:       cfg.Format.Author,
			Destinations: cfg.Format.Destinations,
		}, seq, logger)
		if err != nil {
			return nil, err
		}
		p.AddStage(transform.TopicStageName, stage.Middleware)
	}

	p.AddStage(delivery.StageName, delivery.NewStage(publisher, logger).Middleware)

	return p, nil
}
