package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nisfeb/mqtt-rest-bridge/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_file(t *testing.T) {
	path := writeConfigFile(t, `
mqtt:
  broker: broker.example.com
  topic: "sensors/#"
delivery:
  base_url: http://sink.example.com
  timeout: 5s
  max_attempts: 4
  retry_delay: 250ms
format:
  mode: topic
  author: "~sampel-palnet"
  destinations:
    sensors/temp: chat/~sampel-palnet/sensors
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "broker.example.com", cfg.MQTT.Broker)
	assert.Equal(t, "sensors/#", cfg.MQTT.Topic)
	assert.Equal(t, "http://sink.example.com", cfg.Delivery.BaseURL)
	assert.Equal(t, time.Second*5, cfg.Delivery.Timeout)
	assert.Equal(t, 4, cfg.Delivery.MaxAttempts)
	assert.Equal(t, time.Millisecond*250, cfg.Delivery.RetryDelay)
	assert.Equal(t, config.FormatModeTopic, cfg.Format.Mode)
	assert.Equal(t, "chat/~sampel-palnet/sensors", cfg.Format.Destinations["sensors/temp"])
}

func TestLoad_defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.FormatModeChat, cfg.Format.Mode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":9641", cfg.Metrics.Addr)
}

func TestLoad_env_overrides_file(t *testing.T) {
	path := writeConfigFile(t, `
mqtt:
  broker: broker.example.com
  topic: "sensors/#"
`)

	t.Setenv("BRIDGE_MQTT__BROKER", "other.example.com")
	t.Setenv("BRIDGE_DELIVERY__BASE_URL", "http://sink.example.com")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "other.example.com", cfg.MQTT.Broker)
	assert.Equal(t, "http://sink.example.com", cfg.Delivery.BaseURL)
}

func TestLoad_missing_file_is_not_an_error(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	valid := config.Config{
		MQTT:   config.MQTTConfig{Topic: "sensors/#"},
		Format: config.FormatConfig{Mode: config.FormatModeChat},
		Log:    config.LogConfig{Level: "info"},
	}
	require.NoError(t, valid.Validate())

	badMode := valid
	badMode.Format.Mode = "xml"
	assert.Error(t, badMode.Validate())

	badLevel := valid
	badLevel.Log.Level = "verbose"
	assert.Error(t, badLevel.Validate())

	noTopic := valid
	noTopic.MQTT.Topic = ""
	assert.Error(t, noTopic.Validate())
}
