// Package config loads the bridge configuration from a YAML file and the
// environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	FormatModeChat  = "chat"
	FormatModeTopic = "topic"
)

type Config struct {
	MQTT     MQTTConfig     `koanf:"mqtt"`
	Delivery DeliveryConfig `koanf:"delivery"`
	Format   FormatConfig   `koanf:"format"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
}

type MQTTConfig struct {
	Broker   string `koanf:"broker"`
	Port     int    `koanf:"port"`
	ClientID string `koanf:"client_id"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	QoS      int    `koanf:"qos"`

	// Topic is the subscription topic filter, MQTT wildcards included.
	Topic string `koanf:"topic"`
}

type DeliveryConfig struct {
	BaseURL     string            `koanf:"base_url"`
	Path        string            `koanf:"path"`
	Method      string            `koanf:"method"`
	Headers     map[string]string `koanf:"headers"`
	Timeout     time.Duration     `koanf:"timeout"`
	MaxAttempts int               `koanf:"max_attempts"`
	RetryDelay  time.Duration     `koanf:"retry_delay"`
}

type FormatConfig struct {
	// Mode selects the format stage: "chat" decodes binary envelopes into a
	// single channel, "topic" routes raw payloads through a topic mapping.
	Mode string `koanf:"mode"`

	Author  string `koanf:"author"`
	Channel string `koanf:"channel"`

	// Destinations is only used in "topic" mode.
	Destinations map[string]string `koanf:"destinations"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type LogConfig struct {
	// Level is one of trace, debug, info, error.
	Level string `koanf:"level"`
}

func (c Config) Validate() error {
	switch c.Format.Mode {
	case FormatModeChat, FormatModeTopic:
	default:
		return errors.Errorf("unknown format mode %q", c.Format.Mode)
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "error":
	default:
		return errors.Errorf("unknown log level %q", c.Log.Level)
	}

	if c.MQTT.Topic == "" {
		return errors.New("empty mqtt.topic")
	}

	return nil
}

// Load reads the YAML file at path (skipped when empty or missing), then
// overlays BRIDGE_* environment variables. BRIDGE_DELIVERY__BASE_URL maps to
// delivery.base_url.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, errors.Wrapf(err, "cannot load config file %s", path)
			}
		}
	}

	if err := k.Load(env.Provider("BRIDGE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "BRIDGE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, errors.Wrap(err, "cannot load environment")
	}

	// Default values
	if !k.Exists("format.mode") {
		k.Set("format.mode", FormatModeChat)
	}
	if !k.Exists("log.level") {
		k.Set("log.level", "info")
	}
	if !k.Exists("metrics.addr") {
		k.Set("metrics.addr", ":9641")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal config")
	}

	return &cfg, nil
}
