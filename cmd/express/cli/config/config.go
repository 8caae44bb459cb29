package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the express CLI configuration.
// Use mapstructure tags for Viper unmarshaling.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Paths  PathsConfig  `mapstructure:"paths"`
	Feed   FeedConfig   `mapstructure:"feed"`
	NATS   NATSConfig   `mapstructure:"nats"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// PathsConfig holds output directories.
type PathsConfig struct {
	Static  string `mapstructure:"static"`
	Archive string `mapstructure:"archive"`
}

// FeedConfig holds feed loop settings.
type FeedConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Window   int           `mapstructure:"window"`
	Prefix   string        `mapstructure:"prefix"`
	EpochID  string        `mapstructure:"epoch_id"`
	Archive  bool          `mapstructure:"archive"`
}

// NATSConfig holds the optional NATS sink settings. An empty URL disables it.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `mapstructure:"format"`
}

// Defaults returns the default settings keyed the same way as the config file.
func Defaults() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listen": ":8001",
		},
		"paths": map[string]any{
			"static":  "static",
			"archive": "archive",
		},
		"feed": map[string]any{
			"interval": "30s",
			"window":   120,
			"prefix":   "custom/FEED/",
			"epoch_id": "custom/FEED/epoch1",
			"archive":  true,
		},
		"nats": map[string]any{
			"url":     "",
			"subject": "orcfax.feeds",
		},
		"log": map[string]any{
			"format": "text",
		},
	}
}

// SetDefaults registers Defaults on v.
func SetDefaults(v *viper.Viper) {
	for section, values := range Defaults() {
		for key, value := range values.(map[string]any) {
			v.SetDefault(section+"."+key, value)
		}
	}
}

// Load unmarshals and validates the effective configuration.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Server.Listen == "":
		return errors.New("server.listen must not be empty")
	case c.Paths.Static == "":
		return errors.New("paths.static must not be empty")
	case c.Feed.Archive && c.Paths.Archive == "":
		return errors.New("paths.archive must not be empty")
	case c.Feed.Interval <= 0:
		return fmt.Errorf("feed.interval must be positive, got %s", c.Feed.Interval)
	case c.Feed.Window <= 0:
		return fmt.Errorf("feed.window must be positive, got %d", c.Feed.Window)
	case c.Feed.EpochID == "":
		return errors.New("feed.epoch_id must not be empty")
	case c.Log.Format != "text" && c.Log.Format != "json":
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
