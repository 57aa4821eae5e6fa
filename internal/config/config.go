// Package config loads server settings from .env, ARENA_* environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Simulation SimulationConfig
}

type ServerConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string
}

// SimulationConfig drives the canned replies.
type SimulationConfig struct {
	Response       string
	Interval       time.Duration
	GeminiDelay    time.Duration
	FireworksDelay time.Duration
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("simulation.response", "")
	v.SetDefault("simulation.interval", 100*time.Millisecond)
	v.SetDefault("simulation.gemini_delay", 300*time.Millisecond)
	v.SetDefault("simulation.fireworks_delay", 500*time.Millisecond)
}

// Load reads configuration into v and decodes it. A missing .env or config
// file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	SetDefaults(v)
	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{Addr: v.GetString("server.addr")},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Simulation: SimulationConfig{
			Response:       v.GetString("simulation.response"),
			Interval:       v.GetDuration("simulation.interval"),
			GeminiDelay:    v.GetDuration("simulation.gemini_delay"),
			FireworksDelay: v.GetDuration("simulation.fireworks_delay"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("log.format must be auto, text or json, got %q", c.Log.Format)
	}
	if c.Simulation.Interval <= 0 {
		return fmt.Errorf("simulation.interval must be positive, got %s", c.Simulation.Interval)
	}
	if c.Simulation.GeminiDelay < 0 || c.Simulation.FireworksDelay < 0 {
		return errors.New("simulation delays must not be negative")
	}
	return nil
}
