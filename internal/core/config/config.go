package config

import (
	"fmt"
	"strconv"
	"time"

	redisclient "github.com/vietddude/cmdwatch/internal/infra/redis"
	"github.com/vietddude/cmdwatch/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig       `yaml:"server"`
	ControlPlane ControlPlaneConfig `yaml:"control_plane"`
	Database     postgres.Config    `yaml:"database"`
	Redis        redisclient.Config `yaml:"redis"`
	Watch        WatchConfig        `yaml:"watch"`
	Targets      []TargetConfig     `yaml:"targets"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ControlPlaneConfig holds control-plane API settings.
type ControlPlaneConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// WatchConfig holds defaults for watching dispatched commands.
type WatchConfig struct {
	DefaultTimeout  Duration `yaml:"default_timeout"`
	DefaultInterval Duration `yaml:"default_interval"`
	MaxRequeues     int      `yaml:"max_requeues"`
	Workers         int      `yaml:"workers"`
	Retention       Duration `yaml:"retention"` // 0 = keep forever
}

// TargetConfig holds settings for a monitored target agent.
type TargetConfig struct {
	ID            string   `yaml:"id"`
	AgentAddr     string   `yaml:"agent_addr"`
	ProbeInterval Duration `yaml:"probe_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Duration wraps time.Duration so YAML values can be written as "30s"
// or as raw nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("duration must be a scalar")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(n)
		return nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
