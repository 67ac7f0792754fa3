package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.ControlPlane.Timeout == 0 {
		cfg.ControlPlane.Timeout = Duration(10 * time.Second)
	}
	if cfg.Watch.DefaultTimeout == 0 {
		cfg.Watch.DefaultTimeout = Duration(5 * time.Minute)
	}
	if cfg.Watch.DefaultInterval == 0 {
		cfg.Watch.DefaultInterval = Duration(10 * time.Second)
	}
	if cfg.Watch.MaxRequeues == 0 {
		cfg.Watch.MaxRequeues = 3
	}
	if cfg.Watch.Workers == 0 {
		cfg.Watch.Workers = 2
	}

	for i := range cfg.Targets {
		if cfg.Targets[i].ProbeInterval == 0 {
			cfg.Targets[i].ProbeInterval = Duration(30 * time.Second)
		}
	}

	return &cfg, nil
}
