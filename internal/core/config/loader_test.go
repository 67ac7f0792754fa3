package config

import (
	"os"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad_EnvSubstitution(t *testing.T) {
	os.Setenv("TEST_CP_URL", "http://controlplane.internal:9090")
	defer os.Unsetenv("TEST_CP_URL")

	path := writeConfig(t, `
control_plane:
  url: ${TEST_CP_URL}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ControlPlane.URL != "http://controlplane.internal:9090" {
		t.Errorf("Expected URL http://controlplane.internal:9090, got %s", cfg.ControlPlane.URL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
control_plane:
  url: http://localhost:9090
targets:
  - id: i-001
    agent_addr: localhost:50051
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Watch.DefaultTimeout.Std() != 5*time.Minute {
		t.Errorf("Expected default timeout 5m, got %v", cfg.Watch.DefaultTimeout.Std())
	}
	if cfg.Watch.DefaultInterval.Std() != 10*time.Second {
		t.Errorf("Expected default interval 10s, got %v", cfg.Watch.DefaultInterval.Std())
	}
	if cfg.Watch.MaxRequeues != 3 {
		t.Errorf("Expected default max requeues 3, got %d", cfg.Watch.MaxRequeues)
	}
	if cfg.Targets[0].ProbeInterval.Std() != 30*time.Second {
		t.Errorf("Expected default probe interval 30s, got %v", cfg.Targets[0].ProbeInterval.Std())
	}
}

func TestLoad_DurationStrings(t *testing.T) {
	path := writeConfig(t, `
watch:
  default_timeout: 90s
  default_interval: 250ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Watch.DefaultTimeout.Std() != 90*time.Second {
		t.Errorf("Expected timeout 90s, got %v", cfg.Watch.DefaultTimeout.Std())
	}
	if cfg.Watch.DefaultInterval.Std() != 250*time.Millisecond {
		t.Errorf("Expected interval 250ms, got %v", cfg.Watch.DefaultInterval.Std())
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
watch:
  default_timeout: soon
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
