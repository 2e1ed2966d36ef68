package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gigrelay/internal/dedup"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig should not return nil")
	}

	if config.Database.Path == "" {
		t.Error("Default database path should not be empty")
	}

	if config.HTTP.Port <= 0 {
		t.Error("Default HTTP port should be positive")
	}

	if config.Relay.DedupStrategy != dedup.StrategyWindow {
		t.Errorf("Default dedup strategy should be windowed, got %q", config.Relay.DedupStrategy)
	}

	if config.Relay.DedupWindow != dedup.DefaultWindow {
		t.Errorf("Default dedup window should be %v, got %v", dedup.DefaultWindow, config.Relay.DedupWindow)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative port", func(c *Config) { c.HTTP.Port = -1 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }},
		{"missing relay section", func(c *Config) { c.Relay = nil }},
		{"unknown dedup strategy", func(c *Config) { c.Relay.DedupStrategy = "bloom" }},
		{"zero dedup window", func(c *Config) { c.Relay.DedupWindow = 0 }},
		{"zero message buffer", func(c *Config) { c.Relay.MessageBuffer = 0 }},
	}

	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("GIGRELAY_HTTP_PORT", "9090")
	os.Setenv("GIGRELAY_DATABASE_PATH", "/tmp/relay-test.db")
	os.Setenv("GIGRELAY_DEDUP_STRATEGY", "strict")
	os.Setenv("GIGRELAY_DEDUP_WINDOW", "10s")
	defer func() {
		os.Unsetenv("GIGRELAY_HTTP_PORT")
		os.Unsetenv("GIGRELAY_DATABASE_PATH")
		os.Unsetenv("GIGRELAY_DEDUP_STRATEGY")
		os.Unsetenv("GIGRELAY_DEDUP_WINDOW")
	}()

	config := LoadFromEnv()

	if config.HTTP.Port != 9090 {
		t.Errorf("Expected HTTP port 9090, got %d", config.HTTP.Port)
	}

	if config.Database.Path != "/tmp/relay-test.db" {
		t.Errorf("Expected database path /tmp/relay-test.db, got %s", config.Database.Path)
	}

	if config.Relay.DedupStrategy != dedup.StrategyStrict {
		t.Errorf("Expected strict strategy, got %q", config.Relay.DedupStrategy)
	}

	if config.Relay.DedupWindow != 10*time.Second {
		t.Errorf("Expected 10s window, got %v", config.Relay.DedupWindow)
	}
}

func TestLoadFromEnvIgnoresUnparseable(t *testing.T) {
	os.Setenv("GIGRELAY_HTTP_PORT", "not-a-port")
	defer os.Unsetenv("GIGRELAY_HTTP_PORT")

	config := LoadFromEnv()
	if config.HTTP.Port != DefaultConfig().HTTP.Port {
		t.Errorf("Unparseable port should keep default, got %d", config.HTTP.Port)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"http": {"port": 9191, "host": "127.0.0.1"},
		"database": {"path": "/tmp/file-relay.db", "timeout": "45s"},
		"relay": {"dedup_strategy": "window", "dedup_window": "3s", "message_buffer": 32}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.HTTP.Port != 9191 {
		t.Errorf("Expected port 9191, got %d", config.HTTP.Port)
	}

	if config.Database.Timeout != 45*time.Second {
		t.Errorf("Expected 45s database timeout, got %v", config.Database.Timeout)
	}

	if config.Relay.DedupWindow != 3*time.Second {
		t.Errorf("Expected 3s dedup window, got %v", config.Relay.DedupWindow)
	}

	if config.Relay.MessageBuffer != 32 {
		t.Errorf("Expected message buffer 32, got %d", config.Relay.MessageBuffer)
	}

	// Unspecified sections keep defaults.
	if config.WebSocket.PingInterval != DefaultConfig().WebSocket.PingInterval {
		t.Error("Unspecified WebSocket section should keep defaults")
	}
}

func TestLoadFromFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"relay": {"dedup_strategy": "bloom"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("Invalid strategy in file should fail")
	}
}

func TestLoadConfigWithPrecedence(t *testing.T) {
	os.Setenv("GIGRELAY_HTTP_PORT", "7070")
	defer os.Unsetenv("GIGRELAY_HTTP_PORT")

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"http": {"port": 6060}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	// File wins over environment.
	config := LoadConfigWithPrecedence(path)
	if config.HTTP.Port != 6060 {
		t.Errorf("File should take precedence, got port %d", config.HTTP.Port)
	}

	// Missing file falls back to environment.
	config = LoadConfigWithPrecedence("/nonexistent/config.json")
	if config.HTTP.Port != 7070 {
		t.Errorf("Environment should apply when file is missing, got port %d", config.HTTP.Port)
	}

	// No file argument uses environment over defaults.
	config = LoadConfigWithPrecedence("")
	if config.HTTP.Port != 7070 {
		t.Errorf("Expected env port 7070, got %d", config.HTTP.Port)
	}
}
