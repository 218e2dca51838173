package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentstream-io/agentstream/pkg/config/provider"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	return configFile
}

func fileLoader(t *testing.T, path string, opts ...LoaderOption) *Loader {
	t.Helper()
	p, err := provider.NewFileProvider(path)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	loader := NewLoader(p, opts...)
	t.Cleanup(func() { loader.Close() })
	return loader
}

func TestLoaderFileLoad(t *testing.T) {
	configFile := writeConfig(t, `
server:
  base_url: https://agents.example.com
  auth_token: secret-token
  user_id: alice
stream:
  timeout: 2m
  idle_timeout: 45s
  stream_tokens: false
http:
  max_retries: 5
  base_delay: 500ms
logger:
  level: debug
`)

	loader := fileLoader(t, configFile)
	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Server.BaseURL != "https://agents.example.com" {
		t.Errorf("Server.BaseURL = %q, want %q", cfg.Server.BaseURL, "https://agents.example.com")
	}
	if cfg.Server.AuthToken != "secret-token" {
		t.Errorf("Server.AuthToken = %q, want %q", cfg.Server.AuthToken, "secret-token")
	}
	if cfg.Server.UserID != "alice" {
		t.Errorf("Server.UserID = %q, want %q", cfg.Server.UserID, "alice")
	}
	if cfg.Stream.Timeout != 2*time.Minute {
		t.Errorf("Stream.Timeout = %v, want %v", cfg.Stream.Timeout, 2*time.Minute)
	}
	if cfg.Stream.IdleTimeout != 45*time.Second {
		t.Errorf("Stream.IdleTimeout = %v, want %v", cfg.Stream.IdleTimeout, 45*time.Second)
	}
	if cfg.Stream.TokensEnabled() {
		t.Error("Stream.TokensEnabled() = true, want false")
	}
	if cfg.HTTP.MaxRetries != 5 {
		t.Errorf("HTTP.MaxRetries = %d, want 5", cfg.HTTP.MaxRetries)
	}
	if cfg.HTTP.BaseDelay != 500*time.Millisecond {
		t.Errorf("HTTP.BaseDelay = %v, want %v", cfg.HTTP.BaseDelay, 500*time.Millisecond)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "debug")
	}

	// Unset fields pick up defaults
	if cfg.Server.StreamPath != "/v1/stream" {
		t.Errorf("Server.StreamPath = %q, want default %q", cfg.Server.StreamPath, "/v1/stream")
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("HTTP.Timeout = %v, want default %v", cfg.HTTP.Timeout, 30*time.Second)
	}
}

func TestLoaderJSONConfig(t *testing.T) {
	configFile := writeConfig(t, `{"server": {"base_url": "http://localhost:9000"}}`)

	loader := fileLoader(t, configFile)
	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Server.BaseURL != "http://localhost:9000" {
		t.Errorf("Server.BaseURL = %q, want %q", cfg.Server.BaseURL, "http://localhost:9000")
	}
}

func TestLoaderFileNotFound(t *testing.T) {
	loader := fileLoader(t, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestLoaderInvalidSyntax(t *testing.T) {
	configFile := writeConfig(t, "server:\n  - base_url: [unclosed\n")

	loader := fileLoader(t, configFile)
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatal("expected error for invalid config syntax")
	}
}

func TestLoaderValidationFailure(t *testing.T) {
	configFile := writeConfig(t, "server:\n  base_url: ftp://example.com\n")

	loader := fileLoader(t, configFile)
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatal("expected validation error for non-http base_url")
	}
}

func TestLoaderEnvVarExpansion(t *testing.T) {
	t.Setenv("AGENTSTREAM_TEST_TOKEN", "expanded-secret")

	configFile := writeConfig(t, `
server:
  base_url: http://localhost:2024
  auth_token: ${AGENTSTREAM_TEST_TOKEN}
`)

	loader := fileLoader(t, configFile)
	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Server.AuthToken != "expanded-secret" {
		t.Errorf("Server.AuthToken = %q, want %q", cfg.Server.AuthToken, "expanded-secret")
	}
}

func TestLoaderEnvVarDefault(t *testing.T) {
	configFile := writeConfig(t, `
server:
  base_url: ${AGENTSTREAM_TEST_UNSET_URL:-http://fallback:2024}
`)

	loader := fileLoader(t, configFile)
	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Server.BaseURL != "http://fallback:2024" {
		t.Errorf("Server.BaseURL = %q, want fallback value", cfg.Server.BaseURL)
	}
}

func TestExpandEnvString(t *testing.T) {
	t.Setenv("AGENTSTREAM_TEST_VAR", "value")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"braced", "${AGENTSTREAM_TEST_VAR}", "value"},
		{"bare", "$AGENTSTREAM_TEST_VAR", "value"},
		{"embedded", "prefix-${AGENTSTREAM_TEST_VAR}-suffix", "prefix-value-suffix"},
		{"default used", "${AGENTSTREAM_TEST_NOPE:-fallback}", "fallback"},
		{"default unused", "${AGENTSTREAM_TEST_VAR:-fallback}", "value"},
		{"unset braced", "${AGENTSTREAM_TEST_NOPE}", ""},
		{"no vars", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnvString(tt.input); got != tt.expected {
				t.Errorf("expandEnvString(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoaderWatch(t *testing.T) {
	configFile := writeConfig(t, "server:\n  base_url: http://localhost:2024\n")

	var reloads atomic.Int32
	loader := fileLoader(t, configFile, WithOnChange(func(cfg *Config) {
		reloads.Add(1)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		loader.Watch(ctx)
	}()

	// Give the watcher a moment to start before writing
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("server:\n  base_url: http://localhost:9999\n"), 0644); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for reloads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if reloads.Load() == 0 {
		t.Fatal("expected config reload after file change")
	}

	cancel()
	select {
	case <-watchDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after context cancel")
	}
}

func TestLoadConfigFile(t *testing.T) {
	configFile := writeConfig(t, "server:\n  base_url: http://localhost:2024\n")

	cfg, loader, err := LoadConfigFile(context.Background(), configFile)
	if err != nil {
		t.Fatalf("LoadConfigFile() unexpected error: %v", err)
	}
	defer loader.Close()

	if cfg.Server.BaseURL != "http://localhost:2024" {
		t.Errorf("Server.BaseURL = %q, want %q", cfg.Server.BaseURL, "http://localhost:2024")
	}
	if loader.Provider().Type() != provider.TypeFile {
		t.Errorf("Provider().Type() = %v, want %v", loader.Provider().Type(), provider.TypeFile)
	}
}

func TestLoadConfigBadProvider(t *testing.T) {
	_, _, err := LoadConfig(context.Background(), provider.ProviderConfig{
		Type: provider.Type("redis"),
		Path: "config",
	})
	if err == nil {
		t.Fatal("expected error for unknown provider type")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() config fails validation: %v", err)
	}
	if cfg.Server.BaseURL != "http://localhost:2024" {
		t.Errorf("Server.BaseURL = %q, want default", cfg.Server.BaseURL)
	}
	if !cfg.Stream.TokensEnabled() {
		t.Error("Stream.TokensEnabled() = false, want true by default")
	}
}
