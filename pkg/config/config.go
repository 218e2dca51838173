// Package config defines the client configuration schema and the loading
// pipeline that populates it from files or remote stores.
//
// Configuration flows through six stages: read raw bytes from a provider,
// parse YAML (or JSON), expand environment variables, decode into the
// Config struct, apply defaults, and validate. See Loader.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/agentstream-io/agentstream/pkg/httpclient"
	"github.com/agentstream-io/agentstream/pkg/observability"
)

// Config is the root client configuration.
//
// Example:
//
//	server:
//	  base_url: http://localhost:2024
//	  auth_token: ${AGENT_AUTH_TOKEN}
//	stream:
//	  idle_timeout: 60s
//	logger:
//	  level: info
type Config struct {
	Server        ServerConfig         `yaml:"server,omitempty"`
	Stream        StreamConfig         `yaml:"stream,omitempty"`
	HTTP          HTTPConfig           `yaml:"http,omitempty"`
	Logger        LoggerConfig         `yaml:"logger,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty"`
}

// ServerConfig identifies the agent server and how to authenticate to it.
type ServerConfig struct {
	// BaseURL is the root URL of the agent server.
	// Default: http://localhost:2024
	BaseURL string `yaml:"base_url,omitempty"`

	// AuthToken is sent as the X-Token header on every request.
	// Empty means no auth header.
	AuthToken string `yaml:"auth_token,omitempty"`

	// UserID attributes requests to a user. Threads are listed per user.
	// Default: "default"
	UserID string `yaml:"user_id,omitempty"`

	// StreamPath is the chat streaming endpoint path.
	// Default: /v1/stream
	StreamPath string `yaml:"stream_path,omitempty"`

	// HealthPath is the liveness endpoint path.
	// Default: /health
	HealthPath string `yaml:"health_path,omitempty"`
}

// StreamConfig bounds streaming chat turns.
type StreamConfig struct {
	// Timeout caps the total wall-clock duration of one streaming turn.
	// Zero means no cap. Default: 5m
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// IdleTimeout caps the silence between consecutive events.
	// Zero means no cap. Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout,omitempty"`

	// StreamTokens asks the server for token-by-token output.
	// Default: true
	StreamTokens *bool `yaml:"stream_tokens,omitempty"`
}

// TokensEnabled reports whether token streaming is requested.
func (c *StreamConfig) TokensEnabled() bool {
	return c.StreamTokens == nil || *c.StreamTokens
}

// HTTPConfig tunes the transport shared by all non-streaming calls.
type HTTPConfig struct {
	// Timeout bounds a single non-streaming request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MaxRetries is the retry budget for retryable failures.
	// Default: 3
	MaxRetries int `yaml:"max_retries,omitempty"`

	// BaseDelay seeds the exponential backoff between retries.
	// Default: 2s
	BaseDelay time.Duration `yaml:"base_delay,omitempty"`

	// TLS configures transport security for https servers.
	TLS httpclient.TLSConfig `yaml:"tls,omitempty"`
}

// SetDefaults applies default values to Config.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Stream.SetDefaults()
	c.HTTP.SetDefaults()
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config validation failed: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config validation failed: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger config validation failed: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability config validation failed: %w", err)
	}
	return nil
}

// SetDefaults applies default values to ServerConfig.
func (c *ServerConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:2024"
	}
	if c.UserID == "" {
		c.UserID = "default"
	}
	if c.StreamPath == "" {
		c.StreamPath = "/v1/stream"
	}
	if c.HealthPath == "" {
		c.HealthPath = "/health"
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url is missing a host: %q", c.BaseURL)
	}
	return nil
}

// SetDefaults applies default values to StreamConfig.
func (c *StreamConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// Validate checks the stream configuration.
func (c *StreamConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout must not be negative, got %s", c.IdleTimeout)
	}
	return nil
}

// SetDefaults applies default values to HTTPConfig.
func (c *HTTPConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = 2 * time.Second
	}
}

// Validate checks the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	return nil
}
