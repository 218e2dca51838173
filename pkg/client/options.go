package client

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/agentstream-io/agentstream/pkg/observability"
	"github.com/agentstream-io/agentstream/pkg/session"
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client shared by streaming
// and plain calls. Leave its Timeout at zero: a client-level timeout would
// cut streams short, and the stream deadlines are enforced separately.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAuthToken forwards the credential as the X-Token header on every
// request. The token is opaque to the client; the server validates it.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithUserID sets the user identifier attached to turns, sessions and
// thread listings.
func WithUserID(userID string) Option {
	return func(c *Client) {
		c.userID = userID
	}
}

// WithTimeout sets the total wall-clock budget for one streamed turn.
// Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithIdleTimeout sets the inter-event idle window: a stream that stays
// silent longer is aborted with a recoverable error event. Zero disables
// the deadline.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.idleTimeout = d
	}
}

// WithIDGenerator replaces the generator used for omitted thread
// identifiers. The default is uuid.NewString.
func WithIDGenerator(generate func() string) Option {
	return func(c *Client) {
		c.newID = generate
	}
}

// WithLogger sets the logger for stream diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink. The default is the process-global
// sink, a no-op until observability is initialized.
func WithMetrics(m observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithSessionService replaces the local session store.
func WithSessionService(svc session.Service) Option {
	return func(c *Client) {
		c.sessions = svc
	}
}

// WithStreamPath overrides the streaming endpoint path.
func WithStreamPath(path string) Option {
	return func(c *Client) {
		c.streamPath = path
	}
}

// WithHealthPath overrides the health endpoint path.
func WithHealthPath(path string) Option {
	return func(c *Client) {
		c.healthPath = path
	}
}

// WithRetries enables transport-level retries when opening a stream.
// Retries happen before any event is consumed, never mid-stream, and are
// distinct from retrying a failed turn, which stays a caller decision.
func WithRetries(max int) Option {
	return func(c *Client) {
		c.streamRetries = max
	}
}

// WithStreamTokens sets whether streaming turns request token events by
// default. One-shot turns request none either way; WithTokens overrides
// both per turn.
func WithStreamTokens(enabled bool) Option {
	return func(c *Client) {
		c.streamTokens = enabled
	}
}

// WithHTTPTimeout bounds each plain (non-streaming) call. Streams are
// governed by WithTimeout and WithIdleTimeout instead.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpTimeout = d
	}
}

// WithHTTPRetries tunes the retry budget of plain calls.
func WithHTTPRetries(max int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.unaryRetries = max
		c.unaryBaseDelay = baseDelay
	}
}

// TurnOption adjusts a single chat turn.
type TurnOption func(*turnConfig)

type turnConfig struct {
	threadID     string
	sessionID    string
	userID       string
	streamTokens *bool
}

// WithThread continues the given conversation thread instead of starting a
// fresh one.
func WithThread(threadID string) TurnOption {
	return func(t *turnConfig) {
		t.threadID = threadID
	}
}

// WithSession sets the session identifier for the turn. When omitted it
// defaults to the thread identifier.
func WithSession(sessionID string) TurnOption {
	return func(t *turnConfig) {
		t.sessionID = sessionID
	}
}

// AsUser overrides the client's user identifier for this turn.
func AsUser(userID string) TurnOption {
	return func(t *turnConfig) {
		t.userID = userID
	}
}

// WithTokens overrides whether the server should emit token events for
// this turn.
func WithTokens(enabled bool) TurnOption {
	return func(t *turnConfig) {
		t.streamTokens = &enabled
	}
}
