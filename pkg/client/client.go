// Package client is the public entry point to the agent streaming API.
//
// A Client opens streamed chat turns (StreamChat), runs one-shot turns to
// completion (SendMessage), and covers the rest of the API surface:
// health, per-thread history, thread listings and feedback. Streamed
// turns are pull-based: events are decoded one at a time as the caller
// iterates, and every stream terminates with a well-formed event sequence
// even when the transport fails mid-turn.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentstream-io/agentstream/pkg/config"
	"github.com/agentstream-io/agentstream/pkg/httpclient"
	"github.com/agentstream-io/agentstream/pkg/observability"
	"github.com/agentstream-io/agentstream/pkg/protocol"
	"github.com/agentstream-io/agentstream/pkg/session"
)

const (
	defaultStreamPath = "/v1/stream"
	defaultHealthPath = "/health"
	historyPath       = "/v1/history/"
	threadsPath       = "/v1/threads/"
	feedbackPath      = "/v1/feedback"

	defaultTimeout     = 5 * time.Minute
	defaultIdleTimeout = 60 * time.Second
	defaultHTTPTimeout = 30 * time.Second
	defaultUserID      = "default"

	// healthTimeout bounds the lightweight availability probe.
	healthTimeout = 5 * time.Second

	tracerName = "agentstream/client"
)

// Client is the facade over the agent's HTTP API.
//
// A Client is safe for concurrent use; each call issues its own transport
// request. Individual Streams are single-consumer.
type Client struct {
	baseURL    string
	streamPath string
	healthPath string
	authToken  string
	userID     string

	timeout       time.Duration
	idleTimeout   time.Duration
	streamTokens  bool
	streamRetries int

	httpTimeout    time.Duration
	unaryRetries   int
	unaryBaseDelay time.Duration

	newID    func() string
	logger   *slog.Logger
	metrics  observability.Metrics
	tracer   trace.Tracer
	sessions session.Service

	httpClient *http.Client
	stream     *httpclient.Client
	unary      *httpclient.Client
}

// New creates a Client for the agent server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		streamPath:     defaultStreamPath,
		healthPath:     defaultHealthPath,
		userID:         defaultUserID,
		timeout:        defaultTimeout,
		idleTimeout:    defaultIdleTimeout,
		streamTokens:   true,
		httpTimeout:    defaultHTTPTimeout,
		unaryRetries:   3,
		unaryBaseDelay: 2 * time.Second,
		newID:          uuid.NewString,
		logger:         slog.Default(),
		metrics:        observability.GetGlobalMetrics(),
		tracer:         observability.GetTracer(tracerName),
		sessions:       session.InMemoryService(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.metrics == nil {
		c.metrics = observability.NoopMetrics{}
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}

	streamOpts := []httpclient.Option{
		httpclient.WithHTTPClient(c.httpClient),
		httpclient.WithLogger(c.logger),
		httpclient.WithMaxRetries(c.streamRetries),
	}
	if c.streamRetries == 0 {
		streamOpts = append(streamOpts, httpclient.WithRetryStrategy(func(int) httpclient.RetryStrategy {
			return httpclient.NoRetry
		}))
	}
	c.stream = httpclient.New(streamOpts...)

	// Plain calls get their own transport handle so a bounded timeout can
	// apply without cutting streams short.
	c.unary = httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Transport: c.httpClient.Transport,
			Timeout:   c.httpTimeout,
		}),
		httpclient.WithLogger(c.logger),
		httpclient.WithMaxRetries(c.unaryRetries),
		httpclient.WithBaseDelay(c.unaryBaseDelay),
	)

	return c
}

// NewFromConfig builds a Client from a loaded configuration. The auth
// token falls back to the environment when the configuration leaves it
// empty.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	httpClient := &http.Client{}
	if cfg.HTTP.TLS.CACertificate != "" || cfg.HTTP.TLS.InsecureSkipVerify {
		transport, err := httpclient.ConfigureTLS(&cfg.HTTP.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
		httpClient.Transport = transport
	}

	token := cfg.Server.AuthToken
	if token == "" {
		token = config.AuthTokenFromEnv()
	}

	base := []Option{
		WithHTTPClient(httpClient),
		WithAuthToken(token),
		WithUserID(cfg.Server.UserID),
		WithStreamPath(cfg.Server.StreamPath),
		WithHealthPath(cfg.Server.HealthPath),
		WithTimeout(cfg.Stream.Timeout),
		WithIdleTimeout(cfg.Stream.IdleTimeout),
		WithStreamTokens(cfg.Stream.TokensEnabled()),
		WithHTTPTimeout(cfg.HTTP.Timeout),
		WithHTTPRetries(cfg.HTTP.MaxRetries, cfg.HTTP.BaseDelay),
	}
	return New(cfg.Server.BaseURL, append(base, opts...)...), nil
}

// Sessions exposes the local session store.
func (c *Client) Sessions() session.Service { return c.sessions }

// UserID returns the client's user identifier.
func (c *Client) UserID() string { return c.userID }

// StreamChat opens one streamed chat turn and returns its event stream.
// Omitted identifiers are generated at call time: a fresh thread id, a
// session id defaulting to the thread id, the client's user id.
func (c *Client) StreamChat(ctx context.Context, text string, opts ...TurnOption) (*Stream, error) {
	return c.open(ctx, c.newTurnRequest(text, c.streamTokens, opts))
}

// SendMessage runs one turn to completion: it consumes the stream,
// accumulates token fragments, appends the turn's completed messages to
// the local session history, and returns the final assistant message plus
// the updated history. Any fatal stream condition fails the whole call —
// no partial message, no history change. Token events are not requested
// unless a turn option asks for them.
func (c *Client) SendMessage(ctx context.Context, text string, opts ...TurnOption) (*protocol.ChatMessage, []protocol.ChatMessage, error) {
	ctx, span := c.tracer.Start(ctx, observability.SpanSendMessage)
	defer span.End()

	stream, err := c.open(ctx, c.newTurnRequest(text, false, opts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	defer stream.Close()

	msg, history, err := c.collect(ctx, stream, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	return msg, history, nil
}

// Health fetches the server's health document.
func (c *Client) Health(ctx context.Context) (*protocol.HealthStatus, error) {
	var status protocol.HealthStatus
	if err := c.doJSON(ctx, "health", http.MethodGet, c.healthPath, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Healthy reports whether the server answers its health endpoint with a
// success status within a short timeout. A refused connection yields
// false, never an error.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return c.doJSON(ctx, "health", http.MethodGet, c.healthPath, nil, nil) == nil
}

// History fetches the server-side message history of a thread.
func (c *Client) History(ctx context.Context, threadID string) ([]protocol.ChatMessage, error) {
	var history protocol.HistoryResponse
	if err := c.doJSON(ctx, "history", http.MethodGet, historyPath+url.PathEscape(threadID), nil, &history); err != nil {
		return nil, err
	}
	return history.Messages, nil
}

// ResumeThread warms the local session for a thread from the server's
// history and returns it.
func (c *Client) ResumeThread(ctx context.Context, threadID string) (session.Session, error) {
	history, err := c.History(ctx, threadID)
	if err != nil {
		return nil, err
	}

	sess, err := c.sessions.GetOrCreate(ctx, &session.CreateRequest{
		ThreadID: threadID,
		UserID:   c.userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare session: %w", err)
	}
	if err := c.sessions.Replace(ctx, threadID, history); err != nil {
		return nil, fmt.Errorf("failed to seed session history: %w", err)
	}
	return sess, nil
}

// ListThreads returns the thread ids the server knows for a user. An
// empty userID means the client's own user.
func (c *Client) ListThreads(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		userID = c.userID
	}
	var threads []string
	if err := c.doJSON(ctx, "threads", http.MethodGet, threadsPath+url.PathEscape(userID), nil, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// SubmitFeedback scores a run on the server.
func (c *Client) SubmitFeedback(ctx context.Context, fb protocol.FeedbackRequest) error {
	if err := fb.Validate(); err != nil {
		return fmt.Errorf("invalid feedback: %w", err)
	}
	return c.doJSON(ctx, "feedback", http.MethodPost, feedbackPath, &fb, nil)
}

func (c *Client) newTurnRequest(text string, streamTokens bool, opts []TurnOption) *protocol.ChatRequest {
	t := turnConfig{userID: c.userID}
	for _, opt := range opts {
		opt(&t)
	}

	if t.threadID == "" {
		t.threadID = c.newID()
	}
	if t.sessionID == "" {
		t.sessionID = t.threadID
	}
	if t.streamTokens == nil {
		t.streamTokens = &streamTokens
	}

	return &protocol.ChatRequest{
		Message:      text,
		ThreadID:     t.threadID,
		SessionID:    t.sessionID,
		UserID:       t.userID,
		StreamTokens: *t.streamTokens,
	}
}

// open validates the request, issues the streaming POST and classifies
// connect failures before any event is produced.
func (c *Client) open(ctx context.Context, req *protocol.ChatRequest) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat request: %w", err)
	}

	if _, err := c.sessions.GetOrCreate(ctx, &session.CreateRequest{
		ThreadID:  req.ThreadID,
		SessionID: req.SessionID,
		UserID:    req.UserID,
	}); err != nil {
		return nil, fmt.Errorf("failed to prepare session: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, observability.SpanStreamTurn, trace.WithAttributes(
		attribute.String(observability.AttrThreadID, req.ThreadID),
		attribute.String(observability.AttrUserID, req.UserID),
	))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.streamPath, bytes.NewReader(payload))
	if err != nil {
		endSpan(span, err)
		return nil, fmt.Errorf("failed to build stream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	c.authorize(httpReq)

	resp, err := c.stream.Do(httpReq)
	if err != nil && resp == nil {
		endSpan(span, err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("stream open aborted: %w", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		srvErr := newServerError(resp)
		endSpan(span, srvErr)
		return nil, srvErr
	}

	c.logger.Debug("Stream opened", "thread_id", req.ThreadID, "session_id", req.SessionID)
	return c.newStream(ctx, req, resp, span), nil
}

// collect drains a stream. Completed messages reach the session history
// only after the turn succeeded; a failed turn leaves local history
// untouched.
func (c *Client) collect(ctx context.Context, stream *Stream, sent string) (*protocol.ChatMessage, []protocol.ChatMessage, error) {
	var (
		final     *protocol.ChatMessage
		completed []protocol.ChatMessage
		turnErr   *protocol.StreamError
		tokens    strings.Builder
	)

	for stream.Next() {
		ev := stream.Event()
		switch ev.Kind {
		case protocol.KindToken:
			tokens.WriteString(ev.Token)
		case protocol.KindMessage:
			msg := *ev.Message
			// Some servers echo the sent message back; drop the echo so
			// history only gains the agent side of the turn.
			if msg.Type == protocol.RoleHuman && msg.Content == sent {
				continue
			}
			completed = append(completed, msg)
			if msg.Type == protocol.RoleAI {
				m := msg
				final = &m
			}
		case protocol.KindError:
			if turnErr == nil {
				turnErr = ev.Err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, nil, err
	}
	if turnErr != nil {
		return nil, nil, turnErr
	}
	if final == nil {
		return nil, nil, ErrNoResponse
	}
	if tokens.Len() > 0 && tokens.String() != final.Content {
		c.logger.Debug("Token reconstruction differs from final message",
			"thread_id", stream.ThreadID(), "token_bytes", tokens.Len(), "message_bytes", len(final.Content))
	}

	for _, msg := range completed {
		if err := c.sessions.Append(ctx, stream.ThreadID(), msg); err != nil {
			return nil, nil, fmt.Errorf("failed to record history: %w", err)
		}
	}
	sess, err := c.sessions.Get(ctx, stream.ThreadID())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	return final, sess.Snapshot(), nil
}

// doJSON runs one plain request/response call: retrying transport, auth
// header injection, request metrics, strict JSON decoding.
func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	start := time.Now()
	resp, err := c.unary.Do(req)
	c.metrics.RecordRequest(ctx, op, time.Since(start), err)

	if err != nil && resp == nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s request aborted: %w", op, err)
		}
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newServerError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("X-Token", c.authToken)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
