package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentstream-io/agentstream/pkg/observability"
	"github.com/agentstream-io/agentstream/pkg/protocol"
	"github.com/agentstream-io/agentstream/pkg/sse"
)

const (
	deadlineIdle  = "idle"
	deadlineTotal = "total"
)

// Stream is one streamed chat turn: a pull-based sequence of events
// decoded on demand, never ahead of consumption.
//
// A Stream is driven by a single goroutine. The sequence always terminates
// well-formed: deadline expiry, framing or decoding failures, and
// transport interruption all surface as a synthetic error event followed
// by the terminal done event, never as a bare failure mid-iteration. At
// most one done event is produced and it is always last.
type Stream struct {
	ctx  context.Context
	req  protocol.ChatRequest
	resp *http.Response
	dec  *sse.Decoder

	logger  *slog.Logger
	metrics observability.Metrics
	span    trace.Span
	start   time.Time

	timeout     time.Duration
	idleTimeout time.Duration
	idleTimer   *time.Timer
	totalTimer  *time.Timer

	// mu guards the fields shared with the deadline watchdogs.
	mu       sync.Mutex
	deadline string
	closed   bool

	cur      protocol.StreamEvent
	queue    []protocol.StreamEvent
	done     bool
	err      error
	termErr  error
	finished bool
	events   int
	tokens   int
}

func (c *Client) newStream(ctx context.Context, req *protocol.ChatRequest, resp *http.Response, span trace.Span) *Stream {
	s := &Stream{
		ctx:         ctx,
		req:         *req,
		resp:        resp,
		dec:         sse.NewDecoder(resp.Body),
		logger:      c.logger,
		metrics:     c.metrics,
		span:        span,
		start:       time.Now(),
		timeout:     c.timeout,
		idleTimeout: c.idleTimeout,
	}
	if s.timeout > 0 {
		s.totalTimer = time.AfterFunc(s.timeout, func() { s.expire(deadlineTotal) })
	}
	if s.idleTimeout > 0 {
		s.idleTimer = time.AfterFunc(s.idleTimeout, func() { s.expire(deadlineIdle) })
	}
	return s
}

// Next advances to the next event, blocking until one is available or the
// stream terminates. It returns false when iteration is over.
func (s *Stream) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	if len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.deliver(ev)
		return true
	}

	for {
		if err := s.ctx.Err(); err != nil {
			return s.cancelled(err)
		}
		if kind := s.expiredDeadline(); kind != "" {
			return s.expired(kind)
		}

		frame, err := s.dec.Next()
		if err != nil {
			return s.terminate(err)
		}
		s.touch()

		ev, err := protocol.DecodeEvent(frame.Data)
		if err != nil {
			var unknown *protocol.UnknownEventError
			if errors.As(err, &unknown) {
				s.logger.Debug("Skipping unrecognized stream event", "type", unknown.Type)
				s.metrics.RecordUnknownEvent(s.ctx, unknown.Type)
				continue
			}
			s.logger.Warn("Stream decoding failed", "thread_id", s.req.ThreadID, "error", err)
			return s.fatal(err, protocol.ErrorEvent(err.Error(), false))
		}

		s.deliver(ev)
		return true
	}
}

// Event returns the event produced by the last successful Next call.
func (s *Stream) Event() protocol.StreamEvent { return s.cur }

// Err reports why iteration stopped early. It returns the context error
// after a caller cancellation and nil otherwise; deadline expiry and
// decoding failures are delivered in-band as error events, not through
// Err.
func (s *Stream) Err() error { return s.err }

// ThreadID returns the conversation thread of this turn.
func (s *Stream) ThreadID() string { return s.req.ThreadID }

// SessionID returns the session identifier of this turn.
func (s *Stream) SessionID() string { return s.req.SessionID }

// Request returns a copy of the request that opened the stream.
func (s *Stream) Request() protocol.ChatRequest { return s.req }

// Events adapts the stream to a range-over-func sequence. The stream is
// closed when the loop ends, whether by termination or an early break.
func (s *Stream) Events() iter.Seq[protocol.StreamEvent] {
	return func(yield func(protocol.StreamEvent) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Event()) {
				return
			}
		}
	}
}

// Close releases the transport. It is idempotent and safe after iteration
// has finished; an abandoned stream yields no further events. Close
// belongs to the consuming goroutine — cancel the context to abort a
// stream from elsewhere.
func (s *Stream) Close() error {
	s.done = true
	s.queue = nil
	s.finish(s.termErr)
	return nil
}

func (s *Stream) deliver(ev protocol.StreamEvent) {
	s.cur = ev
	s.events++
	if ev.Kind == protocol.KindToken {
		s.tokens++
	}
	s.metrics.RecordEvent(s.ctx, string(ev.Kind))
	if ev.Kind == protocol.KindDone {
		s.done = true
		s.finish(s.termErr)
	}
}

// terminate classifies a decoder error and produces the corresponding end
// of the event sequence.
func (s *Stream) terminate(err error) bool {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return s.cancelled(ctxErr)
	}
	if kind := s.expiredDeadline(); kind != "" {
		return s.expired(kind)
	}
	if errors.Is(err, io.EOF) {
		// Transport closed cleanly without a sentinel.
		s.done = true
		s.closeBody()
		s.finish(nil)
		return false
	}
	if errors.Is(err, sse.ErrMalformedFrame) {
		s.logger.Warn("Stream framing violation", "thread_id", s.req.ThreadID, "error", err)
		return s.fatal(err, protocol.ErrorEvent(err.Error(), false))
	}
	s.logger.Warn("Stream transport interrupted", "thread_id", s.req.ThreadID, "error", err)
	return s.fatal(err, protocol.ErrorEvent(fmt.Sprintf("event stream interrupted: %v", err), true))
}

// cancelled stops delivery immediately: no synthetic events after the
// caller has asked out.
func (s *Stream) cancelled(err error) bool {
	s.err = err
	s.closeBody()
	s.finish(err)
	return false
}

// expired turns a deadline expiry into the synthetic recoverable error
// followed by done.
func (s *Stream) expired(kind string) bool {
	var msg string
	switch kind {
	case deadlineIdle:
		msg = fmt.Sprintf("stream idle for more than %s", s.idleTimeout)
	default:
		msg = fmt.Sprintf("stream exceeded its %s budget", s.timeout)
	}
	s.logger.Warn("Stream deadline expired", "thread_id", s.req.ThreadID, "deadline", kind)
	s.termErr = fmt.Errorf("%w (%s)", ErrStreamTimeout, kind)
	s.closeBody()
	s.queue = []protocol.StreamEvent{protocol.DoneEvent()}
	s.deliver(protocol.ErrorEvent(msg, true))
	return true
}

// fatal ends the stream with the given error event and a queued done.
func (s *Stream) fatal(err error, ev protocol.StreamEvent) bool {
	s.termErr = err
	s.closeBody()
	s.queue = []protocol.StreamEvent{protocol.DoneEvent()}
	s.deliver(ev)
	return true
}

// expire is called from a watchdog timer: it records which deadline fired
// and closes the response body to unblock a pending read.
func (s *Stream) expire(kind string) {
	s.mu.Lock()
	if s.closed || s.deadline != "" {
		s.mu.Unlock()
		return
	}
	s.deadline = kind
	s.mu.Unlock()
	s.resp.Body.Close()
}

func (s *Stream) expiredDeadline() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

// touch restarts the idle window after a record arrives.
func (s *Stream) touch() {
	if s.idleTimer != nil {
		s.idleTimer.Reset(s.idleTimeout)
	}
}

func (s *Stream) closeBody() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	if s.totalTimer != nil {
		s.totalTimer.Stop()
	}
	s.resp.Body.Close()
}

// finish records the turn outcome exactly once.
func (s *Stream) finish(err error) {
	if s.finished {
		return
	}
	s.finished = true
	s.closeBody()

	s.metrics.RecordStreamTurn(s.ctx, time.Since(s.start), err)

	if s.span == nil {
		return
	}
	s.span.SetAttributes(
		attribute.Int(observability.AttrEventCount, s.events),
		attribute.Int(observability.AttrTokenCount, s.tokens),
	)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}
