// Package agenttest provides a scripted in-process agent server for client
// tests and local development.
//
// The server speaks the full agent API: streaming chat over SSE, health,
// per-thread history, per-user thread listing, and feedback intake. Stream
// responses follow a configurable script of steps, so tests can stage
// malformed frames, unknown event types, silences, and dropped connections.
package agenttest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/agentstream-io/agentstream/pkg/protocol"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "agentstream-mock"

// Server is a scripted mock agent server.
//
// The zero value is not usable; call New.
type Server struct {
	router chi.Router

	mu          sync.Mutex
	script      []Step
	authToken   string
	healthy     bool
	threads     map[string][]protocol.ChatMessage
	userThreads map[string][]string
	feedback    []protocol.FeedbackRequest
	lastRequest *protocol.ChatRequest
	lastHeaders http.Header
}

// New creates a mock server with an empty script. Without a script, stream
// requests get a default echo reply.
func New() *Server {
	s := &Server{
		healthy:     true,
		threads:     make(map[string][]protocol.ChatMessage),
		userThreads: make(map[string][]string),
	}

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Post("/v1/stream", s.handleStream)
	r.Get("/v1/history/{threadID}", s.handleHistory)
	r.Get("/v1/threads/{userID}", s.handleThreads)
	r.Post("/v1/feedback", s.handleFeedback)
	s.router = r

	return s
}

// Handler returns the HTTP handler, for use with httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the mock on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	slog.Info("Mock agent server listening", "addr", addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// SetScript replaces the stream script. An empty call restores the default
// echo behavior.
func (s *Server) SetScript(steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = steps
}

// SetAuthToken makes every endpoint require the X-Token header.
func (s *Server) SetAuthToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken = token
}

// SetHealthy toggles the health endpoint between 200 and 503.
func (s *Server) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

// SeedThread pre-populates a thread's history, registering it under userID.
func (s *Server) SeedThread(userID, threadID string, msgs ...protocol.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerThreadLocked(userID, threadID)
	s.threads[threadID] = append(s.threads[threadID], msgs...)
}

// LastRequest returns a copy of the most recent stream request, or nil.
func (s *Server) LastRequest() *protocol.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRequest == nil {
		return nil
	}
	req := *s.lastRequest
	return &req
}

// LastHeaders returns the headers of the most recent stream request.
func (s *Server) LastHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeaders.Clone()
}

// Feedback returns all feedback submissions received so far.
func (s *Server) Feedback() []protocol.FeedbackRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.feedback)
}

// History returns the recorded history for a thread.
func (s *Server) History(threadID string) []protocol.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.threads[threadID])
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	token := s.authToken
	s.mu.Unlock()

	if token != "" && r.Header.Get("X-Token") != token {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	healthy := s.healthy
	s.mu.Unlock()

	if !healthy {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(protocol.HealthStatus{
		Status:  "healthy",
		Service: ServiceName,
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	var req protocol.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.lastRequest = &req
	s.lastHeaders = r.Header.Clone()
	script := slices.Clone(s.script)
	s.mu.Unlock()

	if script == nil {
		script = defaultScript(&req)
	}

	s.recordTurn(&req, script)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.(http.Flusher)
	if !ok {
		return
	}
	flusher.Flush()

	for _, step := range script {
		if step.Delay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(step.Delay):
			}
		}
		if step.Close {
			panic(http.ErrAbortHandler)
		}
		if step.Payload == "" {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", step.Payload)
		flusher.Flush()
	}
}

// recordTurn appends the human message and every scripted assistant message
// to the thread history, so history and thread listings reflect the chat.
func (s *Server) recordTurn(req *protocol.ChatRequest, script []Step) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registerThreadLocked(req.UserID, req.ThreadID)

	s.threads[req.ThreadID] = append(s.threads[req.ThreadID], protocol.ChatMessage{
		Type:      protocol.RoleHuman,
		Content:   req.Message,
		ThreadID:  req.ThreadID,
		SessionID: req.SessionID,
	})

	for _, step := range script {
		ev, err := protocol.DecodeEvent(step.Payload)
		if err != nil || ev.Kind != protocol.KindMessage {
			continue
		}
		msg := *ev.Message
		msg.ThreadID = req.ThreadID
		msg.SessionID = req.SessionID
		s.threads[req.ThreadID] = append(s.threads[req.ThreadID], msg)
	}
}

func (s *Server) registerThreadLocked(userID, threadID string) {
	if !slices.Contains(s.userThreads[userID], threadID) {
		s.userThreads[userID] = append(s.userThreads[userID], threadID)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	threadID := chi.URLParam(r, "threadID")

	s.mu.Lock()
	msgs := slices.Clone(s.threads[threadID])
	s.mu.Unlock()

	if msgs == nil {
		msgs = []protocol.ChatMessage{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(protocol.HistoryResponse{Messages: msgs})
}

func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	userID := chi.URLParam(r, "userID")

	s.mu.Lock()
	ids := slices.Clone(s.userThreads[userID])
	s.mu.Unlock()

	if ids == nil {
		ids = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ids)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	var fb protocol.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := fb.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.feedback = append(s.feedback, fb)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
