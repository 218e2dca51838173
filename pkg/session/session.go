// Package session tracks client-side conversation state.
//
// A session is the local view of one conversation thread: its identifiers
// and the ordered history of completed messages observed on its streams.
// Token fragments and stream errors never mutate a session; only whole
// messages are appended. Nothing here is persisted across processes — the
// remote server owns durable history.
package session

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentstream-io/agentstream/pkg/protocol"
)

// ErrThreadNotFound is returned when no session exists for a thread.
var ErrThreadNotFound = errors.New("thread not found")

// Session is one conversation thread's local state.
type Session interface {
	// ThreadID returns the conversation thread identifier.
	ThreadID() string

	// SessionID returns the grouping identifier for this thread.
	SessionID() string

	// UserID returns the user identifier.
	UserID() string

	// History iterates the completed messages in observation order.
	History() iter.Seq[protocol.ChatMessage]

	// Snapshot returns a copy of the history slice.
	Snapshot() []protocol.ChatMessage

	// Len returns the number of messages in the history.
	Len() int

	// At returns the i-th message, or nil when out of range.
	At(i int) *protocol.ChatMessage

	// LastUpdateTime returns when the session was last modified.
	LastUpdateTime() time.Time
}

// Service manages session lifecycle.
type Service interface {
	// Get retrieves an existing session.
	Get(ctx context.Context, threadID string) (Session, error)

	// Create creates a new session, generating missing identifiers.
	Create(ctx context.Context, req *CreateRequest) (Session, error)

	// GetOrCreate retrieves a thread's session or creates it on first use.
	GetOrCreate(ctx context.Context, req *CreateRequest) (Session, error)

	// Append adds a completed message to a thread's history.
	Append(ctx context.Context, threadID string, msg protocol.ChatMessage) error

	// Replace swaps a thread's history wholesale, e.g. when resuming a
	// thread from server-side history.
	Replace(ctx context.Context, threadID string, history []protocol.ChatMessage) error

	// List returns the sessions belonging to a user.
	List(ctx context.Context, userID string) ([]Session, error)

	// Reset discards a thread's local state.
	Reset(ctx context.Context, threadID string) error
}

// CreateRequest contains parameters for creating a session.
type CreateRequest struct {
	ThreadID  string // Optional - generated if empty
	SessionID string // Optional - defaults to the thread id
	UserID    string
}

// memorySession is an in-memory Session implementation.
type memorySession struct {
	threadID       string
	sessionID      string
	userID         string
	history        []protocol.ChatMessage
	lastUpdateTime time.Time
	mu             sync.RWMutex
}

func (s *memorySession) ThreadID() string  { return s.threadID }
func (s *memorySession) SessionID() string { return s.sessionID }
func (s *memorySession) UserID() string    { return s.userID }

func (s *memorySession) History() iter.Seq[protocol.ChatMessage] {
	return func(yield func(protocol.ChatMessage) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for _, msg := range s.history {
			if !yield(msg) {
				return
			}
		}
	}
}

func (s *memorySession) Snapshot() []protocol.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

func (s *memorySession) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

func (s *memorySession) At(i int) *protocol.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.history) {
		return nil
	}
	msg := s.history[i]
	return &msg
}

func (s *memorySession) LastUpdateTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdateTime
}

func (s *memorySession) append(msg protocol.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
	s.lastUpdateTime = time.Now()
}

func (s *memorySession) replace(history []protocol.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = make([]protocol.ChatMessage, len(history))
	copy(s.history, history)
	s.lastUpdateTime = time.Now()
}

// InMemoryService returns an in-memory session service.
func InMemoryService() Service {
	return &inMemoryService{
		sessions: make(map[string]*memorySession),
	}
}

type inMemoryService struct {
	sessions map[string]*memorySession
	mu       sync.RWMutex
}

func (s *inMemoryService) Get(ctx context.Context, threadID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[threadID]
	if !ok {
		return nil, ErrThreadNotFound
	}
	return session, nil
}

func (s *inMemoryService) Create(ctx context.Context, req *CreateRequest) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(req), nil
}

func (s *inMemoryService) GetOrCreate(ctx context.Context, req *CreateRequest) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ThreadID != "" {
		if session, ok := s.sessions[req.ThreadID]; ok {
			return session, nil
		}
	}
	return s.createLocked(req), nil
}

func (s *inMemoryService) createLocked(req *CreateRequest) *memorySession {
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = threadID
	}

	session := &memorySession{
		threadID:       threadID,
		sessionID:      sessionID,
		userID:         req.UserID,
		lastUpdateTime: time.Now(),
	}
	s.sessions[threadID] = session
	return session
}

func (s *inMemoryService) Append(ctx context.Context, threadID string, msg protocol.ChatMessage) error {
	s.mu.RLock()
	session, ok := s.sessions[threadID]
	s.mu.RUnlock()
	if !ok {
		return ErrThreadNotFound
	}

	session.append(msg)
	return nil
}

func (s *inMemoryService) Replace(ctx context.Context, threadID string, history []protocol.ChatMessage) error {
	s.mu.RLock()
	session, ok := s.sessions[threadID]
	s.mu.RUnlock()
	if !ok {
		return ErrThreadNotFound
	}

	session.replace(history)
	return nil
}

func (s *inMemoryService) List(ctx context.Context, userID string) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []Session
	for _, session := range s.sessions {
		if session.userID == userID {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (s *inMemoryService) Reset(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, threadID)
	return nil
}

var (
	_ Session = (*memorySession)(nil)
	_ Service = (*inMemoryService)(nil)
)
