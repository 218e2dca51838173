package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentstream-io/agentstream/pkg/agenttest"
	"github.com/agentstream-io/agentstream/pkg/protocol"
)

func TestSendMessageCollects(t *testing.T) {
	mock, c := newMock(t)
	mock.SetScript(
		agenttest.MessageStep("ai", "Hi"),
		agenttest.DoneStep(),
	)

	msg, history, err := c.SendMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if msg.Type != protocol.RoleAI || msg.Content != "Hi" {
		t.Errorf("message = %+v, want ai %q", msg, "Hi")
	}
	if len(history) != 1 {
		t.Errorf("history length = %d, want exactly 1 more than before the turn", len(history))
	}
}

func TestSendMessageAccumulatesTokens(t *testing.T) {
	mock, c := newMock(t)
	mock.SetScript(
		agenttest.TokenStep("H"),
		agenttest.TokenStep("i"),
		agenttest.MessageStep("ai", "Hi"),
		agenttest.DoneStep(),
	)

	msg, history, err := c.SendMessage(context.Background(), "hello", WithTokens(true))
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if msg.Content != "Hi" {
		t.Errorf("message content = %q, want %q", msg.Content, "Hi")
	}
	if len(history) != 1 {
		t.Errorf("history length = %d, want 1 (tokens never reach history)", len(history))
	}
}

func TestSendMessageGrowsHistoryPerTurn(t *testing.T) {
	_, c := newMock(t)

	_, first, err := c.SendMessage(context.Background(), "one", WithThread("long-chat"))
	if err != nil {
		t.Fatalf("first SendMessage() error = %v", err)
	}
	_, second, err := c.SendMessage(context.Background(), "two", WithThread("long-chat"))
	if err != nil {
		t.Fatalf("second SendMessage() error = %v", err)
	}

	if len(second) != len(first)+1 {
		t.Errorf("history lengths = %d then %d, want one more per turn", len(first), len(second))
	}
}

func TestSendMessageRequestsNoTokensByDefault(t *testing.T) {
	mock, c := newMock(t)

	if _, _, err := c.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if req := mock.LastRequest(); req.StreamTokens {
		t.Error("SendMessage sent stream_tokens=true, want false")
	}

	if _, _, err := c.SendMessage(context.Background(), "hello", WithTokens(true)); err != nil {
		t.Fatalf("SendMessage(WithTokens) error = %v", err)
	}
	if req := mock.LastRequest(); !req.StreamTokens {
		t.Error("WithTokens(true) did not reach the request")
	}

	stream, err := c.StreamChat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}
	drainStream(t, stream)
	if req := mock.LastRequest(); !req.StreamTokens {
		t.Error("StreamChat sent stream_tokens=false, want true by default")
	}
}

func TestSendMessageApplicationError(t *testing.T) {
	mock, c := newMock(t)
	mock.SetScript(
		agenttest.ErrorStep("model overloaded", true),
		agenttest.DoneStep(),
	)

	msg, history, err := c.SendMessage(context.Background(), "hello", WithThread("failed-turn"))
	if err == nil {
		t.Fatal("SendMessage() error = nil, want the server's error event")
	}
	var streamErr *protocol.StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("SendMessage() error = %v, want *protocol.StreamError", err)
	}
	if !streamErr.Recoverable || streamErr.Message != "model overloaded" {
		t.Errorf("stream error = %+v, want recoverable %q", streamErr, "model overloaded")
	}
	if msg != nil || history != nil {
		t.Error("failed turn returned a partial result")
	}

	sess, err := c.Sessions().Get(context.Background(), "failed-turn")
	if err != nil {
		t.Fatalf("Sessions().Get() error = %v", err)
	}
	if sess.Len() != 0 {
		t.Errorf("local history length = %d after a failed turn, want 0", sess.Len())
	}
}

func TestSendMessageWithoutResponse(t *testing.T) {
	mock, c := newMock(t)
	mock.SetScript(agenttest.DoneStep())

	_, _, err := c.SendMessage(context.Background(), "hello")
	if !errors.Is(err, ErrNoResponse) {
		t.Errorf("SendMessage() error = %v, want ErrNoResponse", err)
	}
}

func TestSendMessageSuppressesHumanEcho(t *testing.T) {
	mock, c := newMock(t)
	mock.SetScript(
		agenttest.MessageStep("human", "hello"),
		agenttest.MessageStep("ai", "Hi"),
		agenttest.DoneStep(),
	)

	msg, history, err := c.SendMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if msg.Content != "Hi" {
		t.Errorf("message content = %q, want %q", msg.Content, "Hi")
	}
	if len(history) != 1 || history[0].Type != protocol.RoleAI {
		t.Errorf("history = %+v, want only the assistant reply", history)
	}
}

func TestSendMessageConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(url, WithLogger(quietLogger()))
	_, _, err := c.SendMessage(context.Background(), "hello")
	if !errors.Is(err, ErrConnection) {
		t.Errorf("SendMessage() error = %v, want ErrConnection", err)
	}
}

func TestHealth(t *testing.T) {
	mock, c := newMock(t)

	status, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if status.Status != "healthy" || status.Service != agenttest.ServiceName {
		t.Errorf("Health() = %+v, want healthy %s", status, agenttest.ServiceName)
	}

	if !c.Healthy(context.Background()) {
		t.Error("Healthy() = false for a healthy server")
	}

	mock.SetHealthy(false)
	if c.Healthy(context.Background()) {
		t.Error("Healthy() = true for a server reporting unavailable")
	}
}

func TestHealthyOnRefusedConnection(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(url, WithLogger(quietLogger()))
	if c.Healthy(context.Background()) {
		t.Error("Healthy() = true for a refused connection, want false")
	}
}

func TestHistory(t *testing.T) {
	mock, c := newMock(t)
	mock.SeedThread("default", "h1",
		protocol.ChatMessage{Type: protocol.RoleHuman, Content: "question"},
		protocol.ChatMessage{Type: protocol.RoleAI, Content: "answer"},
	)

	history, err := c.History(context.Background(), "h1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[1].Type != protocol.RoleAI || history[1].Content != "answer" {
		t.Errorf("history[1] = %+v, want the seeded answer", history[1])
	}
}

func TestResumeThread(t *testing.T) {
	mock, c := newMock(t)
	mock.SeedThread("default", "resumable",
		protocol.ChatMessage{Type: protocol.RoleHuman, Content: "question"},
		protocol.ChatMessage{Type: protocol.RoleAI, Content: "answer"},
	)

	sess, err := c.ResumeThread(context.Background(), "resumable")
	if err != nil {
		t.Fatalf("ResumeThread() error = %v", err)
	}
	if sess.ThreadID() != "resumable" {
		t.Errorf("ThreadID() = %q, want %q", sess.ThreadID(), "resumable")
	}
	got := sess.Snapshot()
	if len(got) != 2 || got[0].Content != "question" || got[1].Content != "answer" {
		t.Errorf("Snapshot() = %+v, want the server history", got)
	}
}

func TestListThreads(t *testing.T) {
	mock, c := newMock(t)
	mock.SeedThread("default", "mine")
	mock.SeedThread("someone-else", "theirs")

	threads, err := c.ListThreads(context.Background(), "")
	if err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
	if len(threads) != 1 || threads[0] != "mine" {
		t.Errorf("ListThreads(\"\") = %v, want [mine]", threads)
	}

	threads, err = c.ListThreads(context.Background(), "someone-else")
	if err != nil {
		t.Fatalf("ListThreads(someone-else) error = %v", err)
	}
	if len(threads) != 1 || threads[0] != "theirs" {
		t.Errorf("ListThreads(someone-else) = %v, want [theirs]", threads)
	}
}

func TestSubmitFeedback(t *testing.T) {
	mock, c := newMock(t)

	err := c.SubmitFeedback(context.Background(), protocol.FeedbackRequest{
		RunID: "run-1",
		Key:   "user_rating",
		Score: 0.8,
	})
	if err != nil {
		t.Fatalf("SubmitFeedback() error = %v", err)
	}
	if got := mock.Feedback(); len(got) != 1 || got[0].RunID != "run-1" {
		t.Errorf("recorded feedback = %+v, want run-1", got)
	}
}

func TestSubmitFeedbackValidates(t *testing.T) {
	mock, c := newMock(t)

	err := c.SubmitFeedback(context.Background(), protocol.FeedbackRequest{Key: "user_rating"})
	if err == nil {
		t.Fatal("SubmitFeedback() error = nil for a feedback without run id")
	}
	if got := mock.Feedback(); len(got) != 0 {
		t.Errorf("invalid feedback reached the server: %+v", got)
	}
}

func TestAuthTokenForwarded(t *testing.T) {
	mock, c := newMock(t, WithAuthToken("sekrit"))
	mock.SetAuthToken("sekrit")

	if _, _, err := c.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got := mock.LastHeaders().Get("X-Token"); got != "sekrit" {
		t.Errorf("X-Token header = %q, want %q", got, "sekrit")
	}
}

func TestMissingAuthTokenRejected(t *testing.T) {
	mock, c := newMock(t)
	mock.SetAuthToken("sekrit")

	_, _, err := c.SendMessage(context.Background(), "hello")
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("SendMessage() error = %v, want *ServerError", err)
	}
	if srvErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want %d", srvErr.StatusCode, http.StatusUnauthorized)
	}
}

func TestGeneratedIdentifiers(t *testing.T) {
	var n int
	generate := func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
	mock, c := newMock(t, WithIDGenerator(generate))

	if _, _, err := c.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	req := mock.LastRequest()
	if req.ThreadID != "gen-1" {
		t.Errorf("ThreadID = %q, want generated %q", req.ThreadID, "gen-1")
	}
	if req.SessionID != "gen-1" {
		t.Errorf("SessionID = %q, want the thread id by default", req.SessionID)
	}
	if req.UserID != defaultUserID {
		t.Errorf("UserID = %q, want %q", req.UserID, defaultUserID)
	}

	if _, _, err := c.SendMessage(context.Background(), "hello", WithSession("s-7"), AsUser("alice")); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	req = mock.LastRequest()
	if req.ThreadID != "gen-2" || req.SessionID != "s-7" || req.UserID != "alice" {
		t.Errorf("request ids = %+v, want gen-2/s-7/alice", req)
	}
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	_, c := newMock(t)

	_, _, err := c.SendMessage(context.Background(), "")
	if err == nil {
		t.Fatal("SendMessage(\"\") error = nil, want validation failure")
	}
}
