package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrConnection marks a transport-level failure to reach the agent server:
// connection refused, DNS, TLS. It fails the call before any event is
// produced.
var ErrConnection = errors.New("connection error")

// ErrStreamTimeout marks an expired stream deadline, either the total
// wall-clock budget or the inter-event idle window. On a live stream the
// expiry surfaces as a recoverable error event; this sentinel classifies
// the turn in metrics and traces.
var ErrStreamTimeout = errors.New("stream deadline exceeded")

// ErrNoResponse is returned by one-shot calls when the stream terminated
// without producing an assistant message.
var ErrNoResponse = errors.New("stream ended without an assistant message")

// ServerError reports a non-2xx response received before streaming began.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("server error: HTTP %d: %s", e.StatusCode, e.Body)
}

// maxErrorBody bounds how much of an error response is retained.
const maxErrorBody = 8 << 10

// newServerError drains up to maxErrorBody bytes of the response and closes
// it. The caller hands over ownership of the body.
func newServerError(resp *http.Response) *ServerError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &ServerError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
