package agenttest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/agentstream-io/agentstream/pkg/protocol"
	"github.com/agentstream-io/agentstream/pkg/sse"
)

// Step is one scripted action during a streamed response.
// Steps execute in order: wait Delay, then either hang up (Close) or write
// Payload as a single SSE data record. A step with neither is a pure pause.
type Step struct {
	// Delay pauses before this step executes.
	Delay time.Duration

	// Payload is written as one `data:` record.
	Payload string

	// Close aborts the connection mid-stream without finishing the record.
	Close bool
}

// MessageStep scripts a complete message event.
func MessageStep(role, content string) Step {
	payload, _ := json.Marshal(map[string]any{
		"type": "message",
		"content": map[string]any{
			"type":    role,
			"content": content,
		},
	})
	return Step{Payload: string(payload)}
}

// TokenStep scripts a single token event.
func TokenStep(text string) Step {
	payload, _ := json.Marshal(map[string]any{
		"type":    "token",
		"content": text,
	})
	return Step{Payload: string(payload)}
}

// ErrorStep scripts an error event.
func ErrorStep(message string, recoverable bool) Step {
	payload, _ := json.Marshal(map[string]any{
		"type": "error",
		"content": map[string]any{
			"message":     message,
			"recoverable": recoverable,
		},
	})
	return Step{Payload: string(payload)}
}

// DoneStep scripts the stream-termination sentinel.
func DoneStep() Step {
	return Step{Payload: sse.DoneSentinel}
}

// RawStep scripts an arbitrary payload, useful for malformed frames and
// unrecognized event types.
func RawStep(payload string) Step {
	return Step{Payload: payload}
}

// DelayStep scripts a pause with no output, useful for idle-timeout tests.
func DelayStep(d time.Duration) Step {
	return Step{Delay: d}
}

// CloseStep scripts an abrupt connection drop.
func CloseStep() Step {
	return Step{Close: true}
}

// defaultScript echoes the request message back, token by token when the
// request asks for token streaming.
func defaultScript(req *protocol.ChatRequest) []Step {
	reply := "You said: " + req.Message

	var steps []Step
	if req.StreamTokens {
		for i, word := range strings.Fields(reply) {
			if i == 0 {
				steps = append(steps, TokenStep(word))
				continue
			}
			steps = append(steps, TokenStep(" "+word))
		}
	}
	steps = append(steps, MessageStep(string(protocol.RoleAI), reply), DoneStep())
	return steps
}
