package agenttest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agentstream-io/agentstream/pkg/sse"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write script file: %v", err)
	}
	return path
}

func TestLoadScript(t *testing.T) {
	path := writeScript(t, `
steps:
  - token: "Hi"
    delay: 50ms
  - delay: 150ms
  - message: {role: ai, content: "Hi there"}
  - error: {message: "try later", recoverable: true}
  - raw: '{"type":"heartbeat"}'
  - done: true
  - close: true
`)

	steps, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript() error = %v", err)
	}
	if len(steps) != 7 {
		t.Fatalf("LoadScript() returned %d steps, want 7", len(steps))
	}

	if !strings.Contains(steps[0].Payload, `"type":"token"`) || steps[0].Delay != 50*time.Millisecond {
		t.Errorf("steps[0] = %+v, want a token event after 50ms", steps[0])
	}
	if steps[1].Payload != "" || steps[1].Delay != 150*time.Millisecond {
		t.Errorf("steps[1] = %+v, want a pure 150ms pause", steps[1])
	}
	if !strings.Contains(steps[2].Payload, `"type":"message"`) || !strings.Contains(steps[2].Payload, "Hi there") {
		t.Errorf("steps[2] = %+v, want a message event", steps[2])
	}
	if !strings.Contains(steps[3].Payload, `"recoverable":true`) {
		t.Errorf("steps[3] = %+v, want a recoverable error event", steps[3])
	}
	if steps[4].Payload != `{"type":"heartbeat"}` {
		t.Errorf("steps[4].Payload = %q, want the raw payload verbatim", steps[4].Payload)
	}
	if steps[5].Payload != sse.DoneSentinel {
		t.Errorf("steps[5].Payload = %q, want %q", steps[5].Payload, sse.DoneSentinel)
	}
	if !steps[6].Close {
		t.Errorf("steps[6] = %+v, want a connection drop", steps[6])
	}
}

func TestLoadScriptRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no steps", "steps: []"},
		{"not yaml", "steps: ["},
		{"two actions", "steps:\n  - token: hi\n    done: true"},
		{"bad delay", "steps:\n  - delay: fast"},
		{"negative delay", "steps:\n  - delay: -1s"},
		{"message without role", "steps:\n  - message: {content: hi}"},
		{"error without message", "steps:\n  - error: {recoverable: true}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScript(t, tt.content)
			if _, err := LoadScript(path); err == nil {
				t.Error("LoadScript() error = nil, want failure")
			}
		})
	}
}

func TestLoadScriptMissingFile(t *testing.T) {
	if _, err := LoadScript(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadScript() error = nil for a missing file")
	}
}
