package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/agentstream-io/agentstream/pkg/sse"
)

// EventKind discriminates the StreamEvent union.
type EventKind string

const (
	KindMessage EventKind = "message"
	KindToken   EventKind = "token"
	KindError   EventKind = "error"
	KindDone    EventKind = "done"
)

// StreamError is a stream-level failure reported by the server (or
// synthesized by the session). It marks the logical turn as failed without
// tearing down the caller's iteration.
type StreamError struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// Error makes a StreamError usable as a Go error, so one-shot callers can
// receive a failed turn's error event directly and inspect Recoverable
// through errors.As.
func (e *StreamError) Error() string {
	if e.Recoverable {
		return fmt.Sprintf("agent error (recoverable): %s", e.Message)
	}
	return fmt.Sprintf("agent error: %s", e.Message)
}

// StreamEvent is one element of the event sequence a stream yields. Exactly
// one of the variant fields is set, according to Kind.
type StreamEvent struct {
	Kind    EventKind
	Message *ChatMessage // KindMessage
	Token   string       // KindToken
	Err     *StreamError // KindError
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool { return e.Kind == KindDone }

// DoneEvent returns the terminal sentinel event.
func DoneEvent() StreamEvent {
	return StreamEvent{Kind: KindDone}
}

// ErrorEvent returns a stream error event. The session uses it to surface
// timeouts and decode failures as well-formed events.
func ErrorEvent(message string, recoverable bool) StreamEvent {
	return StreamEvent{
		Kind: KindError,
		Err:  &StreamError{Message: message, Recoverable: recoverable},
	}
}

// wireEvent is the envelope shared by all JSON event payloads.
type wireEvent struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// DecodeEvent converts one frame payload into a StreamEvent.
//
// The sentinel payload maps to KindDone without JSON decoding. Unknown
// event types return ErrUnknownEventType so the session can skip the frame;
// structurally invalid payloads return a *DecodeError, which is fatal for
// the stream.
func DecodeEvent(payload string) (StreamEvent, error) {
	if payload == sse.DoneSentinel {
		return DoneEvent(), nil
	}

	var ev wireEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return StreamEvent{}, &DecodeError{Reason: "payload is not a JSON event", Err: err}
	}
	if ev.Type == "" {
		return StreamEvent{}, &DecodeError{Reason: "event missing type field"}
	}

	switch ev.Type {
	case "message":
		return decodeMessage(ev.Content)
	case "token":
		return decodeToken(ev.Content)
	case "error":
		return decodeError(ev.Content)
	default:
		return StreamEvent{}, &UnknownEventError{Type: ev.Type}
	}
}

func decodeMessage(content json.RawMessage) (StreamEvent, error) {
	if missing(content) {
		return StreamEvent{}, &DecodeError{Reason: "message event missing content"}
	}
	var msg ChatMessage
	if err := json.Unmarshal(content, &msg); err != nil {
		return StreamEvent{}, &DecodeError{Reason: "message content is structurally invalid", Err: err}
	}
	if msg.Type == "" {
		return StreamEvent{}, &DecodeError{Reason: "message content missing type field"}
	}
	return StreamEvent{Kind: KindMessage, Message: &msg}, nil
}

func decodeToken(content json.RawMessage) (StreamEvent, error) {
	if missing(content) {
		return StreamEvent{}, &DecodeError{Reason: "token event missing content"}
	}
	var text string
	if err := json.Unmarshal(content, &text); err != nil {
		return StreamEvent{}, &DecodeError{Reason: "token content is not a string", Err: err}
	}
	return StreamEvent{Kind: KindToken, Token: text}, nil
}

func decodeError(content json.RawMessage) (StreamEvent, error) {
	if missing(content) {
		return StreamEvent{}, &DecodeError{Reason: "error event missing content"}
	}
	var se StreamError
	if err := json.Unmarshal(content, &se); err != nil {
		return StreamEvent{}, &DecodeError{Reason: "error content is structurally invalid", Err: err}
	}
	if se.Message == "" {
		return StreamEvent{}, &DecodeError{Reason: "error content missing message field"}
	}
	return StreamEvent{Kind: KindError, Err: &se}, nil
}

// missing reports whether a content field was absent or JSON null.
func missing(content json.RawMessage) bool {
	return len(content) == 0 || string(content) == "null"
}
