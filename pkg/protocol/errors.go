package protocol

import (
	"errors"
	"fmt"
)

// ErrUnknownEventType marks an event whose type discriminator is not part
// of the protocol. The condition is non-fatal: sessions skip the frame to
// stay forward compatible with newer servers.
var ErrUnknownEventType = errors.New("unknown event type")

// UnknownEventError carries the unrecognized type discriminator, so skip
// handlers can log and count it. It matches ErrUnknownEventType under
// errors.Is.
type UnknownEventError struct {
	Type string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event type: %q", e.Type)
}

func (e *UnknownEventError) Is(target error) bool {
	return target == ErrUnknownEventType
}

// DecodeError reports a structurally invalid event payload: a missing
// required field or a field of the wrong type. It is fatal for the stream
// it occurred on, since message state can no longer be reconstructed
// safely.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode event: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode event: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
