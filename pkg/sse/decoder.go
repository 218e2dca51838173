// Package sse decodes Server-Sent Events framing from a streaming HTTP
// response body.
//
// The decoder is pull-based: each call to Next reads only as many bytes from
// the transport as one record needs, so nothing is consumed ahead of the
// caller. Records are separated by a blank line and built from one or more
// "data:" lines; multi-line payloads are joined with a newline. Comments,
// event names and retry hints are ignored.
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// DoneSentinel is the literal payload marking the end of an event stream.
// It is passed through as frame data, never decoded.
const DoneSentinel = "[DONE]"

// ErrMalformedFrame reports a framing violation: payload bytes that are not
// valid UTF-8, or a record left unterminated when the transport closed.
var ErrMalformedFrame = errors.New("malformed event frame")

var dataPrefix = []byte("data:")

// Frame is the payload text of one event record.
type Frame struct {
	Data string
}

// Done reports whether the frame carries the terminal sentinel.
func (f Frame) Done() bool { return f.Data == DoneSentinel }

// Decoder reads SSE records from a byte stream.
//
// A Decoder is bound to a single response body and is not safe for
// concurrent use. Once Next returns an error, every subsequent call returns
// the same error.
type Decoder struct {
	r   *bufio.Reader
	err error
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next complete record. It blocks until a full record is
// available, the transport closes (io.EOF), or reading fails. Lines split
// across transport chunks are buffered until complete.
func (d *Decoder) Next() (Frame, error) {
	if d.err != nil {
		return Frame{}, d.err
	}
	frame, err := d.next()
	if err != nil {
		d.err = err
		return Frame{}, err
	}
	return frame, nil
}

func (d *Decoder) next() (Frame, error) {
	var data []string
	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Frame{}, d.atEOF(trimEOL(line), data)
			}
			return Frame{}, fmt.Errorf("failed to read event stream: %w", err)
		}

		line = trimEOL(line)
		if len(line) == 0 {
			// Blank line terminates a record. Separator runs between
			// records carry no payload and are skipped.
			if len(data) > 0 {
				return Frame{Data: strings.Join(data, "\n")}, nil
			}
			continue
		}

		payload, ok := dataLine(line)
		if !ok {
			continue
		}
		if !utf8.Valid(payload) {
			return Frame{}, fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformedFrame)
		}
		data = append(data, string(payload))
	}
}

// atEOF classifies the end of the transport. A record that never saw its
// terminating blank line is malformed; anything else is a clean end.
func (d *Decoder) atEOF(line []byte, data []string) error {
	if len(data) > 0 {
		return fmt.Errorf("%w: record unterminated at end of stream", ErrMalformedFrame)
	}
	if _, ok := dataLine(line); ok {
		return fmt.Errorf("%w: record unterminated at end of stream", ErrMalformedFrame)
	}
	return io.EOF
}

// dataLine extracts the payload of a "data:" line, dropping the single
// optional space after the colon.
func dataLine(line []byte) ([]byte, bool) {
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil, false
	}
	payload := line[len(dataPrefix):]
	if len(payload) > 0 && payload[0] == ' ' {
		payload = payload[1:]
	}
	return payload, true
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
