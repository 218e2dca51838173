package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkReader delivers its chunks one Read call at a time, forcing the
// decoder to reassemble lines split at arbitrary transport boundaries.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func collectFrames(t *testing.T, d *Decoder) []Frame {
	t.Helper()
	var frames []Frame
	for {
		frame, err := d.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		if err != nil {
			t.Fatalf("Next() error = %v, want nil", err)
		}
		frames = append(frames, frame)
	}
}

func TestDecoderRecords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "single_record",
			input: "data: {\"type\":\"token\",\"content\":\"hi\"}\n\n",
			want:  []string{`{"type":"token","content":"hi"}`},
		},
		{
			name:  "multiple_records",
			input: "data: one\n\ndata: two\n\ndata: three\n\n",
			want:  []string{"one", "two", "three"},
		},
		{
			name:  "multi_line_payload_joined_with_newline",
			input: "data: first\ndata: second\n\n",
			want:  []string{"first\nsecond"},
		},
		{
			name:  "non_data_lines_ignored",
			input: ": keep-alive\nevent: message\nid: 7\nretry: 100\ndata: payload\n\n",
			want:  []string{"payload"},
		},
		{
			name:  "comment_only_record_produces_nothing",
			input: ": ping\n\ndata: payload\n\n",
			want:  []string{"payload"},
		},
		{
			name:  "crlf_line_endings",
			input: "data: payload\r\n\r\n",
			want:  []string{"payload"},
		},
		{
			name:  "no_space_after_colon",
			input: "data:payload\n\n",
			want:  []string{"payload"},
		},
		{
			name:  "extra_blank_lines_between_records",
			input: "data: one\n\n\n\ndata: two\n\n",
			want:  []string{"one", "two"},
		},
		{
			name:  "empty_stream",
			input: "",
			want:  nil,
		},
		{
			name:  "done_sentinel_passes_through",
			input: "data: [DONE]\n\n",
			want:  []string{"[DONE]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(strings.NewReader(tt.input))
			frames := collectFrames(t, d)

			if len(frames) != len(tt.want) {
				t.Fatalf("got %d frames, want %d", len(frames), len(tt.want))
			}
			for i, frame := range frames {
				if frame.Data != tt.want[i] {
					t.Errorf("frame[%d].Data = %q, want %q", i, frame.Data, tt.want[i])
				}
			}
		})
	}
}

func TestDecoderChunkBoundarySplit(t *testing.T) {
	// A data line split mid-payload across two transport chunks must be
	// reassembled into one frame.
	r := &chunkReader{chunks: []string{
		`data: {"type":"to`,
		"ken\",\"content\":\"hi\"}\n\n",
	}}

	d := NewDecoder(r)
	frame, err := d.Next()
	if err != nil {
		t.Fatalf("Next() error = %v, want nil", err)
	}
	want := `{"type":"token","content":"hi"}`
	if frame.Data != want {
		t.Errorf("Data = %q, want %q", frame.Data, want)
	}

	if _, err := d.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestDecoderChunkBoundaryAcrossRecords(t *testing.T) {
	r := &chunkReader{chunks: []string{
		"data: one\n",
		"\nda",
		"ta: two\n\n",
	}}

	d := NewDecoder(r)
	frames := collectFrames(t, d)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Data != "one" || frames[1].Data != "two" {
		t.Errorf("frames = %q, %q, want \"one\", \"two\"", frames[0].Data, frames[1].Data)
	}
}

func TestDecoderUnterminatedRecord(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "data_line_without_separator", input: "data: dangling\n"},
		{name: "data_line_without_newline", input: "data: dangling"},
		{name: "multi_line_record_cut_short", input: "data: a\ndata: b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(strings.NewReader(tt.input))
			_, err := d.Next()
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("Next() error = %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestDecoderDanglingCommentIsCleanEOF(t *testing.T) {
	// Trailing ignorable content never formed a record, so the stream ends
	// cleanly.
	d := NewDecoder(strings.NewReader("data: one\n\n: bye"))
	frames := collectFrames(t, d)
	if len(frames) != 1 || frames[0].Data != "one" {
		t.Errorf("frames = %v, want single \"one\"", frames)
	}
}

func TestDecoderInvalidUTF8(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: \xff\xfe\n\n"))
	_, err := d.Next()
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("Next() error = %v, want ErrMalformedFrame", err)
	}
}

func TestDecoderErrorIsSticky(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: dangling"))
	_, first := d.Next()
	if !errors.Is(first, ErrMalformedFrame) {
		t.Fatalf("Next() error = %v, want ErrMalformedFrame", first)
	}
	_, second := d.Next()
	if !errors.Is(second, ErrMalformedFrame) {
		t.Errorf("second Next() error = %v, want ErrMalformedFrame", second)
	}
}

func TestFrameDone(t *testing.T) {
	if !(Frame{Data: DoneSentinel}).Done() {
		t.Error("Done() = false for sentinel frame, want true")
	}
	if (Frame{Data: `{"type":"token"}`}).Done() {
		t.Error("Done() = true for JSON frame, want false")
	}
}
