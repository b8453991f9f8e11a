package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrInvalidEventName means an "event:" field violated DOM naming rules;
// the decoder stops at the frame that produced it.
var ErrInvalidEventName = errors.New("sse: invalid event name")

// Decoder reads SSE frames from an io.Reader. It does not close the
// underlying reader. Not safe for concurrent use — the llm client gives
// each in-flight request its own Decoder over its own response body.
//
// Unlike a field-at-a-time parser, Decoder first collects all the raw
// field lines belonging to one frame (everything up to the blank line
// that terminates it, or end of stream) and only then interprets them.
// That keeps frame boundary detection — the part that has to tolerate
// CRLF, lone CR, and lone LF — entirely separate from field semantics.
type Decoder struct {
	lines *lineReader

	lastID  string
	err     error
	current Message
}

func NewDecoder(r io.Reader) *Decoder {
	lr := newLineReader(r)
	lr.skipBOM()
	return &Decoder{lines: lr}
}

// Next reads and decodes the next frame. It returns false at end of
// stream, on the first malformed field, or when the underlying reader
// fails; Error distinguishes a clean end from a real failure.
func (d *Decoder) Next() bool {
	for {
		if d.err != nil {
			return false
		}

		raw, readErr := d.lines.readFrame()
		if readErr != nil {
			d.err = readErr
			return false
		}
		if len(raw) == 0 {
			return false
		}

		msg, err := decodeFrame(raw, &d.lastID)
		if err != nil {
			d.err = err
			return false
		}
		if msg == nil {
			// A complete frame with no "data" field carries nothing to
			// deliver to a caller, per the SSE dispatch rule; keep reading.
			continue
		}

		d.current = *msg
		return true
	}
}

// Current returns the most recently decoded frame; valid after Next
// returns true.
func (d *Decoder) Current() Message {
	return d.current
}

// Error returns the terminal error, if Next stopped because of one rather
// than a clean end of stream.
func (d *Decoder) Error() error {
	return d.err
}

// lineReader splits a byte stream into SSE lines, tolerating CRLF, lone
// CR, and lone LF line endings, and groups consecutive non-blank lines
// into frames separated by a blank line (or terminated by EOF).
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (lr *lineReader) skipBOM() {
	peeked, err := lr.r.Peek(len(utf8BomSequence))
	if err != nil {
		return
	}
	if bytes.Equal(peeked, []byte(utf8BomSequence)) {
		_, _ = lr.r.Discard(len(utf8BomSequence))
	}
}

// readLine returns the next line with its terminator stripped. atEOF
// reports that the stream ended before a line terminator was read.
func (lr *lineReader) readLine() (line string, atEOF bool, err error) {
	var buf []byte
	for {
		b, rerr := lr.r.ReadByte()
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return string(buf), true, nil
			}
			return "", false, rerr
		}
		switch b {
		case '\n':
			return string(buf), false, nil
		case '\r':
			if next, perr := lr.r.Peek(1); perr == nil && next[0] == '\n' {
				_, _ = lr.r.ReadByte()
			}
			return string(buf), false, nil
		default:
			buf = append(buf, b)
		}
	}
}

// readFrame accumulates lines until a blank line or end of stream, and
// returns the non-blank lines belonging to one frame. A nil, nil result
// means the stream is exhausted with nothing buffered.
func (lr *lineReader) readFrame() ([]string, error) {
	var fields []string
	for {
		line, atEOF, err := lr.readLine()
		if err != nil {
			return nil, err
		}
		if line != "" {
			fields = append(fields, line)
		} else if len(fields) > 0 {
			return fields, nil
		}
		if atEOF {
			return fields, nil
		}
	}
}

// decodeFrame interprets one frame's raw field lines. lastID is the
// decoder's persisted "id:" value, read and updated in place since an id
// field carries forward to frames that don't repeat it. It returns a nil
// Message, nil error for a well-formed frame that never set a data field
// — the SSE dispatch rule is that such a frame delivers nothing.
func decodeFrame(lines []string, lastID *string) (*Message, error) {
	var (
		event    = eventNameMessage
		dataLine []string
		sawData  bool
		retry    int
	)

	for _, line := range lines {
		if strings.HasPrefix(line, delimiter) {
			continue // comment line
		}

		name, value, hasValue := strings.Cut(line, delimiter)
		if !hasValue {
			name, value = line, ""
		} else {
			value = normalizeFieldValue(value)
		}

		switch name {
		case fieldID:
			*lastID = value
		case fieldEvent:
			if value == "" {
				event = eventNameMessage
			} else if !isValidSSEEventName(value) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidEventName, value)
			} else {
				event = value
			}
		case fieldData:
			dataLine = append(dataLine, value)
			sawData = true
		case fieldRetry:
			if n, convErr := strconv.Atoi(value); convErr == nil && n > 0 {
				retry = n
			}
		}
	}

	if !sawData {
		return nil, nil
	}
	return &Message{
		ID:    *lastID,
		Event: event,
		Data:  []byte(strings.Join(dataLine, "\n")),
		Retry: retry,
	}, nil
}

func normalizeFieldValue(value string) string {
	value = strings.TrimPrefix(value, whitespace)
	value = strings.TrimPrefix(value, utf8BomSequence)
	if !utf8.ValidString(value) {
		value = strings.ToValidUTF8(value, invalidUTF8Replacement)
	}
	return value
}
