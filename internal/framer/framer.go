package framer

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"unicode/utf8"
)

// ErrInvalidEncoding is reported for a framed segment that is not valid UTF-8.
// The framer keeps going with the bytes after the offending newline.
var ErrInvalidEncoding = errors.New("framer: line is not valid utf-8")

// Framer turns an arbitrarily chunked byte stream into newline-delimited
// lines. A single trailing '\r' is stripped from each line.
//
// There is no maximum line length: the pending tail grows until a newline
// arrives. The device emits short status lines, so this is accepted.
//
// A Framer is not safe for concurrent use.
type Framer struct {
	buf []byte
	// head is the first byte not yet consumed by a line.
	head int
	// scan is the resume index relative to head; buf[head:head+scan] is
	// known to contain no newline.
	scan int
}

func New() *Framer {
	return &Framer{}
}

// Feed appends p to the pending buffer and returns the lines that are now
// complete. The bytes are buffered immediately; the returned sequence extracts
// lines lazily as it is ranged over. Lines not pulled before the range stops
// remain buffered and are returned by the next Feed or Next.
//
// Each element is either a line with a nil error, or an empty string with an
// error wrapping ErrInvalidEncoding.
func (f *Framer) Feed(p []byte) iter.Seq2[string, error] {
	f.compact()
	f.buf = append(f.buf, p...)
	return func(yield func(string, error) bool) {
		for {
			line, ok, err := f.Next()
			if !ok {
				return
			}
			if !yield(line, err) {
				return
			}
		}
	}
}

// Next extracts one line from the pending buffer. ok is false when no
// complete line is buffered.
func (f *Framer) Next() (line string, ok bool, err error) {
	pending := f.buf[f.head:]
	i := bytes.IndexByte(pending[f.scan:], '\n')
	if i < 0 {
		f.scan = len(pending)
		return "", false, nil
	}

	end := f.scan + i
	raw := pending[:end]
	f.head += end + 1
	f.scan = 0
	if f.head == len(f.buf) {
		f.buf = f.buf[:0]
		f.head = 0
	}

	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	if !utf8.Valid(raw) {
		return "", true, fmt.Errorf("%w (%d bytes)", ErrInvalidEncoding, len(raw))
	}
	// string() copies, so the line stays valid after the buffer is compacted.
	return string(raw), true, nil
}

// Pending returns a copy of the bytes received after the last newline.
func (f *Framer) Pending() []byte {
	return append([]byte(nil), f.buf[f.head:]...)
}

// Buffered reports the number of pending bytes.
func (f *Framer) Buffered() int {
	return len(f.buf) - f.head
}

func (f *Framer) compact() {
	if f.head == 0 {
		return
	}
	n := copy(f.buf, f.buf[f.head:])
	f.buf = f.buf[:n]
	f.head = 0
}
