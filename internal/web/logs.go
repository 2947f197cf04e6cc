package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogBuffer keeps the most recent log lines for /api/logs. It is an
// io.Writer so it can sit behind the standard logger.
type LogBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial []byte
	dropped uint64
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = 2000
	}
	return &LogBuffer{max: maxLines}
}

// Write collects complete lines; an unterminated tail is held until the next
// write completes it.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := p
	if len(b.partial) > 0 {
		data = append(b.partial, p...)
		b.partial = nil
	}
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		b.appendLineLocked(string(data[:i]))
		data = data[i+1:]
	}
	if len(data) > 0 {
		b.partial = append([]byte(nil), data...)
	}
	return len(p), nil
}

func (b *LogBuffer) appendLineLocked(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = append(b.lines[:0:0], b.lines[over:]...)
		b.dropped += uint64(over)
	}
}

type LogsResponse struct {
	NowUTC  string   `json:"now_utc"`
	Dropped uint64   `json:"dropped"`
	Lines   []string `json:"lines"`
}

const (
	defaultTail = 200
	maxTail     = 5000
)

// Snapshot returns a copy of the last tail lines and the number of lines
// evicted so far.
func (b *LogBuffer) Snapshot(tail int) (lines []string, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tail <= 0 {
		tail = defaultTail
	}
	from := max(len(b.lines)-tail, 0)
	return append([]string(nil), b.lines[from:]...), b.dropped
}

// Handler serves the buffer as JSON, or as plain text with format=text.
func (b *LogBuffer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		q := r.URL.Query()

		tail := defaultTail
		if s := strings.TrimSpace(q.Get("tail")); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 || v > maxTail {
				http.Error(w, fmt.Sprintf("tail must be an integer in [1,%d]", maxTail), http.StatusBadRequest)
				return
			}
			tail = v
		}
		lines, dropped := b.Snapshot(tail)

		if !strings.EqualFold(q.Get("format"), "text") {
			writeJSON(w, LogsResponse{
				NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
				Dropped: dropped,
				Lines:   lines,
			})
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		var out strings.Builder
		if dropped > 0 {
			fmt.Fprintf(&out, "[dropped=%d]\n", dropped)
		}
		for _, line := range lines {
			out.WriteString(line)
			out.WriteByte('\n')
		}
		_, _ = io.WriteString(w, out.String())
	})
}
