package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Data lines are: <t_ns>,<quoted>
//   where t_ns is nanoseconds since START and quoted is the device line as a
//   Go-quoted string, so commas and stray control bytes survive.

type Record struct {
	At   time.Duration
	Line string
	// Start marks a START record; Line is empty.
	Start bool
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadAll parses the whole log. Blank and comment lines are skipped.
func (rr *Reader) ReadAll() ([]Record, error) {
	sc := bufio.NewScanner(rr.r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var recs []Record
	for n := 1; sc.Scan(); n++ {
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "", strings.HasPrefix(text, "#"):
			continue
		case text == "START":
			recs = append(recs, Record{Start: true})
			continue
		}
		rec, err := parseRecord(text)
		if err != nil {
			return nil, fmt.Errorf("replay line %d: %w", n, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func parseRecord(text string) (Record, error) {
	ts, quoted, ok := strings.Cut(text, ",")
	if !ok {
		return Record{}, errors.New("missing comma")
	}
	ts, quoted = strings.TrimSpace(ts), strings.TrimSpace(quoted)
	ns, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad timestamp %q", ts)
	}
	if ns < 0 {
		return Record{}, fmt.Errorf("negative timestamp %d", ns)
	}
	line, err := strconv.Unquote(quoted)
	if err != nil {
		return Record{}, fmt.Errorf("bad payload %q", quoted)
	}
	return Record{At: time.Duration(ns), Line: line}, nil
}

// ReadFile loads every record from path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

// Writer records device lines with their arrival time. It is safe for use by
// one goroutine at a time; Close may be called from another.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now()}, nil
}

func (ww *Writer) WriteLine(now time.Time, line string) error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return errors.New("replay writer is closed")
	}

	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), strconv.Quote(line))
	return err
}

func (ww *Writer) Flush() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}
