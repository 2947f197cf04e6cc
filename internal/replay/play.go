package replay

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

var errNoRecords = errors.New("no records")

// hasData reports whether records holds at least one line. A log of only
// START markers would otherwise loop without ever sleeping.
func hasData(records []Record) bool {
	for _, r := range records {
		if !r.Start {
			return true
		}
	}
	return false
}

// Play calls cb for every data record, sleeping between records for the
// recorded gap divided by speed. A START record restarts the clock, so the
// first line after it is delivered without waiting. With loop set Play runs
// until cb returns an error.
func Play(records []Record, speed float64, loop bool, sleeper Sleeper, cb func(line string) error) error {
	switch {
	case speed <= 0:
		return fmt.Errorf("replay speed must be > 0")
	case cb == nil:
		return errors.New("callback is nil")
	case !hasData(records):
		return errNoRecords
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}

	for {
		var origin, prev time.Duration
		first := true
		for _, r := range records {
			if r.Start {
				origin, first = r.At, true
				continue
			}
			at := max(r.At-origin, 0)
			if !first {
				if wait := time.Duration(float64(max(at-prev, 0)) / speed); wait > 0 {
					sleeper.Sleep(wait)
				}
			}
			if err := cb(r.Line); err != nil {
				return err
			}
			prev, first = at, false
		}
		if !loop {
			return nil
		}
	}
}

// Source plays records into a byte stream, one "\n"-terminated line per
// record, so a recorded session can stand in for the serial device. Read
// returns io.EOF after the last record unless looping.
type Source struct {
	pr   *io.PipeReader
	pw   *io.PipeWriter
	done chan struct{}
	once sync.Once
}

// NewSource starts playback in the background. A nil sleeper waits in real
// time and is interrupted by Close.
func NewSource(records []Record, speed float64, loop bool, sleeper Sleeper) (*Source, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("replay speed must be > 0")
	}
	if !hasData(records) {
		return nil, errNoRecords
	}

	pr, pw := io.Pipe()
	s := &Source{pr: pr, pw: pw, done: make(chan struct{})}
	if sleeper == nil {
		sleeper = doneSleeper{done: s.done}
	}

	go func() {
		err := Play(records, speed, loop, sleeper, func(line string) error {
			select {
			case <-s.done:
				return io.ErrClosedPipe
			default:
			}
			_, err := io.WriteString(pw, line+"\n")
			return err
		})
		if err == nil {
			err = io.EOF
		}
		_ = pw.CloseWithError(err)
	}()
	return s, nil
}

func (s *Source) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

func (s *Source) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.pr.Close()
}

type doneSleeper struct {
	done <-chan struct{}
}

func (d doneSleeper) Sleep(dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-d.done:
	case <-t.C:
	}
}
