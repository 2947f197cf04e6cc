package gpsdxo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gpsdxo-mon/internal/framer"
	"gpsdxo-mon/internal/telemetry"
)

// Config controls the acquisition service.
//
// The GPSDXO prints one status line per event at 115200 baud 8N1.
type Config struct {
	Device     string
	Baud       int
	ReadBuffer int
}

// SupportedBauds are the rates both serial backends can configure.
var SupportedBauds = []int{4800, 9600, 19200, 38400, 57600, 115200}

// BaudSupported reports whether baud is one of SupportedBauds.
func BaudSupported(baud int) bool {
	return slices.Contains(SupportedBauds, baud)
}

// Recorder receives every framed line before it is classified.
type Recorder interface {
	WriteLine(now time.Time, line string) error
}

// Metrics is notified as lines move through the decoder.
type Metrics interface {
	ObserveLine()
	ObserveFramingError()
	ObserveIgnored()
	ObserveMessage(kind telemetry.Kind)
}

// Service states reported in Snapshot.
const (
	StateStopped = "stopped"
	StateOpening = "opening"
	StateReading = "reading"
	StateFailed  = "failed"
)

// framingLogEvery limits framing error logging to one line per this many
// errors.
const framingLogEvery = 100

type Snapshot struct {
	Device        string `json:"device"`
	Baud          int    `json:"baud,omitempty"`
	State         string `json:"state"`
	Lines         uint64 `json:"lines"`
	Messages      uint64 `json:"messages"`
	Ignored       uint64 `json:"ignored"`
	FramingErrors uint64 `json:"framing_errors"`
	LastLineUTC   string `json:"last_line_utc,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

type Option func(*Service)

// WithSource makes Start read from src instead of opening the serial device.
func WithSource(src io.ReadCloser) Option {
	return func(s *Service) { s.source = src }
}

// WithOpener replaces the serial port opener.
func WithOpener(open func(path string, baud int) (io.ReadCloser, error)) Option {
	return func(s *Service) {
		if open != nil {
			s.open = open
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock sets the time source used for recording and snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type Service struct {
	cfg   Config
	queue *telemetry.Queue

	open     func(path string, baud int) (io.ReadCloser, error)
	source   io.ReadCloser
	recorder Recorder
	metrics  Metrics
	now      func() time.Time

	lines    atomic.Uint64
	messages atomic.Uint64
	ignored  atomic.Uint64
	framing  atomic.Uint64
	lastLine atomic.Int64

	mu      sync.Mutex
	state   string
	lastErr string
	cancel  context.CancelFunc
	closer  io.Closer
	wg      sync.WaitGroup
}

func New(cfg Config, queue *telemetry.Queue, opts ...Option) *Service {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = 4096
	}
	cfg.Device = strings.TrimSpace(cfg.Device)

	s := &Service{
		cfg:   cfg,
		queue: queue,
		open:  openSerial,
		now:   time.Now,
		state: StateStopped,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the transport and begins reading in the background. An open
// failure is returned and also pushed to the queue as a LinkError; there is
// no reconnect.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gpsdxo service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	if s.queue == nil {
		return fmt.Errorf("gpsdxo queue is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("gpsdxo service already started")
	}

	src := s.source
	if src == nil {
		if s.cfg.Device == "" {
			return s.failLocked(fmt.Errorf("gpsdxo device is required"))
		}
		s.state = StateOpening
		rc, err := s.open(s.cfg.Device, s.cfg.Baud)
		if err != nil {
			return s.failLocked(fmt.Errorf("gpsdxo open failed device=%s baud=%d: %w", s.cfg.Device, s.cfg.Baud, err))
		}
		src = rc
		log.Printf("gpsdxo opened device=%s baud=%d", s.cfg.Device, s.cfg.Baud)
	}
	s.closer = src

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateReading

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = src.Close() }()
		_ = s.Run(childCtx, src)
	}()
	return nil
}

func (s *Service) failLocked(err error) error {
	s.state = StateFailed
	s.lastErr = err.Error()
	s.pushLinkError(err)
	return err
}

// Run reads r until it fails, framing and classifying every line. A read
// error, including io.EOF, is pushed as one LinkError and returned. When ctx
// is cancelled Run returns ctx.Err() without pushing anything.
func (s *Service) Run(ctx context.Context, r io.Reader) error {
	f := framer.New()
	buf := make([]byte, s.cfg.ReadBuffer)

	for {
		if err := ctx.Err(); err != nil {
			s.setState(StateStopped, "")
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			s.feed(f, buf[:n])
		}
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.setState(StateStopped, "")
			return ctxErr
		}

		linkErr := fmt.Errorf("gpsdxo read stopped device=%s: %w", s.deviceName(), err)
		if errors.Is(err, io.EOF) && f.Buffered() > 0 {
			log.Printf("gpsdxo dropping unterminated tail at eof bytes=%d tail=%q", f.Buffered(), f.Pending())
		}
		s.setState(StateFailed, linkErr.Error())
		s.pushLinkError(linkErr)
		return linkErr
	}
}

func (s *Service) feed(f *framer.Framer, chunk []byte) {
	for line, err := range f.Feed(chunk) {
		if err != nil {
			n := s.framing.Add(1)
			if s.metrics != nil {
				s.metrics.ObserveFramingError()
			}
			if n == 1 || n%framingLogEvery == 0 {
				log.Printf("gpsdxo framing error count=%d: %v", n, err)
			}
			continue
		}

		now := s.now()
		s.lines.Add(1)
		s.lastLine.Store(now.UnixNano())
		if s.metrics != nil {
			s.metrics.ObserveLine()
		}
		if s.recorder != nil {
			if err := s.recorder.WriteLine(now, line); err != nil {
				s.setLastError("record: " + err.Error())
			}
		}

		msg, ok := telemetry.Classify(line)
		if !ok {
			s.ignored.Add(1)
			if s.metrics != nil {
				s.metrics.ObserveIgnored()
			}
			continue
		}
		s.messages.Add(1)
		if s.metrics != nil {
			s.metrics.ObserveMessage(msg.Kind())
		}
		s.queue.Push(msg)
	}
}

func (s *Service) pushLinkError(err error) {
	if s.metrics != nil {
		s.metrics.ObserveMessage(telemetry.KindLinkError)
	}
	s.queue.Push(telemetry.LinkError{Err: err})
}

// Close stops the reader and releases the transport.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		// Unblocks a pending Read.
		_ = closer.Close()
	}
	s.wg.Wait()
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	state := s.state
	lastErr := s.lastErr
	s.mu.Unlock()

	out := Snapshot{
		Device:        s.deviceName(),
		Baud:          s.cfg.Baud,
		State:         state,
		Lines:         s.lines.Load(),
		Messages:      s.messages.Load(),
		Ignored:       s.ignored.Load(),
		FramingErrors: s.framing.Load(),
		LastError:     lastErr,
	}
	if ns := s.lastLine.Load(); ns != 0 {
		out.LastLineUTC = time.Unix(0, ns).UTC().Format(time.RFC3339Nano)
	}
	return out
}

func (s *Service) deviceName() string {
	if s.source != nil && s.cfg.Device == "" {
		return "replay"
	}
	return s.cfg.Device
}

func (s *Service) setLastError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

func (s *Service) setState(state string, lastErr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFailed && state != StateFailed {
		return
	}
	s.state = state
	if lastErr != "" {
		s.lastErr = lastErr
	}
}
