package series

import (
	"fmt"
	"sync"
	"time"

	"gpsdxo-mon/internal/telemetry"
)

// DefaultCapacity is the number of samples kept per metric.
const DefaultCapacity = 300

// Metric names a time series kept by the store.
type Metric uint8

const (
	Current Metric = iota
	DeviationCurrent
	DeviationAccumulated
	DeviationPPB
	numMetrics
)

var metricNames = [numMetrics]string{
	Current:              "current",
	DeviationCurrent:     "deviation_current",
	DeviationAccumulated: "deviation_accum",
	DeviationPPB:         "deviation_ppb",
}

func (m Metric) String() string {
	if m < numMetrics {
		return metricNames[m]
	}
	return fmt.Sprintf("metric(%d)", uint8(m))
}

// Metrics lists all series in display order.
func Metrics() []Metric {
	return []Metric{Current, DeviationCurrent, DeviationAccumulated, DeviationPPB}
}

// ParseMetric is the inverse of Metric.String.
func ParseMetric(name string) (Metric, error) {
	for i, n := range metricNames {
		if n == name {
			return Metric(i), nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", name)
}

// Bounds is the default chart y-range for a metric.
func (m Metric) Bounds() (lo, hi float64) {
	switch m {
	case Current:
		return 79999995, 80000005
	case DeviationCurrent, DeviationAccumulated:
		return -1, 2
	case DeviationPPB:
		return 0, 2
	default:
		return 0, 1
	}
}

// Scalar names a value that has no time series, only a current value.
type Scalar uint8

const (
	DAC1 Scalar = iota
	DAC2
	numScalars
)

func (s Scalar) String() string {
	switch s {
	case DAC1:
		return "dac1"
	case DAC2:
		return "dac2"
	default:
		return fmt.Sprintf("scalar(%d)", uint8(s))
	}
}

type scalarSlot struct {
	value uint32
	set   bool
	at    time.Time
}

// Store holds the bounded history for each metric and the latest DAC values.
//
// Each series keeps at most its capacity of samples regardless of age, so a
// Window query only sees what has not been evicted yet.
type Store struct {
	mu      sync.RWMutex
	series  [numMetrics]*Ring
	scalars [numScalars]scalarSlot
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{}
	for i := range s.series {
		s.series[i] = NewRing(capacity)
	}
	return s
}

// Apply records msg at time now. It touches exactly one series or scalar
// slot and reports whether msg was a telemetry value; LinkError and unknown
// messages leave the store unchanged.
func (s *Store) Apply(now time.Time, msg telemetry.Message) bool {
	if s == nil || msg == nil {
		return false
	}
	if now.IsZero() {
		now = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := msg.(type) {
	case telemetry.CurrentFrequency:
		s.series[Current].Push(Sample{Time: now, Value: float64(m.Hz)})
	case telemetry.DeviationCurrent:
		s.series[DeviationCurrent].Push(Sample{Time: now, Value: m.Hz})
	case telemetry.DeviationAccumulated:
		s.series[DeviationAccumulated].Push(Sample{Time: now, Value: m.Hz})
	case telemetry.Deviation:
		s.series[DeviationPPB].Push(Sample{Time: now, Value: m.PPB})
	case telemetry.DAC1:
		s.scalars[DAC1] = scalarSlot{value: m.Value, set: true, at: now}
	case telemetry.DAC2:
		s.scalars[DAC2] = scalarSlot{value: m.Value, set: true, at: now}
	default:
		return false
	}
	return true
}

// Latest returns the most recent sample of m; ok is false before the first
// sample arrives.
func (s *Store) Latest(m Metric) (Sample, bool) {
	r := s.ring(m)
	if r == nil {
		return Sample{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return r.Last()
}

// Window returns the samples of m with timestamps in [now-span, now].
func (s *Store) Window(m Metric, now time.Time, span time.Duration) []Sample {
	r := s.ring(m)
	if r == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return r.Window(now.Add(-span), now)
}

// Samples returns every retained sample of m in arrival order.
func (s *Store) Samples(m Metric) []Sample {
	r := s.ring(m)
	if r == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return r.Samples()
}

func (s *Store) Len(m Metric) int {
	r := s.ring(m)
	if r == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return r.Len()
}

// Total is the number of samples ever applied to m.
func (s *Store) Total(m Metric) uint64 {
	r := s.ring(m)
	if r == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return r.Total()
}

// Scalar returns the latest value of sc; ok is false while unset.
func (s *Store) Scalar(sc Scalar) (value uint32, ok bool) {
	if s == nil || sc >= numScalars {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot := s.scalars[sc]
	return slot.value, slot.set
}

func (s *Store) ring(m Metric) *Ring {
	if s == nil || m >= numMetrics {
		return nil
	}
	return s.series[m]
}
