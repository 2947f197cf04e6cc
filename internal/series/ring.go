package series

import "time"

// Sample is one observation tagged with the wall-clock time at which the
// device line was classified. The device itself reports no timestamps.
type Sample struct {
	Time  time.Time
	Value float64
}

// Ring is a fixed-capacity FIFO of samples. Pushing into a full ring evicts
// the oldest sample in O(1).
type Ring struct {
	buf   []Sample
	start int
	n     int
	total uint64
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]Sample, capacity)}
}

// Push appends s and reports whether the oldest sample was evicted.
func (r *Ring) Push(s Sample) (evicted bool) {
	r.total++
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = s
		r.n++
		return false
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
	return true
}

func (r *Ring) Len() int { return r.n }

func (r *Ring) Cap() int { return len(r.buf) }

// Total is the number of samples ever pushed, including evicted ones.
func (r *Ring) Total() uint64 { return r.total }

// At returns the i-th sample, 0 being the oldest retained.
func (r *Ring) At(i int) Sample {
	if i < 0 || i >= r.n {
		panic("series: ring index out of range")
	}
	return r.buf[(r.start+i)%len(r.buf)]
}

// Last returns the most recent sample.
func (r *Ring) Last() (Sample, bool) {
	if r.n == 0 {
		return Sample{}, false
	}
	return r.At(r.n - 1), true
}

// Samples returns a copy of the retained samples in arrival order.
func (r *Ring) Samples() []Sample {
	out := make([]Sample, 0, r.n)
	for i := 0; i < r.n; i++ {
		out = append(out, r.At(i))
	}
	return out
}

// Window returns the retained samples with from <= Time <= to, in arrival
// order.
func (r *Ring) Window(from, to time.Time) []Sample {
	var out []Sample
	for i := 0; i < r.n; i++ {
		s := r.At(i)
		if s.Time.Before(from) || s.Time.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out
}
