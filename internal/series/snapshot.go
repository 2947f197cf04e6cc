package series

import "time"

// Snapshot is a JSON-friendly view of the latest values. Nil fields have no
// data yet.
type Snapshot struct {
	CurrentHz          *float64 `json:"current_hz,omitempty"`
	DeviationCurrentHz *float64 `json:"deviation_current_hz,omitempty"`
	DeviationAccumHz   *float64 `json:"deviation_accum_hz,omitempty"`
	DeviationPPB       *float64 `json:"deviation_ppb,omitempty"`
	DAC1               *uint32  `json:"dac1,omitempty"`
	DAC2               *uint32  `json:"dac2,omitempty"`

	Samples     map[string]int `json:"samples"`
	LastUpdated string         `json:"last_updated_utc,omitempty"`
}

func (s *Store) Snapshot() Snapshot {
	out := Snapshot{Samples: make(map[string]int, int(numMetrics))}
	if s == nil {
		return out
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	fields := [numMetrics]**float64{
		Current:              &out.CurrentHz,
		DeviationCurrent:     &out.DeviationCurrentHz,
		DeviationAccumulated: &out.DeviationAccumHz,
		DeviationPPB:         &out.DeviationPPB,
	}
	for i, r := range s.series {
		out.Samples[Metric(i).String()] = r.Len()
		smp, ok := r.Last()
		if !ok {
			continue
		}
		v := smp.Value
		*fields[i] = &v
		if smp.Time.After(last) {
			last = smp.Time
		}
	}

	scalarFields := [numScalars]**uint32{DAC1: &out.DAC1, DAC2: &out.DAC2}
	for i, slot := range s.scalars {
		if !slot.set {
			continue
		}
		v := slot.value
		*scalarFields[i] = &v
		if slot.at.After(last) {
			last = slot.at
		}
	}

	if !last.IsZero() {
		out.LastUpdated = last.UTC().Format(time.RFC3339Nano)
	}
	return out
}
