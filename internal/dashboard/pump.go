package dashboard

import (
	"time"

	"gpsdxo-mon/internal/series"
	"gpsdxo-mon/internal/telemetry"
)

// Applier is told about every message the store accepted.
type Applier interface {
	ObserveApplied(m telemetry.Message)
}

// Pump moves messages from the telemetry queue into the series store. It is
// the only writer of the store.
type Pump struct {
	Queue   *telemetry.Queue
	Store   *series.Store
	Metrics Applier
	// Now stamps samples; defaults to time.Now.
	Now func() time.Time
}

// Drain applies every queued message without waiting. It returns the number
// of values applied and the first link error seen, which ends the session.
// Messages queued before the link error are still applied.
func (p *Pump) Drain() (applied int, err error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	for _, m := range p.Queue.Drain() {
		if le, ok := m.(telemetry.LinkError); ok {
			if err == nil {
				err = le
			}
			continue
		}
		if p.Store.Apply(now(), m) {
			applied++
			if p.Metrics != nil {
				p.Metrics.ObserveApplied(m)
			}
		}
	}
	return applied, err
}
