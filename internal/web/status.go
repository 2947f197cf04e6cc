package web

import (
	"sync/atomic"
	"time"

	"gpsdxo-mon/internal/gpsdxo"
	"gpsdxo-mon/internal/series"
)

// DeviceStatus reports the acquisition side of the monitor.
type DeviceStatus interface {
	Snapshot() gpsdxo.Snapshot
}

type Status struct {
	startUnixNano int64
	mode          atomic.Value // string
	device        DeviceStatus
	store         *series.Store
}

func NewStatus(device DeviceStatus, store *series.Store) *Status {
	s := &Status{device: device, store: store}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.mode.Store("")
	return s
}

// SetMode records how telemetry is sourced ("live" or "replay").
func (s *Status) SetMode(mode string) {
	if mode != "" {
		s.mode.Store(mode)
	}
}

type StatusSnapshot struct {
	Service   string           `json:"service"`
	NowUTC    string           `json:"now_utc"`
	UptimeSec int64            `json:"uptime_sec"`
	Mode      string           `json:"mode"`
	Device    *gpsdxo.Snapshot `json:"device,omitempty"`
	Table     []series.Row     `json:"table"`
	Latest    series.Snapshot  `json:"latest"`
	// Totals counts every sample applied per metric, evicted ones included.
	Totals map[string]uint64 `json:"totals"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:   serviceName,
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(start).Seconds()),
		Mode:      s.mode.Load().(string),
		Latest:    s.store.Snapshot(),
		Table:     []series.Row{},
		Totals:    make(map[string]uint64),
	}
	if s.store != nil {
		snap.Table = s.store.Table()
		for _, m := range series.Metrics() {
			snap.Totals[m.String()] = s.store.Total(m)
		}
	}
	if s.device != nil {
		dev := s.device.Snapshot()
		snap.Device = &dev
	}
	return snap
}
