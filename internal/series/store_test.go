package series

import (
	"errors"
	"testing"
	"time"

	"gpsdxo-mon/internal/telemetry"
)

func TestStore_ApplyRoutesEachVariant(t *testing.T) {
	s := NewStore(DefaultCapacity)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	msgs := []telemetry.Message{
		telemetry.CurrentFrequency{Hz: 80000000},
		telemetry.DeviationCurrent{Hz: 0.5},
		telemetry.DeviationAccumulated{Hz: 1.25},
		telemetry.Deviation{PPB: 0.75},
		telemetry.DAC1{Value: 2048},
		telemetry.DAC2{Value: 2049},
	}
	for _, m := range msgs {
		if !s.Apply(now, m) {
			t.Fatalf("Apply(%v) returned false", m)
		}
	}

	want := map[Metric]float64{
		Current:              80000000,
		DeviationCurrent:     0.5,
		DeviationAccumulated: 1.25,
		DeviationPPB:         0.75,
	}
	for m, v := range want {
		got, ok := s.Latest(m)
		if !ok || got.Value != v || !got.Time.Equal(now) {
			t.Fatalf("Latest(%s)=%+v ok=%v want %v", m, got, ok, v)
		}
		if s.Len(m) != 1 {
			t.Fatalf("Len(%s)=%d", m, s.Len(m))
		}
	}
	if v, ok := s.Scalar(DAC1); !ok || v != 2048 {
		t.Fatalf("dac1=%d ok=%v", v, ok)
	}
	if v, ok := s.Scalar(DAC2); !ok || v != 2049 {
		t.Fatalf("dac2=%d ok=%v", v, ok)
	}
}

func TestStore_ApplyTouchesOnlyOneSlot(t *testing.T) {
	s := NewStore(10)
	s.Apply(time.Now(), telemetry.DeviationCurrent{Hz: 1})
	for _, m := range Metrics() {
		want := 0
		if m == DeviationCurrent {
			want = 1
		}
		if s.Len(m) != want {
			t.Fatalf("Len(%s)=%d want %d", m, s.Len(m), want)
		}
	}
	for _, sc := range []Scalar{DAC1, DAC2} {
		if _, ok := s.Scalar(sc); ok {
			t.Fatalf("scalar %s should be unset", sc)
		}
	}
}

func TestStore_ScalarOverwrites(t *testing.T) {
	s := NewStore(10)
	s.Apply(time.Now(), telemetry.DAC1{Value: 1})
	s.Apply(time.Now(), telemetry.DAC1{Value: 2})
	if v, ok := s.Scalar(DAC1); !ok || v != 2 {
		t.Fatalf("dac1=%d ok=%v", v, ok)
	}
	if _, ok := s.Scalar(DAC2); ok {
		t.Fatalf("dac2 should be unset")
	}
}

func TestStore_LinkErrorIsNotApplied(t *testing.T) {
	s := NewStore(10)
	if s.Apply(time.Now(), telemetry.LinkError{Err: errors.New("gone")}) {
		t.Fatalf("link error should not be applied")
	}
	if s.Apply(time.Now(), nil) {
		t.Fatalf("nil should not be applied")
	}
}

func TestStore_Keeps300MostRecent(t *testing.T) {
	s := NewStore(DefaultCapacity)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 301; i++ {
		s.Apply(base.Add(time.Duration(i)*time.Second), telemetry.Deviation{PPB: float64(i)})
	}
	got := s.Samples(DeviationPPB)
	if len(got) != 300 {
		t.Fatalf("len=%d want 300", len(got))
	}
	if got[0].Value != 1 || got[299].Value != 300 {
		t.Fatalf("first=%v last=%v", got[0].Value, got[299].Value)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Value != got[i-1].Value+1 {
			t.Fatalf("order broken at %d", i)
		}
	}
	if s.Total(DeviationPPB) != 301 {
		t.Fatalf("total=%d", s.Total(DeviationPPB))
	}
}

func TestStore_WindowIsInclusiveAndCountBounded(t *testing.T) {
	s := NewStore(DefaultCapacity)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		s.Apply(base.Add(time.Duration(i)*time.Minute), telemetry.CurrentFrequency{Hz: uint64(80000000 + i)})
	}
	now := base.Add(9 * time.Minute)

	got := s.Window(Current, now, 2*time.Minute)
	if len(got) != 3 {
		t.Fatalf("window len=%d want 3", len(got))
	}
	if got[0].Value != 80000007 || got[2].Value != 80000009 {
		t.Fatalf("window=%+v", got)
	}
	if all := s.Window(Current, now, time.Hour); len(all) != 10 {
		t.Fatalf("hour window len=%d", len(all))
	}
	if none := s.Window(DeviationPPB, now, time.Hour); len(none) != 0 {
		t.Fatalf("expected empty window, got %d", len(none))
	}
}

func TestStore_LatestBeforeData(t *testing.T) {
	s := NewStore(0)
	if _, ok := s.Latest(Current); ok {
		t.Fatalf("expected no data yet")
	}
	if _, ok := s.Latest(Metric(99)); ok {
		t.Fatalf("unknown metric should have no data")
	}
}

func TestStore_Snapshot(t *testing.T) {
	s := NewStore(10)
	snap := s.Snapshot()
	if snap.CurrentHz != nil || snap.DAC1 != nil || snap.LastUpdated != "" {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Apply(now, telemetry.CurrentFrequency{Hz: 80000001})
	s.Apply(now.Add(time.Second), telemetry.DAC2{Value: 9})

	snap = s.Snapshot()
	if snap.CurrentHz == nil || *snap.CurrentHz != 80000001 {
		t.Fatalf("current=%v", snap.CurrentHz)
	}
	if snap.DAC2 == nil || *snap.DAC2 != 9 {
		t.Fatalf("dac2=%v", snap.DAC2)
	}
	if snap.DAC1 != nil || snap.DeviationPPB != nil {
		t.Fatalf("unexpected values: %+v", snap)
	}
	if snap.Samples["current"] != 1 {
		t.Fatalf("samples=%v", snap.Samples)
	}
	if snap.LastUpdated != "2024-01-01T00:00:01Z" {
		t.Fatalf("last_updated=%q", snap.LastUpdated)
	}
}

func TestParseMetric(t *testing.T) {
	for _, m := range Metrics() {
		got, err := ParseMetric(m.String())
		if err != nil || got != m {
			t.Fatalf("ParseMetric(%q)=%v %v", m.String(), got, err)
		}
	}
	if _, err := ParseMetric("bogus"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStore_Table(t *testing.T) {
	s := NewStore(10)
	rows := s.Table()
	if len(rows) != 6 {
		t.Fatalf("rows=%d", len(rows))
	}
	for _, r := range rows {
		if r.Value != "" {
			t.Fatalf("row %q should be empty, got %q", r.Name, r.Value)
		}
	}

	now := time.Now()
	s.Apply(now, telemetry.CurrentFrequency{Hz: 80000000})
	s.Apply(now, telemetry.DeviationCurrent{Hz: 0.5})
	s.Apply(now, telemetry.DAC1{Value: 2048})
	s.Apply(now, telemetry.Deviation{PPB: 0.75})

	want := []Row{
		{"Current", "80000000"},
		{"Deviation current", "0.5Hz"},
		{"Deviation accumulated", ""},
		{"DAC1", "2048"},
		{"DAC2", ""},
		{"Deviation", "0.75ppb"},
	}
	rows = s.Table()
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row %d = %+v want %+v", i, rows[i], want[i])
		}
	}
}
