package telemetry

import (
	"fmt"
	"math"
	"testing"
)

func TestClassify_DeviceLines(t *testing.T) {
	cases := []struct {
		line string
		want Message
	}{
		{"# Curr: 80000000", CurrentFrequency{Hz: 80000000}},
		{"# Deviation current: 0.5Hz", DeviationCurrent{Hz: 0.5}},
		{"# Deviation accum: 1.25Hz", DeviationAccumulated{Hz: 1.25}},
		{"# New DAC1 value 2048", DAC1{Value: 2048}},
		{"# New DAC2 value 2049", DAC2{Value: 2049}},
		{"* 0.75 ppb", Deviation{PPB: 0.75}},
		{"# Deviation current: -0.125Hz", DeviationCurrent{Hz: -0.125}},
		{"* -1e-3 ppb", Deviation{PPB: -0.001}},
		{"# New DAC1 value\t7", DAC1{Value: 7}},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			got, ok := Classify(tc.line)
			if !ok {
				t.Fatalf("Classify(%q) not recognized", tc.line)
			}
			if got != tc.want {
				t.Fatalf("Classify(%q)=%#v want %#v", tc.line, got, tc.want)
			}
		})
	}
}

func TestClassify_IgnoresNoise(t *testing.T) {
	lines := []string{
		"",
		"hello world",
		"#",
		"# Curr:",
		"# Curr: notanumber",
		"# Curr: -5",
		"# Curr: 80000000 ",
		"# Curr: 18446744073709551616",
		"# Deviation current: 0.5",
		"# Deviation current: Hz",
		"# Deviation current: 0.5hz",
		"# Deviation accum: 1.25 Hz",
		"# Deviation accum: NaNHz",
		"# Deviation accum: InfHz",
		"# Deviation current: 0x1p-2Hz",
		"# Deviation accum: 0X1P+0Hz",
		"# Deviation current: 1_000Hz",
		"* 0x1p-1 ppb",
		"# New DAC1 value",
		"# New DAC1 value 4294967296",
		"# New DAC2 value x",
		"*",
		"*0.75 ppb",
		"* 0.75",
		"* 0.75ppb",
		"* abc ppb",
		"# Deviation current: 0.5Hz\r",
		"  # Curr: 80000000",
	}
	for _, line := range lines {
		if m, ok := Classify(line); ok {
			t.Fatalf("Classify(%q)=%v, want not recognized", line, m)
		}
	}
}

func TestClassify_RoundTrip(t *testing.T) {
	for _, hz := range []uint64{0, 1, 79999999, 80000000, math.MaxUint64} {
		line := fmt.Sprintf("# Curr: %d", hz)
		m, ok := Classify(line)
		if !ok || m.(CurrentFrequency).Hz != hz {
			t.Fatalf("round trip %q -> %v %v", line, m, ok)
		}
	}
	for _, v := range []uint32{0, 2048, math.MaxUint32} {
		for prefix, kind := range map[string]Kind{PrefixDAC1: KindDAC1, PrefixDAC2: KindDAC2} {
			line := fmt.Sprintf("%s %d", prefix, v)
			m, ok := Classify(line)
			if !ok || m.Kind() != kind {
				t.Fatalf("round trip %q -> %v %v", line, m, ok)
			}
			got, _ := Value(m)
			if got != float64(v) {
				t.Fatalf("round trip %q value=%v", line, got)
			}
		}
	}
	floats := []float64{0, 0.5, -0.5, 1.25, 1e-9, -123.456789, 3.0e3}
	for _, v := range floats {
		checks := []struct {
			line string
			kind Kind
		}{
			{fmt.Sprintf("%s %gHz", PrefixDeviationCurrent, v), KindDeviationCurrent},
			{fmt.Sprintf("%s %gHz", PrefixDeviationAccumulated, v), KindDeviationAccumulated},
			{fmt.Sprintf("* %g ppb", v), KindDeviation},
		}
		for _, c := range checks {
			m, ok := Classify(c.line)
			if !ok || m.Kind() != c.kind {
				t.Fatalf("round trip %q -> %v %v", c.line, m, ok)
			}
			got, _ := Value(m)
			if math.Abs(got-v) > 1e-12 {
				t.Fatalf("round trip %q value=%v want %v", c.line, got, v)
			}
		}
	}
}

func TestKindString(t *testing.T) {
	if KindDAC2.String() != "dac2" {
		t.Fatalf("got %q", KindDAC2.String())
	}
	if Kind(200).String() != "kind(200)" {
		t.Fatalf("got %q", Kind(200).String())
	}
	for _, k := range Kinds() {
		if k.String() == "" {
			t.Fatalf("kind %d has no name", k)
		}
	}
}
