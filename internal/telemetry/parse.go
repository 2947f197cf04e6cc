package telemetry

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Line prefixes emitted by the GPSDXO firmware.
const (
	PrefixCurrent              = "# Curr:"
	PrefixDeviationCurrent     = "# Deviation current:"
	PrefixDeviationAccumulated = "# Deviation accum:"
	PrefixDAC1                 = "# New DAC1 value"
	PrefixDAC2                 = "# New DAC2 value"
	PrefixDeviation            = "*"
)

type rule struct {
	prefix string
	parse  func(line string) (Message, bool)
}

// rules are checked in order. The prefixes are disjoint, so the order only
// matters for determinism.
var rules = []rule{
	{PrefixCurrent, func(line string) (Message, bool) {
		v, ok := parseUint(lastToken(line), 64)
		return CurrentFrequency{Hz: v}, ok
	}},
	{PrefixDeviationCurrent, func(line string) (Message, bool) {
		v, ok := parseFloatSuffix(lastToken(line), "Hz")
		return DeviationCurrent{Hz: v}, ok
	}},
	{PrefixDeviationAccumulated, func(line string) (Message, bool) {
		v, ok := parseFloatSuffix(lastToken(line), "Hz")
		return DeviationAccumulated{Hz: v}, ok
	}},
	{PrefixDAC1, func(line string) (Message, bool) {
		v, ok := parseUint(lastToken(line), 32)
		return DAC1{Value: uint32(v)}, ok
	}},
	{PrefixDAC2, func(line string) (Message, bool) {
		v, ok := parseUint(lastToken(line), 32)
		return DAC2{Value: uint32(v)}, ok
	}},
	{PrefixDeviation, func(line string) (Message, bool) {
		v, ok := parseFloatSuffix(afterFirstSpace(line), " ppb")
		return Deviation{PPB: v}, ok
	}},
}

// Classify maps one framed line to a telemetry message. ok is false for
// lines that are not recognized or whose payload does not parse; those are
// treated as serial noise and are not errors.
func Classify(line string) (msg Message, ok bool) {
	for _, r := range rules {
		if !strings.HasPrefix(line, r.prefix) {
			continue
		}
		m, ok := r.parse(line)
		if !ok {
			return nil, false
		}
		return m, true
	}
	return nil, false
}

// lastToken returns the text after the last whitespace, or "" when the line
// has none.
func lastToken(line string) string {
	i := strings.LastIndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	_, size := utf8.DecodeRuneInString(line[i:])
	return line[i+size:]
}

// afterFirstSpace returns the text after the first whitespace, or "" when
// the line has none.
func afterFirstSpace(line string) string {
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	_, size := utf8.DecodeRuneInString(line[i:])
	return line[i+size:]
}

func parseUint(s string, bits int) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseFloatSuffix strips the unit suffix and parses the rest as a plain
// decimal float. Missing suffixes, hex floats, digit separators and
// non-finite values are rejected.
func parseFloatSuffix(s, suffix string) (float64, bool) {
	num, found := strings.CutSuffix(s, suffix)
	if !found || num == "" || strings.ContainsAny(num, "xX_") {
		return 0, false
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
