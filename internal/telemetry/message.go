package telemetry

import (
	"fmt"
	"strconv"
)

// Kind identifies a Message variant.
type Kind uint8

const (
	kindUnknown Kind = iota
	KindCurrentFrequency
	KindDeviationCurrent
	KindDeviationAccumulated
	KindDAC1
	KindDAC2
	KindDeviation
	KindLinkError
)

var kindNames = [...]string{
	kindUnknown:              "unknown",
	KindCurrentFrequency:     "current_frequency",
	KindDeviationCurrent:     "deviation_current",
	KindDeviationAccumulated: "deviation_accumulated",
	KindDAC1:                 "dac1",
	KindDAC2:                 "dac2",
	KindDeviation:            "deviation",
	KindLinkError:            "link_error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Kinds lists every variant in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindCurrentFrequency,
		KindDeviationCurrent,
		KindDeviationAccumulated,
		KindDAC1,
		KindDAC2,
		KindDeviation,
		KindLinkError,
	}
}

// Message is one typed value read from the device, or a link failure.
// The set of implementations is closed to this package.
type Message interface {
	Kind() Kind
	String() string
	message()
}

// CurrentFrequency is the measured oscillator frequency in Hz ("# Curr:").
type CurrentFrequency struct{ Hz uint64 }

// DeviationCurrent is the instantaneous deviation in Hz ("# Deviation current:").
type DeviationCurrent struct{ Hz float64 }

// DeviationAccumulated is the accumulated deviation in Hz ("# Deviation accum:").
type DeviationAccumulated struct{ Hz float64 }

// DAC1 is the first control DAC setting ("# New DAC1 value").
type DAC1 struct{ Value uint32 }

// DAC2 is the second control DAC setting ("# New DAC2 value").
type DAC2 struct{ Value uint32 }

// Deviation is the fractional deviation in ppb ("* <v> ppb").
type Deviation struct{ PPB float64 }

// LinkError reports a transport failure. It ends the session.
type LinkError struct{ Err error }

func (CurrentFrequency) Kind() Kind     { return KindCurrentFrequency }
func (DeviationCurrent) Kind() Kind     { return KindDeviationCurrent }
func (DeviationAccumulated) Kind() Kind { return KindDeviationAccumulated }
func (DAC1) Kind() Kind                 { return KindDAC1 }
func (DAC2) Kind() Kind                 { return KindDAC2 }
func (Deviation) Kind() Kind            { return KindDeviation }
func (LinkError) Kind() Kind            { return KindLinkError }

func (m CurrentFrequency) String() string {
	return fmt.Sprintf("current=%d", m.Hz)
}

func (m DeviationCurrent) String() string {
	return "deviation_current=" + strconv.FormatFloat(m.Hz, 'g', -1, 64) + "Hz"
}

func (m DeviationAccumulated) String() string {
	return "deviation_accum=" + strconv.FormatFloat(m.Hz, 'g', -1, 64) + "Hz"
}

func (m DAC1) String() string {
	return fmt.Sprintf("dac1=%d", m.Value)
}

func (m DAC2) String() string {
	return fmt.Sprintf("dac2=%d", m.Value)
}

func (m Deviation) String() string {
	return "deviation=" + strconv.FormatFloat(m.PPB, 'g', -1, 64) + "ppb"
}

func (m LinkError) String() string {
	if m.Err == nil {
		return "link error"
	}
	return "link error: " + m.Err.Error()
}

// Error makes LinkError usable as an error value.
func (m LinkError) Error() string { return m.String() }

// Unwrap exposes the transport error to errors.Is/As.
func (m LinkError) Unwrap() error { return m.Err }

func (CurrentFrequency) message()     {}
func (DeviationCurrent) message()     {}
func (DeviationAccumulated) message() {}
func (DAC1) message()                 {}
func (DAC2) message()                 {}
func (Deviation) message()            {}
func (LinkError) message()            {}

// Value returns the numeric payload of a telemetry message as float64.
// ok is false for LinkError.
func Value(m Message) (v float64, ok bool) {
	switch m := m.(type) {
	case CurrentFrequency:
		return float64(m.Hz), true
	case DeviationCurrent:
		return m.Hz, true
	case DeviationAccumulated:
		return m.Hz, true
	case DAC1:
		return float64(m.Value), true
	case DAC2:
		return float64(m.Value), true
	case Deviation:
		return m.PPB, true
	default:
		return 0, false
	}
}
