// Package gpsdxo reads the status stream of a serial-attached GPS-disciplined
// oscillator and turns it into telemetry messages.
//
// The service owns the transport and the line framer. Every framed line is
// classified; recognized values and, at the end, exactly one link failure are
// pushed to a telemetry.Queue for the presentation side. Framing and parse
// problems stay inside this package.
package gpsdxo
