package wire

import (
	"fmt"
	"time"
)

// ConnectionParameters are the timing parameters of an established connection
type ConnectionParameters struct {
	// Connection interval in units of 1.25ms
	// Range: 6 (7.5ms) to 3200 (4s)
	Interval uint16

	// Peripheral latency (number of connection events the peripheral may skip)
	// Range: 0 to 499
	PeripheralLatency uint16

	// Supervision timeout in units of 10ms
	// Range: 100ms (10) to 32s (3200)
	// Must be larger than (1 + PeripheralLatency) * Interval * 2
	SupervisionTimeout uint16
}

// DefaultConnectionParameters returns typical iOS/Android connection parameters
func DefaultConnectionParameters() ConnectionParameters {
	return ConnectionParameters{
		Interval:           24,  // 30ms
		PeripheralLatency:  0,   // No latency for responsive connection
		SupervisionTimeout: 600, // 6 seconds
	}
}

// FastConnectionParameters returns parameters for low-latency connections
func FastConnectionParameters() ConnectionParameters {
	return ConnectionParameters{
		Interval:           6,   // 7.5ms (minimum)
		PeripheralLatency:  0,   // No latency
		SupervisionTimeout: 500, // 5 seconds
	}
}

// ConnectionParametersFromDurations converts millisecond settings to link-layer units
func ConnectionParametersFromDurations(interval, supervision time.Duration, latency uint16) ConnectionParameters {
	return ConnectionParameters{
		Interval:           uint16(interval * 4 / (5 * time.Millisecond)),
		PeripheralLatency:  latency,
		SupervisionTimeout: uint16(supervision / (10 * time.Millisecond)),
	}
}

// Validate checks if connection parameters are within valid BLE ranges
func (p ConnectionParameters) Validate() error {
	if p.Interval < 6 || p.Interval > 3200 {
		return fmt.Errorf("wire: Interval out of range (6-3200): %d", p.Interval)
	}
	if p.PeripheralLatency > 499 {
		return fmt.Errorf("wire: PeripheralLatency out of range (0-499): %d", p.PeripheralLatency)
	}
	if p.SupervisionTimeout < 10 || p.SupervisionTimeout > 3200 {
		return fmt.Errorf("wire: SupervisionTimeout out of range (10-3200): %d", p.SupervisionTimeout)
	}

	// (1 + latency) * interval * 2, converted from 1.25ms to 10ms units
	minTimeout := (1 + uint32(p.PeripheralLatency)) * uint32(p.Interval) * 125 / 500
	if uint32(p.SupervisionTimeout) <= minTimeout {
		return fmt.Errorf("wire: SupervisionTimeout (%d * 10ms) must be > (1+latency)*interval*2 (%d * 10ms)",
			p.SupervisionTimeout, minTimeout)
	}

	return nil
}

// IntervalDuration returns the connection interval
func (p ConnectionParameters) IntervalDuration() time.Duration {
	return time.Duration(p.Interval) * 1250 * time.Microsecond
}

// SupervisionDuration returns the supervision timeout
func (p ConnectionParameters) SupervisionDuration() time.Duration {
	return time.Duration(p.SupervisionTimeout) * 10 * time.Millisecond
}

// MissedEventLimit returns how many consecutive connection events may pass
// without a packet from the central before the supervision timeout expires
func (p ConnectionParameters) MissedEventLimit() int {
	interval := p.IntervalDuration()
	if interval <= 0 {
		return 0
	}
	return int(p.SupervisionDuration() / interval)
}
