package wire

import "time"

// Radio is the scheduled radio a connection drives. Each call schedules one
// connection event: transmit at when (relative to the previous event's
// anchor), then listen for up to timeout. The radio answers with exactly one
// RadioEvents callback per schedule and must not call back from inside
// ScheduleTransmitAndReceive.
type Radio interface {
	ScheduleTransmitAndReceive(channel uint, transmit []byte, when time.Duration, receive []byte, timeout time.Duration)
}

// RadioEvents is implemented by the link layer
type RadioEvents interface {
	// Timeout reports that nothing (or nothing valid) was received
	Timeout()
	// Received delivers the peer's answer; frame is only valid during the call
	Received(frame []byte)
}

// nextChannel is channel selection algorithm #1 without channel map
// remapping: every data channel is used
func nextChannel(last, hop uint) uint {
	return (last + hop) % NumDataChannels
}
