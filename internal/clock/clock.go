// Package clock implements the NTP-style room clock: the server is the
// reference, members estimate their offset against it from round-trip
// ping/pong exchanges and use the estimate to project playback positions.
package clock

import "time"

// RoomNow is the server-side room clock. The server is the reference, so
// room time is its own wall clock expressed in seconds.
func RoomNow(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
