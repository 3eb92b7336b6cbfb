package clock

import (
	"sort"
	"sync"
	"time"
)

const (
	windowSize      = 5
	rttRejectFactor = 3.0
	ewmaAlpha       = 0.4
)

// Sample is one completed round-trip measurement against the room clock.
type Sample struct {
	Offset float64 `json:"offset"`
	RTT    float64 `json:"rtt"`
}

// ComputeSample derives offset and round-trip time from the four timestamps
// of a ping/pong exchange: t0 client send, t1 server receive, t2 server
// reply, t3 client receive.
func ComputeSample(t0, t1, t2, t3 time.Time) Sample {
	offset := (t1.Sub(t0).Seconds() + t2.Sub(t3).Seconds()) / 2
	rtt := t3.Sub(t0).Seconds() - t2.Sub(t1).Seconds()
	return Sample{Offset: offset, RTT: rtt}
}

// Estimator keeps a moving estimate of the local clock's offset against the
// room clock. Samples with an outlier RTT are rejected; after a full
// window's worth of consecutive rejections the estimator keeps serving the
// last good offset but reports itself unsynced until a reliable sample
// lands again.
type Estimator struct {
	mu      sync.Mutex
	window  []Sample
	offset  float64
	rtt     float64
	hasGood bool
	synced  bool
	rejects int
}

func NewEstimator() *Estimator {
	return &Estimator{}
}

// AddSample folds a measurement into the moving average. It returns false if
// the sample's RTT was negative or exceeded the rejection threshold and was
// discarded. A measurement abandoned before completion should simply never
// be added.
func (e *Estimator) AddSample(s Sample) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s.RTT < 0 || (len(e.window) > 0 && s.RTT > rttRejectFactor*e.medianRTT()) {
		e.rejects++
		if e.rejects >= windowSize {
			e.synced = false
		}
		return false
	}
	e.rejects = 0

	e.window = append(e.window, s)
	if len(e.window) > windowSize {
		e.window = e.window[1:]
	}

	if !e.hasGood {
		e.offset = s.Offset
		e.rtt = s.RTT
		e.hasGood = true
	} else {
		e.offset = ewmaAlpha*s.Offset + (1-ewmaAlpha)*e.offset
		e.rtt = ewmaAlpha*s.RTT + (1-ewmaAlpha)*e.rtt
	}
	e.synced = true
	return true
}

// Offset returns the current offset estimate in seconds and whether the
// estimator is synced. An unsynced estimator still returns the last known
// good offset so playback can keep going in degraded mode.
func (e *Estimator) Offset() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offset, e.synced
}

// Synced reports whether a reliable recent sample backs the estimate.
func (e *Estimator) Synced() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.synced
}

func (e *Estimator) RTT() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rtt
}

// Invalidate drops the sample window, e.g. after a reconnect to a different
// server. The last good offset survives for degraded-mode playback.
func (e *Estimator) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window = nil
	e.hasGood = false
	e.synced = false
	e.rejects = 0
}

// RoomTime converts a local wall-clock instant to room-time seconds.
func (e *Estimator) RoomTime(local time.Time) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(local.UnixNano())/float64(time.Second) + e.offset
}

// LocalTime converts room-time seconds back to a local wall-clock instant.
func (e *Estimator) LocalTime(roomSeconds float64) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Unix(0, int64((roomSeconds-e.offset)*float64(time.Second)))
}

func (e *Estimator) medianRTT() float64 {
	rtts := make([]float64, len(e.window))
	for i, s := range e.window {
		rtts[i] = s.RTT
	}
	sort.Float64s(rtts)
	mid := len(rtts) / 2
	if len(rtts)%2 == 0 {
		return (rtts[mid-1] + rtts[mid]) / 2
	}
	return rtts[mid]
}
