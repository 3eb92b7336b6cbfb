package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSample(t *testing.T) {
	base := time.Unix(1000, 0)

	// Server runs 100ms ahead, 50ms one-way latency each direction, 10ms
	// server processing time.
	t0 := base
	t1 := base.Add(50*time.Millisecond + 100*time.Millisecond)
	t2 := t1.Add(10 * time.Millisecond)
	t3 := base.Add(110 * time.Millisecond)

	s := ComputeSample(t0, t1, t2, t3)
	assert.InDelta(t, 0.100, s.Offset, 1e-9)
	assert.InDelta(t, 0.100, s.RTT, 1e-9)
}

func TestComputeSampleServerBehind(t *testing.T) {
	base := time.Unix(1000, 0)

	t0 := base
	t1 := base.Add(20*time.Millisecond - 50*time.Millisecond)
	t2 := t1.Add(5 * time.Millisecond)
	t3 := base.Add(45 * time.Millisecond)

	s := ComputeSample(t0, t1, t2, t3)
	assert.InDelta(t, -0.050, s.Offset, 1e-9)
	assert.InDelta(t, 0.040, s.RTT, 1e-9)
}

func TestEstimatorStartsUnsynced(t *testing.T) {
	e := NewEstimator()
	offset, synced := e.Offset()
	assert.False(t, synced)
	assert.Zero(t, offset)
}

func TestEstimatorFirstSampleSetsOffset(t *testing.T) {
	e := NewEstimator()
	require.True(t, e.AddSample(Sample{Offset: 0.25, RTT: 0.08}))

	offset, synced := e.Offset()
	assert.True(t, synced)
	assert.InDelta(t, 0.25, offset, 1e-9)
}

func TestEstimatorEWMA(t *testing.T) {
	e := NewEstimator()
	require.True(t, e.AddSample(Sample{Offset: 0.10, RTT: 0.05}))
	require.True(t, e.AddSample(Sample{Offset: 0.20, RTT: 0.05}))

	offset, _ := e.Offset()
	assert.InDelta(t, 0.4*0.20+0.6*0.10, offset, 1e-9)
}

func TestEstimatorRejectsOutlierRTT(t *testing.T) {
	e := NewEstimator()
	for i := 0; i < 3; i++ {
		require.True(t, e.AddSample(Sample{Offset: 0.10, RTT: 0.10}))
	}
	before, _ := e.Offset()

	// RTT above 3x the median of the window is unreliable.
	assert.False(t, e.AddSample(Sample{Offset: 5.0, RTT: 0.50}))

	after, synced := e.Offset()
	assert.True(t, synced)
	assert.Equal(t, before, after)
}

func TestEstimatorUnsyncsAfterPersistentRejection(t *testing.T) {
	e := NewEstimator()
	require.True(t, e.AddSample(Sample{Offset: 0.20, RTT: 0.10}))

	// A window's worth of consecutive rejections means no reliable recent
	// sample exists.
	for i := 0; i < windowSize; i++ {
		assert.False(t, e.AddSample(Sample{Offset: 9.9, RTT: 10.0}))
	}

	offset, synced := e.Offset()
	assert.False(t, synced)
	assert.False(t, e.Synced())
	// The last good offset keeps serving degraded-mode playback.
	assert.InDelta(t, 0.20, offset, 1e-9)

	// A single reliable sample resyncs.
	require.True(t, e.AddSample(Sample{Offset: 0.30, RTT: 0.10}))
	offset, synced = e.Offset()
	assert.True(t, synced)
	assert.InDelta(t, 0.4*0.30+0.6*0.20, offset, 1e-9)
}

func TestEstimatorRejectsNegativeRTT(t *testing.T) {
	e := NewEstimator()
	assert.False(t, e.AddSample(Sample{Offset: 0.1, RTT: -0.01}))
}

func TestEstimatorInvalidateKeepsLastGoodOffset(t *testing.T) {
	e := NewEstimator()
	require.True(t, e.AddSample(Sample{Offset: 0.30, RTT: 0.05}))

	e.Invalidate()

	offset, synced := e.Offset()
	assert.False(t, synced)
	assert.InDelta(t, 0.30, offset, 1e-9)

	// Recovery: a fresh sample resyncs without interference from the
	// dropped window.
	require.True(t, e.AddSample(Sample{Offset: 0.40, RTT: 1.0}))
	offset, synced = e.Offset()
	assert.True(t, synced)
	assert.InDelta(t, 0.40, offset, 1e-9)
}

func TestRoomTimeRoundTrip(t *testing.T) {
	e := NewEstimator()
	require.True(t, e.AddSample(Sample{Offset: 1.5, RTT: 0.05}))

	local := time.Unix(2000, 250_000_000)
	room := e.RoomTime(local)
	assert.InDelta(t, 2001.75, room, 1e-6)

	back := e.LocalTime(room)
	assert.WithinDuration(t, local, back, time.Microsecond)
}

func TestRoomNow(t *testing.T) {
	assert.InDelta(t, 1234.5, RoomNow(time.Unix(1234, 500_000_000)), 1e-9)
}
