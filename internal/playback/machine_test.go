package playback

import (
	"testing"

	"github.com/Cramiac/SyncTunes/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func track(id string, duration float64) models.TrackRef {
	return models.TrackRef{ID: id, Title: "Track " + id, Duration: duration, Source: models.SourceYouTube}
}

func mustApply(t *testing.T, m *Machine, tr Transition, origin string, roomNow float64) models.PlaybackState {
	t.Helper()
	st, err := m.Apply(tr, origin, roomNow)
	require.NoError(t, err)
	return st
}

func TestMachineStartsIdle(t *testing.T) {
	m := NewMachine()
	st := m.State()
	assert.Equal(t, models.PlaybackIdle, st.State)
	assert.Zero(t, st.Version)
	assert.Nil(t, st.Track)
}

func TestLoadPlayPauseVersioning(t *testing.T) {
	m := NewMachine()
	tr := track("t1", 180)

	st := mustApply(t, m, Transition{Op: OpLoad, Track: &tr}, "a", 100)
	assert.Equal(t, models.PlaybackLoaded, st.State)
	assert.Equal(t, uint64(1), st.Version)
	assert.False(t, st.Playing)
	assert.Zero(t, st.PositionAtEpoch)

	st = mustApply(t, m, Transition{Op: OpPlay}, "a", 110)
	assert.Equal(t, models.PlaybackPlaying, st.State)
	assert.Equal(t, uint64(2), st.Version)
	assert.True(t, st.Playing)
	assert.Equal(t, float64(110), st.Epoch)

	st = mustApply(t, m, Transition{Op: OpPause}, "b", 120)
	assert.Equal(t, models.PlaybackPaused, st.State)
	assert.Equal(t, uint64(3), st.Version)
	assert.False(t, st.Playing)
	// 10 seconds elapsed while playing.
	assert.InDelta(t, 10, st.PositionAtEpoch, 1e-9)
	assert.Equal(t, "b", st.OriginID)
}

func TestPlayWithoutTrackRejected(t *testing.T) {
	m := NewMachine()
	_, err := m.Apply(Transition{Op: OpPlay}, "a", 100)
	assert.ErrorIs(t, err, ErrNoTrack)
	assert.Zero(t, m.State().Version)
}

func TestPlayWhilePlayingIsVersionedNoop(t *testing.T) {
	m := NewMachine()
	tr := track("t1", 180)
	mustApply(t, m, Transition{Op: OpLoad, Track: &tr}, "a", 100)
	mustApply(t, m, Transition{Op: OpPlay}, "a", 100)

	st := mustApply(t, m, Transition{Op: OpPlay}, "a", 105)
	assert.Equal(t, models.PlaybackPlaying, st.State)
	assert.True(t, st.Playing)
	// Still versioned so echoes stay harmless.
	assert.Equal(t, uint64(3), st.Version)
}

func TestSeekClampsNegative(t *testing.T) {
	m := NewMachine()
	tr := track("t1", 180)
	mustApply(t, m, Transition{Op: OpLoad, Track: &tr}, "a", 100)

	st := mustApply(t, m, Transition{Op: OpSeek, Seconds: -5}, "a", 101)
	assert.Zero(t, st.PositionAtEpoch)
}

func TestSeekPastDurationAdvancesToQueue(t *testing.T) {
	m := NewMachine()
	tr := track("t1", 100)
	next := track("t2", 200)
	mustApply(t, m, Transition{Op: OpLoad, Track: &tr}, "a", 100)
	m.Enqueue(models.QueueEntry{Track: next, AddedBy: "b"})

	st := mustApply(t, m, Transition{Op: OpSeek, Seconds: 150}, "a", 101)
	assert.Equal(t, models.PlaybackLoaded, st.State)
	require.NotNil(t, st.Track)
	assert.Equal(t, "t2", st.Track.ID)
	assert.Zero(t, st.PositionAtEpoch)
	assert.Equal(t, uint64(2), st.Version)
	assert.Empty(t, m.Queue())
}

func TestSeekPastDurationEmptyQueueGoesIdle(t *testing.T) {
	m := NewMachine()
	tr := track("t1", 100)
	mustApply(t, m, Transition{Op: OpLoad, Track: &tr}, "a", 100)

	st := mustApply(t, m, Transition{Op: OpSeek, Seconds: 500}, "a", 101)
	assert.Equal(t, models.PlaybackIdle, st.State)
	assert.Nil(t, st.Track)
}

func TestSeekWithUnknownDurationJustSets(t *testing.T) {
	m := NewMachine()
	tr := track("t1", 0)
	mustApply(t, m, Transition{Op: OpLoad, Track: &tr}, "a", 100)

	st := mustApply(t, m, Transition{Op: OpSeek, Seconds: 999}, "a", 101)
	assert.Equal(t, models.PlaybackLoaded, st.State)
	assert.InDelta(t, 999, st.PositionAtEpoch, 1e-9)
}

func TestAdvanceConsumesQueueInOrder(t *testing.T) {
	m := NewMachine()
	first := track("t1", 100)
	mustApply(t, m, Transition{Op: OpLoad, Track: &first}, "a", 100)
	m.Enqueue(models.QueueEntry{Track: track("t2", 100)})
	m.Enqueue(models.QueueEntry{Track: track("t3", 100)})

	st := mustApply(t, m, Transition{Op: OpAdvance}, "a", 110)
	assert.Equal(t, "t2", st.Track.ID)
	st = mustApply(t, m, Transition{Op: OpAdvance}, "a", 120)
	assert.Equal(t, "t3", st.Track.ID)

	st = mustApply(t, m, Transition{Op: OpAdvance}, "a", 130)
	assert.Equal(t, models.PlaybackIdle, st.State)
	assert.Nil(t, st.Track)

	_, err := m.Apply(Transition{Op: OpAdvance}, "a", 140)
	assert.ErrorIs(t, err, ErrNoTrack)
}

func TestSetDuration(t *testing.T) {
	m := NewMachine()
	tr := track("t1", 0)
	mustApply(t, m, Transition{Op: OpLoad, Track: &tr}, "a", 100)
	mustApply(t, m, Transition{Op: OpPlay}, "a", 100)

	assert.False(t, m.Ended(1000), "unknown duration never self-ends")

	st := mustApply(t, m, Transition{Op: OpSetDuration, TrackID: "t1", Seconds: 120}, "a", 100)
	assert.InDelta(t, 120, st.Track.Duration, 1e-9)
	assert.True(t, m.Ended(300))

	_, err := m.Apply(Transition{Op: OpSetDuration, TrackID: "other", Seconds: 60}, "a", 100)
	assert.ErrorIs(t, err, ErrTrackMismatch)
}

func TestPositionProjection(t *testing.T) {
	m := NewMachine()
	tr := track("t1", 100)
	mustApply(t, m, Transition{Op: OpLoad, Track: &tr}, "a", 100)
	mustApply(t, m, Transition{Op: OpPlay}, "a", 100)

	assert.InDelta(t, 42, m.PositionAt(142), 1e-9)
	// Clamped to duration.
	assert.InDelta(t, 100, m.PositionAt(1000), 1e-9)

	mustApply(t, m, Transition{Op: OpPause}, "a", 130)
	assert.InDelta(t, 30, m.PositionAt(500), 1e-9, "paused position does not drift")
}

func TestUnknownOpRejected(t *testing.T) {
	m := NewMachine()
	_, err := m.Apply(Transition{Op: "rewind"}, "a", 100)
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestSupersedes(t *testing.T) {
	base := models.PlaybackState{Version: 3, OriginID: "bbb"}

	assert.True(t, Supersedes(base, models.PlaybackState{Version: 4, OriginID: "zzz"}))
	assert.False(t, Supersedes(base, models.PlaybackState{Version: 2, OriginID: "aaa"}))

	// Equal versions: lexicographically smaller originator wins, on every
	// replica, regardless of arrival order.
	assert.True(t, Supersedes(base, models.PlaybackState{Version: 3, OriginID: "aaa"}))
	assert.False(t, Supersedes(base, models.PlaybackState{Version: 3, OriginID: "ccc"}))

	// Duplicate delivery of the held state is a no-op.
	assert.False(t, Supersedes(base, base))
}
