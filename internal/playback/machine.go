package playback

import (
	"errors"

	"github.com/Cramiac/SyncTunes/internal/models"
)

var (
	ErrNoTrack       = errors.New("no track loaded")
	ErrUnknownOp     = errors.New("unknown transition op")
	ErrTrackMismatch = errors.New("track does not match current state")
)

const (
	OpLoad        = "load"
	OpPlay        = "play"
	OpPause       = "pause"
	OpSeek        = "seek"
	OpAdvance     = "advance"
	OpSetDuration = "set_duration"
)

// Transition is a proposed change to a room's playback state.
type Transition struct {
	Op      string           `json:"op"`
	Track   *models.TrackRef `json:"track,omitempty"`
	Seconds float64          `json:"seconds,omitempty"`
	TrackID string           `json:"track_id,omitempty"`
}

// Machine holds a room's playback state and queue and applies transitions
// to them. It is not safe for concurrent use; the coordinator serializes
// access per room.
type Machine struct {
	state models.PlaybackState
	queue []models.QueueEntry
}

func NewMachine() *Machine {
	return &Machine{
		state: models.PlaybackState{State: models.PlaybackIdle},
	}
}

func (m *Machine) State() models.PlaybackState {
	return m.state
}

// Queue returns a copy of the pending entries.
func (m *Machine) Queue() []models.QueueEntry {
	q := make([]models.QueueEntry, len(m.queue))
	copy(q, m.queue)
	return q
}

func (m *Machine) Enqueue(e models.QueueEntry) {
	m.queue = append(m.queue, e)
}

func (m *Machine) ClearQueue() {
	m.queue = nil
}

// PositionAt projects the playback position at the given room time.
func (m *Machine) PositionAt(roomNow float64) float64 {
	pos := m.state.PositionAtEpoch
	if m.state.Playing {
		pos += roomNow - m.state.Epoch
	}
	if d := m.trackDuration(); d > 0 && pos > d {
		pos = d
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

// Ended reports whether a playing track has run past its known duration at
// the given room time. Tracks with unresolved duration never self-end.
func (m *Machine) Ended(roomNow float64) bool {
	d := m.trackDuration()
	if d <= 0 || !m.state.Playing {
		return false
	}
	return m.PositionAt(roomNow) >= d
}

// Apply runs a transition against the current state and returns the
// resulting PlaybackState, stamped version = previous + 1 and re-anchored at
// roomNow. The caller provides the originating member id.
func (m *Machine) Apply(t Transition, origin string, roomNow float64) (models.PlaybackState, error) {
	next := m.state
	next.PositionAtEpoch = m.PositionAt(roomNow)
	next.Epoch = roomNow

	switch t.Op {
	case OpLoad:
		if t.Track == nil {
			return m.state, ErrNoTrack
		}
		track := *t.Track
		next.Track = &track
		next.State = models.PlaybackLoaded
		next.Playing = false
		next.PositionAtEpoch = 0

	case OpPlay:
		if next.Track == nil {
			return m.state, ErrNoTrack
		}
		// Play on an already-playing state is a versioned no-op, so
		// duplicate presses and echoes stay harmless.
		next.State = models.PlaybackPlaying
		next.Playing = true

	case OpPause:
		if next.Track == nil {
			return m.state, ErrNoTrack
		}
		next.State = models.PlaybackPaused
		next.Playing = false

	case OpSeek:
		if next.Track == nil {
			return m.state, ErrNoTrack
		}
		pos := t.Seconds
		if pos < 0 {
			pos = 0
		}
		if d := next.Track.Duration; d > 0 && pos >= d {
			// Seek past the end clamps to the end and advances.
			return m.apply(m.advanced(next, roomNow), origin)
		}
		next.PositionAtEpoch = pos

	case OpAdvance:
		if next.Track == nil && len(m.queue) == 0 {
			return m.state, ErrNoTrack
		}
		next = m.advanced(next, roomNow)

	case OpSetDuration:
		if next.Track == nil {
			return m.state, ErrNoTrack
		}
		if t.TrackID != "" && t.TrackID != next.Track.ID {
			return m.state, ErrTrackMismatch
		}
		track := *next.Track
		track.Duration = t.Seconds
		next.Track = &track

	default:
		return m.state, ErrUnknownOp
	}

	return m.apply(next, origin)
}

// Replace installs a fully-formed state, bypassing transition semantics.
// Used when a remote state wins conflict resolution.
func (m *Machine) Replace(st models.PlaybackState) {
	m.state = st
}

// PopQueue consumes the front queue entry, if any.
func (m *Machine) PopQueue() (models.QueueEntry, bool) {
	if len(m.queue) == 0 {
		return models.QueueEntry{}, false
	}
	e := m.queue[0]
	m.queue = m.queue[1:]
	return e, true
}

func (m *Machine) apply(next models.PlaybackState, origin string) (models.PlaybackState, error) {
	next.Version = m.state.Version + 1
	next.OriginID = origin
	m.state = next
	return m.state, nil
}

func (m *Machine) advanced(next models.PlaybackState, roomNow float64) models.PlaybackState {
	if e, ok := m.PopQueue(); ok {
		track := e.Track
		next.Track = &track
		next.State = models.PlaybackLoaded
	} else {
		next.Track = nil
		next.State = models.PlaybackIdle
	}
	next.Playing = false
	next.PositionAtEpoch = 0
	next.Epoch = roomNow
	return next
}

func (m *Machine) trackDuration() float64 {
	if m.state.Track == nil {
		return 0
	}
	return m.state.Track.Duration
}

// Supersedes reports whether incoming should replace current: the higher
// version always wins, and equal versions (two members stamping the same
// version concurrently) break the tie by originator id so every replica
// picks the same winner regardless of arrival order.
func Supersedes(current, incoming models.PlaybackState) bool {
	if incoming.Version != current.Version {
		return incoming.Version > current.Version
	}
	if incoming.OriginID == current.OriginID {
		return false
	}
	return incoming.OriginID < current.OriginID
}
