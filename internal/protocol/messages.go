// Package protocol defines the JSON message envelope exchanged over a room
// websocket. Delivery is at-least-once; every state-bearing payload carries
// a version so duplicate or reordered applies are harmless.
package protocol

import (
	"encoding/json"

	"github.com/Cramiac/SyncTunes/internal/models"
	"github.com/Cramiac/SyncTunes/internal/playback"
)

// Server -> member message types.
const (
	TypeStateUpdate   = "state_update"
	TypeQueueUpdate   = "queue_update"
	TypeMemberJoined  = "member_joined"
	TypeMemberLeft    = "member_left"
	TypeMemberUpdated = "member_updated"
	TypeHostChanged   = "host_changed"
	TypeRoomClosed    = "room_closed"
	TypeCatchUp       = "catch_up"
	TypeSyncPong      = "sync_pong"
	TypeChat          = "chat"
	TypeError         = "error"
)

// Member -> server message types.
const (
	TypeTransition = "transition"
	TypeHeartbeat  = "heartbeat"
	TypeSyncPing   = "sync_ping"
	TypeResync     = "resync"
)

type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps a payload into an envelope.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Data: data}, nil
}

// Decode unmarshals the envelope payload into v.
func (m Message) Decode(v interface{}) error {
	return json.Unmarshal(m.Data, v)
}

// Snapshot is the full catch-up payload sent to a joining or stale member.
// Missed transitions are not replayed individually; once superseded they
// carry no meaning of their own.
type Snapshot struct {
	Room     models.Room          `json:"room"`
	Members  []models.Member      `json:"members"`
	Playback models.PlaybackState `json:"playback"`
	Queue    []models.QueueEntry  `json:"queue"`
}

// TransitionRequest is a member's proposed playback transition. Version is
// the version the proposal was based on, so the engine can detect stale and
// concurrent proposals.
type TransitionRequest struct {
	Transition playback.Transition `json:"transition"`
	Version    uint64              `json:"version"`
}

type MemberEvent struct {
	Member  models.Member   `json:"member"`
	Members []models.Member `json:"members,omitempty"`
}

type HostChange struct {
	HostID  string          `json:"host_id"`
	Members []models.Member `json:"members,omitempty"`
}

type QueueUpdate struct {
	Queue []models.QueueEntry `json:"queue"`
}

// SyncPing carries the member's send timestamp T0 in unix nanoseconds.
type SyncPing struct {
	T0 int64 `json:"t0"`
}

// SyncPong echoes T0 with the server receive time T1 and reply time T2,
// both in unix nanoseconds.
type SyncPong struct {
	T0 int64 `json:"t0"`
	T1 int64 `json:"t1"`
	T2 int64 `json:"t2"`
}

type Resync struct {
	Version uint64 `json:"version"`
}

type ChatSend struct {
	Text string `json:"text"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
