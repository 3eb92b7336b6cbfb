package models

import "time"

// TrackRef mirrors the client's Song shape. Duration is in seconds;
// zero means metadata has not resolved yet.
type TrackRef struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Artist    string  `json:"artist,omitempty"`
	Duration  float64 `json:"duration"`
	Source    string  `json:"source"`
	YouTubeID string  `json:"youtube_id,omitempty"`
	CoverURL  string  `json:"cover_url,omitempty"`
}

const (
	SourceYouTube = "youtube"
	SourceLocal   = "local"
)

// PlaybackState is the authoritative description of what a room should be
// playing. Position is expressed as seconds into the track as of Epoch
// (room-time seconds), so every member can project the current position
// from its own clock-sync offset.
type PlaybackState struct {
	State           string    `json:"state"`
	Track           *TrackRef `json:"track,omitempty"`
	Playing         bool      `json:"playing"`
	PositionAtEpoch float64   `json:"position_at_epoch"`
	Epoch           float64   `json:"epoch"`
	Version         uint64    `json:"version"`
	OriginID        string    `json:"origin_id,omitempty"`
}

const (
	PlaybackIdle    = "idle"
	PlaybackLoaded  = "loaded"
	PlaybackPlaying = "playing"
	PlaybackPaused  = "paused"
)

type QueueEntry struct {
	Track   TrackRef  `json:"track"`
	AddedBy string    `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

type ChatMessage struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"room_id"`
	MemberID    string    `json:"member_id"`
	DisplayName string    `json:"display_name"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sent_at"`
}
