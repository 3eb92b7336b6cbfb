package models

import "time"

type Room struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	Capacity  int       `json:"capacity"`
	HostID    string    `json:"host_id"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	RoomStatusActive = "active"
	RoomStatusClosed = "closed"
)

type Member struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	IsHost      bool      `json:"is_host"`
	Connection  string    `json:"connection"`
	JoinedAt    time.Time `json:"joined_at"`
	LastSeen    time.Time `json:"last_seen"`
}

const (
	ConnConnected    = "connected"
	ConnReconnecting = "reconnecting"
	ConnDisconnected = "disconnected"
)
