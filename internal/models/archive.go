package models

import "time"

// RoomRecord is the persisted trace of a finished room, written when the
// coordinator tears a room down. Live room state never touches the database.
type RoomRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RoomID       string    `gorm:"size:36;index" json:"room_id"`
	Code         string    `gorm:"size:6;index" json:"code"`
	HostName     string    `gorm:"size:100" json:"host_name"`
	MemberCount  int       `gorm:"not null;default:0" json:"member_count"`
	TracksPlayed int       `gorm:"not null;default:0" json:"tracks_played"`
	CreatedAt    time.Time `json:"created_at"`
	ClosedAt     time.Time `json:"closed_at"`
}
