package domain

import (
	"time"

	"github.com/google/uuid"
)

// Question is one audience question in a room. The JSON field names are part
// of the wire protocol (question:new events carry the full row) and must stay
// stable.
type Question struct {
	ID         uuid.UUID `json:"id"`
	RoomID     string    `json:"room_id"`
	Content    string    `json:"content"`
	Author     string    `json:"author"`
	Votes      int       `json:"votes"`
	IsAnswered bool      `json:"is_answered"`
	ImageKey   *string   `json:"image_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// Vote records that a voter currently endorses a question. At most one row
// exists per (QuestionID, VoterID) pair; the question's vote count always
// equals the number of rows referencing it.
type Vote struct {
	QuestionID uuid.UUID
	VoterID    string
}

// RoomInfo is the live summary returned by the room info endpoint.
type RoomInfo struct {
	RoomID        string     `json:"roomId"`
	Connections   int        `json:"connections"`
	QuestionCount int        `json:"questionCount"`
	Active        bool       `json:"active"`
	ActiveSince   *time.Time `json:"activeSince,omitempty"`
}
