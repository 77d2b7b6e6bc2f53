package domain

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// QuestionRepository is the durable store for question rows.
type QuestionRepository interface {
	Create(ctx context.Context, roomID, content, author string, imageKey *string) (*Question, error)
	GetByID(ctx context.Context, roomID string, id uuid.UUID) (*Question, error)
	ListByRoom(ctx context.Context, roomID string) ([]*Question, error)
	MarkAnswered(ctx context.Context, roomID string, id uuid.UUID) error
	CountByRoom(ctx context.Context, roomID string) (int, error)
}

// VoteLedger tracks which (question, voter) pairs are active and keeps the
// derived vote count consistent. Toggle applies the existence check and the
// paired mutation atomically; concurrent toggles from the same voter never
// produce a duplicate row or a double count.
type VoteLedger interface {
	Toggle(ctx context.Context, roomID string, questionID uuid.UUID, voterID string) (votes int, nowVoted bool, err error)
	Voters(ctx context.Context, questionID uuid.UUID) ([]string, error)
}

// Broadcaster delivers events to every open session in a room, best effort.
type Broadcaster interface {
	Broadcast(roomID string, ev Event) error
	ConnectionCount(roomID string) int
}

// RoomPresence is the live-activity record kept per room.
type RoomPresence struct {
	Active      bool
	ActiveSince time.Time
}

// PresenceStore records which rooms currently have connected clients.
type PresenceStore interface {
	Activate(ctx context.Context, roomID string) error
	Deactivate(ctx context.Context, roomID string) error
	Get(ctx context.Context, roomID string) (*RoomPresence, error)
}

// ImageStore holds uploaded question attachments.
type ImageStore interface {
	Save(ctx context.Context, contentType string, size int64, r io.Reader) (key string, err error)
	Open(ctx context.Context, key string) (rc io.ReadCloser, contentType string, err error)
}
