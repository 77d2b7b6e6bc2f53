package app

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
)

const defaultAuthor = "Anonymous"

// Service orchestrates the use cases. Broadcasts are fired only after the
// storage mutation committed; a failed broadcast never fails the request.
type Service struct {
	questions domain.QuestionRepository
	votes     domain.VoteLedger
	rooms     domain.Broadcaster
	presence  domain.PresenceStore
	images    domain.ImageStore
	infoGroup singleflight.Group
}

func NewService(questions domain.QuestionRepository, votes domain.VoteLedger, rooms domain.Broadcaster, presence domain.PresenceStore, images domain.ImageStore) *Service {
	return &Service{
		questions: questions,
		votes:     votes,
		rooms:     rooms,
		presence:  presence,
		images:    images,
	}
}

// CreateQuestion stores a new question and announces it to the room.
func (s *Service) CreateQuestion(ctx context.Context, roomID, content, author string, imageKey *string) (*domain.Question, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyQuestion
	}

	author = strings.TrimSpace(author)
	if author == "" {
		author = defaultAuthor
	}

	q, err := s.questions.Create(ctx, roomID, content, author, imageKey)
	if err != nil {
		return nil, err
	}

	s.broadcast(roomID, domain.NewQuestionNewEvent(*q))
	return q, nil
}

// ListQuestions returns a room's questions, most voted first.
func (s *Service) ListQuestions(ctx context.Context, roomID string) ([]*domain.Question, error) {
	return s.questions.ListByRoom(ctx, roomID)
}

// GetQuestion returns a single question by room and id.
func (s *Service) GetQuestion(ctx context.Context, roomID string, questionID uuid.UUID) (*domain.Question, error) {
	return s.questions.GetByID(ctx, roomID, questionID)
}

// ToggleVote flips a voter's vote on a question and announces the new count.
func (s *Service) ToggleVote(ctx context.Context, roomID string, questionID uuid.UUID, voterID string) (int, bool, error) {
	if strings.TrimSpace(voterID) == "" {
		return 0, false, domain.ErrInvalidVoter
	}

	votes, nowVoted, err := s.votes.Toggle(ctx, roomID, questionID, voterID)
	if err != nil {
		return 0, false, err
	}

	s.broadcast(roomID, domain.NewQuestionVotedEvent(questionID, votes))
	return votes, nowVoted, nil
}

// AnswerQuestion marks a question answered and announces it.
func (s *Service) AnswerQuestion(ctx context.Context, roomID string, questionID uuid.UUID) error {
	if err := s.questions.MarkAnswered(ctx, roomID, questionID); err != nil {
		return err
	}

	s.broadcast(roomID, domain.NewQuestionAnsweredEvent(questionID))
	return nil
}

// RoomInfo returns the live room summary. Concurrent fetches for the same
// room collapse into one storage round trip.
func (s *Service) RoomInfo(ctx context.Context, roomID string) (*domain.RoomInfo, error) {
	v, err, _ := s.infoGroup.Do(roomID, func() (any, error) {
		questionCount, err := s.questions.CountByRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}

		info := &domain.RoomInfo{
			RoomID:        roomID,
			Connections:   s.rooms.ConnectionCount(roomID),
			QuestionCount: questionCount,
		}

		presence, err := s.presence.Get(ctx, roomID)
		if err != nil {
			// Presence is advisory; the summary stays useful without it.
			slog.Error("Failed to read room presence", "room", roomID, "error", err)
			return info, nil
		}
		info.Active = presence.Active
		if !presence.ActiveSince.IsZero() {
			since := presence.ActiveSince
			info.ActiveSince = &since
		}
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.RoomInfo), nil
}

// UploadImage stores an attachment and returns its key.
func (s *Service) UploadImage(ctx context.Context, contentType string, size int64, r io.Reader) (string, error) {
	return s.images.Save(ctx, contentType, size, r)
}

// OpenImage returns a stored attachment and its content type.
func (s *Service) OpenImage(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return s.images.Open(ctx, key)
}

// OnFirstSession marks a room active in presence. Wired as the room
// directory's first-session callback.
func (s *Service) OnFirstSession(roomID string) {
	if err := s.presence.Activate(context.Background(), roomID); err != nil {
		slog.Error("Failed to activate room presence", "room", roomID, "error", err)
	}
}

// OnLastSession marks a room idle in presence. Wired as the room directory's
// last-session callback.
func (s *Service) OnLastSession(roomID string) {
	if err := s.presence.Deactivate(context.Background(), roomID); err != nil {
		slog.Error("Failed to deactivate room presence", "room", roomID, "error", err)
	}
}

func (s *Service) broadcast(roomID string, ev domain.Event) {
	if err := s.rooms.Broadcast(roomID, ev); err != nil {
		slog.Error("Failed to broadcast event", "room", roomID, "type", ev.EventType(), "error", err)
	}
}
