package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
)

const questionColumns = `id, room_id, content, author, votes, is_answered, image_key, created_at`

type QuestionRepo struct {
	db *DB
}

func NewQuestionRepo(db *DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

var _ domain.QuestionRepository = (*QuestionRepo)(nil)

func scanQuestion(row pgx.Row) (*domain.Question, error) {
	var q domain.Question
	err := row.Scan(&q.ID, &q.RoomID, &q.Content, &q.Author, &q.Votes, &q.IsAnswered, &q.ImageKey, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepo) Create(ctx context.Context, roomID, content, author string, imageKey *string) (*domain.Question, error) {
	q, err := scanQuestion(r.db.Pool.QueryRow(ctx, `
		INSERT INTO questions (room_id, content, author, image_key)
		VALUES ($1, $2, $3, $4)
		RETURNING `+questionColumns,
		roomID, content, author, imageKey))
	if err != nil {
		return nil, fmt.Errorf("failed to insert question: %w", err)
	}
	return q, nil
}

func (r *QuestionRepo) GetByID(ctx context.Context, roomID string, questionID uuid.UUID) (*domain.Question, error) {
	q, err := scanQuestion(r.db.Pool.QueryRow(ctx, `
		SELECT `+questionColumns+`
		FROM questions
		WHERE id = $1 AND room_id = $2`,
		questionID, roomID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

// ListByRoom returns a room's questions ordered by votes descending,
// oldest first among ties.
func (r *QuestionRepo) ListByRoom(ctx context.Context, roomID string) ([]*domain.Question, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+questionColumns+`
		FROM questions
		WHERE room_id = $1
		ORDER BY votes DESC, created_at ASC`,
		roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := make([]*domain.Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	return questions, nil
}

func (r *QuestionRepo) MarkAnswered(ctx context.Context, roomID string, questionID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE questions
		SET is_answered = TRUE
		WHERE id = $1 AND room_id = $2`,
		questionID, roomID)
	if err != nil {
		return fmt.Errorf("failed to mark question answered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (r *QuestionRepo) CountByRoom(ctx context.Context, roomID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions WHERE room_id = $1`, roomID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}
