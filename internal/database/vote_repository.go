package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
	"github.com/petodopoderoso/cc-liveboard/internal/metrics"
)

const (
	// Two toggles racing on the same (question, voter) pair can both see
	// "no vote yet" and collide on insert. One of them retries.
	maxToggleAttempts = 3

	pgForeignKeyViolation = "23503"
)

var errToggleConflict = errors.New("concurrent vote toggle conflict")

type VoteRepo struct {
	db *DB
}

func NewVoteRepo(db *DB) *VoteRepo {
	return &VoteRepo{db: db}
}

var _ domain.VoteLedger = (*VoteRepo)(nil)

// Toggle flips a voter's vote on a question: absent becomes present, present
// becomes absent. Returns the question's vote count after the flip and
// whether the voter holds a vote now.
func (r *VoteRepo) Toggle(ctx context.Context, roomID string, questionID uuid.UUID, voterID string) (int, bool, error) {
	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		votes, nowVoted, err := r.toggleOnce(ctx, roomID, questionID, voterID)
		if errors.Is(err, errToggleConflict) {
			metrics.VoteToggleConflictsTotal.Inc()
			continue
		}
		if err != nil {
			metrics.VoteTogglesTotal.WithLabelValues("error").Inc()
			return 0, false, err
		}
		if nowVoted {
			metrics.VoteTogglesTotal.WithLabelValues("added").Inc()
		} else {
			metrics.VoteTogglesTotal.WithLabelValues("removed").Inc()
		}
		return votes, nowVoted, nil
	}
	metrics.VoteTogglesTotal.WithLabelValues("error").Inc()
	return 0, false, fmt.Errorf("vote toggle did not settle after %d attempts", maxToggleAttempts)
}

func (r *VoteRepo) toggleOnce(ctx context.Context, roomID string, questionID uuid.UUID, voterID string) (int, bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin toggle transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	// Removing first makes the toggle self-inverse: if the row exists the
	// toggle is a retraction, otherwise it is a fresh vote.
	tag, err := tx.Exec(ctx, `
		DELETE FROM votes
		WHERE question_id = $1 AND voter_id = $2`,
		questionID, voterID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to delete vote: %w", err)
	}

	nowVoted := tag.RowsAffected() == 0
	if nowVoted {
		tag, err = tx.Exec(ctx, `
			INSERT INTO votes (question_id, voter_id)
			VALUES ($1, $2)
			ON CONFLICT (question_id, voter_id) DO NOTHING`,
			questionID, voterID)
		if isPgError(err, pgForeignKeyViolation) {
			return 0, false, domain.ErrQuestionNotFound
		}
		if err != nil {
			return 0, false, fmt.Errorf("failed to insert vote: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// A concurrent toggle inserted between our delete and insert.
			return 0, false, errToggleConflict
		}
	}

	delta := 1
	if !nowVoted {
		delta = -1
	}

	var votes int
	err = tx.QueryRow(ctx, `
		UPDATE questions
		SET votes = votes + $1
		WHERE id = $2 AND room_id = $3
		RETURNING votes`,
		delta, questionID, roomID).Scan(&votes)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, domain.ErrQuestionNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to update vote count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("failed to commit toggle transaction: %w", err)
	}
	return votes, nowVoted, nil
}

// Voters returns the voter IDs currently holding a vote on a question.
func (r *VoteRepo) Voters(ctx context.Context, questionID uuid.UUID) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT voter_id FROM votes
		WHERE question_id = $1
		ORDER BY created_at ASC`,
		questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list voters: %w", err)
	}
	defer rows.Close()

	voters := make([]string, 0)
	for rows.Next() {
		var voterID string
		if err := rows.Scan(&voterID); err != nil {
			return nil, fmt.Errorf("failed to scan voter: %w", err)
		}
		voters = append(voters, voterID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read voters: %w", err)
	}

	return voters, nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
