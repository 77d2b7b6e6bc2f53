package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
)

// CreateTestQuestion is a helper that inserts a question with default values
// for testing. Returns the created question.
func CreateTestQuestion(t *testing.T, db *DB, roomID, content string) *domain.Question {
	t.Helper()

	repo := NewQuestionRepo(db)
	ctx := context.Background()

	q, err := repo.Create(ctx, roomID, content, "Anonymous", nil)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, q.ID)

	return q
}

// ToggleTestVote is a helper that toggles a vote and asserts success.
// Returns the vote count after the toggle and whether the voter holds a vote.
func ToggleTestVote(t *testing.T, db *DB, roomID string, questionID uuid.UUID, voterID string) (int, bool) {
	t.Helper()

	repo := NewVoteRepo(db)
	votes, nowVoted, err := repo.Toggle(context.Background(), roomID, questionID, voterID)
	require.NoError(t, err)

	return votes, nowVoted
}
