package database

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
)

func TestVoteRepo_Toggle_AddThenRemove(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepo(db)
	ctx := context.Background()

	q := CreateTestQuestion(t, db, "all-hands", "Will there be snacks?")

	votes, nowVoted, err := repo.Toggle(ctx, "all-hands", q.ID, "voter-1")
	require.NoError(t, err)
	assert.True(t, nowVoted)
	assert.Equal(t, 1, votes)

	votes, nowVoted, err = repo.Toggle(ctx, "all-hands", q.ID, "voter-1")
	require.NoError(t, err)
	assert.False(t, nowVoted)
	assert.Equal(t, 0, votes)
}

func TestVoteRepo_Toggle_DistinctVotersAccumulate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepo(db)
	ctx := context.Background()

	q := CreateTestQuestion(t, db, "all-hands", "Remote fridays?")

	for i, voter := range []string{"a", "b", "c"} {
		votes, nowVoted, err := repo.Toggle(ctx, "all-hands", q.ID, voter)
		require.NoError(t, err)
		assert.True(t, nowVoted)
		assert.Equal(t, i+1, votes)
	}

	// One voter retracts; the others keep theirs.
	votes, nowVoted, err := repo.Toggle(ctx, "all-hands", q.ID, "b")
	require.NoError(t, err)
	assert.False(t, nowVoted)
	assert.Equal(t, 2, votes)

	voters, err := repo.Voters(ctx, q.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, voters)
}

func TestVoteRepo_Toggle_QuestionNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepo(db)

	_, _, err := repo.Toggle(context.Background(), "all-hands", uuid.New(), "voter-1")
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
}

func TestVoteRepo_Toggle_WrongRoom(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepo(db)
	ctx := context.Background()

	q := CreateTestQuestion(t, db, "all-hands", "Misrouted?")

	_, _, err := repo.Toggle(ctx, "other-room", q.ID, "voter-1")
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)

	// The failed toggle must not leave a vote row behind.
	voters, err := repo.Voters(ctx, q.ID)
	require.NoError(t, err)
	assert.Empty(t, voters)
}

func TestVoteRepo_Toggle_CountMatchesLedger(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepo(db)
	questions := NewQuestionRepo(db)
	ctx := context.Background()

	q := CreateTestQuestion(t, db, "all-hands", "Consistency?")

	// A pile of toggles: a votes, b votes, a retracts, c votes, b retracts.
	for _, voter := range []string{"a", "b", "a", "c", "b"} {
		_, _, err := repo.Toggle(ctx, "all-hands", q.ID, voter)
		require.NoError(t, err)
	}

	got, err := questions.GetByID(ctx, "all-hands", q.ID)
	require.NoError(t, err)

	voters, err := repo.Voters(ctx, q.ID)
	require.NoError(t, err)

	assert.Equal(t, len(voters), got.Votes)
	assert.ElementsMatch(t, []string{"c"}, voters)
}

func TestVoteRepo_Toggle_ConcurrentVoters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepo(db)
	questions := NewQuestionRepo(db)
	ctx := context.Background()

	q := CreateTestQuestion(t, db, "all-hands", "Race conditions?")

	const voterCount = 20
	var wg sync.WaitGroup
	errs := make([]error, voterCount)

	for i := 0; i < voterCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			voter := uuid.NewString()
			_, _, errs[i] = repo.Toggle(ctx, "all-hands", q.ID, voter)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := questions.GetByID(ctx, "all-hands", q.ID)
	require.NoError(t, err)
	assert.Equal(t, voterCount, got.Votes)
}

func TestVoteRepo_Toggle_ConcurrentSameVoter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepo(db)
	questions := NewQuestionRepo(db)
	ctx := context.Background()

	q := CreateTestQuestion(t, db, "all-hands", "Double click?")

	// An even number of toggles from one voter must always net to zero,
	// regardless of interleaving.
	const toggles = 6
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = repo.Toggle(ctx, "all-hands", q.ID, "eager-voter")
		}()
	}
	wg.Wait()

	got, err := questions.GetByID(ctx, "all-hands", q.ID)
	require.NoError(t, err)

	voters, err := repo.Voters(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, len(voters), got.Votes)
	assert.LessOrEqual(t, got.Votes, 1)
}

func TestVoteRepo_Voters_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepo(db)

	voters, err := repo.Voters(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, voters)
}
