package api

import (
	"context"
	"testing"
	"time"

	"mojgrad-go/internal/apperror"
	"mojgrad-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVote_AwardsPoints(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	env.createUser(t, "voter", "Marko", false)
	problem := env.report(t, "author", models.GeoPoint{Lat: 44.8, Lng: 20.45})
	ctx := context.Background()

	result, err := env.service.Vote(ctx, "voter", problem.Id)
	require.NoError(t, err)
	assert.True(t, result.Added)
	assert.Equal(t, models.VoteId("voter", problem.Id), result.Vote.Id)
	assert.Equal(t, int64(1), result.Problem.Votes)
	assert.Len(t, result.Adjustments, 2)

	author, err := env.service.Profile(ctx, "author")
	require.NoError(t, err)
	assert.Equal(t, int64(ReportRewardPoints+1), author.TotalPoints)

	votes, err := env.service.UserVotes(ctx, "voter")
	require.NoError(t, err)
	assert.Equal(t, []string{problem.Id}, votes)

	// report reward plus both vote adjustments
	assert.Len(t, env.journal.recorded(), 3)
}

func TestVote_Preconditions(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	env.createUser(t, "voter", "Marko", false)
	problem := env.report(t, "author", models.GeoPoint{Lat: 44.8, Lng: 20.45})
	ctx := context.Background()

	_, err := env.service.Vote(ctx, "author", problem.Id)
	assertKind(t, err, apperror.ErrForbidden)

	_, err = env.service.Vote(ctx, "voter", "missing")
	assertKind(t, err, apperror.ErrNotFound)

	_, err = env.service.Vote(ctx, "voter", problem.Id)
	require.NoError(t, err)
	_, err = env.service.Vote(ctx, "voter", problem.Id)
	assertKind(t, err, apperror.ErrConflict)

	_, err = env.service.Vote(ctx, "", problem.Id)
	assertKind(t, err, apperror.ErrUnauthorized)
}

func TestUnvote(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	env.createUser(t, "voter", "Marko", false)
	problem := env.report(t, "author", models.GeoPoint{Lat: 44.8, Lng: 20.45})
	ctx := context.Background()

	_, err := env.service.Unvote(ctx, "voter", problem.Id)
	assertKind(t, err, apperror.ErrNotFound)

	_, err = env.service.Vote(ctx, "voter", problem.Id)
	require.NoError(t, err)

	result, err := env.service.Unvote(ctx, "voter", problem.Id)
	require.NoError(t, err)
	assert.False(t, result.Added)
	assert.Equal(t, int64(0), result.Problem.Votes)

	author, err := env.service.Profile(ctx, "author")
	require.NoError(t, err)
	assert.Equal(t, int64(ReportRewardPoints), author.TotalPoints)
}

func TestToggleVote(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	env.createUser(t, "voter", "Marko", false)
	problem := env.report(t, "author", models.GeoPoint{Lat: 44.8, Lng: 20.45})
	ctx := context.Background()

	result, err := env.service.ToggleVote(ctx, "voter", problem.Id)
	require.NoError(t, err)
	assert.True(t, result.Added)

	result, err = env.service.ToggleVote(ctx, "voter", problem.Id)
	require.NoError(t, err)
	assert.False(t, result.Added)

	result, err = env.service.ToggleVote(ctx, "voter", problem.Id)
	require.NoError(t, err)
	assert.True(t, result.Added)

	// every committed adjustment gets its own journal reference
	seen := map[string]bool{}
	for _, adj := range env.journal.recorded() {
		require.NotEmpty(t, adj.Id)
		assert.False(t, seen[adj.Id], "duplicate adjustment id %s", adj.Id)
		seen[adj.Id] = true
	}
}

func TestVote_JournalFailureDoesNotFailVote(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	env.createUser(t, "voter", "Marko", false)
	problem := env.report(t, "author", models.GeoPoint{Lat: 44.8, Lng: 20.45})
	env.journal.err = assert.AnError

	result, err := env.service.Vote(context.Background(), "voter", problem.Id)
	require.NoError(t, err)
	assert.True(t, result.Added)
}

func TestLeaderboard(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "ana", "Ana", false)
	env.createUser(t, "marko", "Marko", false)
	env.createUser(t, "admin", "Admin", true)
	ctx := context.Background()

	env.report(t, "ana", models.GeoPoint{Lat: 44.8, Lng: 20.45})
	env.report(t, "ana", models.GeoPoint{Lat: 44.8, Lng: 20.46})
	env.report(t, "marko", models.GeoPoint{Lat: 44.8, Lng: 20.47})

	board, err := env.service.Leaderboard(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2025-03", board.Month)
	require.Len(t, board.Entries, 2, "admins are not ranked")
	assert.Equal(t, "ana", board.Entries[0].UserId)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, int64(2*ReportRewardPoints), board.Entries[0].MonthPoints)
	assert.Equal(t, "marko", board.Entries[1].UserId)
	assert.Equal(t, 2, board.Entries[1].Rank)

	previous, err := env.service.Leaderboard(ctx, "2025-02")
	require.NoError(t, err)
	for _, e := range previous.Entries {
		assert.Zero(t, e.MonthPoints)
	}

	_, err = env.service.Leaderboard(ctx, "03-2025")
	assertKind(t, err, apperror.ErrValidation)
}

func TestWatchLeaderboard(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "ana", "Ana", false)
	env.createUser(t, "marko", "Marko", false)
	problem := env.report(t, "ana", models.GeoPoint{Lat: 44.8, Lng: 20.45})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := env.service.WatchLeaderboard(ctx, "2025-03")
	require.NoError(t, err)

	select {
	case board := <-updates:
		require.NotEmpty(t, board.Entries)
		assert.Equal(t, "ana", board.Entries[0].UserId)
		assert.Equal(t, int64(ReportRewardPoints), board.Entries[0].MonthPoints)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	_, err = env.service.Vote(context.Background(), "marko", problem.Id)
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case board := <-updates:
			if board.Entries[0].MonthPoints == ReportRewardPoints+1 {
				cancel()
				for range updates {
				}
				return
			}
		case <-deadline:
			t.Fatal("leaderboard did not refresh after vote")
		}
	}
}

func TestWatchLeaderboard_InvalidMonth(t *testing.T) {
	env := setupService(t)

	_, err := env.service.WatchLeaderboard(context.Background(), "bad")
	assertKind(t, err, apperror.ErrValidation)
}
