package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mojgrad-go/internal/models"
	"mojgrad-go/internal/store"

	"go.uber.org/zap"
)

// Points moved by a single vote, for the voter and for the author alike
const votePoints = 1

// problemVoteState is the part of a problem a vote transaction reads
type problemVoteState struct {
	exists   bool
	authorId string
	votes    int64
	version  int64
}

func readProblemVoteState(ctx context.Context, t *docTx, problemId string) (*problemVoteState, error) {
	row, err := t.queryRow(ctx, queryGetProblemVotesState, problemId)
	if err != nil {
		return nil, err
	}
	state := &problemVoteState{}
	err = row.Scan(&state.authorId, &state.votes, &state.version)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read problem %s: %w", problemId, err)
	}
	state.exists = true
	return state, nil
}

func readVote(ctx context.Context, t *docTx, voteId string) (*models.Vote, error) {
	row, err := t.queryRow(ctx, queryGetVote, voteId)
	if err != nil {
		return nil, err
	}
	var v models.Vote
	err = row.Scan(&v.Id, &v.UserId, &v.ProblemId, &v.AuthorId, &v.VotedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vote %s: %w", voteId, err)
	}
	return &v, nil
}

// AddVote records userId's vote on problemId. In one transaction it reads
// the problem, the vote, the voter and the author, validates, then inserts
// the vote, increments the problem's count and credits both users.
func (s *Service) AddVote(ctx context.Context, userId, problemId string, at time.Time) (*models.VoteResult, error) {
	voteId := models.VoteId(userId, problemId)
	at = at.UTC()
	month := models.MonthKey(at)

	var result *models.VoteResult
	err := s.runTransaction(ctx, "add_vote", func(ctx context.Context, t *docTx) error {
		result = nil

		// Reads
		problem, err := readProblemVoteState(ctx, t, problemId)
		if err != nil {
			return err
		}
		existing, err := readVote(ctx, t, voteId)
		if err != nil {
			return err
		}
		voter, err := readPointsState(ctx, t, userId, month)
		if err != nil {
			return err
		}
		var author *pointsState
		if problem.exists {
			author, err = readPointsState(ctx, t, problem.authorId, month)
			if err != nil {
				return err
			}
		}

		// Validation
		if !problem.exists {
			return fmt.Errorf("%w: %s", store.ErrProblemNotFound, problemId)
		}
		if problem.authorId == userId {
			return store.ErrSelfVote
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", store.ErrAlreadyVoted, voteId)
		}

		// Writes
		vote := models.Vote{Id: voteId, UserId: userId, ProblemId: problemId, AuthorId: problem.authorId, VotedAt: at}
		if _, err := t.exec(ctx, queryInsertVote, vote.Id, vote.UserId, vote.ProblemId, vote.AuthorId, vote.VotedAt); err != nil {
			return fmt.Errorf("failed to insert vote: %w", err)
		}
		t.changed(store.CollectionVotes, voteId)

		if err := t.execVersioned(ctx, queryUpdateProblemVotes, problem.votes+1, problemId, problem.version); err != nil {
			return fmt.Errorf("failed to update vote count: %w", err)
		}
		t.changed(store.CollectionProblems, problemId)

		result = &models.VoteResult{Vote: vote, Added: true, CommittedAt: at}
		if adj, err := applyPoints(ctx, t, voter, votePoints, models.PointsVoteCast, voteId, at); err != nil {
			return err
		} else if adj != nil {
			result.Adjustments = append(result.Adjustments, *adj)
		}
		if adj, err := applyPoints(ctx, t, author, votePoints, models.PointsVoteReceived, voteId, at); err != nil {
			return err
		} else if adj != nil {
			result.Adjustments = append(result.Adjustments, *adj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	problem, err := s.GetProblem(ctx, problemId)
	if err != nil {
		return nil, err
	}
	result.Problem = *problem

	zap.L().Info("Vote added",
		zap.String("vote_id", voteId),
		zap.String("user_id", userId),
		zap.String("problem_id", problemId),
		zap.Int64("votes", problem.Votes))
	return result, nil
}

// RemoveVote withdraws userId's vote on problemId. Counts and points are
// decremented and clamped at zero.
func (s *Service) RemoveVote(ctx context.Context, userId, problemId string, at time.Time) (*models.VoteResult, error) {
	voteId := models.VoteId(userId, problemId)
	at = at.UTC()
	month := models.MonthKey(at)

	var result *models.VoteResult
	err := s.runTransaction(ctx, "remove_vote", func(ctx context.Context, t *docTx) error {
		result = nil

		// Reads
		existing, err := readVote(ctx, t, voteId)
		if err != nil {
			return err
		}
		problem, err := readProblemVoteState(ctx, t, problemId)
		if err != nil {
			return err
		}
		voter, err := readPointsState(ctx, t, userId, month)
		if err != nil {
			return err
		}
		var author *pointsState
		if problem.exists {
			author, err = readPointsState(ctx, t, problem.authorId, month)
			if err != nil {
				return err
			}
		}

		// Validation
		if existing == nil {
			return fmt.Errorf("%w: %s", store.ErrVoteNotFound, voteId)
		}
		if !problem.exists {
			return fmt.Errorf("%w: %s", store.ErrProblemNotFound, problemId)
		}

		// Writes
		if _, err := t.exec(ctx, queryDeleteVote, voteId); err != nil {
			return fmt.Errorf("failed to delete vote: %w", err)
		}
		t.changed(store.CollectionVotes, voteId)

		if err := t.execVersioned(ctx, queryUpdateProblemVotes, max(problem.votes-1, 0), problemId, problem.version); err != nil {
			return fmt.Errorf("failed to update vote count: %w", err)
		}
		t.changed(store.CollectionProblems, problemId)

		result = &models.VoteResult{Vote: *existing, Added: false, CommittedAt: at}
		if adj, err := applyPoints(ctx, t, voter, -votePoints, models.PointsVoteWithdrawn, voteId, at); err != nil {
			return err
		} else if adj != nil {
			result.Adjustments = append(result.Adjustments, *adj)
		}
		if adj, err := applyPoints(ctx, t, author, -votePoints, models.PointsVoteRevoked, voteId, at); err != nil {
			return err
		} else if adj != nil {
			result.Adjustments = append(result.Adjustments, *adj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	problem, err := s.GetProblem(ctx, problemId)
	if err != nil {
		return nil, err
	}
	result.Problem = *problem

	zap.L().Info("Vote removed",
		zap.String("vote_id", voteId),
		zap.String("user_id", userId),
		zap.String("problem_id", problemId),
		zap.Int64("votes", problem.Votes))
	return result, nil
}

func (s *Service) HasVoted(ctx context.Context, userId, problemId string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, queryHasVote, models.VoteId(userId, problemId)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check vote: %w", err)
	}
	return true, nil
}

func (s *Service) GetUserVotes(ctx context.Context, userId string) ([]models.Vote, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUserVotes, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var votes []models.Vote
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.Id, &v.UserId, &v.ProblemId, &v.AuthorId, &v.VotedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return votes, nil
}
