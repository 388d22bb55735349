/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"errors"

	"mojgrad-go/internal/models"
	"mojgrad-go/internal/store"

	"go.uber.org/zap"
)

// Vote endorses problemId on behalf of userId. The vote record, the problem
// counter and the author's points are written in one transaction.
func (s *Service) Vote(ctx context.Context, userId, problemId string) (*models.VoteResult, error) {
	if err := requireCaller(userId); err != nil {
		return nil, err
	}

	zap.L().Info("Processing vote",
		zap.String("user_id", userId),
		zap.String("problem_id", problemId))

	result, err := s.store.AddVote(ctx, userId, problemId, s.now().UTC())
	if err != nil {
		logVoteError("Vote failed", userId, problemId, err)
		return nil, mapStoreError(err)
	}

	s.mirrorAdjustments(ctx, result.Adjustments)

	zap.L().Info("Vote processed successfully",
		zap.String("user_id", userId),
		zap.String("problem_id", problemId),
		zap.String("author_id", result.Problem.UserId),
		zap.Int64("votes", result.Problem.Votes))

	return result, nil
}

// Unvote withdraws userId's vote on problemId and reverses the author's point
func (s *Service) Unvote(ctx context.Context, userId, problemId string) (*models.VoteResult, error) {
	if err := requireCaller(userId); err != nil {
		return nil, err
	}

	zap.L().Info("Processing vote removal",
		zap.String("user_id", userId),
		zap.String("problem_id", problemId))

	result, err := s.store.RemoveVote(ctx, userId, problemId, s.now().UTC())
	if err != nil {
		logVoteError("Vote removal failed", userId, problemId, err)
		return nil, mapStoreError(err)
	}

	s.mirrorAdjustments(ctx, result.Adjustments)

	zap.L().Info("Vote removed successfully",
		zap.String("user_id", userId),
		zap.String("problem_id", problemId),
		zap.String("author_id", result.Problem.UserId),
		zap.Int64("votes", result.Problem.Votes))

	return result, nil
}

// ToggleVote votes when the user has not voted yet and unvotes otherwise
func (s *Service) ToggleVote(ctx context.Context, userId, problemId string) (*models.VoteResult, error) {
	if err := requireCaller(userId); err != nil {
		return nil, err
	}

	voted, err := s.store.HasVoted(ctx, userId, problemId)
	if err != nil {
		zap.L().Error("Failed to read vote state",
			zap.String("user_id", userId),
			zap.String("problem_id", problemId),
			zap.Error(err))
		return nil, mapStoreError(err)
	}
	if voted {
		return s.Unvote(ctx, userId, problemId)
	}
	return s.Vote(ctx, userId, problemId)
}

// logVoteError logs precondition failures at info and everything else as an error
func logVoteError(msg, userId, problemId string, err error) {
	fields := []zap.Field{
		zap.String("user_id", userId),
		zap.String("problem_id", problemId),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, store.ErrProblemNotFound),
		errors.Is(err, store.ErrVoteNotFound),
		errors.Is(err, store.ErrSelfVote),
		errors.Is(err, store.ErrAlreadyVoted):
		zap.L().Info(msg, fields...)
	default:
		zap.L().Error(msg, fields...)
	}
}
