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
	"fmt"
	"time"

	"mojgrad-go/internal/apperror"
	"mojgrad-go/internal/models"
	"mojgrad-go/internal/store"

	"go.uber.org/zap"
)

const monthLayout = "2006-01"

// resolveMonth validates a YYYY-MM key. Empty means the current month.
func (s *Service) resolveMonth(month string) (string, error) {
	if month == "" {
		return models.MonthKey(s.now()), nil
	}
	if _, err := time.Parse(monthLayout, month); err != nil {
		return "", apperror.ValidationFailed("month", "Mesec mora biti u formatu GGGG-MM")
	}
	return month, nil
}

// Leaderboard ranks citizens by the points earned in month
func (s *Service) Leaderboard(ctx context.Context, month string) (*models.Leaderboard, error) {
	resolved, err := s.resolveMonth(month)
	if err != nil {
		return nil, err
	}
	return s.buildLeaderboard(ctx, resolved)
}

func (s *Service) buildLeaderboard(ctx context.Context, month string) (*models.Leaderboard, error) {
	users, err := s.store.GetLeaderboardUsers(ctx, month, LeaderboardSize)
	if err != nil {
		zap.L().Error("Failed to get leaderboard", zap.String("month", month), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve leaderboard")
	}

	board := &models.Leaderboard{
		Month:   month,
		Entries: make([]models.LeaderboardEntry, 0, len(users)),
	}
	for i, u := range users {
		board.Entries = append(board.Entries, models.LeaderboardEntry{
			Rank:            i + 1,
			UserId:          u.Id,
			Name:            u.Name,
			ProfileImageUrl: u.ProfileImageUrl,
			MonthPoints:     u.PointsForMonth(month),
			TotalPoints:     u.TotalPoints,
		})
	}
	return board, nil
}

// WatchLeaderboard streams a snapshot now and a fresh one after every
// change to user points. Only the latest snapshot is buffered. With an
// empty month the stream follows the current month. The channel is closed
// when ctx is done.
func (s *Service) WatchLeaderboard(ctx context.Context, month string) (<-chan models.Leaderboard, error) {
	if _, err := s.resolveMonth(month); err != nil {
		return nil, err
	}

	changes := s.store.Watch(ctx, store.CollectionUsers)
	out := make(chan models.Leaderboard, 1)

	go func() {
		defer close(out)

		publish := func() {
			resolved, _ := s.resolveMonth(month)
			board, err := s.buildLeaderboard(ctx, resolved)
			if err != nil {
				if ctx.Err() == nil {
					zap.L().Warn("Leaderboard refresh failed", zap.Error(err))
				}
				return
			}
			select {
			case <-out:
			default:
			}
			out <- *board
		}

		publish()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				publish()
			}
		}
	}()

	return out, nil
}
