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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var lat, lng sql.NullFloat64
	var lastUpdate sql.NullTime

	err := row.Scan(&user.Id, &user.Email, &user.Name, &user.Phone, &user.ProfileImageUrl, &user.PasswordHash,
		&user.Admin, &user.TotalPoints, &lat, &lng, &lastUpdate, &user.Version, &user.CreatedAt)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		user.LastLocation = &models.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
	}
	if lastUpdate.Valid {
		t := lastUpdate.Time
		user.LastLocationUpdate = &t
	}
	return &user, nil
}

func (s *Service) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	zap.L().Info("Creating user",
		zap.String("id", params.Id),
		zap.String("email", params.Email),
		zap.Bool("admin", params.Admin))

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, queryInsertUser, params.Id, params.Email, params.Name, params.Phone,
		params.ProfileImageUrl, params.PasswordHash, params.Admin, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrDuplicateEmail, params.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.broker.Publish(store.Change{Collection: store.CollectionUsers, DocumentId: params.Id, At: now})

	return s.GetUserById(ctx, params.Id)
}

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying users")

	rows, err := s.db.QueryContext(ctx, queryGetUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	zap.L().Debug("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserById, userId)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserByEmail, email)
}

func (s *Service) getUser(ctx context.Context, query, key string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.MonthlyPoints, err = s.getMonthlyPoints(ctx, user.Id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) getMonthlyPoints(ctx context.Context, userId string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUserMonthlyPoints, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly points: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	monthly := make(map[string]int64)
	for rows.Next() {
		var month string
		var points int64
		if err := rows.Scan(&month, &points); err != nil {
			return nil, fmt.Errorf("failed to scan monthly points: %w", err)
		}
		monthly[month] = points
	}
	return monthly, rows.Err()
}

// UpdateUserLocation stores the last known position. Location writes do not
// bump the document version: they never conflict with point updates.
func (s *Service) UpdateUserLocation(ctx context.Context, userId string, location models.GeoPoint, at time.Time) error {
	result, err := s.db.ExecContext(ctx, queryUpdateUserLocation, location.Lat, location.Lng, at.UTC(), userId)
	if err != nil {
		return fmt.Errorf("failed to update user location: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
	}

	zap.L().Debug("User location persisted",
		zap.String("user_id", userId),
		zap.Float64("lat", location.Lat),
		zap.Float64("lng", location.Lng))
	return nil
}

// GetLeaderboardUsers returns non-admin users ranked by points in month.
// MonthlyPoints on each result only holds the requested month.
func (s *Service) GetLeaderboardUsers(ctx context.Context, month string, limit int) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, queryGetLeaderboard, month, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var users []models.User
	for rows.Next() {
		var user models.User
		var monthPoints int64
		if err := rows.Scan(&user.Id, &user.Name, &user.ProfileImageUrl, &user.TotalPoints, &monthPoints); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		user.MonthlyPoints = map[string]int64{month: monthPoints}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard rows: %w", err)
	}
	return users, nil
}
