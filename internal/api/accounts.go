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
	"fmt"
	"strings"

	"mojgrad-go/internal/apperror"
	"mojgrad-go/internal/auth"
	"mojgrad-go/internal/geo"
	"mojgrad-go/internal/models"
	"mojgrad-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthResult is returned by Register and Login
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a citizen account and signs a token for it.
func (s *Service) Register(ctx context.Context, reg auth.Registration) (*AuthResult, error) {
	reg.Normalize()
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(reg.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "Lozinka je predugačka")
	}

	user, err := s.store.CreateUser(ctx, store.CreateUserParams{
		Id:              uuid.New().String(),
		Email:           strings.ToLower(reg.Email),
		Name:            reg.Name,
		Phone:           reg.Phone,
		ProfileImageUrl: reg.ProfileImageUrl,
		PasswordHash:    hash,
	})
	if err != nil {
		if !errors.Is(err, store.ErrDuplicateEmail) {
			zap.L().Error("Failed to register user", zap.String("email", reg.Email), zap.Error(err))
		}
		return nil, mapStoreError(err)
	}

	return s.issueToken(user)
}

// Login verifies credentials and restores the user's last known location.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "Email i lozinka su obavezni")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, apperror.Unauthorized(apperror.MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized(apperror.MsgInvalidCredentials)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrInvalidPassword) {
			zap.L().Error("Password verification failed", zap.String("user_id", user.Id), zap.Error(err))
		}
		return nil, apperror.Unauthorized(apperror.MsgInvalidCredentials)
	}

	s.restoreLocation(user)
	return s.issueToken(user)
}

func (s *Service) issueToken(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Profile returns the user record with total and monthly points
func (s *Service) Profile(ctx context.Context, userId string) (*models.User, error) {
	if err := requireCaller(userId); err != nil {
		return nil, err
	}
	user, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return user, nil
}

// IsAdmin reports whether userId has the admin flag
func (s *Service) IsAdmin(ctx context.Context, userId string) (bool, error) {
	user, err := s.Profile(ctx, userId)
	if err != nil {
		return false, err
	}
	return user.Admin, nil
}

// LocationUpdate is the outcome of UpdateLocation
type LocationUpdate struct {
	Location  models.GeoPoint `json:"location"`
	Persisted bool            `json:"persisted"`
}

// UpdateLocation records a new position. Memory is always updated; the user
// record only when the persistence interval passed.
func (s *Service) UpdateLocation(ctx context.Context, userId string, point models.GeoPoint) (*LocationUpdate, error) {
	if err := requireCaller(userId); err != nil {
		return nil, err
	}
	if !geo.Valid(point) {
		return nil, apperror.ValidationFailed("location", "Neispravna lokacija")
	}

	persisted := s.tracker.Update(ctx, userId, point)
	return &LocationUpdate{Location: point, Persisted: persisted}, nil
}

// RestoreLocation seeds the tracker from the persisted user record
func (s *Service) RestoreLocation(ctx context.Context, userId string) {
	if _, ok := s.tracker.Current(userId); ok {
		return
	}
	user, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		zap.L().Debug("No user record to restore location from",
			zap.String("user_id", userId),
			zap.Error(err))
		return
	}
	s.restoreLocation(user)
}

// WatchLocation streams the caller's tracked position until ctx ends
func (s *Service) WatchLocation(ctx context.Context, userId string) <-chan models.GeoPoint {
	return s.tracker.Subscribe(ctx, userId)
}

func (s *Service) restoreLocation(user *models.User) {
	if user.LastLocation == nil {
		return
	}
	at := s.now()
	if user.LastLocationUpdate != nil {
		at = *user.LastLocationUpdate
	}
	s.tracker.Restore(user.Id, *user.LastLocation, at)
}

// UserVotes returns the ids of the problems userId voted for
func (s *Service) UserVotes(ctx context.Context, userId string) ([]string, error) {
	if err := requireCaller(userId); err != nil {
		return nil, err
	}
	votes, err := s.store.GetUserVotes(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get user votes", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve votes")
	}

	ids := make([]string, len(votes))
	for i, v := range votes {
		ids[i] = v.ProblemId
	}
	return ids, nil
}
