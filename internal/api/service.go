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
	"time"

	"mojgrad-go/internal/apperror"
	"mojgrad-go/internal/auth"
	"mojgrad-go/internal/config"
	"mojgrad-go/internal/location"
	"mojgrad-go/internal/models"
	"mojgrad-go/internal/storage"
	"mojgrad-go/internal/store"

	"go.uber.org/zap"
)

const (
	// ReportRewardPoints is credited to the author of a new report
	ReportRewardPoints = 10
	LeaderboardSize    = 50
	unknownAuthor      = "Nepoznat korisnik"
)

// ServiceConfig contains the dependencies of Service. Journal and Uploader
// are optional.
type ServiceConfig struct {
	Store      store.Store
	Tracker    *location.Tracker
	Journal    store.PointsJournal
	Uploader   *storage.Uploader
	Tokens     *auth.TokenService
	Passwords  *auth.PasswordService
	Categories []config.Category
	Proximity  models.ProximityConfig
	Now        func() time.Time
}

// Service is the application layer used by the HTTP server and the CLIs
type Service struct {
	store      store.Store
	tracker    *location.Tracker
	journal    store.PointsJournal
	uploader   *storage.Uploader
	tokens     *auth.TokenService
	passwords  *auth.PasswordService
	categories []config.Category
	proximity  models.ProximityConfig
	now        func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = config.DefaultCategories
	}
	if cfg.Tracker == nil {
		cfg.Tracker = location.NewTracker(location.TrackerConfig{Persister: cfg.Store, Now: cfg.Now})
	}
	return &Service{
		store:      cfg.Store,
		tracker:    cfg.Tracker,
		journal:    cfg.Journal,
		uploader:   cfg.Uploader,
		tokens:     cfg.Tokens,
		passwords:  cfg.Passwords,
		categories: cfg.Categories,
		proximity:  cfg.Proximity,
		now:        cfg.Now,
	}
}

func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Categories returns the categories a problem can be reported under
func (s *Service) Categories() []config.Category {
	return s.categories
}

func (s *Service) validCategory(name string) (string, bool) {
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			return c.Name, true
		}
	}
	return "", false
}

// mirrorAdjustments copies committed point changes to the points journal.
// Failures are logged; SQLite stays the source of truth.
func (s *Service) mirrorAdjustments(ctx context.Context, adjustments []models.PointAdjustment) {
	if s.journal == nil || len(adjustments) == 0 {
		return
	}
	if err := s.journal.RecordAdjustments(ctx, adjustments); err != nil {
		zap.L().Warn("Failed to mirror point adjustments",
			zap.Int("count", len(adjustments)),
			zap.Error(err))
	}
}

// mapStoreError turns store sentinels into user-facing errors
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrProblemNotFound):
		return apperror.NotFoundMessage(apperror.MsgProblemGone)
	case errors.Is(err, store.ErrVoteNotFound):
		return apperror.NotFoundMessage(apperror.MsgVoteGone)
	case errors.Is(err, store.ErrUserNotFound):
		return apperror.NotFoundMessage("Korisnik ne postoji")
	case errors.Is(err, store.ErrSelfVote):
		return apperror.Forbidden(apperror.MsgSelfVote)
	case errors.Is(err, store.ErrAlreadyVoted):
		return apperror.Conflict(apperror.MsgAlreadyVoted)
	case errors.Is(err, store.ErrDuplicateEmail):
		return apperror.Conflict(apperror.MsgEmailTaken)
	case errors.Is(err, store.ErrConcurrentModification):
		return apperror.Unavailable(apperror.MsgTryAgain)
	}
	return err
}

func requireCaller(userId string) error {
	if userId == "" {
		return apperror.Unauthorized(apperror.MsgLoginRequired)
	}
	return nil
}
