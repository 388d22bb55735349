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
	"sort"
	"strings"

	"mojgrad-go/internal/apperror"
	"mojgrad-go/internal/geo"
	"mojgrad-go/internal/models"
	"mojgrad-go/internal/store"

	"go.uber.org/zap"
)

const (
	maxListLimit      = 200
	maxNearbyRadius   = 5000.0
	maxDescriptionLen = 2000
)

// ReportRequest is the input of ReportProblem. Location is optional.
type ReportRequest struct {
	Description string           `json:"description"`
	Category    string           `json:"category"`
	ImageUrl    string           `json:"imageUrl"`
	Location    *models.GeoPoint `json:"location"`
}

// ProblemView is a problem with the caller's vote state
type ProblemView struct {
	models.Problem
	HasVoted bool `json:"hasVoted"`
}

// NearbyProblem is a problem with its distance from the query point
type NearbyProblem struct {
	models.Problem
	DistanceMeters float64 `json:"distanceMeters"`
	DistanceText   string  `json:"distanceText"`
}

// ReportProblem creates an open problem authored by userId and credits the
// author in the same transaction.
func (s *Service) ReportProblem(ctx context.Context, userId string, req ReportRequest) (*models.Problem, error) {
	if err := requireCaller(userId); err != nil {
		return nil, err
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, apperror.ValidationFailed("description", "Opis problema je obavezan")
	}
	if len([]rune(description)) > maxDescriptionLen {
		return nil, apperror.ValidationFailed("description", "Opis je predugačak")
	}
	if strings.TrimSpace(req.Category) == "" {
		return nil, apperror.ValidationFailed("category", "Izaberite kategoriju")
	}
	category, ok := s.validCategory(strings.TrimSpace(req.Category))
	if !ok {
		return nil, apperror.ValidationFailed("category", "Nepoznata kategorija")
	}

	point, err := s.reportLocation(userId, req.Location)
	if err != nil {
		return nil, err
	}

	authorName := unknownAuthor
	user, err := s.store.GetUserById(ctx, userId)
	switch {
	case err == nil:
		if strings.TrimSpace(user.Name) != "" {
			authorName = user.Name
		}
	case errors.Is(err, store.ErrUserNotFound):
		zap.L().Warn("Reporting problem for unknown user", zap.String("user_id", userId))
	default:
		return nil, fmt.Errorf("failed to load author: %w", err)
	}

	problem, adjustments, err := s.store.CreateProblem(ctx, store.CreateProblemParams{
		Description:  description,
		Category:     category,
		Location:     point,
		Geohash:      geo.Hash(point),
		UserId:       userId,
		AuthorName:   authorName,
		ImageUrl:     strings.TrimSpace(req.ImageUrl),
		RewardPoints: ReportRewardPoints,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		zap.L().Error("Failed to create problem", zap.String("user_id", userId), zap.Error(err))
		return nil, mapStoreError(err)
	}

	s.mirrorAdjustments(ctx, adjustments)

	zap.L().Info("Problem reported",
		zap.String("problem_id", problem.Id),
		zap.String("user_id", userId),
		zap.String("category", category),
		zap.String("geohash", problem.Geohash))

	return problem, nil
}

// reportLocation picks the explicit location, then the tracked one, then
// the city centre.
func (s *Service) reportLocation(userId string, explicit *models.GeoPoint) (models.GeoPoint, error) {
	if explicit != nil {
		if !geo.Valid(*explicit) {
			return models.GeoPoint{}, apperror.ValidationFailed("location", "Neispravna lokacija")
		}
		return *explicit, nil
	}
	if current, ok := s.tracker.Current(userId); ok {
		return current, nil
	}
	return geo.DefaultLocation, nil
}

// GetProblem returns a problem with the caller's vote state
func (s *Service) GetProblem(ctx context.Context, userId, problemId string) (*ProblemView, error) {
	problem, err := s.store.GetProblem(ctx, problemId)
	if err != nil {
		return nil, mapStoreError(err)
	}

	view := &ProblemView{Problem: *problem}
	if userId != "" {
		voted, err := s.store.HasVoted(ctx, userId, problemId)
		if err != nil {
			return nil, fmt.Errorf("failed to read vote state: %w", err)
		}
		view.HasVoted = voted
	}
	return view, nil
}

// ListProblems applies filter defaults (open problems, newest first) and
// returns the matching problems.
func (s *Service) ListProblems(ctx context.Context, filter store.ProblemFilter) ([]models.Problem, error) {
	if filter.Status == "" {
		filter.Status = models.StatusOpen
	}
	if !filter.Status.Valid() {
		return nil, apperror.ValidationFailed("status", "Nepoznat status")
	}
	switch filter.Sort {
	case "":
		filter.Sort = store.SortNewest
	case store.SortNewest, store.SortVotes:
	default:
		return nil, apperror.ValidationFailed("sort", "Nepoznat način sortiranja")
	}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if !filter.CreatedAfter.IsZero() && !filter.CreatedBefore.IsZero() && filter.CreatedBefore.Before(filter.CreatedAfter) {
		return nil, apperror.ValidationFailed("createdBefore", "Neispravan vremenski opseg")
	}

	problems, err := s.store.ListProblems(ctx, filter)
	if err != nil {
		zap.L().Error("Failed to list problems", zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve problems")
	}
	return problems, nil
}

// ProblemsNear returns open problems within radius of center, nearest first.
// A non-positive radius uses the proximity radius.
func (s *Service) ProblemsNear(ctx context.Context, center models.GeoPoint, radiusMeters float64) ([]NearbyProblem, error) {
	if !geo.Valid(center) {
		return nil, apperror.ValidationFailed("location", "Neispravna lokacija")
	}
	if radiusMeters <= 0 {
		radiusMeters = s.proximity.RadiusMeters
	}
	if radiusMeters <= 0 {
		radiusMeters = 500
	}
	if radiusMeters > maxNearbyRadius {
		return nil, apperror.ValidationFailed("radius", "Radijus je prevelik")
	}

	candidates, err := s.store.ListProblemsByGeohashPrefix(ctx, models.StatusOpen, geo.NearbyPrefixes(center, radiusMeters))
	if err != nil {
		zap.L().Error("Failed to list nearby problems", zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve problems")
	}

	var nearby []NearbyProblem
	for _, p := range candidates {
		d := geo.DistanceMeters(center, p.Location)
		if d > radiusMeters {
			continue
		}
		nearby = append(nearby, NearbyProblem{Problem: p, DistanceMeters: d, DistanceText: geo.FormatDistance(d)})
	}
	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceMeters < nearby[j].DistanceMeters
	})
	return nearby, nil
}

// ToggleProblemStatus flips open and resolved. Only admins may do this.
func (s *Service) ToggleProblemStatus(ctx context.Context, userId, problemId string) (*models.Problem, error) {
	if err := requireCaller(userId); err != nil {
		return nil, err
	}

	admin, err := s.IsAdmin(ctx, userId)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, apperror.Forbidden(apperror.MsgAdminOnly)
	}

	updated, err := s.store.ToggleProblemStatus(ctx, problemId)
	if err != nil {
		return nil, mapStoreError(err)
	}

	zap.L().Info("Problem status toggled",
		zap.String("problem_id", problemId),
		zap.String("admin_id", userId),
		zap.String("status", string(updated.Status)))

	return updated, nil
}
