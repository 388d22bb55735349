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

	"mojgrad-go/internal/models"

	"go.uber.org/zap"
)

// GetPointHistory returns the paginated points audit trail of a user
func (s *Service) GetPointHistory(ctx context.Context, userId string, limit, offset int) ([]models.PointTransaction, error) {
	if err := requireCaller(userId); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	history, err := s.store.GetPointHistory(ctx, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get point history",
			zap.String("user_id", userId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve point history")
	}

	return history, nil
}

// ReconcileReport compares the cached total with the audit trail and, when
// configured, the points journal
type ReconcileReport struct {
	UserId        string `json:"userId"`
	Name          string `json:"name"`
	TotalPoints   int64  `json:"totalPoints"`
	AuditOk       bool   `json:"auditOk"`
	AuditError    string `json:"auditError,omitempty"`
	JournalPoints *int64 `json:"journalPoints,omitempty"`
	JournalOk     bool   `json:"journalOk"`
}

// Consistent reports whether every available check passed
func (r ReconcileReport) Consistent() bool {
	return r.AuditOk && (r.JournalPoints == nil || r.JournalOk)
}

// Reconcile checks one user's points against the audit trail and journal
func (s *Service) Reconcile(ctx context.Context, userId string) (*ReconcileReport, error) {
	user, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		return nil, mapStoreError(err)
	}

	report := &ReconcileReport{
		UserId:      user.Id,
		Name:        user.Name,
		TotalPoints: user.TotalPoints,
		AuditOk:     true,
	}

	if err := s.store.ReconcileUserPoints(ctx, userId); err != nil {
		report.AuditOk = false
		report.AuditError = err.Error()
	}

	if s.journal != nil {
		points, err := s.journal.GetUserPoints(ctx, userId)
		if err != nil {
			zap.L().Warn("Failed to read journal points",
				zap.String("user_id", userId),
				zap.Error(err))
		} else {
			report.JournalPoints = &points
			report.JournalOk = points == user.TotalPoints
			if !report.JournalOk {
				zap.L().Warn("Journal points differ from cached total",
					zap.String("user_id", userId),
					zap.Int64("cached_points", user.TotalPoints),
					zap.Int64("journal_points", points))
			}
		}
	}

	return report, nil
}

// ReconcileAll runs Reconcile for every user
func (s *Service) ReconcileAll(ctx context.Context) ([]ReconcileReport, error) {
	users, err := s.store.GetUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	reports := make([]ReconcileReport, 0, len(users))
	for _, u := range users {
		report, err := s.Reconcile(ctx, u.Id)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, nil
}
