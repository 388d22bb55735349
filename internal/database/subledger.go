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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) initSubledgerSchema(ctx context.Context) error {
	schema := `
	-- Monthly points (current state, keyed by YYYY-MM)
	CREATE TABLE IF NOT EXISTS monthly_points (
		user_id TEXT NOT NULL,
		month TEXT NOT NULL,
		points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
		PRIMARY KEY (user_id, month)
	);

	CREATE INDEX IF NOT EXISTS idx_monthly_points_month ON monthly_points(month, points);

	-- Point transactions (audit trail of applied total-point deltas)
	CREATE TABLE IF NOT EXISTS point_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		amount INTEGER NOT NULL,
		balance_before INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		month TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_point_transactions_user_id ON point_transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_point_transactions_reference ON point_transactions(reference);
	CREATE INDEX IF NOT EXISTS idx_point_transactions_created_at ON point_transactions(created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// pointsState is the snapshot of a user's points read inside a transaction
type pointsState struct {
	userId      string
	exists      bool
	total       int64
	month       string
	monthPoints int64
	version     int64
}

// readPointsState loads a user's total and monthly points. A missing user
// is not an error; the returned state has exists == false.
func readPointsState(ctx context.Context, t *docTx, userId, month string) (*pointsState, error) {
	state := &pointsState{userId: userId, month: month}

	row, err := t.queryRow(ctx, queryGetUserPointsState, userId)
	if err != nil {
		return nil, err
	}
	err = row.Scan(&state.total, &state.version)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read points for user %s: %w", userId, err)
	}
	state.exists = true

	row, err = t.queryRow(ctx, queryGetMonthPoints, userId, month)
	if err != nil {
		return nil, err
	}
	err = row.Scan(&state.monthPoints)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read monthly points for user %s: %w", userId, err)
	}

	return state, nil
}

// applyPoints writes delta to the user's total and monthly points. Each
// counter is clamped at zero independently; the audit row records the
// applied change to the total.
func applyPoints(ctx context.Context, t *docTx, state *pointsState, delta int64, transactionType, reference string, at time.Time) (*models.PointAdjustment, error) {
	if !state.exists {
		zap.L().Debug("Skipping points for missing user",
			zap.String("user_id", state.userId),
			zap.String("type", transactionType))
		return nil, nil
	}

	newTotal := max(state.total+delta, 0)
	newMonth := max(state.monthPoints+delta, 0)
	applied := newTotal - state.total

	if err := t.execVersioned(ctx, queryUpdateUserPoints, newTotal, state.userId, state.version); err != nil {
		return nil, fmt.Errorf("failed to update points for user %s: %w", state.userId, err)
	}
	if _, err := t.exec(ctx, queryUpsertMonthPoints, state.userId, state.month, newMonth); err != nil {
		return nil, fmt.Errorf("failed to update monthly points for user %s: %w", state.userId, err)
	}

	auditId := ""
	if applied != 0 {
		auditId = uuid.New().String()
		_, err := t.exec(ctx, queryInsertPointTransaction,
			auditId, state.userId, transactionType, applied, state.total, newTotal,
			state.month, reference, at)
		if err != nil {
			return nil, fmt.Errorf("failed to insert point transaction: %w", err)
		}
	}

	t.changed(store.CollectionUsers, state.userId)

	return &models.PointAdjustment{
		Id:        auditId,
		UserId:    state.userId,
		Type:      transactionType,
		Delta:     applied,
		Month:     state.month,
		Reference: reference,
		At:        at,
	}, nil
}

// GetPointHistory returns the audit trail of a user's points, newest first
func (s *Service) GetPointHistory(ctx context.Context, userId string, limit, offset int) ([]models.PointTransaction, error) {
	rows, err := s.db.QueryContext(ctx, queryGetPointHistory, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get point history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var history []models.PointTransaction
	for rows.Next() {
		var pt models.PointTransaction
		if err := rows.Scan(&pt.Id, &pt.UserId, &pt.TransactionType, &pt.Amount, &pt.BalanceBefore,
			&pt.BalanceAfter, &pt.Month, &pt.Reference, &pt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan point transaction: %w", err)
		}
		history = append(history, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating point transactions: %w", err)
	}

	return history, nil
}

// ReconcileUserPoints compares the cached total with the audit trail
func (s *Service) ReconcileUserPoints(ctx context.Context, userId string) error {
	zap.L().Info("Reconciling points", zap.String("user_id", userId))

	user, err := s.GetUserById(ctx, userId)
	if err != nil {
		return err
	}

	var calculated int64
	if err := s.db.QueryRowContext(ctx, queryReconcilePoints, userId).Scan(&calculated); err != nil {
		return fmt.Errorf("failed to calculate points from audit trail: %w", err)
	}

	if calculated != user.TotalPoints {
		zap.L().Error("Points mismatch detected",
			zap.String("user_id", userId),
			zap.Int64("cached_points", user.TotalPoints),
			zap.Int64("calculated_points", calculated))
		return fmt.Errorf("points mismatch for user %s: cached=%d, calculated=%d", userId, user.TotalPoints, calculated)
	}

	zap.L().Info("Points reconciled successfully",
		zap.String("user_id", userId),
		zap.Int64("points", calculated))
	return nil
}
