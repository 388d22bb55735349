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

const (
	// User queries
	userColumns = `id, email, name, phone, profile_image_url, password_hash, admin, total_points,
		last_lat, last_lng, last_location_update, version, created_at`

	queryInsertUser = `
		INSERT INTO users (id, email, name, phone, profile_image_url, password_hash, admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetUsers = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at`

	queryGetUserById = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ?`

	queryGetUserByEmail = `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER(?)`

	queryUpdateUserLocation = `
		UPDATE users
		SET last_lat = ?, last_lng = ?, last_location_update = ?
		WHERE id = ?`

	queryGetUserMonthlyPoints = `
		SELECT month, points
		FROM monthly_points
		WHERE user_id = ?
		ORDER BY month`

	queryGetLeaderboard = `
		SELECT u.id, u.name, u.profile_image_url, u.total_points, COALESCE(m.points, 0) AS month_points
		FROM users u
		LEFT JOIN monthly_points m ON m.user_id = u.id AND m.month = ?
		WHERE u.admin = 0
		ORDER BY month_points DESC, u.total_points DESC, u.name ASC
		LIMIT ?`

	// Point state queries (transactional)
	queryGetUserPointsState = `
		SELECT total_points, version
		FROM users
		WHERE id = ?`

	queryGetMonthPoints = `
		SELECT points
		FROM monthly_points
		WHERE user_id = ? AND month = ?`

	queryUpdateUserPoints = `
		UPDATE users
		SET total_points = ?, version = version + 1
		WHERE id = ? AND version = ?`

	queryUpsertMonthPoints = `
		INSERT INTO monthly_points (user_id, month, points)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, month) DO UPDATE SET points = excluded.points`

	queryInsertPointTransaction = `
		INSERT INTO point_transactions (
			id, user_id, transaction_type, amount, balance_before, balance_after, month, reference, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetPointHistory = `
		SELECT id, user_id, transaction_type, amount, balance_before, balance_after, month, reference, created_at
		FROM point_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryReconcilePoints = `
		SELECT COALESCE(SUM(amount), 0) AS calculated_points
		FROM point_transactions
		WHERE user_id = ?`

	// Problem queries
	problemColumns = `id, description, category, lat, lng, geohash, user_id, author_name, votes, status,
		image_url, version, created_at`

	queryInsertProblem = `
		INSERT INTO problems (id, description, category, lat, lng, geohash, user_id, author_name, votes, status, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`

	queryGetProblem = `
		SELECT ` + problemColumns + `
		FROM problems
		WHERE id = ?`

	queryListProblemsByStatus = `
		SELECT ` + problemColumns + `
		FROM problems
		WHERE status = ?
		ORDER BY created_at DESC`

	queryGetProblemVotesState = `
		SELECT user_id, votes, version
		FROM problems
		WHERE id = ?`

	queryUpdateProblemVotes = `
		UPDATE problems
		SET votes = ?, version = version + 1
		WHERE id = ? AND version = ?`

	queryGetProblemStatusState = `
		SELECT status, version
		FROM problems
		WHERE id = ?`

	queryUpdateProblemStatus = `
		UPDATE problems
		SET status = ?, version = version + 1
		WHERE id = ? AND version = ?`

	// Vote queries
	queryGetVote = `
		SELECT id, user_id, problem_id, author_id, voted_at
		FROM votes
		WHERE id = ?`

	queryInsertVote = `
		INSERT INTO votes (id, user_id, problem_id, author_id, voted_at)
		VALUES (?, ?, ?, ?, ?)`

	queryDeleteVote = `
		DELETE FROM votes WHERE id = ?`

	queryHasVote = `
		SELECT 1 FROM votes WHERE id = ?`

	queryGetUserVotes = `
		SELECT id, user_id, problem_id, author_id, voted_at
		FROM votes
		WHERE user_id = ?
		ORDER BY voted_at DESC`
)
