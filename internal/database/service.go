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
	"fmt"
	"strings"
	"time"

	"mojgrad-go/internal/models"
	"mojgrad-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.Store.
var _ store.Store = (*Service)(nil)

// driverName is sqlite3 with a Unicode aware fold() function. SQLite's own
// LOWER() only folds ASCII, which misses č, ć, š, ž and đ.
const driverName = "sqlite3_fold"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", foldText, true)
		},
	})
}

func foldText(s string) string {
	return strings.ToLower(s)
}

const (
	defaultTxMaxAttempts = 5
	defaultTxRetryDelay  = 25 * time.Millisecond
)

type Service struct {
	db            *sql.DB
	broker        *store.Broker
	txMaxAttempts int
	txRetryDelay  time.Duration
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open(driverName, cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{
		db:            db,
		broker:        store.NewBroker(),
		txMaxAttempts: cfg.TxMaxAttempts,
		txRetryDelay:  cfg.TxRetryDelay,
	}
	if service.txMaxAttempts <= 0 {
		service.txMaxAttempts = defaultTxMaxAttempts
	}
	if service.txRetryDelay <= 0 {
		service.txRetryDelay = defaultTxRetryDelay
	}

	if err := service.initSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	if err := service.initSubledgerSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize points subledger schema: %w", err)
	}

	if cfg.CreateDemoData {
		service.createDemoUsers(ctx)
	} else {
		zap.L().Info("Skipping demo user creation (CREATE_DEMO_DATA=false)")
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Watch subscribes to committed changes.
func (s *Service) Watch(ctx context.Context, collections ...store.Collection) <-chan store.Change {
	return s.broker.Watch(ctx, collections...)
}

func (s *Service) initSchema(ctx context.Context) error {
	schema := `
	-- Create users table
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		profile_image_url TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		admin BOOLEAN NOT NULL DEFAULT 0,
		total_points INTEGER NOT NULL DEFAULT 0 CHECK (total_points >= 0),
		last_lat REAL,
		last_lng REAL,
		last_location_update TIMESTAMP,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL
	);

	-- Leaderboard scans non-admin users
	CREATE INDEX IF NOT EXISTS idx_users_admin ON users(admin);

	-- Create problems table
	CREATE TABLE IF NOT EXISTS problems (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		geohash TEXT NOT NULL,
		user_id TEXT NOT NULL,
		author_name TEXT NOT NULL,
		votes INTEGER NOT NULL DEFAULT 0 CHECK (votes >= 0),
		status TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_problems_status ON problems(status);
	CREATE INDEX IF NOT EXISTS idx_problems_geohash ON problems(geohash);
	CREATE INDEX IF NOT EXISTS idx_problems_user_id ON problems(user_id);
	CREATE INDEX IF NOT EXISTS idx_problems_created_at ON problems(created_at);

	-- Votes are keyed by userId_problemId
	CREATE TABLE IF NOT EXISTS votes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		problem_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		voted_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_votes_user_id ON votes(user_id);
	CREATE INDEX IF NOT EXISTS idx_votes_problem_id ON votes(problem_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// createDemoUsers inserts three citizens without passwords for local testing
func (s *Service) createDemoUsers(ctx context.Context) {
	users := []struct {
		name  string
		email string
	}{
		{"Ana Petrović", "ana.petrovic@example.com"},
		{"Marko Jovanović", "marko.jovanovic@example.com"},
		{"Jelena Nikolić", "jelena.nikolic@example.com"},
	}

	for _, user := range users {
		if _, err := s.GetUserByEmail(ctx, user.email); err == nil {
			continue
		}
		id := uuid.New().String()
		_, err := s.db.ExecContext(ctx, queryInsertUser, id, user.email, user.name, "", "", "", false, time.Now().UTC())
		if err != nil {
			zap.L().Error("Failed to insert demo user", zap.String("name", user.name), zap.Error(err))
		} else {
			zap.L().Info("Demo user created", zap.String("id", id), zap.String("name", user.name))
		}
	}
}
