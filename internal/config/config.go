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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"mojgrad-go/internal/models"
)

func Load() (*models.Config, error) {
	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:           getEnvString("DATABASE_PATH", "mojgrad.db"),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 5),
			TxMaxAttempts:  getEnvInt("DB_TX_MAX_ATTEMPTS", 5),
			CreateDemoData: getEnvBool("CREATE_DEMO_DATA", false),
		},
		Server: models.ServerConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
		Auth: models.AuthConfig{
			JwtSecret:  os.Getenv("JWT_SECRET"),
			BcryptCost: getEnvInt("BCRYPT_COST", 12),
		},
		Storage: models.StorageConfig{
			Backend:   getEnvString("STORAGE_BACKEND", "local"),
			LocalDir:  getEnvString("STORAGE_LOCAL_DIR", "uploads"),
			PublicUrl: getEnvString("STORAGE_PUBLIC_URL", "/files"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    getEnvString("S3_REGION", "us-east-1"),
			Bucket:    os.Getenv("S3_BUCKET"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		Formance: models.FormanceConfig{
			StackURL:     os.Getenv("FORMANCE_STACK_URL"),
			ClientID:     os.Getenv("FORMANCE_CLIENT_ID"),
			ClientSecret: os.Getenv("FORMANCE_CLIENT_SECRET"),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "mojgrad-points"),
		},
		CategoriesFile: getEnvString("CATEGORIES_FILE", "categories.yaml"),
	}

	var err error
	if cfg.Database.ConnMaxLifetime, err = getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Database.ConnMaxIdleTime, err = getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Database.PingTimeout, err = getEnvDuration("DB_PING_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Database.TxRetryDelay, err = getEnvDuration("DB_TX_RETRY_DELAY", 25*time.Millisecond); err != nil {
		return nil, err
	}

	if cfg.Proximity.PollingInterval, err = getEnvDuration("PROXIMITY_POLLING_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Proximity.Cooldown, err = getEnvDuration("PROXIMITY_COOLDOWN", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Proximity.CleanupInterval, err = getEnvDuration("PROXIMITY_CLEANUP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Proximity.RadiusMeters, err = getEnvFloat("PROXIMITY_RADIUS_METERS", 500); err != nil {
		return nil, err
	}

	if cfg.Location.MinPersistInterval, err = getEnvDuration("LOCATION_PERSIST_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.Server.ReadTimeout, err = getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.ShutdownTimeout, err = getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.Auth.TokenTTL, err = getEnvDuration("JWT_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %q (%w)", key, value, err)
		}
		return f, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
