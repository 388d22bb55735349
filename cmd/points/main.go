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

package main

import (
	"context"
	"flag"
	"fmt"

	"mojgrad-go/internal/common"
	"mojgrad-go/internal/config"
	"mojgrad-go/internal/database"
	"mojgrad-go/internal/models"

	"go.uber.org/zap"
)

type pointStats struct {
	totalUsers       int
	totalEntries     int
	usersWithHistory int
}

func formatReference(ref string) string {
	if ref == "" {
		return "none"
	}
	return common.Truncate(ref, 15)
}

func printEntry(tx models.PointTransaction, isLast bool) {
	symbol := common.BoxPrefix(isLast)

	fmt.Printf("%s %-14s: %+5d (%d -> %d, month: %s, ref: %s, at: %s)\n",
		symbol,
		tx.TransactionType,
		tx.Amount,
		tx.BalanceBefore,
		tx.BalanceAfter,
		tx.Month,
		formatReference(tx.Reference),
		tx.CreatedAt.Format("2006-01-02 15:04:05"))
}

func printUserHeader(user common.UserInfo, entryCount int) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("│  Total points: %d\n", user.TotalPoints)
	fmt.Printf("│  Entries: %d\n", entryCount)
	common.PrintBoxSeparator(78)
}

func processUser(ctx context.Context, user common.UserInfo, dbService *database.Service, limit int) (int, error) {
	history, err := dbService.GetPointHistory(ctx, user.Id, limit, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to get point history: %w", err)
	}

	if len(history) == 0 {
		return 0, nil
	}

	printUserHeader(user, len(history))
	for i, tx := range history {
		printEntry(tx, i == len(history)-1)
	}

	return len(history), nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	limitFlag := flag.Int("limit", 20, "Most recent entries per user")
	flag.Parse()

	logger.Info("Starting point history query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("USER POINT HISTORY", common.DefaultWidth)

	stats := pointStats{}
	for _, user := range users {
		stats.totalUsers++

		count, err := processUser(ctx, user, dbService, *limitFlag)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
			continue
		}
		if count > 0 {
			stats.usersWithHistory++
			stats.totalEntries += count
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d users with points (%d entries across %d users queried)",
		stats.usersWithHistory, stats.totalEntries, stats.totalUsers)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Point history query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_history", stats.usersWithHistory),
		zap.Int("total_entries", stats.totalEntries))
}
