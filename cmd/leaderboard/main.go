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

	"mojgrad-go/internal/api"
	"mojgrad-go/internal/common"
	"mojgrad-go/internal/config"
	"mojgrad-go/internal/models"

	"go.uber.org/zap"
)

func printLeaderboard(board *models.Leaderboard) {
	common.PrintHeader(fmt.Sprintf("LEADERBOARD %s", board.Month), common.DefaultWidth)
	if len(board.Entries) == 0 {
		fmt.Println("No ranked users yet")
		return
	}

	fmt.Printf("%-5s %-30s %12s %12s\n", "RANK", "NAME", "MONTH", "TOTAL")
	common.PrintSeparator("-", common.DefaultWidth)
	for _, e := range board.Entries {
		fmt.Printf("%-5d %-30s %12d %12d\n", e.Rank, common.Truncate(e.Name, 30), e.MonthPoints, e.TotalPoints)
	}
}

func printReconcile(reports []api.ReconcileReport) int {
	common.PrintHeader("POINT RECONCILIATION", common.DefaultWidth)

	mismatches := 0
	for i, r := range reports {
		status := "OK"
		if !r.Consistent() {
			status = "MISMATCH"
			mismatches++
		}

		fmt.Printf("%s %-30s total=%d %s\n", common.BoxPrefix(i == len(reports)-1), common.Truncate(r.Name, 30), r.TotalPoints, status)
		detail := common.BoxDetailPrefix(i == len(reports)-1)
		if !r.AuditOk {
			fmt.Printf("%s   audit: %s\n", detail, r.AuditError)
		}
		if r.JournalPoints != nil && !r.JournalOk {
			fmt.Printf("%s   journal: %d\n", detail, *r.JournalPoints)
		}
	}
	return mismatches
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	monthFlag := flag.String("month", "", "Month as YYYY-MM (default: current month)")
	reconcileFlag := flag.Bool("reconcile", false, "Also check cached totals against the audit trail and Formance ledger")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	board, err := services.Api.Leaderboard(ctx, *monthFlag)
	if err != nil {
		logger.Fatal("Failed to build leaderboard", zap.Error(err))
	}
	printLeaderboard(board)

	if !*reconcileFlag {
		common.PrintFooter(fmt.Sprintf("%d ranked users", len(board.Entries)), common.DefaultWidth)
		return
	}

	reports, err := services.Api.ReconcileAll(ctx)
	if err != nil {
		logger.Fatal("Failed to reconcile points", zap.Error(err))
	}
	mismatches := printReconcile(reports)
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d users checked, %d mismatches", len(reports), mismatches), common.DefaultWidth)

	if mismatches > 0 {
		logger.Warn("Point reconciliation found mismatches", zap.Int("mismatches", mismatches))
	}
}
