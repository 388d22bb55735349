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
	"errors"
	"flag"
	"fmt"
	"strings"

	"mojgrad-go/internal/auth"
	"mojgrad-go/internal/common"
	"mojgrad-go/internal/config"
	"mojgrad-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	nameFlag := flag.String("name", "", "User's full name (required)")
	emailFlag := flag.String("email", "", "User's email address (required)")
	phoneFlag := flag.String("phone", "", "User's phone number")
	passwordFlag := flag.String("password", "", "Login password (required, at least 6 characters)")
	adminFlag := flag.Bool("admin", false, "Create an administrator")
	flag.Parse()

	if *nameFlag == "" || *emailFlag == "" || *passwordFlag == "" {
		zap.L().Fatal("Flags are required: --name, --email and --password")
	}

	reg := auth.Registration{
		Email:    *emailFlag,
		Password: *passwordFlag,
		Name:     *nameFlag,
		Phone:    *phoneFlag,
	}
	reg.Normalize()
	if err := reg.Validate(); err != nil {
		zap.L().Fatal("Invalid user details", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	hash, err := auth.NewPasswordService(cfg.Auth.BcryptCost).Hash(reg.Password)
	if err != nil {
		zap.L().Fatal("Failed to hash password", zap.Error(err))
	}

	userId := uuid.New().String()
	zap.L().Info("Creating user in database",
		zap.String("id", userId),
		zap.String("name", reg.Name),
		zap.String("email", reg.Email),
		zap.Bool("admin", *adminFlag))

	user, err := dbService.CreateUser(ctx, store.CreateUserParams{
		Id:           userId,
		Email:        strings.ToLower(reg.Email),
		Name:         reg.Name,
		Phone:        reg.Phone,
		PasswordHash: hash,
		Admin:        *adminFlag,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			zap.L().Fatal("User already exists with this email", zap.String("email", reg.Email))
		}
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}

	role := "citizen"
	if user.Admin {
		role = "admin"
	}

	fmt.Println()
	common.PrintHeader("USER CREATED", common.DefaultWidth)
	fmt.Printf("ID:    %s\n", user.Id)
	fmt.Printf("Name:  %s\n", user.Name)
	fmt.Printf("Email: %s\n", user.Email)
	fmt.Printf("Role:  %s\n", role)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	zap.L().Info("User created successfully", zap.String("id", user.Id))
}
