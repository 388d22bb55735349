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
	"os"
	"os/signal"
	"syscall"

	"mojgrad-go/internal/common"
	"mojgrad-go/internal/config"
	"mojgrad-go/internal/server"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if cfg.Auth.JwtSecret == "" {
		zap.L().Fatal("JWT_SECRET is required to run the server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting MojGrad server")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		services.Hub.Run(ctx)
	}()

	srv := server.New(server.Config{
		Http:     cfg.Server,
		Service:  services.Api,
		Hub:      services.Hub,
		Notifier: services.Notifier,
		Tokens:   services.Tokens,
		FilesDir: services.FilesDir,
	})

	zap.L().Info("Proximity checks run per connected client",
		zap.Duration("polling_interval", cfg.Proximity.PollingInterval),
		zap.Duration("cooldown", cfg.Proximity.Cooldown),
		zap.Float64("radius_meters", cfg.Proximity.RadiusMeters))
	zap.L().Info("Press Ctrl+C to stop")

	if err := srv.Run(ctx); err != nil {
		zap.L().Error("Server stopped with error", zap.Error(err))
	}

	stop()
	<-hubDone
	zap.L().Info("Shutdown complete")
}
