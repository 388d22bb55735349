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

package proximity

import (
	"context"
	"sync"
	"time"

	"mojgrad-go/internal/models"
	"mojgrad-go/internal/notify"

	"go.uber.org/zap"
)

const (
	DefaultPollingInterval = 30 * time.Second
	DefaultCooldown        = 5 * time.Minute
	DefaultCleanupInterval = time.Minute
	DefaultRadiusMeters    = 500.0
)

// ProblemLister returns problems with the given status
type ProblemLister interface {
	ListProblemsByStatus(ctx context.Context, status models.ProblemStatus) ([]models.Problem, error)
}

// LocationSource returns the last known location of a user
type LocationSource interface {
	Current(userId string) (models.GeoPoint, bool)
}

// CheckerConfig contains configuration for Checker
type CheckerConfig struct {
	Problems        ProblemLister
	Locations       LocationSource
	Notifier        notify.Notifier
	UserId          string
	PollingInterval time.Duration
	Cooldown        time.Duration
	CleanupInterval time.Duration
	RadiusMeters    float64
	Now             func() time.Time
}

// Checker periodically compares a user's location against open problems
// and notifies about the ones in range.
type Checker struct {
	problems  ProblemLister
	locations LocationSource
	notifier  notify.Notifier
	userId    string

	// problem id -> cooldown expiry
	cooldowns       map[string]time.Time
	mutex           sync.Mutex
	pollingInterval time.Duration
	cooldown        time.Duration
	cleanupInterval time.Duration
	radiusMeters    float64
	now             func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewChecker creates a checker for a single user
func NewChecker(cfg CheckerConfig) *Checker {
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = DefaultPollingInterval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = DefaultRadiusMeters
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Checker{
		problems:        cfg.Problems,
		locations:       cfg.Locations,
		notifier:        cfg.Notifier,
		userId:          cfg.UserId,
		cooldowns:       make(map[string]time.Time),
		pollingInterval: cfg.PollingInterval,
		cooldown:        cfg.Cooldown,
		cleanupInterval: cfg.CleanupInterval,
		radiusMeters:    cfg.RadiusMeters,
		now:             cfg.Now,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

func (c *Checker) isCoolingDown(problemId string, now time.Time) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	expiry, exists := c.cooldowns[problemId]
	if !exists {
		return false
	}
	if !now.Before(expiry) {
		delete(c.cooldowns, problemId)
		return false
	}
	return true
}

func (c *Checker) markNotified(problemId string, now time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cooldowns[problemId] = now.Add(c.cooldown)
}

// cleanupLoop periodically drops expired cooldown entries
func (c *Checker) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupCooldowns()
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanupCooldowns removes expired entries from the cooldown map
func (c *Checker) cleanupCooldowns() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	cleaned := 0

	for problemId, expiry := range c.cooldowns {
		if !now.Before(expiry) {
			delete(c.cooldowns, problemId)
			cleaned++
		}
	}

	if cleaned > 0 {
		zap.L().Debug("Cleaned up expired proximity cooldowns",
			zap.String("user_id", c.userId),
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(c.cooldowns)))
	}
}

func (c *Checker) resetCooldowns() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cooldowns = make(map[string]time.Time)
}

// CooldownCount returns the number of problems currently cooling down
func (c *Checker) CooldownCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.cooldowns)
}
