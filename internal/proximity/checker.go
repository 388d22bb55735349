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
	"fmt"
	"time"

	"mojgrad-go/internal/geo"
	"mojgrad-go/internal/models"
	"mojgrad-go/internal/notify"

	"go.uber.org/zap"
)

const (
	notificationTitle = "Problem u blizini!"
	excerptRunes      = 120
	deepLinkPrefix    = "mojgrad://problems/"
)

// Start begins checking for nearby problems. The first check runs
// immediately.
func (c *Checker) Start(ctx context.Context) error {
	if c.problems == nil || c.locations == nil || c.notifier == nil {
		return fmt.Errorf("proximity checker for %q is missing a dependency", c.userId)
	}

	started := false
	c.startOnce.Do(func() {
		started = true
		go c.pollLoop(ctx)
		go c.cleanupLoop(ctx)
	})
	if !started {
		return fmt.Errorf("proximity checker for %q already started", c.userId)
	}

	zap.L().Info("Proximity checker started",
		zap.String("user_id", c.userId),
		zap.Duration("polling_interval", c.pollingInterval),
		zap.Duration("cooldown", c.cooldown),
		zap.Float64("radius_meters", c.radiusMeters))

	return nil
}

// Stop ends the check loops and waits for the running check to finish.
// Cooldown state is discarded.
func (c *Checker) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})

	// claim startOnce so a later Start is a no-op; if it was never started
	// there is no loop to wait for
	neverStarted := false
	c.startOnce.Do(func() {
		neverStarted = true
		close(c.doneChan)
	})
	<-c.doneChan

	if !neverStarted {
		zap.L().Info("Proximity checker stopped", zap.String("user_id", c.userId))
	}
}

// pollLoop runs the main checking loop
func (c *Checker) pollLoop(ctx context.Context) {
	defer close(c.doneChan)
	defer c.resetCooldowns()

	ticker := time.NewTicker(c.pollingInterval)
	defer ticker.Stop()

	c.check(ctx)

	for {
		select {
		case <-ticker.C:
			c.check(ctx)
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Checker) check(ctx context.Context) {
	if _, err := c.CheckOnce(ctx); err != nil {
		zap.L().Error("Proximity check failed",
			zap.String("user_id", c.userId),
			zap.Error(err))
	}
}

// CheckOnce runs a single check and returns how many notifications were
// delivered. Delivery failures are logged and leave the problem eligible
// for the next check.
func (c *Checker) CheckOnce(ctx context.Context) (int, error) {
	location, ok := c.locations.Current(c.userId)
	if !ok {
		zap.L().Debug("No location yet, skipping proximity check", zap.String("user_id", c.userId))
		return 0, nil
	}

	problems, err := c.problems.ListProblemsByStatus(ctx, models.StatusOpen)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch open problems: %w", err)
	}

	now := c.now()
	notified := 0

	for _, problem := range problems {
		if problem.UserId == c.userId {
			continue
		}

		distance := geo.DistanceMeters(location, problem.Location)
		if distance > c.radiusMeters {
			continue
		}
		if c.isCoolingDown(problem.Id, now) {
			continue
		}

		n := buildNotification(problem, distance, now)
		if err := c.notifier.Notify(ctx, c.userId, n); err != nil {
			zap.L().Warn("Failed to deliver proximity notification",
				zap.String("user_id", c.userId),
				zap.String("problem_id", problem.Id),
				zap.Error(err))
			continue
		}

		c.markNotified(problem.Id, now)
		notified++

		zap.L().Info("Proximity notification sent",
			zap.String("user_id", c.userId),
			zap.String("problem_id", problem.Id),
			zap.String("distance", n.DistanceText))
	}

	return notified, nil
}

func buildNotification(problem models.Problem, distance float64, now time.Time) models.ProximityNotification {
	distanceText := geo.FormatDistance(distance)
	return models.ProximityNotification{
		ProblemId:      problem.Id,
		ChannelId:      notify.ProximityChannelId,
		Title:          notificationTitle,
		Body:           fmt.Sprintf("%s na %s od vas", problem.Category, distanceText),
		BigText:        fmt.Sprintf("%s: %s\n\nUdaljenost: %s", problem.Category, problem.Description, distanceText),
		Category:       problem.Category,
		Excerpt:        excerpt(problem.Description, excerptRunes),
		DistanceMeters: distance,
		DistanceText:   distanceText,
		DeepLink:       deepLinkPrefix + problem.Id,
		Data: map[string]string{
			"problemId":         problem.Id,
			"openProblemDetail": "true",
		},
		Priority:  models.PriorityHigh,
		CreatedAt: now,
	}
}

func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
