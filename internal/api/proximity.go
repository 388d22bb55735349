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

package api

import (
	"mojgrad-go/internal/notify"
	"mojgrad-go/internal/proximity"
)

// NewProximityChecker returns a checker for userId that reads the shared
// location tracker and open problems from the store. The caller owns its
// lifecycle.
func (s *Service) NewProximityChecker(userId string, notifier notify.Notifier) *proximity.Checker {
	return proximity.NewChecker(proximity.CheckerConfig{
		Problems:        s.store,
		Locations:       s.tracker,
		Notifier:        notifier,
		UserId:          userId,
		PollingInterval: s.proximity.PollingInterval,
		Cooldown:        s.proximity.Cooldown,
		CleanupInterval: s.proximity.CleanupInterval,
		RadiusMeters:    s.proximity.RadiusMeters,
		Now:             s.now,
	})
}
