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

package models

import (
	"time"
)

// PointAdjustment is a single committed change to a user's points
type PointAdjustment struct {
	Id        string    `json:"id,omitempty"`
	UserId    string    `json:"userId"`
	Type      string    `json:"type"`
	Delta     int64     `json:"delta"`
	Month     string    `json:"month"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

// VoteResult represents the committed outcome of a vote add or removal
type VoteResult struct {
	Vote        Vote              `json:"vote"`
	Problem     Problem           `json:"problem"`
	Added       bool              `json:"added"`
	Adjustments []PointAdjustment `json:"adjustments"`
	CommittedAt time.Time         `json:"committedAt"`
}

// LeaderboardEntry is one ranked row of the monthly leaderboard
type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	UserId          string `json:"userId"`
	Name            string `json:"name"`
	ProfileImageUrl string `json:"profileImageUrl,omitempty"`
	MonthPoints     int64  `json:"monthPoints"`
	TotalPoints     int64  `json:"totalPoints"`
}

// Leaderboard is a ranked snapshot for one month
type Leaderboard struct {
	Month   string             `json:"month"`
	Entries []LeaderboardEntry `json:"entries"`
}

// UploadResult describes a stored object
type UploadResult struct {
	Key         string `json:"key"`
	Url         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}
