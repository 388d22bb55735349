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

import "time"

// NotificationPriority mirrors the platform notification priorities
type NotificationPriority string

const (
	PriorityLow     NotificationPriority = "low"
	PriorityDefault NotificationPriority = "default"
	PriorityHigh    NotificationPriority = "high"
)

// NotificationChannel describes a delivery channel a client should register
type NotificationChannel struct {
	Id          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Importance  NotificationPriority `json:"importance"`
}

// ProximityNotification is pushed when an open problem is near the user
type ProximityNotification struct {
	ProblemId      string               `json:"problemId"`
	ChannelId      string               `json:"channelId"`
	Title          string               `json:"title"`
	Body           string               `json:"body"`
	BigText        string               `json:"bigText"`
	Category       string               `json:"category"`
	Excerpt        string               `json:"excerpt"`
	DistanceMeters float64              `json:"distanceMeters"`
	DistanceText   string               `json:"distanceText"`
	DeepLink       string               `json:"deepLink"`
	Data           map[string]string    `json:"data"`
	Priority       NotificationPriority `json:"priority"`
	CreatedAt      time.Time            `json:"createdAt"`
}
