package models

import (
	"time"
)

// ProblemStatus is the lifecycle state of a reported problem
type ProblemStatus string

const (
	StatusOpen     ProblemStatus = "open"
	StatusResolved ProblemStatus = "resolved"
)

// Valid reports whether s is one of the known statuses
func (s ProblemStatus) Valid() bool {
	return s == StatusOpen || s == StatusResolved
}

// Toggled returns the opposite status
func (s ProblemStatus) Toggled() ProblemStatus {
	if s == StatusOpen {
		return StatusResolved
	}
	return StatusOpen
}

// GeoPoint is a WGS84 coordinate pair
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// User represents a registered citizen or administrator
type User struct {
	Id                 string           `db:"id" json:"id"`
	Email              string           `db:"email" json:"email"`
	Name               string           `db:"name" json:"name"`
	Phone              string           `db:"phone" json:"phone"`
	ProfileImageUrl    string           `db:"profile_image_url" json:"profileImageUrl,omitempty"`
	PasswordHash       string           `db:"password_hash" json:"-"`
	Admin              bool             `db:"admin" json:"admin"`
	TotalPoints        int64            `db:"total_points" json:"totalPoints"`
	MonthlyPoints      map[string]int64 `json:"monthlyPoints"`
	LastLocation       *GeoPoint        `json:"lastLocation,omitempty"`
	LastLocationUpdate *time.Time       `db:"last_location_update" json:"lastLocationUpdate,omitempty"`
	Version            int64            `db:"version" json:"-"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
}

// PointsForMonth returns the points earned in the given YYYY-MM month
func (u *User) PointsForMonth(month string) int64 {
	if u.MonthlyPoints == nil {
		return 0
	}
	return u.MonthlyPoints[month]
}

// Problem represents a reported civic issue
type Problem struct {
	Id          string        `db:"id" json:"id"`
	Description string        `db:"description" json:"description"`
	Category    string        `db:"category" json:"category"`
	Location    GeoPoint      `json:"location"`
	Geohash     string        `db:"geohash" json:"geohash"`
	UserId      string        `db:"user_id" json:"userId"`
	AuthorName  string        `db:"author_name" json:"authorName"`
	Votes       int64         `db:"votes" json:"votes"`
	Status      ProblemStatus `db:"status" json:"status"`
	ImageUrl    string        `db:"image_url" json:"imageUrl,omitempty"`
	Version     int64         `db:"version" json:"-"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}

// Vote records that a user endorsed a problem
type Vote struct {
	Id        string    `db:"id" json:"id"`
	UserId    string    `db:"user_id" json:"userId"`
	ProblemId string    `db:"problem_id" json:"problemId"`
	AuthorId  string    `db:"author_id" json:"authorId"`
	VotedAt   time.Time `db:"voted_at" json:"votedAt"`
}

// VoteId is the deterministic identifier of a user's vote on a problem
func VoteId(userId, problemId string) string {
	return userId + "_" + problemId
}

// MonthKey formats t as the YYYY-MM key used for monthly points
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// PointTransaction represents an immutable points audit entry
type PointTransaction struct {
	Id              string    `db:"id" json:"id"`
	UserId          string    `db:"user_id" json:"userId"`
	TransactionType string    `db:"transaction_type" json:"type"`
	Amount          int64     `db:"amount" json:"amount"`
	BalanceBefore   int64     `db:"balance_before" json:"balanceBefore"`
	BalanceAfter    int64     `db:"balance_after" json:"balanceAfter"`
	Month           string    `db:"month" json:"month"`
	Reference       string    `db:"reference" json:"reference"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// Point transaction types
const (
	PointsProblemReported = "problem_reported"
	PointsVoteCast        = "vote_cast"
	PointsVoteReceived    = "vote_received"
	PointsVoteWithdrawn   = "vote_withdrawn"
	PointsVoteRevoked     = "vote_revoked"
)
