package store

import (
	"context"
	"errors"
	"time"

	"mojgrad-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrProblemNotFound        = errors.New("problem not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrVoteNotFound           = errors.New("vote not found")
	ErrSelfVote               = errors.New("cannot vote for own problem")
	ErrAlreadyVoted           = errors.New("already voted for problem")
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrReadAfterWrite         = errors.New("read after write in transaction")
)

// Sort orders for problem listings
const (
	SortNewest = "newest"
	SortVotes  = "votes"
)

// ProblemFilter narrows a problem listing. Zero values do not filter.
type ProblemFilter struct {
	Status        models.ProblemStatus
	Category      string
	AuthorName    string
	Search        string
	UserId        string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Sort          string
	Limit         int
}

// CreateProblemParams contains the fields of a new report
type CreateProblemParams struct {
	Description  string
	Category     string
	Location     models.GeoPoint
	Geohash      string
	UserId       string
	AuthorName   string
	ImageUrl     string
	RewardPoints int64
	CreatedAt    time.Time
}

// CreateUserParams contains the fields of a new account
type CreateUserParams struct {
	Id              string
	Email           string
	Name            string
	Phone           string
	ProfileImageUrl string
	PasswordHash    string
	Admin           bool
}

// ProblemStore persists reported problems.
type ProblemStore interface {
	CreateProblem(ctx context.Context, params CreateProblemParams) (*models.Problem, []models.PointAdjustment, error)
	GetProblem(ctx context.Context, problemId string) (*models.Problem, error)
	ListProblemsByStatus(ctx context.Context, status models.ProblemStatus) ([]models.Problem, error)
	ListProblems(ctx context.Context, filter ProblemFilter) ([]models.Problem, error)
	ListProblemsByGeohashPrefix(ctx context.Context, status models.ProblemStatus, prefixes []string) ([]models.Problem, error)
	SetProblemStatus(ctx context.Context, problemId string, status models.ProblemStatus) (*models.Problem, error)
	ToggleProblemStatus(ctx context.Context, problemId string) (*models.Problem, error)
}

// UserStore persists user accounts, points and last known location.
type UserStore interface {
	CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	UpdateUserLocation(ctx context.Context, userId string, location models.GeoPoint, at time.Time) error
	GetLeaderboardUsers(ctx context.Context, month string, limit int) ([]models.User, error)
}

// VoteLedger applies votes and the point changes they imply atomically.
type VoteLedger interface {
	AddVote(ctx context.Context, userId, problemId string, at time.Time) (*models.VoteResult, error)
	RemoveVote(ctx context.Context, userId, problemId string, at time.Time) (*models.VoteResult, error)
	HasVoted(ctx context.Context, userId, problemId string) (bool, error)
	GetUserVotes(ctx context.Context, userId string) ([]models.Vote, error)
	GetPointHistory(ctx context.Context, userId string, limit, offset int) ([]models.PointTransaction, error)
	ReconcileUserPoints(ctx context.Context, userId string) error
}

// Store is the full persistence contract of the service.
type Store interface {
	ProblemStore
	UserStore
	VoteLedger
	Watcher

	Ping(ctx context.Context) error
	Close()
}

// PointsJournal mirrors committed point changes to an external ledger.
type PointsJournal interface {
	RecordAdjustments(ctx context.Context, adjustments []models.PointAdjustment) error
	GetUserPoints(ctx context.Context, userId string) (int64, error)
}
