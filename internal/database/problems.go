package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mojgrad-go/internal/models"
	"mojgrad-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanProblem(row rowScanner) (*models.Problem, error) {
	var p models.Problem
	var status string
	err := row.Scan(&p.Id, &p.Description, &p.Category, &p.Location.Lat, &p.Location.Lng, &p.Geohash,
		&p.UserId, &p.AuthorName, &p.Votes, &status, &p.ImageUrl, &p.Version, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = models.ProblemStatus(status)
	return &p, nil
}

func (s *Service) queryProblems(ctx context.Context, query string, args ...any) ([]models.Problem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query problems: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var problems []models.Problem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan problem: %w", err)
		}
		problems = append(problems, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating problems: %w", err)
	}
	return problems, nil
}

// CreateProblem inserts a new open problem and credits the author with
// RewardPoints in the same transaction.
func (s *Service) CreateProblem(ctx context.Context, params store.CreateProblemParams) (*models.Problem, []models.PointAdjustment, error) {
	problemId := uuid.New().String()
	createdAt := params.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	month := models.MonthKey(createdAt)

	var adjustments []models.PointAdjustment
	err := s.runTransaction(ctx, "create_problem", func(ctx context.Context, t *docTx) error {
		adjustments = nil

		author, err := readPointsState(ctx, t, params.UserId, month)
		if err != nil {
			return err
		}

		_, err = t.exec(ctx, queryInsertProblem, problemId, params.Description, params.Category,
			params.Location.Lat, params.Location.Lng, params.Geohash, params.UserId, params.AuthorName,
			string(models.StatusOpen), params.ImageUrl, createdAt)
		if err != nil {
			return fmt.Errorf("failed to insert problem: %w", err)
		}
		t.changed(store.CollectionProblems, problemId)

		if params.RewardPoints != 0 {
			adj, err := applyPoints(ctx, t, author, params.RewardPoints, models.PointsProblemReported, problemId, createdAt)
			if err != nil {
				return err
			}
			if adj != nil {
				adjustments = append(adjustments, *adj)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("Problem created",
		zap.String("problem_id", problemId),
		zap.String("user_id", params.UserId),
		zap.String("category", params.Category),
		zap.String("geohash", params.Geohash))

	problem, err := s.GetProblem(ctx, problemId)
	if err != nil {
		return nil, nil, err
	}
	return problem, adjustments, nil
}

func (s *Service) GetProblem(ctx context.Context, problemId string) (*models.Problem, error) {
	p, err := scanProblem(s.db.QueryRowContext(ctx, queryGetProblem, problemId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrProblemNotFound, problemId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get problem: %w", err)
	}
	return p, nil
}

func (s *Service) ListProblemsByStatus(ctx context.Context, status models.ProblemStatus) ([]models.Problem, error) {
	return s.queryProblems(ctx, queryListProblemsByStatus, string(status))
}

// ListProblems returns problems matching every non-zero field of filter
func (s *Service) ListProblems(ctx context.Context, filter store.ProblemFilter) ([]models.Problem, error) {
	var where []string
	var args []any

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.UserId != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserId)
	}
	if filter.AuthorName != "" {
		where = append(where, `fold(author_name) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(filter.AuthorName))
	}
	if filter.Search != "" {
		where = append(where, `(fold(description) LIKE ? ESCAPE '\' OR fold(category) LIKE ? ESCAPE '\')`)
		pattern := likePattern(filter.Search)
		args = append(args, pattern, pattern)
	}
	if !filter.CreatedAfter.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.CreatedAfter.UTC())
	}
	if !filter.CreatedBefore.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, filter.CreatedBefore.UTC())
	}

	var query strings.Builder
	query.WriteString("SELECT ")
	query.WriteString(problemColumns)
	query.WriteString(" FROM problems")
	if len(where) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(where, " AND "))
	}

	switch filter.Sort {
	case store.SortVotes:
		query.WriteString(" ORDER BY votes DESC, created_at DESC")
	default:
		query.WriteString(" ORDER BY created_at DESC")
	}

	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	return s.queryProblems(ctx, query.String(), args...)
}

// ListProblemsByGeohashPrefix returns problems whose geohash starts with any
// of the given prefixes.
func (s *Service) ListProblemsByGeohashPrefix(ctx context.Context, status models.ProblemStatus, prefixes []string) ([]models.Problem, error) {
	if len(prefixes) == 0 {
		return nil, nil
	}

	clauses := make([]string, len(prefixes))
	args := make([]any, 0, len(prefixes)+1)
	args = append(args, string(status))
	for i, prefix := range prefixes {
		clauses[i] = "geohash LIKE ?"
		args = append(args, prefix+"%")
	}

	query := "SELECT " + problemColumns + " FROM problems WHERE status = ? AND (" +
		strings.Join(clauses, " OR ") + ") ORDER BY created_at DESC"
	return s.queryProblems(ctx, query, args...)
}

// SetProblemStatus overwrites the status of a problem
func (s *Service) SetProblemStatus(ctx context.Context, problemId string, status models.ProblemStatus) (*models.Problem, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid problem status %q", status)
	}
	return s.updateProblemStatus(ctx, "set_problem_status", problemId, func(models.ProblemStatus) models.ProblemStatus {
		return status
	})
}

// ToggleProblemStatus flips open and resolved. The current status is read
// in the same transaction that writes the new one.
func (s *Service) ToggleProblemStatus(ctx context.Context, problemId string) (*models.Problem, error) {
	return s.updateProblemStatus(ctx, "toggle_problem_status", problemId, models.ProblemStatus.Toggled)
}

func (s *Service) updateProblemStatus(ctx context.Context, name, problemId string, next func(models.ProblemStatus) models.ProblemStatus) (*models.Problem, error) {
	var from, to models.ProblemStatus
	err := s.runTransaction(ctx, name, func(ctx context.Context, t *docTx) error {
		row, err := t.queryRow(ctx, queryGetProblemStatusState, problemId)
		if err != nil {
			return err
		}
		var current string
		var version int64
		if err := row.Scan(&current, &version); errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", store.ErrProblemNotFound, problemId)
		} else if err != nil {
			return fmt.Errorf("failed to read problem status: %w", err)
		}

		from = models.ProblemStatus(current)
		to = next(from)
		if err := t.execVersioned(ctx, queryUpdateProblemStatus, string(to), problemId, version); err != nil {
			return err
		}
		t.changed(store.CollectionProblems, problemId)
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Problem status updated",
		zap.String("problem_id", problemId),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	return s.GetProblem(ctx, problemId)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a folded substring pattern for LIKE ... ESCAPE '\'
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(foldText(strings.TrimSpace(s))) + "%"
}
