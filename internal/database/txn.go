package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mojgrad-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// docTx is a single attempt of a document transaction. All reads must
// happen before the first write; a read after a write fails with
// store.ErrReadAfterWrite. Versioned writes fail with
// store.ErrConcurrentModification when the row changed since it was read.
type docTx struct {
	tx      *sql.Tx
	wrote   bool
	changes []store.Change
}

func (t *docTx) queryRow(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	if t.wrote {
		return nil, store.ErrReadAfterWrite
	}
	return t.tx.QueryRowContext(ctx, query, args...), nil
}

func (t *docTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	t.wrote = true
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translateWriteError(err)
	}
	return result, nil
}

// execVersioned runs an UPDATE guarded by "version = ?" and requires exactly one row.
func (t *docTx) execVersioned(ctx context.Context, query string, args ...any) error {
	result, err := t.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrConcurrentModification
	}
	return nil
}

func (t *docTx) changed(collection store.Collection, id string) {
	t.changes = append(t.changes, store.Change{Collection: collection, DocumentId: id, At: time.Now().UTC()})
}

// runTransaction executes fn atomically, retrying the whole function on
// conflicts. Any other error aborts immediately.
func (s *Service) runTransaction(ctx context.Context, name string, fn func(ctx context.Context, t *docTx) error) error {
	for attempt := 1; ; attempt++ {
		changes, err := s.attemptTransaction(ctx, fn)
		if err == nil {
			s.broker.Publish(changes...)
			return nil
		}

		if !isRetryable(err) || attempt >= s.txMaxAttempts {
			if isRetryable(err) {
				zap.L().Error("Transaction retries exhausted",
					zap.String("transaction", name),
					zap.Int("attempts", attempt),
					zap.Error(err))
			}
			return err
		}

		zap.L().Warn("Transaction conflict, retrying",
			zap.String("transaction", name),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.txRetryDelay * time.Duration(attempt)):
		}
	}
}

func (s *Service) attemptTransaction(ctx context.Context, fn func(ctx context.Context, t *docTx) error) ([]store.Change, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", translateWriteError(err))
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			zap.L().Warn("Failed to roll back transaction", zap.Error(err))
		}
	}()

	t := &docTx{tx: tx}
	if err := fn(ctx, t); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", translateWriteError(err))
	}
	return t.changes, nil
}

func isRetryable(err error) bool {
	return errors.Is(err, store.ErrConcurrentModification)
}

// translateWriteError maps SQLite lock contention and key collisions to
// store.ErrConcurrentModification so the runner retries them.
func translateWriteError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch {
	case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
		return fmt.Errorf("%w: %v", store.ErrConcurrentModification, err)
	case sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %v", store.ErrConcurrentModification, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
