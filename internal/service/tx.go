package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/repository"
)

// txRunner executes a unit of work in one READ COMMITTED transaction and
// retries it when MySQL reports a deadlock or lock wait timeout. Row locks
// taken inside fn provide the isolation the capacity checks rely on.
type txRunner struct {
	db          *sql.DB
	maxAttempts int
	backoff     time.Duration
	log         *zap.Logger
}

func (r txRunner) run(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	attempts := max(r.maxAttempts, 1)
	for attempt := 1; ; attempt++ {
		err := r.once(ctx, fn)
		if err == nil {
			return nil
		}
		if !repository.IsRetryable(err) {
			return err
		}
		r.log.Warn("transaction conflict",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt >= attempts {
			return fmt.Errorf("%w: %s gave up after %d attempts", model.ErrTransientConflict, op, attempt)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", model.ErrTransientConflict, op, ctx.Err())
		case <-time.After(r.backoff * time.Duration(attempt)):
		}
	}
}

func (r txRunner) once(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}
