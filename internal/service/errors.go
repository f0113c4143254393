package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/repository"
)

// classified lists the kinds that already carry their meaning and pass
// through untouched.
var classified = []error{
	model.ErrValidation,
	model.ErrInvalidReference,
	model.ErrInsufficientCapacity,
	model.ErrNotFound,
	model.ErrTransientConflict,
	model.ErrConflict,
	model.ErrUnauthorized,
	model.ErrForbidden,
	model.ErrPersistence,
}

func isClassified(err error) bool {
	for _, k := range classified {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// classify turns whatever a repository or transaction returned into one of
// the model error kinds. Unexpected errors are logged here, once, and come
// back as model.ErrPersistence. An error that surfaces after ctx expired is
// a timeout whatever the driver called it.
func classify(ctx context.Context, log *zap.Logger, op string, err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrTransientConflict, op, ctxErr)
	}
	switch {
	case errors.Is(err, repository.ErrMissingParent):
		return fmt.Errorf("%w: %w", model.ErrInvalidReference, err)
	case errors.Is(err, repository.ErrHasDependents), errors.Is(err, repository.ErrEmailExists):
		return fmt.Errorf("%w: %w", model.ErrConflict, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %s: %v", model.ErrTransientConflict, op, err)
	case repository.IsRetryable(err):
		return fmt.Errorf("%w: %s: %v", model.ErrTransientConflict, op, err)
	}
	log.Error("storage failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s", model.ErrPersistence, op)
}
