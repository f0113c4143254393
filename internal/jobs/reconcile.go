// Package jobs runs background maintenance on a gocron scheduler.
package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/model"
)

// Ledger is the part of the inventory ledger the reconciler needs.
type Ledger interface {
	Drift(ctx context.Context) ([]model.TripDrift, error)
	LockTx(ctx context.Context, tx *sql.Tx, tripIDs ...uint64) (map[uint64]*model.Trip, error)
	RepairTx(ctx context.Context, tx *sql.Tx, trip *model.Trip) (int, error)
}

// Reconciler compares each trip's seat counter with capacity minus the
// seats its reservations hold, logs every mismatch and optionally rewrites
// the counter.
type Reconciler struct {
	db     *sql.DB
	ledger Ledger
	repair bool
	log    *zap.Logger
}

// NewReconciler returns a reconciler. With repair set it fixes drifting
// counters under the trip lock instead of only reporting them.
func NewReconciler(db *sql.DB, ledger Ledger, repair bool, log *zap.Logger) *Reconciler {
	return &Reconciler{db: db, ledger: ledger, repair: repair, log: log}
}

// Run does one pass and returns the drift it found. Repairs re-read the
// trip under lock, so a booking that committed after Drift ran is not
// mistaken for corruption.
func (r *Reconciler) Run(ctx context.Context) ([]model.TripDrift, error) {
	drift, err := r.ledger.Drift(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range drift {
		r.log.Warn("seat counter drift",
			zap.Uint64("trip_id", d.TripID),
			zap.Int("capacity", d.Capacity),
			zap.Int("seats_available", d.SeatsAvailable),
			zap.Int("seats_held", d.SeatsHeld),
			zap.Int("expected", d.Expected()),
		)
		if !r.repair {
			continue
		}
		if err := r.repairOne(ctx, d.TripID); err != nil {
			r.log.Error("seat counter repair failed", zap.Uint64("trip_id", d.TripID), zap.Error(err))
		}
	}
	return drift, nil
}

func (r *Reconciler) repairOne(ctx context.Context, tripID uint64) error {
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

	trips, err := r.ledger.LockTx(ctx, tx, tripID)
	if err != nil {
		return err
	}
	trip := trips[tripID]
	before := trip.SeatsAvailable
	overflow, err := r.ledger.RepairTx(ctx, tx, trip)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true

	r.log.Info("seat counter repaired",
		zap.Uint64("trip_id", tripID),
		zap.Int("from", before),
		zap.Int("to", trip.SeatsAvailable),
	)
	if overflow > 0 {
		r.log.Error("trip oversold", zap.Uint64("trip_id", tripID), zap.Int("overflow", overflow))
	}
	return nil
}

// Schedule registers the reconciler on s to run every interval. Runs never
// overlap; a pass still going when the next is due pushes it back.
func (r *Reconciler) Schedule(s gocron.Scheduler, interval time.Duration) (gocron.Job, error) {
	return s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if _, err := r.Run(ctx); err != nil {
				r.log.Error("reconcile pass failed", zap.Error(err))
			}
		}),
		gocron.WithName("reconcile-seat-counters"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}
