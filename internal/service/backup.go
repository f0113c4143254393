package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/queue"
	"github.com/iliyamo/trip-reservation/internal/repository"
)

// BackupService exports and restores the whole dataset.
type BackupService struct {
	repo   *repository.BackupRepo
	events EventDispatcher
	tx     txRunner
	log    *zap.Logger
	now    func() time.Time
}

// NewBackupService wires the backup service. events may be nil.
func NewBackupService(repo *repository.BackupRepo, events EventDispatcher, log *zap.Logger) *BackupService {
	if events == nil {
		events = discard{}
	}
	return &BackupService{
		repo:   repo,
		events: events,
		tx:     txRunner{db: repo.DB(), maxAttempts: 1, log: log},
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Export returns a consistent snapshot of every table.
func (s *BackupService) Export(ctx context.Context) (*model.Snapshot, error) {
	snap, err := s.repo.Export(ctx, s.now())
	if err != nil {
		return nil, classify(ctx, s.log, "export", err)
	}
	return snap, nil
}

// Restore replaces every table with snap in one transaction. Each trip's
// seat counter is recomputed from its capacity and the restored
// reservations, whatever the snapshot says.
func (s *BackupService) Restore(ctx context.Context, actorID uint64, snap *model.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: empty snapshot", model.ErrValidation)
	}
	if err := CheckSnapshot(snap); err != nil {
		return err
	}
	err := s.tx.run(ctx, "restore", func(tx *sql.Tx) error {
		return s.repo.RestoreTx(ctx, tx, snap)
	})
	if err != nil {
		return classify(ctx, s.log, "restore", err)
	}

	// the caller's own account may not survive the restore
	var actor uint64
	for _, u := range snap.Users {
		if u.ID == actorID {
			actor = actorID
			break
		}
	}
	s.events.Dispatch(queue.NewEvent(queue.KindDataRestored, actor,
		fmt.Sprintf("data restored: %d clients, %d trips, %d reservations",
			len(snap.Clients), len(snap.Trips), len(snap.Reservations))))
	return nil
}

// CheckSnapshot rejects snapshots that would break referential integrity or
// oversell a trip, and rewrites every trip's SeatsAvailable to capacity
// minus the seats its reservations hold.
func CheckSnapshot(snap *model.Snapshot) error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	users := make(map[uint64]bool, len(snap.Users))
	for _, u := range snap.Users {
		switch {
		case u.ID == 0:
			bad("user without id")
		case users[u.ID]:
			bad("user %d appears twice", u.ID)
		case u.Role != model.RoleAdmin && u.Role != model.RoleOperator:
			bad("user %d has unknown role %q", u.ID, u.Role)
		}
		users[u.ID] = true
	}
	clients := make(map[uint64]bool, len(snap.Clients))
	for _, c := range snap.Clients {
		if c.ID == 0 || clients[c.ID] {
			bad("client id %d missing or repeated", c.ID)
		}
		clients[c.ID] = true
	}
	trips := make(map[uint64]bool, len(snap.Trips))
	for _, t := range snap.Trips {
		if t.ID == 0 || trips[t.ID] {
			bad("trip id %d missing or repeated", t.ID)
		}
		if t.Capacity < 0 || t.UnitPriceCents < 0 {
			bad("trip %d has negative capacity or price", t.ID)
		}
		trips[t.ID] = true
	}

	held := make(map[uint64]int, len(snap.Trips))
	seen := make(map[uint64]bool, len(snap.Reservations))
	for _, r := range snap.Reservations {
		if r.ID == 0 || seen[r.ID] {
			bad("reservation id %d missing or repeated", r.ID)
		}
		seen[r.ID] = true
		if !clients[r.ClientID] {
			bad("reservation %d references missing client %d", r.ID, r.ClientID)
		}
		if !trips[r.TripID] {
			bad("reservation %d references missing trip %d", r.ID, r.TripID)
		}
		if r.PartySize <= 0 || r.TotalPriceCents < 0 {
			bad("reservation %d has non-positive party size or negative total", r.ID)
		}
		held[r.TripID] += r.PartySize
	}
	for _, e := range snap.AuditEntries {
		if e.ActorID != nil && !users[*e.ActorID] {
			bad("audit entry %d references missing user %d", e.ID, *e.ActorID)
		}
	}

	for k := range snap.Trips {
		t := &snap.Trips[k]
		if held[t.ID] > t.Capacity {
			bad("trip %d holds %d seats over a capacity of %d", t.ID, held[t.ID], t.Capacity)
			continue
		}
		t.SeatsAvailable = t.Capacity - held[t.ID]
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", model.ErrValidation, errors.Join(errs...))
	}
	return nil
}
