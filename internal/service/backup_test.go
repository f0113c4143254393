package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/queue"
	"github.com/iliyamo/trip-reservation/internal/repository"
)

func validSnapshot() *model.Snapshot {
	actor := uint64(1)
	return &model.Snapshot{
		Users:   []model.User{{ID: 1, Name: "Admin", Email: "a@example.com", Role: model.RoleAdmin}},
		Clients: []model.Client{{ID: 1, Name: "Beatriz Sousa"}, {ID: 2, Name: "Tiago Ramos"}},
		Trips: []model.Trip{
			{ID: 1, Description: "Douro", Capacity: 10, SeatsAvailable: 10},
			{ID: 2, Description: "Azores", Capacity: 3, SeatsAvailable: 0},
		},
		Reservations: []model.Reservation{
			{ID: 1, ClientID: 1, TripID: 1, PartySize: 4, TotalPriceCents: 400},
			{ID: 2, ClientID: 2, TripID: 1, PartySize: 2, TotalPriceCents: 200},
		},
		AuditEntries: []model.AuditEntry{{ID: 1, ActorID: &actor, Action: "login"}},
	}
}

func TestCheckSnapshot_RecomputesSeats(t *testing.T) {
	snap := validSnapshot()

	require.NoError(t, CheckSnapshot(snap))
	assert.Equal(t, 4, snap.Trips[0].SeatsAvailable)
	assert.Equal(t, 3, snap.Trips[1].SeatsAvailable, "stored counter is ignored")
}

func TestCheckSnapshot_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *model.Snapshot)
		want   string
	}{
		{"oversold trip", func(s *model.Snapshot) { s.Reservations[0].PartySize = 9 }, "over a capacity of 10"},
		{"missing trip", func(s *model.Snapshot) { s.Reservations[0].TripID = 7 }, "missing trip 7"},
		{"missing client", func(s *model.Snapshot) { s.Reservations[1].ClientID = 9 }, "missing client 9"},
		{"duplicate reservation", func(s *model.Snapshot) { s.Reservations[1].ID = 1 }, "reservation id 1 missing or repeated"},
		{"zero party", func(s *model.Snapshot) { s.Reservations[0].PartySize = 0 }, "non-positive party size"},
		{"unknown role", func(s *model.Snapshot) { s.Users[0].Role = "ROOT" }, "unknown role"},
		{"dangling audit actor", func(s *model.Snapshot) { id := uint64(5); s.AuditEntries[0].ActorID = &id }, "missing user 5"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := validSnapshot()
			tc.mutate(snap)
			err := CheckSnapshot(snap)
			assert.ErrorIs(t, err, model.ErrValidation)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRestore_InvalidSnapshotTouchesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	svc := NewBackupService(repository.NewBackupRepo(db), nil, zap.NewNop())

	snap := validSnapshot()
	snap.Reservations[0].TripID = 99

	err = svc.Restore(context.Background(), 1, snap)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestore_OneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	events := &eventLog{}
	svc := NewBackupService(repository.NewBackupRepo(db), events, zap.NewNop())
	snap := validSnapshot()

	mock.ExpectBegin()
	for _, table := range []string{"audit_entries", "reservations", "trips", "clients", "refresh_tokens", "users"} {
		mock.ExpectExec(`DELETE FROM ` + table).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(`INSERT INTO users`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO clients`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO clients`).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(`INSERT INTO trips`).
		WithArgs(uint64(1), "Douro", sqlmock.AnyArg(), int64(0), 10, 4, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO trips`).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(`INSERT INTO reservations`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO reservations`).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(`INSERT INTO audit_entries`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Restore(context.Background(), 1, snap))
	assert.NoError(t, mock.ExpectationsWereMet())
	require.Equal(t, []queue.Kind{queue.KindDataRestored}, events.kinds())
	assert.Equal(t, uint64(1), events.events[0].ActorID)
}

func TestRestore_FailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	svc := NewBackupService(repository.NewBackupRepo(db), nil, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM audit_entries`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = svc.Restore(context.Background(), 1, validSnapshot())
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}
