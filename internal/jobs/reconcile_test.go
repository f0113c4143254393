package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/trip-reservation/internal/repository"
)

func driftRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "capacity", "seats_available", "held"}).
		AddRow(uint64(4), 10, 9, 3)
}

func TestRun_ReportsDriftWithoutRepair(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	core, logs := observer.New(zapcore.WarnLevel)

	mock.ExpectQuery(`HAVING`).WillReturnRows(driftRows())

	got, err := NewReconciler(db, repository.NewInventoryLedger(db), false, zap.New(core)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].Expected())
	assert.NoError(t, mock.ExpectationsWereMet())

	warned := logs.FilterMessage("seat counter drift").All()
	require.Len(t, warned, 1)
	assert.Equal(t, int64(7), warned[0].ContextMap()["expected"])
}

func TestRun_RepairsUnderLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`HAVING`).WillReturnRows(driftRows())
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "description", "departure_at", "unit_price_cents", "capacity", "seats_available", "created_at", "updated_at"}).
			AddRow(uint64(4), "Coimbra", now, int64(100), 10, 9, now, now))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(party_size\), 0\)`).WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"held"}).AddRow(3))
	mock.ExpectExec(`UPDATE trips SET seats_available = \? WHERE id = \?`).
		WithArgs(7, uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err = NewReconciler(db, repository.NewInventoryLedger(db), true, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_DriftQueryFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`HAVING`).WillReturnError(errors.New("gone away"))

	_, err = NewReconciler(db, repository.NewInventoryLedger(db), true, zap.NewNop()).Run(context.Background())
	assert.Error(t, err)
}

func TestSchedule(t *testing.T) {
	s, err := gocron.NewScheduler()
	require.NoError(t, err)
	defer func() { _ = s.Shutdown() }()

	job, err := NewReconciler(nil, repository.NewInventoryLedger(nil), false, zap.NewNop()).Schedule(s, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "reconcile-seat-counters", job.Name())
}
