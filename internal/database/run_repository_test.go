package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/smarttransit/segment-booking/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRepository_GetRun(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM runs WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "bus_type", "operator_name", "capacity", "schedule_days", "created_at", "updated_at",
			}).AddRow(3, "ABC Express", "AC", "Coastal", 40, []byte(`{MONDAY,FRIDAY}`), now, now))

		run, err := repo.GetRun(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "ABC Express", run.Name)
		assert.Equal(t, models.ScheduleDays{"MONDAY", "FRIDAY"}, run.ScheduleDays)
		assert.True(t, run.RunsOn(time.Friday))
		assert.False(t, run.RunsOn(time.Sunday))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM runs WHERE id = \$1`).
			WithArgs(int64(9)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetRun(ctx, 9)
		assert.True(t, errors.Is(err, models.ErrRunNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRunRepository_ListLegs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM legs l JOIN stops s ON s.id = l.stop_id WHERE l.run_id = \$1 ORDER BY l.sequence_order`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "run_id", "sequence_order", "stop_id", "stop_name", "arrival_time", "price_from_prev", "cumulative_fare",
		}).
			AddRow(1, 3, 1, 10, "A", "08:00", 0.0, 0.0).
			AddRow(2, 3, 2, 11, "B", "09:00", 50.0, 50.0).
			AddRow(3, 3, 3, 12, "C", "10:00", 30.0, 80.0))

	legs, err := repo.ListLegs(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, legs, 3)
	assert.Equal(t, "C", legs[2].StopName)
	assert.Equal(t, 80.0, legs[2].CumulativeFare)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_CreateRun(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()
	now := time.Now()

	legs := []models.Leg{
		{SequenceOrder: 1, StopID: 10, ArrivalTime: "08:00", PriceFromPrev: 0, CumulativeFare: 0},
		{SequenceOrder: 2, StopID: 11, ArrivalTime: "09:00", PriceFromPrev: 50, CumulativeFare: 50},
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO runs`).
			WithArgs("ABC Express", "AC", "", 2, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(3, now, now))
		mock.ExpectQuery(`INSERT INTO legs`).
			WithArgs(int64(3), 1, int64(10), "08:00", 0.0, 0.0).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`INSERT INTO legs`).
			WithArgs(int64(3), 2, int64(11), "09:00", 50.0, 50.0).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectExec(`INSERT INTO seats (.+) generate_series`).
			WithArgs(int64(3), 2).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		run := &models.Run{Name: "ABC Express", BusType: "AC", Capacity: 2, ScheduleDays: models.ScheduleDays{"MONDAY"}}
		require.NoError(t, repo.CreateRun(ctx, run, legs))
		assert.Equal(t, int64(3), run.ID)
		assert.Equal(t, int64(3), legs[1].RunID)
		assert.Equal(t, int64(2), legs[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Leg Insert Fails", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO runs`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(4, now, now))
		mock.ExpectQuery(`INSERT INTO legs`).WillReturnError(fmt.Errorf("foreign key violation"))
		mock.ExpectRollback()

		run := &models.Run{Name: "Broken", Capacity: 2}
		err := repo.CreateRun(ctx, run, legs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create leg 1")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func lockedLegRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "run_id", "sequence_order", "stop_id", "stop_name", "arrival_time", "price_from_prev", "cumulative_fare",
	}).
		AddRow(1, 3, 1, 10, "A", "08:00", 0.0, 0.0).
		AddRow(2, 3, 2, 11, "B", "09:00", 50.0, 0.0)
}

const lockLegsQuery = `SELECT (.+) FROM legs l JOIN stops s ON s.id = l.stop_id WHERE l.run_id = \$1 ORDER BY l.sequence_order FOR UPDATE OF l`

func TestRunRepository_UpdateLegFares(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	t.Run("Rewrites Under Lock", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockLegsQuery).WithArgs(int64(3)).WillReturnRows(lockedLegRows())
		mock.ExpectExec(`UPDATE legs SET price_from_prev = \$1, cumulative_fare = \$2 WHERE run_id = \$3 AND sequence_order = \$4`).
			WithArgs(0.0, 0.0, int64(3), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE legs SET price_from_prev = \$1, cumulative_fare = \$2 WHERE run_id = \$3 AND sequence_order = \$4`).
			WithArgs(70.0, 70.0, int64(3), 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE runs SET updated_at = NOW\(\) WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		var seen []models.Leg
		legs, err := repo.UpdateLegFares(ctx, 3, func(locked []models.Leg) ([]models.Leg, error) {
			seen = locked
			locked[1].PriceFromPrev = 70
			locked[1].CumulativeFare = 70
			return locked, nil
		})
		require.NoError(t, err)
		require.Len(t, seen, 2)
		assert.Equal(t, 70.0, legs[1].CumulativeFare)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Leg Rolls Back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockLegsQuery).WithArgs(int64(3)).WillReturnRows(lockedLegRows())
		mock.ExpectExec(`UPDATE legs SET price_from_prev = \$1, cumulative_fare = \$2`).
			WithArgs(60.0, 60.0, int64(3), 7).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := repo.UpdateLegFares(ctx, 3, func([]models.Leg) ([]models.Leg, error) {
			return []models.Leg{{SequenceOrder: 7, PriceFromPrev: 60, CumulativeFare: 60}}, nil
		})
		assert.True(t, errors.Is(err, models.ErrInvalidSegment))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No Legs", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockLegsQuery).WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "run_id", "sequence_order", "stop_id", "stop_name", "arrival_time", "price_from_prev", "cumulative_fare",
			}))
		mock.ExpectRollback()

		_, err := repo.UpdateLegFares(ctx, 9, func(legs []models.Leg) ([]models.Leg, error) { return legs, nil })
		assert.True(t, errors.Is(err, models.ErrRunNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRunRepository_UpdateCumulativeFares(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	t.Run("Writes Only Cumulative Column", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockLegsQuery).WithArgs(int64(3)).WillReturnRows(lockedLegRows())
		mock.ExpectExec(`UPDATE legs SET cumulative_fare = \$1 WHERE run_id = \$2 AND sequence_order = \$3`).
			WithArgs(0.0, int64(3), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE legs SET cumulative_fare = \$1 WHERE run_id = \$2 AND sequence_order = \$3`).
			WithArgs(50.0, int64(3), 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE runs SET updated_at = NOW\(\) WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := repo.UpdateCumulativeFares(ctx, 3, func(legs []models.Leg) ([]models.Leg, error) {
			legs[1].CumulativeFare = legs[1].PriceFromPrev
			return legs, nil
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nothing To Repair Writes Nothing", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockLegsQuery).WithArgs(int64(3)).WillReturnRows(lockedLegRows())
		mock.ExpectRollback()

		legs, err := repo.UpdateCumulativeFares(ctx, 3, func([]models.Leg) ([]models.Leg, error) { return nil, nil })
		require.NoError(t, err)
		assert.Len(t, legs, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRiderRepository(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRiderRepository(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO riders`).
		WithArgs("ana@example.com", "Ana").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, now))

	rider := &models.Rider{Email: " ana@example.com ", FullName: "Ana"}
	require.NoError(t, repo.CreateRider(ctx, rider))
	assert.Equal(t, int64(7), rider.ID)

	mock.ExpectQuery(`SELECT (.+) FROM riders WHERE LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetRiderByEmail(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, models.ErrRiderNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)

	mock.ExpectQuery(`INSERT INTO booking_audit_logs`).
		WithArgs("booking_created", int64(7), sqlmock.AnyArg(), "203.0.113.10", "curl/8.0", `{"seats":1}`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

	entry := &models.AuditLog{
		Action:     "booking_created",
		RiderID:    7,
		BookingIDs: models.Int64Array{42},
		IPAddress:  "203.0.113.10",
		UserAgent:  "curl/8.0",
		Details:    map[string]interface{}{"seats": 1},
	}
	require.NoError(t, repo.InsertAuditLog(context.Background(), entry))
	assert.Equal(t, int64(1), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
