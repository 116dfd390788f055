package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/smarttransit/segment-booking/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingColumnNames = []string{
	"id", "reference", "seat_id", "seat_number", "run_id", "rider_id", "journey_date",
	"from_seq", "to_seq", "from_stop_name", "to_stop_name", "amount", "status", "version",
	"created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func testBooking() *models.Booking {
	return &models.Booking{
		Reference:    "BK-20300102-3F2A9C1D",
		SeatID:       11,
		SeatNumber:   "1",
		RunID:        3,
		RiderID:      7,
		JourneyDate:  time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC),
		FromSeq:      1,
		ToSeq:        3,
		FromStopName: "A",
		ToStopName:   "C",
		Amount:       80,
		Status:       models.BookingStatusConfirmed,
	}
}

func TestBookingRepository_BookInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	now := time.Now()
	seg := models.Segment{From: 1, To: 3}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM seats WHERE run_id = \$1 AND id = ANY\(\$2\) ORDER BY id FOR UPDATE`).
			WithArgs(int64(3), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "run_id", "seat_number", "available"}).
				AddRow(11, 3, "1", true))
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE seat_id = \$1 AND journey_date = \$2::date AND status = 'CONFIRMED'`).
			WithArgs(int64(11), "2030-01-02", 1, 3).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames))
		mock.ExpectQuery(`INSERT INTO bookings`).
			WithArgs("BK-20300102-3F2A9C1D", int64(11), "1", int64(3), int64(7), "2030-01-02",
				1, 3, "A", "C", 80.0, models.BookingStatusConfirmed).
			WillReturnRows(sqlmock.NewRows([]string{"id", "version", "created_at", "updated_at"}).
				AddRow(42, 0, now, now))
		mock.ExpectCommit()

		b := testBooking()
		err := repo.InTx(ctx, func(tx BookingTx) error {
			seats, err := tx.LockSeats(ctx, 3, []int64{11})
			if err != nil {
				return err
			}
			conflicts, err := tx.FindConflictingBookings(ctx, seats[0].ID, b.JourneyDate, seg)
			if err != nil {
				return err
			}
			assert.Empty(t, conflicts)
			return tx.InsertBooking(ctx, b)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(42), b.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Seat On Another Run", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM seats`).
			WithArgs(int64(3), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "run_id", "seat_number", "available"}))
		mock.ExpectRollback()

		err := repo.InTx(ctx, func(tx BookingTx) error {
			_, err := tx.LockSeats(ctx, 3, []int64{99})
			return err
		})
		assert.True(t, errors.Is(err, models.ErrSeatNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unique Index Backstop", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "bookings_confirmed_segment_key"})
		mock.ExpectRollback()

		err := repo.InTx(ctx, func(tx BookingTx) error {
			return tx.InsertBooking(ctx, testBooking())
		})
		var unavailable *models.SeatUnavailableError
		require.True(t, errors.As(err, &unavailable))
		assert.Equal(t, int64(11), unavailable.SeatID)
		assert.True(t, errors.Is(err, models.ErrSeatUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO bookings`).WillReturnError(fmt.Errorf("connection reset"))
		mock.ExpectRollback()

		err := repo.InTx(ctx, func(tx BookingTx) error {
			return tx.InsertBooking(ctx, testBooking())
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create booking")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_UpdateBookingStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	now := time.Now()
	journey := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)

	bookingRow := func() *sqlmock.Rows {
		return sqlmock.NewRows(bookingColumnNames).AddRow(
			42, "BK-20300102-3F2A9C1D", 11, "1", 3, 7, journey,
			1, 3, "A", "C", 80.0, "CONFIRMED", 2, now, now,
		)
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(42)).
			WillReturnRows(bookingRow())
		mock.ExpectQuery(`UPDATE bookings SET status = \$1, version = version \+ 1`).
			WithArgs(models.BookingStatusCancelled, sqlmock.AnyArg(), int64(42), 2).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(3))
		mock.ExpectCommit()

		var updated *models.Booking
		err := repo.InTx(ctx, func(tx BookingTx) error {
			b, err := tx.GetBookingForUpdate(ctx, 42)
			if err != nil {
				return err
			}
			b.Status = models.BookingStatusCancelled
			b.UpdatedAt = now
			updated = b
			return tx.UpdateBookingStatus(ctx, b, b.Version)
		})
		require.NoError(t, err)
		assert.Equal(t, 3, updated.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Version Moved", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE bookings`).
			WithArgs(models.BookingStatusCancelled, sqlmock.AnyArg(), int64(42), 2).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectRollback()

		err := repo.InTx(ctx, func(tx BookingTx) error {
			b := &models.Booking{ID: 42, Status: models.BookingStatusCancelled, UpdatedAt: now}
			return tx.UpdateBookingStatus(ctx, b, 2)
		})
		assert.True(t, errors.Is(err, models.ErrConcurrentModification))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WithArgs(int64(404)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetBooking(ctx, 404)
		assert.True(t, errors.Is(err, models.ErrBookingNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_ListBookingsByRider(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE rider_id = \$1 ORDER BY journey_date DESC, id DESC`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(bookingColumnNames).
			AddRow(2, "BK-2", 11, "1", 3, 7, time.Date(2030, 1, 5, 0, 0, 0, 0, time.UTC),
				2, 3, "B", "C", 30.0, "CONFIRMED", 0, now, now).
			AddRow(1, "BK-1", 12, "2", 3, 7, time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC),
				1, 2, "A", "B", 50.0, "CANCELLED", 1, now, now))

	bookings, err := repo.ListBookingsByRider(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "BK-2", bookings[0].Reference)
	assert.Equal(t, models.BookingStatusCancelled, bookings[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
