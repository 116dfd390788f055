package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/smarttransit/segment-booking/internal/models"
)

const bookingColumns = `
	id, reference, seat_id, seat_number, run_id, rider_id, journey_date,
	from_seq, to_seq, from_stop_name, to_stop_name, amount, status, version,
	created_at, updated_at`

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

// BookingRepository handles booking persistence in PostgreSQL
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// InTx runs fn inside a READ COMMITTED transaction. Writers serialize on
// the seat rows locked by LockSeats, and every statement after the lock
// sees bookings committed by the previous holder. REPEATABLE READ would pin
// the snapshot at the locking statement and hide those rows.
func (r *BookingRepository) InTx(ctx context.Context, fn func(tx BookingTx) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgBookingTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindConflictingBookings returns CONFIRMED bookings on the seat and date
// whose segment overlaps seg. Runs outside any transaction.
func (r *BookingRepository) FindConflictingBookings(ctx context.Context, seatID int64, journeyDate time.Time, seg models.Segment) ([]models.Booking, error) {
	return findConflicting(ctx, r.db, seatID, journeyDate, seg)
}

// GetBooking returns a booking by id
func (r *BookingRepository) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking := &models.Booking{}
	err := r.db.GetContext(ctx, booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// ListBookingsByRider returns a rider's bookings, latest journey date first
func (r *BookingRepository) ListBookingsByRider(ctx context.Context, riderID int64) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE rider_id = $1
		ORDER BY journey_date DESC, id DESC`

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, riderID); err != nil {
		return nil, fmt.Errorf("failed to list rider bookings: %w", err)
	}
	return bookings, nil
}

// ListAllBookings returns every booking, newest first
func (r *BookingRepository) ListAllBookings(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.SelectContext(ctx, &bookings, `SELECT `+bookingColumns+` FROM bookings ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// pgBookingTx is the PostgreSQL unit of work
type pgBookingTx struct {
	tx *sqlx.Tx
}

// LockSeats takes row locks on the requested seats in ascending id order so
// two multi-seat requests cannot deadlock each other.
func (t *pgBookingTx) LockSeats(ctx context.Context, runID int64, seatIDs []int64) ([]models.Seat, error) {
	query := `
		SELECT id, run_id, seat_number, available
		FROM seats
		WHERE run_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`

	var seats []models.Seat
	if err := t.tx.SelectContext(ctx, &seats, query, runID, pq.Array(seatIDs)); err != nil {
		return nil, fmt.Errorf("failed to lock seats: %w", err)
	}
	if err := requireAllSeats(seats, seatIDs); err != nil {
		return nil, err
	}
	return seats, nil
}

func (t *pgBookingTx) FindConflictingBookings(ctx context.Context, seatID int64, journeyDate time.Time, seg models.Segment) ([]models.Booking, error) {
	return findConflicting(ctx, t.tx, seatID, journeyDate, seg)
}

// InsertBooking persists a booking. A hit on the confirmed-segment unique
// index means a concurrent writer got there first.
func (t *pgBookingTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			reference, seat_id, seat_number, run_id, rider_id, journey_date,
			from_seq, to_seq, from_stop_name, to_stop_name, amount, status
		) VALUES (
			$1, $2, $3, $4, $5, $6::date, $7, $8, $9, $10, $11, $12
		) RETURNING id, version, created_at, updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		b.Reference, b.SeatID, b.SeatNumber, b.RunID, b.RiderID, b.JourneyDate.Format(models.DateLayout),
		b.FromSeq, b.ToSeq, b.FromStopName, b.ToStopName, b.Amount, b.Status,
	).Scan(&b.ID, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation && pqErr.Constraint == "bookings_confirmed_segment_key" {
			return &models.SeatUnavailableError{SeatID: b.SeatID, SeatNumber: b.SeatNumber}
		}
		return fmt.Errorf("failed to create booking for seat %d: %w", b.SeatID, err)
	}
	return nil
}

func (t *pgBookingTx) GetBookingForUpdate(ctx context.Context, id int64) (*models.Booking, error) {
	booking := &models.Booking{}
	err := t.tx.GetContext(ctx, booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	return booking, nil
}

func (t *pgBookingTx) UpdateBookingStatus(ctx context.Context, b *models.Booking, expectedVersion int) error {
	query := `
		UPDATE bookings
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
		RETURNING version`

	err := t.tx.QueryRowxContext(ctx, query, b.Status, b.UpdatedAt, b.ID, expectedVersion).Scan(&b.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrConcurrentModification
		}
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return nil
}

// findConflicting runs the overlap query against a pool or a transaction.
// [a,b) and [c,d) overlap iff NOT (b <= c OR a >= d).
func findConflicting(ctx context.Context, q sqlx.QueryerContext, seatID int64, journeyDate time.Time, seg models.Segment) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE seat_id = $1
		  AND journey_date = $2::date
		  AND status = 'CONFIRMED'
		  AND NOT (to_seq <= $3 OR from_seq >= $4)
		ORDER BY from_seq`

	var bookings []models.Booking
	err := sqlx.SelectContext(ctx, q, &bookings, query, seatID, journeyDate.Format(models.DateLayout), seg.From, seg.To)
	if err != nil {
		return nil, fmt.Errorf("failed to find conflicting bookings: %w", err)
	}
	return bookings, nil
}

// requireAllSeats fails with ErrSeatNotFound naming the first missing id
func requireAllSeats(found []models.Seat, wanted []int64) error {
	have := make(map[int64]bool, len(found))
	for _, s := range found {
		have[s.ID] = true
	}
	for _, id := range wanted {
		if !have[id] {
			return fmt.Errorf("%w: seat %d is not on this run", models.ErrSeatNotFound, id)
		}
	}
	return nil
}
