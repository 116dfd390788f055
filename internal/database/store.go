package database

import (
	"context"
	"time"

	"github.com/smarttransit/segment-booking/internal/models"
)

// RunStore reads and authors runs, their legs, seats and stops.
// Runs are reference data; only the authoring service writes them.
type RunStore interface {
	GetRun(ctx context.Context, id int64) (*models.Run, error)
	ListRuns(ctx context.Context) ([]models.Run, error)
	ListLegs(ctx context.Context, runID int64) ([]models.Leg, error)
	ListSeats(ctx context.Context, runID int64) ([]models.Seat, error)
	ListStops(ctx context.Context) ([]models.Stop, error)
	FindOrCreateStop(ctx context.Context, name, cityCode string) (*models.Stop, error)
	CreateRun(ctx context.Context, run *models.Run, legs []models.Leg) error
	// UpdateLegFares locks the run's legs, hands them to update in sequence
	// order and writes back both the increment and cumulative columns.
	UpdateLegFares(ctx context.Context, runID int64, update LegUpdate) ([]models.Leg, error)
	// UpdateCumulativeFares is UpdateLegFares for the repair pass: only the
	// cumulative column is written, increments are never touched.
	UpdateCumulativeFares(ctx context.Context, runID int64, update LegUpdate) ([]models.Leg, error)
}

// LegUpdate rebuilds a run's legs while the store holds their lock. It must
// not call back into the store. Returning nil legs writes nothing.
type LegUpdate func(legs []models.Leg) ([]models.Leg, error)

// RiderStore resolves rider identities.
type RiderStore interface {
	GetRiderByEmail(ctx context.Context, email string) (*models.Rider, error)
	CreateRider(ctx context.Context, rider *models.Rider) error
}

// BookingStore exposes booking reads plus the transactional unit of work
// used by reservation and cancellation. Reads outside InTx may be stale and
// are only used for display and availability hints.
type BookingStore interface {
	InTx(ctx context.Context, fn func(tx BookingTx) error) error
	FindConflictingBookings(ctx context.Context, seatID int64, journeyDate time.Time, seg models.Segment) ([]models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookingsByRider(ctx context.Context, riderID int64) ([]models.Booking, error)
	ListAllBookings(ctx context.Context) ([]models.Booking, error)
}

// BookingTx is one atomic unit of work over bookings. Writes become visible
// to other transactions only if the InTx callback returns nil.
type BookingTx interface {
	// LockSeats serializes concurrent writers on the given seats of a run
	// and returns them in ascending id order. Fails with ErrSeatNotFound
	// if any seat does not belong to the run.
	LockSeats(ctx context.Context, runID int64, seatIDs []int64) ([]models.Seat, error)
	FindConflictingBookings(ctx context.Context, seatID int64, journeyDate time.Time, seg models.Segment) ([]models.Booking, error)
	InsertBooking(ctx context.Context, booking *models.Booking) error
	GetBookingForUpdate(ctx context.Context, id int64) (*models.Booking, error)
	// UpdateBookingStatus writes status and updated_at if the stored version
	// still equals expectedVersion, then bumps the version.
	UpdateBookingStatus(ctx context.Context, booking *models.Booking, expectedVersion int) error
}

// AuditStore persists booking audit records.
type AuditStore interface {
	InsertAuditLog(ctx context.Context, entry *models.AuditLog) error
}
