package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/database"
	"github.com/smarttransit/segment-booking/internal/models"
	"github.com/smarttransit/segment-booking/internal/utils"
)

// DefaultTxTimeout bounds a booking or cancellation transaction
const DefaultTxTimeout = 30 * time.Second

// ReservationService books seats for a segment of a run on a date
type ReservationService struct {
	runs      database.RunStore
	riders    database.RiderStore
	bookings  database.BookingStore
	audit     *AuditService
	logger    *logrus.Logger
	calendar  Calendar
	txTimeout time.Duration
}

// NewReservationService creates a new reservation service
func NewReservationService(
	runs database.RunStore,
	riders database.RiderStore,
	bookings database.BookingStore,
	audit *AuditService,
	calendar Calendar,
	txTimeout time.Duration,
	logger *logrus.Logger,
) *ReservationService {
	if txTimeout <= 0 {
		txTimeout = DefaultTxTimeout
	}
	return &ReservationService{
		runs:      runs,
		riders:    riders,
		bookings:  bookings,
		audit:     audit,
		logger:    logger,
		calendar:  calendar,
		txTimeout: txTimeout,
	}
}

// BookSeats creates one CONFIRMED booking per requested seat, or none.
// A conflict on any seat fails the whole request.
func (s *ReservationService) BookSeats(ctx context.Context, req *models.BookSeatsRequest, riderEmail string, client utils.ClientInfo) ([]models.Booking, error) {
	journeyDate, err := req.Validate()
	if err != nil {
		return nil, err
	}
	if err := s.calendar.CheckNotPast(journeyDate); err != nil {
		return nil, err
	}
	seg := models.Segment{From: req.FromSeq, To: req.ToSeq}
	if err := seg.Validate(); err != nil {
		return nil, err
	}

	rider, err := s.riders.GetRiderByEmail(ctx, riderEmail)
	if err != nil {
		return nil, err
	}
	run, err := s.runs.GetRun(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	legs, err := s.runs.ListLegs(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	amount, err := Fare(legs, seg.From, seg.To)
	if err != nil {
		return nil, err
	}
	fromStop := FindLeg(legs, seg.From).StopName
	toStop := FindLeg(legs, seg.To).StopName

	log := s.logger.WithFields(logrus.Fields{
		"run_id":       run.ID,
		"journey_date": journeyDate.Format(models.DateLayout),
		"from_seq":     seg.From,
		"to_seq":       seg.To,
		"seat_ids":     req.SeatIDs,
		"rider_id":     rider.ID,
	})

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var created []models.Booking
	err = s.bookings.InTx(txCtx, func(tx database.BookingTx) error {
		created = created[:0]

		seats, err := tx.LockSeats(txCtx, run.ID, req.SeatIDs)
		if err != nil {
			return err
		}

		for _, seat := range seats {
			conflicts, err := tx.FindConflictingBookings(txCtx, seat.ID, journeyDate, seg)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return &models.SeatUnavailableError{SeatID: seat.ID, SeatNumber: seat.SeatNumber}
			}

			booking := models.Booking{
				Reference:    newBookingReference(journeyDate),
				SeatID:       seat.ID,
				SeatNumber:   seat.SeatNumber,
				RunID:        run.ID,
				RiderID:      rider.ID,
				JourneyDate:  journeyDate,
				FromSeq:      seg.From,
				ToSeq:        seg.To,
				FromStopName: fromStop,
				ToStopName:   toStop,
				Amount:       amount,
				Status:       models.BookingStatusConfirmed,
			}
			if err := tx.InsertBooking(txCtx, &booking); err != nil {
				return err
			}
			created = append(created, booking)
		}
		return nil
	})
	if err != nil {
		err = txError(ctx, txCtx, err)
		log.WithError(err).Warn("Booking request rejected")
		s.audit.LogBookingRejected(ctx, rider.ID, req, err, client)
		return nil, err
	}

	log.WithField("bookings", len(created)).Info("Seats booked")
	s.audit.LogBookingCreated(ctx, rider.ID, created, client)
	return created, nil
}

// txError reports a transaction that ran out of time as ErrTransactionTimeout.
// A cancellation by the caller is passed through unchanged.
func txError(parent, txCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(txCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrTransactionTimeout, err)
	}
	return err
}

// newBookingReference returns a rider-facing code like BK-20250101-3F2A9C1D
func newBookingReference(journeyDate time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("BK-%s-%s", journeyDate.Format("20060102"), id[:8])
}
