package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/database"
	"github.com/smarttransit/segment-booking/internal/models"
	"github.com/smarttransit/segment-booking/internal/utils"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// BookingService handles cancellation and booking lookups
type BookingService struct {
	riders    database.RiderStore
	bookings  database.BookingStore
	audit     *AuditService
	logger    *logrus.Logger
	now       func() time.Time
	txTimeout time.Duration
}

// NewBookingService creates a new booking service
func NewBookingService(
	riders database.RiderStore,
	bookings database.BookingStore,
	audit *AuditService,
	txTimeout time.Duration,
	logger *logrus.Logger,
) *BookingService {
	if txTimeout <= 0 {
		txTimeout = DefaultTxTimeout
	}
	return &BookingService{
		riders:    riders,
		bookings:  bookings,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
		txTimeout: txTimeout,
	}
}

// CancelBooking releases a rider's booking. Cancelling a booking that is
// already cancelled succeeds and returns it unchanged.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID int64, riderEmail string, client utils.ClientInfo) (*models.Booking, error) {
	rider, err := s.riders.GetRiderByEmail(ctx, riderEmail)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, bookingID, rider.ID, "", client)
}

// AdminCancelBooking cancels any rider's booking on behalf of an operator.
// The transition and audit trail are the same as a rider's own cancel.
func (s *BookingService) AdminCancelBooking(ctx context.Context, bookingID int64, adminEmail string, client utils.ClientInfo) (*models.Booking, error) {
	return s.cancel(ctx, bookingID, 0, strings.TrimSpace(adminEmail), client)
}

// cancel moves a booking to CANCELLED under its row lock. A zero ownerID
// skips the ownership check.
func (s *BookingService) cancel(ctx context.Context, bookingID, ownerID int64, cancelledBy string, client utils.ClientInfo) (*models.Booking, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var result *models.Booking
	alreadyCancelled := false
	err := s.bookings.InTx(txCtx, func(tx database.BookingTx) error {
		booking, err := tx.GetBookingForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}
		if ownerID != 0 && booking.RiderID != ownerID {
			return models.ErrUnauthorized
		}
		result = booking
		if !booking.IsActive() {
			alreadyCancelled = true
			return nil
		}

		booking.Status = models.BookingStatusCancelled
		booking.UpdatedAt = s.now()
		return tx.UpdateBookingStatus(txCtx, booking, booking.Version)
	})
	if err != nil {
		err = txError(ctx, txCtx, err)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id":   bookingID,
			"rider_id":     ownerID,
			"cancelled_by": cancelledBy,
		}).Warn("Cancellation rejected")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":        result.ID,
		"reference":         result.Reference,
		"already_cancelled": alreadyCancelled,
		"cancelled_by":      cancelledBy,
	}).Info("Booking cancelled")
	s.audit.LogBookingCancelled(ctx, result, alreadyCancelled, cancelledBy, client)
	return result, nil
}

// GetBookingForRider returns a booking only if riderEmail owns it
func (s *BookingService) GetBookingForRider(ctx context.Context, bookingID int64, riderEmail string) (*models.Booking, error) {
	rider, err := s.riders.GetRiderByEmail(ctx, riderEmail)
	if err != nil {
		return nil, err
	}
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.RiderID != rider.ID {
		return nil, models.ErrUnauthorized
	}
	return booking, nil
}

// ListBookingsForRider returns a rider's bookings, latest journey date first
func (s *BookingService) ListBookingsForRider(ctx context.Context, riderEmail string) ([]models.Booking, error) {
	rider, err := s.riders.GetRiderByEmail(ctx, riderEmail)
	if err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListBookingsByRider(ctx, rider.ID)
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}

// ListAllBookings returns every booking, newest first
func (s *BookingService) ListAllBookings(ctx context.Context) ([]models.Booking, error) {
	bookings, err := s.bookings.ListAllBookings(ctx)
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}

// RegisterRider provisions a rider identity handed over by the identity
// subsystem. Existing riders keep their id.
func (s *BookingService) RegisterRider(ctx context.Context, email, fullName string) (*models.Rider, error) {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return nil, models.ErrInvalidInput("a valid email is required")
	}
	rider := &models.Rider{Email: email, FullName: fullName}
	if err := s.riders.CreateRider(ctx, rider); err != nil {
		return nil, err
	}
	return rider, nil
}
