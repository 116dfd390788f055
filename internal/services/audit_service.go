package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/database"
	"github.com/smarttransit/segment-booking/internal/models"
	"github.com/smarttransit/segment-booking/internal/utils"
)

// Audit actions
const (
	AuditBookingCreated   = "booking_created"
	AuditBookingRejected  = "booking_rejected"
	AuditBookingCancelled = "booking_cancelled"
)

// AuditService records booking lifecycle events for support and fraud review
type AuditService struct {
	store  database.AuditStore
	logger *logrus.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store database.AuditStore, logger *logrus.Logger) *AuditService {
	return &AuditService{
		store:  store,
		logger: logger,
	}
}

// LogBookingCreated records the bookings committed by one request
func (s *AuditService) LogBookingCreated(ctx context.Context, riderID int64, bookings []models.Booking, client utils.ClientInfo) {
	ids := make(models.Int64Array, 0, len(bookings))
	references := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
		references = append(references, b.Reference)
	}

	details := map[string]interface{}{
		"references": strings.Join(references, ","),
		"seat_count": len(bookings),
		"total":      TotalFare(bookings),
	}
	if len(bookings) > 0 {
		details["run_id"] = bookings[0].RunID
		details["journey_date"] = bookings[0].JourneyDate.Format(models.DateLayout)
		details["from_seq"] = bookings[0].FromSeq
		details["to_seq"] = bookings[0].ToSeq
	}

	s.logEvent(ctx, AuditBookingCreated, riderID, ids, client, details)
}

// LogBookingRejected records a booking request that failed a check
func (s *AuditService) LogBookingRejected(ctx context.Context, riderID int64, req *models.BookSeatsRequest, reason error, client utils.ClientInfo) {
	details := map[string]interface{}{
		"run_id":       req.RunID,
		"journey_date": req.JourneyDate,
		"from_seq":     req.FromSeq,
		"to_seq":       req.ToSeq,
		"seat_ids":     req.SeatIDs,
		"reason":       reason.Error(),
	}
	s.logEvent(ctx, AuditBookingRejected, riderID, nil, client, details)
}

// LogBookingCancelled records a cancellation; repeated cancels are noted.
// cancelledBy names the operator when the owner did not cancel.
func (s *AuditService) LogBookingCancelled(ctx context.Context, booking *models.Booking, alreadyCancelled bool, cancelledBy string, client utils.ClientInfo) {
	details := map[string]interface{}{
		"reference":         booking.Reference,
		"already_cancelled": alreadyCancelled,
	}
	if cancelledBy != "" {
		details["cancelled_by"] = cancelledBy
	}
	s.logEvent(ctx, AuditBookingCancelled, booking.RiderID, models.Int64Array{booking.ID}, client, details)
}

// logEvent never fails the calling operation; a lost audit record is logged
func (s *AuditService) logEvent(ctx context.Context, action string, riderID int64, bookingIDs models.Int64Array, client utils.ClientInfo, details map[string]interface{}) {
	details["device_info"] = utils.ParseUserAgent(client.UserAgent)

	entry := &models.AuditLog{
		Action:     action,
		RiderID:    riderID,
		BookingIDs: bookingIDs,
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
		Details:    details,
	}

	if err := s.store.InsertAuditLog(ctx, entry); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action":   action,
			"rider_id": riderID,
		}).Warn("Failed to write audit log")
	}
}
