package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/middleware"
	"github.com/smarttransit/segment-booking/internal/models"
	"github.com/smarttransit/segment-booking/internal/services"
	"github.com/smarttransit/segment-booking/internal/utils"
)

// BookingHandler serves the rider booking endpoints
type BookingHandler struct {
	reservations *services.ReservationService
	bookings     *services.BookingService
	tickets      *services.TicketService
	logger       *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(
	reservations *services.ReservationService,
	bookings *services.BookingService,
	tickets *services.TicketService,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		reservations: reservations,
		bookings:     bookings,
		tickets:      tickets,
		logger:       logger,
	}
}

func (h *BookingHandler) rider(c *gin.Context) (middleware.RiderContext, bool) {
	rider, ok := middleware.GetRiderContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Rider context not found",
			"code":    "MISSING_USER_CONTEXT",
		})
	}
	return rider, ok
}

// BookSeats handles POST /api/v1/bookings
func (h *BookingHandler) BookSeats(c *gin.Context) {
	rider, ok := h.rider(c)
	if !ok {
		return
	}

	var req models.BookSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format: "+err.Error())
		return
	}

	created, err := h.reservations.BookSeats(c.Request.Context(), &req, rider.Email, utils.ClientFromRequest(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"bookings":     created,
		"total_amount": services.TotalFare(created),
	})
}

// MyBookings handles GET /api/v1/bookings/me
func (h *BookingHandler) MyBookings(c *gin.Context) {
	rider, ok := h.rider(c)
	if !ok {
		return
	}
	bookings, err := h.bookings.ListBookingsForRider(c.Request.Context(), rider.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// Cancel handles PATCH /api/v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	rider, ok := h.rider(c)
	if !ok {
		return
	}
	bookingID, ok := paramID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.CancelBooking(c.Request.Context(), bookingID, rider.Email, utils.ClientFromRequest(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled",
		"booking": booking,
	})
}

// Ticket handles GET /api/v1/bookings/:id/ticket
func (h *BookingHandler) Ticket(c *gin.Context) {
	rider, ok := h.rider(c)
	if !ok {
		return
	}
	bookingID, ok := paramID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.GetBookingForRider(c.Request.Context(), bookingID, rider.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	pdf, err := h.tickets.RenderTicket(c.Request.Context(), booking)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", booking.Reference+".pdf"))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
