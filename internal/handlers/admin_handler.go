package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/middleware"
	"github.com/smarttransit/segment-booking/internal/models"
	"github.com/smarttransit/segment-booking/internal/services"
	"github.com/smarttransit/segment-booking/internal/utils"
)

// AdminHandler serves run authoring and operational endpoints
type AdminHandler struct {
	routes   *services.RouteService
	bookings *services.BookingService
	logger   *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(routes *services.RouteService, bookings *services.BookingService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		routes:   routes,
		bookings: bookings,
		logger:   logger,
	}
}

// CreateRun handles POST /api/v1/admin/runs
func (h *AdminHandler) CreateRun(c *gin.Context) {
	var req models.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format: "+err.Error())
		return
	}

	run, legs, err := h.routes.CreateRun(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"run": run, "legs": legs})
}

// GetRun handles GET /api/v1/admin/runs/:id
func (h *AdminHandler) GetRun(c *gin.Context) {
	runID, ok := paramID(c, "id")
	if !ok {
		return
	}
	detail, err := h.routes.GetRunDetail(c.Request.Context(), runID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// UpdateLegFare handles PUT /api/v1/admin/runs/:id/legs/:seq/fare
func (h *AdminHandler) UpdateLegFare(c *gin.Context) {
	runID, ok := paramID(c, "id")
	if !ok {
		return
	}
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		badRequest(c, "invalid seq")
		return
	}

	var req models.UpdateLegFareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format: "+err.Error())
		return
	}

	legs, err := h.routes.UpdateLegFare(c.Request.Context(), runID, seq, req.PriceFromPrev)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "legs": legs})
}

// TodaySchedule handles GET /api/v1/admin/schedule/today?day=
func (h *AdminHandler) TodaySchedule(c *gin.Context) {
	schedule, err := h.routes.GetSchedule(c.Request.Context(), c.Query("day"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// AllBookings handles GET /api/v1/admin/bookings
func (h *AdminHandler) AllBookings(c *gin.Context) {
	bookings, err := h.bookings.ListAllBookings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// CancelBooking handles PATCH /api/v1/admin/bookings/:id/cancel
func (h *AdminHandler) CancelBooking(c *gin.Context) {
	bookingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	admin, _ := middleware.GetRiderContext(c)

	booking, err := h.bookings.AdminCancelBooking(c.Request.Context(), bookingID, admin.Email, utils.ClientFromRequest(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled",
		"booking": booking,
	})
}

// RecomputeFares handles POST /api/v1/admin/maintenance/recompute-fares
func (h *AdminHandler) RecomputeFares(c *gin.Context) {
	report, err := h.routes.RecomputeAllFares(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type registerRiderRequest struct {
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name"`
}

// RegisterRider handles POST /api/v1/admin/riders
func (h *AdminHandler) RegisterRider(c *gin.Context) {
	var req registerRiderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format: "+err.Error())
		return
	}
	rider, err := h.bookings.RegisterRider(c.Request.Context(), req.Email, req.FullName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rider)
}
