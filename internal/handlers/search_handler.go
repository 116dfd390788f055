package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/services"
)

// SearchHandler serves itinerary search and seat availability
type SearchHandler struct {
	service *services.SearchService
	logger  *logrus.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(service *services.SearchService, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		service: service,
		logger:  logger,
	}
}

// Search handles GET /api/v1/search?from=&to=&date=
func (h *SearchHandler) Search(c *gin.Context) {
	response, err := h.service.SearchItineraries(c.Request.Context(), c.Query("from"), c.Query("to"), c.Query("date"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// SeatAvailability handles GET /api/v1/runs/:id/seats?fromSeq=&toSeq=&date=
func (h *SearchHandler) SeatAvailability(c *gin.Context) {
	runID, ok := paramID(c, "id")
	if !ok {
		return
	}
	fromSeq, ok := queryInt(c, "fromSeq")
	if !ok {
		return
	}
	toSeq, ok := queryInt(c, "toSeq")
	if !ok {
		return
	}

	seats, err := h.service.GetSeatAvailability(c.Request.Context(), runID, fromSeq, toSeq, c.Query("date"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "seats": seats})
}

// AllSeats handles GET /api/v1/runs/:id/seats/all
func (h *SearchHandler) AllSeats(c *gin.Context) {
	runID, ok := paramID(c, "id")
	if !ok {
		return
	}
	seats, err := h.service.ListSeats(c.Request.Context(), runID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "seats": seats})
}

// Stops handles GET /api/v1/stops
func (h *SearchHandler) Stops(c *gin.Context) {
	names, err := h.service.ListStopNames(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stops": names})
}
