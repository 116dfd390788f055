package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/models"
)

type errorMapping struct {
	target error
	status int
	label  string
	code   string
}

var errorMappings = []errorMapping{
	{models.ErrPastDate, http.StatusBadRequest, "validation_error", "PAST_DATE"},
	{models.ErrInvalidSegment, http.StatusBadRequest, "validation_error", "INVALID_SEGMENT"},
	{models.ErrRunNotFound, http.StatusNotFound, "not_found", "RUN_NOT_FOUND"},
	{models.ErrSeatNotFound, http.StatusNotFound, "not_found", "SEAT_NOT_FOUND"},
	{models.ErrBookingNotFound, http.StatusNotFound, "not_found", "BOOKING_NOT_FOUND"},
	{models.ErrRiderNotFound, http.StatusNotFound, "not_found", "RIDER_NOT_FOUND"},
	{models.ErrUnauthorized, http.StatusForbidden, "forbidden", "NOT_BOOKING_OWNER"},
	{models.ErrSeatUnavailable, http.StatusConflict, "conflict", "SEAT_UNAVAILABLE"},
	{models.ErrConcurrentModification, http.StatusConflict, "conflict", "CONCURRENT_MODIFICATION"},
	{models.ErrTransactionTimeout, http.StatusServiceUnavailable, "timeout", "TRANSACTION_TIMEOUT"},
}

// respondError maps typed failures to {error, message, code}. Anything
// unrecognised is logged and reported as a 500 without details.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var validation *models.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": validation.Message,
			"code":    "VALIDATION_ERROR",
		})
		return
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		body := gin.H{
			"error":   m.label,
			"message": err.Error(),
			"code":    m.code,
		}
		var seatErr *models.SeatUnavailableError
		if errors.As(err, &seatErr) {
			body["seat_id"] = seatErr.SeatID
			body["seat_number"] = seatErr.SeatNumber
		}
		c.JSON(m.status, body)
		return
	}

	logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "Something went wrong. Please try again later.",
		"code":    "INTERNAL_ERROR",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "validation_error",
		"message": message,
		"code":    "VALIDATION_ERROR",
	})
}

// paramID parses a positive integer path parameter
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt parses a required integer query parameter
func queryInt(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		badRequest(c, name+" must be an integer")
		return 0, false
	}
	return v, true
}
