package models

import (
	"errors"
	"fmt"
)

// Booking failures surfaced to callers. Match with errors.Is.
var (
	ErrPastDate               = errors.New("journey date is in the past")
	ErrInvalidSegment         = errors.New("invalid segment")
	ErrSeatUnavailable        = errors.New("seat is not available for the selected segment")
	ErrRunNotFound            = errors.New("run not found")
	ErrSeatNotFound           = errors.New("seat not found")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrRiderNotFound          = errors.New("rider not found")
	ErrUnauthorized           = errors.New("booking belongs to another rider")
	ErrTransactionTimeout     = errors.New("booking transaction timed out")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
)

// SeatUnavailableError names the seat that failed a multi-seat request.
type SeatUnavailableError struct {
	SeatID     int64
	SeatNumber string
}

func (e *SeatUnavailableError) Error() string {
	if e.SeatNumber != "" {
		return fmt.Sprintf("seat %s is not available for the selected segment", e.SeatNumber)
	}
	return fmt.Sprintf("seat %d is not available for the selected segment", e.SeatID)
}

// Unwrap lets errors.Is(err, ErrSeatUnavailable) match.
func (e *SeatUnavailableError) Unwrap() error {
	return ErrSeatUnavailable
}
