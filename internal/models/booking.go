package models

import (
	"fmt"
	"time"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// DateLayout is the wire format for journey dates.
const DateLayout = "2006-01-02"

// Segment is the half-open range [From, To) of leg sequence numbers a rider
// travels.
type Segment struct {
	From int `json:"from_seq"`
	To   int `json:"to_seq"`
}

// Validate rejects empty and reversed segments.
func (s Segment) Validate() error {
	if s.From < 1 || s.From >= s.To {
		return fmt.Errorf("%w: from_seq %d must be >= 1 and less than to_seq %d", ErrInvalidSegment, s.From, s.To)
	}
	return nil
}

// Overlaps reports whether two half-open segments share at least one leg.
// [a,b) and [c,d) overlap iff NOT (b <= c OR a >= d).
func (s Segment) Overlaps(other Segment) bool {
	return !(s.To <= other.From || s.From >= other.To)
}

// Booking is a single seat reserved for one segment of a run on one date.
type Booking struct {
	ID           int64         `json:"id" db:"id"`
	Reference    string        `json:"reference" db:"reference"`
	SeatID       int64         `json:"seat_id" db:"seat_id"`
	SeatNumber   string        `json:"seat_number" db:"seat_number"`
	RunID        int64         `json:"run_id" db:"run_id"`
	RiderID      int64         `json:"rider_id" db:"rider_id"`
	JourneyDate  time.Time     `json:"journey_date" db:"journey_date"`
	FromSeq      int           `json:"from_seq" db:"from_seq"`
	ToSeq        int           `json:"to_seq" db:"to_seq"`
	FromStopName string        `json:"from_stop_name" db:"from_stop_name"`
	ToStopName   string        `json:"to_stop_name" db:"to_stop_name"`
	Amount       float64       `json:"amount" db:"amount"`
	Status       BookingStatus `json:"status" db:"status"`
	Version      int           `json:"version" db:"version"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// Segment returns the booked leg range.
func (b *Booking) Segment() Segment {
	return Segment{From: b.FromSeq, To: b.ToSeq}
}

// IsActive reports whether the booking still holds its seat-segment.
func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusConfirmed
}

// BookSeatsRequest is the rider-facing booking payload.
type BookSeatsRequest struct {
	RunID       int64   `json:"run_id" binding:"required"`
	JourneyDate string  `json:"journey_date" binding:"required"`
	FromSeq     int     `json:"from_seq" binding:"required"`
	ToSeq       int     `json:"to_seq" binding:"required"`
	SeatIDs     []int64 `json:"seat_ids" binding:"required"`
}

// Validate checks the request shape; availability is checked later.
func (r *BookSeatsRequest) Validate() (time.Time, error) {
	if len(r.SeatIDs) == 0 {
		return time.Time{}, ErrInvalidInput("at least one seat is required")
	}
	seen := make(map[int64]bool, len(r.SeatIDs))
	for _, id := range r.SeatIDs {
		if seen[id] {
			return time.Time{}, ErrInvalidInput(fmt.Sprintf("seat %d requested more than once", id))
		}
		seen[id] = true
	}
	date, err := ParseJourneyDate(r.JourneyDate)
	if err != nil {
		return time.Time{}, err
	}
	return date, nil
}

// ParseJourneyDate parses a YYYY-MM-DD date.
func ParseJourneyDate(value string) (time.Time, error) {
	date, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, ErrInvalidInput(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", value))
	}
	return date, nil
}

// AuditLog records a booking lifecycle event for support and fraud review.
type AuditLog struct {
	ID         int64                  `json:"id" db:"id"`
	Action     string                 `json:"action" db:"action"`
	RiderID    int64                  `json:"rider_id" db:"rider_id"`
	BookingIDs Int64Array             `json:"booking_ids" db:"booking_ids"`
	IPAddress  string                 `json:"ip_address" db:"ip_address"`
	UserAgent  string                 `json:"user_agent" db:"user_agent"`
	Details    map[string]interface{} `json:"details" db:"-"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}
