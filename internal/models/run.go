package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Stop is a named place served by one or more runs. Names are unique
// ignoring case.
type Stop struct {
	ID       int64  `json:"id" db:"id" yaml:"-"`
	Name     string `json:"name" db:"name"`
	CityCode string `json:"city_code" db:"city_code"`
}

// Run is a scheduled bus trip template: fixed stops and seat count,
// recurring on a set of weekdays.
type Run struct {
	ID           int64        `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	BusType      string       `json:"bus_type" db:"bus_type"`
	OperatorName string       `json:"operator_name" db:"operator_name"`
	Capacity     int          `json:"capacity" db:"capacity"`
	ScheduleDays ScheduleDays `json:"schedule_days" db:"schedule_days"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// RunsOn reports whether the run operates on the given weekday.
func (r *Run) RunsOn(day time.Weekday) bool {
	return r.ScheduleDays.Includes(day)
}

// Leg is one stop on a run's route. CumulativeFare is the prefix sum of
// PriceFromPrev from sequence 1 up to and including this leg.
type Leg struct {
	ID             int64   `json:"id" db:"id"`
	RunID          int64   `json:"run_id" db:"run_id"`
	SequenceOrder  int     `json:"sequence_order" db:"sequence_order"`
	StopID         int64   `json:"stop_id" db:"stop_id"`
	StopName       string  `json:"stop_name" db:"stop_name"`
	ArrivalTime    string  `json:"arrival_time" db:"arrival_time"`
	PriceFromPrev  float64 `json:"price_from_prev" db:"price_from_prev"`
	CumulativeFare float64 `json:"cumulative_fare" db:"cumulative_fare"`
}

// Seat belongs to exactly one run. Available is an administrative default
// only; per-date availability is derived from bookings.
type Seat struct {
	ID         int64  `json:"id" db:"id"`
	RunID      int64  `json:"run_id" db:"run_id"`
	SeatNumber string `json:"seat_number" db:"seat_number"`
	Available  bool   `json:"available" db:"available"`
}

// RunDetail is a run with its ordered legs and seats.
type RunDetail struct {
	Run   Run    `json:"run"`
	Legs  []Leg  `json:"legs"`
	Seats []Seat `json:"seats"`
}

// Rider is a passenger identity resolved from the verified email supplied
// by the identity subsystem.
type Rider struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name" db:"full_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

var arrivalTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// LegRequest describes one stop while authoring a run.
type LegRequest struct {
	StopName      string  `json:"stop_name" yaml:"stop" binding:"required"`
	CityCode      string  `json:"city_code" yaml:"city"`
	SequenceOrder int     `json:"sequence_order" yaml:"seq"`
	ArrivalTime   string  `json:"arrival_time" yaml:"arrival"`
	PriceFromPrev float64 `json:"price_from_prev" yaml:"priceFromPrev"`
}

// CreateRunRequest is the authoring payload for a new run.
type CreateRunRequest struct {
	Name         string       `json:"name" yaml:"name" binding:"required"`
	BusType      string       `json:"bus_type" yaml:"type"`
	OperatorName string       `json:"operator_name" yaml:"operator"`
	Capacity     int          `json:"capacity" yaml:"capacity"`
	ScheduleDays []string     `json:"schedule_days" yaml:"scheduleDays"`
	Legs         []LegRequest `json:"legs" yaml:"legs"`
}

// Validate checks the authoring payload. Legs without an explicit
// sequence order are numbered by position.
func (r *CreateRunRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidInput("run name is required")
	}
	if r.Capacity <= 0 {
		return ErrInvalidInput("capacity must be greater than zero")
	}
	if len(r.Legs) < 2 {
		return ErrInvalidInput("a run needs at least two stops")
	}

	seenStops := make(map[string]bool, len(r.Legs))
	prevSeq := 0
	for i := range r.Legs {
		leg := &r.Legs[i]
		if leg.SequenceOrder == 0 {
			leg.SequenceOrder = i + 1
		}
		if leg.SequenceOrder <= prevSeq {
			return ErrInvalidInput(fmt.Sprintf("sequence order must be strictly increasing (leg %d)", i+1))
		}
		prevSeq = leg.SequenceOrder

		name := strings.ToLower(strings.TrimSpace(leg.StopName))
		if name == "" {
			return ErrInvalidInput(fmt.Sprintf("stop name is required (leg %d)", i+1))
		}
		if seenStops[name] {
			return ErrInvalidInput(fmt.Sprintf("stop %s appears more than once", leg.StopName))
		}
		seenStops[name] = true

		if leg.PriceFromPrev < 0 {
			return ErrInvalidInput(fmt.Sprintf("price from previous stop cannot be negative (leg %d)", i+1))
		}
		if leg.ArrivalTime != "" && !arrivalTimePattern.MatchString(leg.ArrivalTime) {
			return ErrInvalidInput(fmt.Sprintf("arrival time must be HH:MM (leg %d)", i+1))
		}
	}
	if r.Legs[0].SequenceOrder != 1 {
		return ErrInvalidInput("first stop must have sequence order 1")
	}
	return nil
}

// UpdateLegFareRequest changes the increment of a single leg.
type UpdateLegFareRequest struct {
	PriceFromPrev float64 `json:"price_from_prev"`
}
