package services

import (
	"fmt"
	"time"

	"github.com/smarttransit/segment-booking/internal/models"
)

// Calendar decides which journey dates are in the past. Dates are compared
// as calendar days in Location, independent of the server's zone.
type Calendar struct {
	Location *time.Location
	Now      func() time.Time
}

// NewCalendar returns a Calendar on the wall clock
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Location: loc, Now: time.Now}
}

// Today is the current local date as a UTC midnight, the same shape
// models.ParseJourneyDate produces.
func (c Calendar) Today() time.Time {
	now := c.Now().In(c.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// CheckNotPast fails with ErrPastDate for any date before today
func (c Calendar) CheckNotPast(date time.Time) error {
	today := c.Today()
	if date.Before(today) {
		return fmt.Errorf("%w: %s is before %s", models.ErrPastDate,
			date.Format(models.DateLayout), today.Format(models.DateLayout))
	}
	return nil
}
