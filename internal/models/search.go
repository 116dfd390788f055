package models

import "time"

// ItineraryResult is one priced way to travel between two stops on a run.
type ItineraryResult struct {
	RunID             int64    `json:"run_id"`
	RunName           string   `json:"run_name"`
	BusType           string   `json:"bus_type"`
	OperatorName      string   `json:"operator_name"`
	DepartureTime     string   `json:"departure_time"`
	ArrivalTime       string   `json:"arrival_time"`
	Price             float64  `json:"price"`
	IntermediateStops []string `json:"intermediate_stops"`
	FromSeq           int      `json:"from_seq"`
	ToSeq             int      `json:"to_seq"`
}

// SearchResponse wraps search results with the normalized query.
type SearchResponse struct {
	From    string            `json:"from"`
	To      string            `json:"to"`
	Date    string            `json:"date"`
	Results []ItineraryResult `json:"results"`
	Message string            `json:"message,omitempty"`
}

// SeatAvailability is the per-date state of one seat for a segment.
type SeatAvailability struct {
	SeatID     int64  `json:"seat_id"`
	SeatNumber string `json:"seat_number"`
	Available  bool   `json:"available"`
}

// RunStatusInfo summarizes a run for the daily schedule view.
type RunStatusInfo struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	BusType      string   `json:"bus_type"`
	OperatorName string   `json:"operator_name"`
	Capacity     int      `json:"capacity"`
	ScheduleDays []string `json:"schedule_days"`
	Route        string   `json:"route"`
}

// ScheduleResponse splits runs into those operating on a day and the rest.
type ScheduleResponse struct {
	Date           string          `json:"date"`
	DayOfWeek      string          `json:"day_of_week"`
	TotalRuns      int             `json:"total_runs"`
	RunsOperating  int             `json:"runs_operating"`
	RunningRuns    []RunStatusInfo `json:"running_runs"`
	NotRunningRuns []RunStatusInfo `json:"not_running_runs"`
}

// FareRepairReport is the outcome of a cumulative fare repair pass.
type FareRepairReport struct {
	RunsChecked int       `json:"runs_checked"`
	RunsUpdated int       `json:"runs_updated"`
	UpdatedRuns []int64   `json:"updated_runs"`
	FinishedAt  time.Time `json:"finished_at"`
}

// ErrInvalidInput creates a validation error
func ErrInvalidInput(message string) error {
	return &ValidationError{Message: message}
}

// ValidationError represents a validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
