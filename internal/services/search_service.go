package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/database"
	"github.com/smarttransit/segment-booking/internal/models"
)

// SearchService handles itinerary search and seat availability reads.
// Results are hints; the booking transaction re-checks everything.
type SearchService struct {
	runs     database.RunStore
	bookings database.BookingStore
	calendar Calendar
	logger   *logrus.Logger
}

// NewSearchService creates a new search service
func NewSearchService(runs database.RunStore, bookings database.BookingStore, calendar Calendar, logger *logrus.Logger) *SearchService {
	return &SearchService{
		runs:     runs,
		bookings: bookings,
		calendar: calendar,
		logger:   logger,
	}
}

func matchesStop(stopName, query string) bool {
	return strings.EqualFold(strings.TrimSpace(stopName), strings.TrimSpace(query))
}

// SearchItineraries finds runs operating on date that visit from before to
func (s *SearchService) SearchItineraries(ctx context.Context, from, to, date string) (*models.SearchResponse, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return nil, models.ErrInvalidInput("from and to are required")
	}
	journeyDate, err := models.ParseJourneyDate(date)
	if err != nil {
		return nil, err
	}
	if err := s.calendar.CheckNotPast(journeyDate); err != nil {
		return nil, err
	}

	startTime := time.Now()
	response := &models.SearchResponse{
		From:    from,
		To:      to,
		Date:    journeyDate.Format(models.DateLayout),
		Results: []models.ItineraryResult{},
	}

	runs, err := s.runs.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	for i := range runs {
		run := &runs[i]
		if !run.RunsOn(journeyDate.Weekday()) {
			continue
		}
		legs, err := s.runs.ListLegs(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		if result, ok := itineraryFor(run, SortLegs(legs), from, to); ok {
			response.Results = append(response.Results, result)
		}
	}

	sort.SliceStable(response.Results, func(i, j int) bool {
		a, b := response.Results[i], response.Results[j]
		if a.DepartureTime != b.DepartureTime {
			return a.DepartureTime < b.DepartureTime
		}
		return a.RunID < b.RunID
	})

	if len(response.Results) == 0 {
		response.Message = fmt.Sprintf("No buses found from %s to %s on %s", from, to, response.Date)
	}

	s.logger.WithFields(logrus.Fields{
		"from":          from,
		"to":            to,
		"date":          response.Date,
		"results_count": len(response.Results),
		"response_time": time.Since(startTime).Milliseconds(),
	}).Info("Search completed")

	return response, nil
}

// itineraryFor prices the first from-leg that precedes a matching to-leg
func itineraryFor(run *models.Run, legs []models.Leg, from, to string) (models.ItineraryResult, bool) {
	for i := range legs {
		if !matchesStop(legs[i].StopName, from) {
			continue
		}
		for j := i + 1; j < len(legs); j++ {
			if !matchesStop(legs[j].StopName, to) {
				continue
			}
			price, err := Fare(legs, legs[i].SequenceOrder, legs[j].SequenceOrder)
			if err != nil {
				return models.ItineraryResult{}, false
			}
			intermediate := make([]string, 0, j-i-1)
			for _, leg := range legs[i+1 : j] {
				intermediate = append(intermediate, leg.StopName)
			}
			return models.ItineraryResult{
				RunID:             run.ID,
				RunName:           run.Name,
				BusType:           run.BusType,
				OperatorName:      run.OperatorName,
				DepartureTime:     legs[i].ArrivalTime,
				ArrivalTime:       legs[j].ArrivalTime,
				Price:             price,
				IntermediateStops: intermediate,
				FromSeq:           legs[i].SequenceOrder,
				ToSeq:             legs[j].SequenceOrder,
			}, true
		}
	}
	return models.ItineraryResult{}, false
}

// GetSeatAvailability reports, per seat of the run, whether the segment is
// free on date. Reads committed state without locking.
func (s *SearchService) GetSeatAvailability(ctx context.Context, runID int64, fromSeq, toSeq int, date string) ([]models.SeatAvailability, error) {
	journeyDate, err := models.ParseJourneyDate(date)
	if err != nil {
		return nil, err
	}
	seg := models.Segment{From: fromSeq, To: toSeq}
	if err := seg.Validate(); err != nil {
		return nil, err
	}

	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	legs, err := s.runs.ListLegs(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if _, err := Fare(legs, fromSeq, toSeq); err != nil {
		return nil, err
	}

	seats, err := s.runs.ListSeats(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	out := make([]models.SeatAvailability, 0, len(seats))
	for _, seat := range seats {
		conflicts, err := s.bookings.FindConflictingBookings(ctx, seat.ID, journeyDate, seg)
		if err != nil {
			return nil, err
		}
		out = append(out, models.SeatAvailability{
			SeatID:     seat.ID,
			SeatNumber: seat.SeatNumber,
			Available:  len(conflicts) == 0,
		})
	}
	return out, nil
}

// ListSeats returns a run's seats with no date context; every seat is
// reported available.
func (s *SearchService) ListSeats(ctx context.Context, runID int64) ([]models.SeatAvailability, error) {
	if _, err := s.runs.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	seats, err := s.runs.ListSeats(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make([]models.SeatAvailability, 0, len(seats))
	for _, seat := range seats {
		out = append(out, models.SeatAvailability{SeatID: seat.ID, SeatNumber: seat.SeatNumber, Available: true})
	}
	return out, nil
}

// ListStopNames returns every stop name, sorted
func (s *SearchService) ListStopNames(ctx context.Context) ([]string, error) {
	stops, err := s.runs.ListStops(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(stops))
	for _, stop := range stops {
		names = append(names, stop.Name)
	}
	sort.Strings(names)
	return names, nil
}
