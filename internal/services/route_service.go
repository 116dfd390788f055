package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/database"
	"github.com/smarttransit/segment-booking/internal/models"
)

// RouteService authors runs and keeps their cumulative fare column
// consistent with the per-leg increments.
type RouteService struct {
	runs     database.RunStore
	calendar Calendar
	logger   *logrus.Logger
}

// NewRouteService creates a new route service
func NewRouteService(runs database.RunStore, calendar Calendar, logger *logrus.Logger) *RouteService {
	return &RouteService{
		runs:     runs,
		calendar: calendar,
		logger:   logger,
	}
}

// CreateRun validates the payload, creates missing stops by name, builds
// the cumulative fares and stores the run with seats 1..capacity.
func (s *RouteService) CreateRun(ctx context.Context, req *models.CreateRunRequest) (*models.Run, []models.Leg, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	days, err := models.ParseScheduleDays(req.ScheduleDays)
	if err != nil {
		return nil, nil, err
	}

	legs := make([]models.Leg, 0, len(req.Legs))
	for _, lr := range req.Legs {
		stop, err := s.runs.FindOrCreateStop(ctx, lr.StopName, lr.CityCode)
		if err != nil {
			return nil, nil, err
		}
		legs = append(legs, models.Leg{
			SequenceOrder: lr.SequenceOrder,
			StopID:        stop.ID,
			StopName:      stop.Name,
			ArrivalTime:   lr.ArrivalTime,
			PriceFromPrev: lr.PriceFromPrev,
		})
	}
	legs = BuildCumulativeFares(legs)

	run := &models.Run{
		Name:         strings.TrimSpace(req.Name),
		BusType:      req.BusType,
		OperatorName: req.OperatorName,
		Capacity:     req.Capacity,
		ScheduleDays: days,
	}
	if err := s.runs.CreateRun(ctx, run, legs); err != nil {
		return nil, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":   run.ID,
		"name":     run.Name,
		"legs":     len(legs),
		"capacity": run.Capacity,
	}).Info("Run created")
	return run, legs, nil
}

// UpdateLegFare changes one leg's increment and rebuilds the run's
// cumulative column while the store holds the legs locked.
func (s *RouteService) UpdateLegFare(ctx context.Context, runID int64, seq int, priceFromPrev float64) ([]models.Leg, error) {
	if priceFromPrev < 0 {
		return nil, models.ErrInvalidInput("price from previous stop cannot be negative")
	}
	if _, err := s.runs.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rebuilt, err := s.runs.UpdateLegFares(ctx, runID, func(legs []models.Leg) ([]models.Leg, error) {
		leg := FindLeg(legs, seq)
		if leg == nil {
			return nil, fmt.Errorf("%w: no stop with sequence %d", models.ErrInvalidSegment, seq)
		}
		leg.PriceFromPrev = priceFromPrev
		return BuildCumulativeFares(legs), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":          runID,
		"sequence_order":  seq,
		"price_from_prev": priceFromPrev,
	}).Info("Leg fare updated")
	return rebuilt, nil
}

// RecomputeAllFares is the one-shot repair pass: every run whose stored
// cumulative column disagrees with the prefix sum is rewritten. Only the
// cumulative column is written, from increments read under the same lock.
func (s *RouteService) RecomputeAllFares(ctx context.Context) (*models.FareRepairReport, error) {
	runs, err := s.runs.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	report := &models.FareRepairReport{UpdatedRuns: []int64{}}
	for _, run := range runs {
		repaired := false
		_, err := s.runs.UpdateCumulativeFares(ctx, run.ID, func(legs []models.Leg) ([]models.Leg, error) {
			if !NeedsRepair(legs) {
				return nil, nil
			}
			repaired = true
			return BuildCumulativeFares(legs), nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to repair fares for run %d: %w", run.ID, err)
		}
		report.RunsChecked++
		if !repaired {
			continue
		}
		report.RunsUpdated++
		report.UpdatedRuns = append(report.UpdatedRuns, run.ID)
		s.logger.WithField("run_id", run.ID).Warn("Rebuilt inconsistent cumulative fares")
	}
	report.FinishedAt = time.Now()

	s.logger.WithFields(logrus.Fields{
		"runs_checked": report.RunsChecked,
		"runs_updated": report.RunsUpdated,
	}).Info("Fare repair finished")
	return report, nil
}

// GetRunDetail returns a run with its legs and seats
func (s *RouteService) GetRunDetail(ctx context.Context, runID int64) (*models.RunDetail, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	legs, err := s.runs.ListLegs(ctx, runID)
	if err != nil {
		return nil, err
	}
	seats, err := s.runs.ListSeats(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &models.RunDetail{Run: *run, Legs: SortLegs(legs), Seats: seats}, nil
}

// FindRunByName returns the first run whose name matches, ignoring case and
// surrounding whitespace, or nil.
func (s *RouteService) FindRunByName(ctx context.Context, name string) (*models.Run, error) {
	runs, err := s.runs.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for i := range runs {
		if strings.ToLower(strings.TrimSpace(runs[i].Name)) == want {
			return &runs[i], nil
		}
	}
	return nil, nil
}

// GetSchedule splits runs into those operating today and the rest. A
// non-empty day name overrides today's weekday.
func (s *RouteService) GetSchedule(ctx context.Context, day string) (*models.ScheduleResponse, error) {
	today := s.calendar.Today()
	weekday := today.Weekday()
	if strings.TrimSpace(day) != "" {
		parsed, err := models.ParseWeekday(day)
		if err != nil {
			return nil, err
		}
		weekday = parsed
	}

	runs, err := s.runs.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	response := &models.ScheduleResponse{
		Date:           today.Format(models.DateLayout),
		DayOfWeek:      strings.ToUpper(weekday.String()),
		TotalRuns:      len(runs),
		RunningRuns:    []models.RunStatusInfo{},
		NotRunningRuns: []models.RunStatusInfo{},
	}

	for i := range runs {
		run := &runs[i]
		legs, err := s.runs.ListLegs(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		info := models.RunStatusInfo{
			ID:           run.ID,
			Name:         run.Name,
			BusType:      run.BusType,
			OperatorName: run.OperatorName,
			Capacity:     run.Capacity,
			ScheduleDays: run.ScheduleDays.Sorted(),
			Route:        routeLabel(SortLegs(legs)),
		}
		if run.RunsOn(weekday) {
			response.RunningRuns = append(response.RunningRuns, info)
		} else {
			response.NotRunningRuns = append(response.NotRunningRuns, info)
		}
	}
	response.RunsOperating = len(response.RunningRuns)
	return response, nil
}

func routeLabel(legs []models.Leg) string {
	if len(legs) == 0 {
		return ""
	}
	return legs[0].StopName + " → " + legs[len(legs)-1].StopName
}
