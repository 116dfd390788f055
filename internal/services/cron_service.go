package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronService runs scheduled maintenance jobs
type CronService struct {
	cron     *cron.Cron
	routes   *RouteService
	schedule string
	logger   *logrus.Logger
}

// NewCronService creates a new CronService. schedule uses the six-field
// format with seconds; empty disables the fare repair job.
func NewCronService(routes *RouteService, schedule string, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:     cron.New(cron.WithSeconds()),
		routes:   routes,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the jobs and starts the scheduler
func (s *CronService) Start() error {
	if s.schedule == "" {
		s.logger.Info("Fare repair job disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.recomputeFaresJob); err != nil {
		return fmt.Errorf("failed to schedule fare repair job: %w", err)
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Scheduled: cumulative fare repair")
	return nil
}

// Stop waits for running jobs to finish
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Cron service stopped")
}

// Entries returns the number of registered jobs
func (s *CronService) Entries() int {
	return len(s.cron.Entries())
}

func (s *CronService) recomputeFaresJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	startTime := time.Now()
	report, err := s.routes.RecomputeAllFares(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Fare repair failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"runs_checked": report.RunsChecked,
		"runs_updated": report.RunsUpdated,
		"duration":     time.Since(startTime).String(),
	}).Info("[CRON] Fare repair finished")
}

// RunRecomputeFaresNow runs the repair job immediately
func (s *CronService) RunRecomputeFaresNow() {
	s.recomputeFaresJob()
}
