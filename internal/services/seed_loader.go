package services

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/models"
	"gopkg.in/yaml.v3"
)

// SeedFile is the fixture format for riders and runs
type SeedFile struct {
	Riders []SeedRider               `yaml:"riders"`
	Runs   []models.CreateRunRequest `yaml:"runs"`
}

// SeedRider is one rider identity in a seed file
type SeedRider struct {
	Email    string `yaml:"email"`
	FullName string `yaml:"name"`
}

// SeedLoader authors fixtures through the regular services so every
// invariant applies to seeded data too.
type SeedLoader struct {
	routes   *RouteService
	bookings *BookingService
	logger   *logrus.Logger
}

// NewSeedLoader creates a new seed loader
func NewSeedLoader(routes *RouteService, bookings *BookingService, logger *logrus.Logger) *SeedLoader {
	return &SeedLoader{routes: routes, bookings: bookings, logger: logger}
}

// LoadFile reads and applies a YAML seed file
func (l *SeedLoader) LoadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return l.Load(ctx, f)
}

// Load applies a YAML seed document. Runs whose name already exists are
// skipped, so loading the same file twice adds nothing.
func (l *SeedLoader) Load(ctx context.Context, r io.Reader) error {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	for _, sr := range seed.Riders {
		if _, err := l.bookings.RegisterRider(ctx, sr.Email, sr.FullName); err != nil {
			return fmt.Errorf("failed to seed rider %s: %w", sr.Email, err)
		}
	}
	created, skipped := 0, 0
	for i := range seed.Runs {
		existing, err := l.routes.FindRunByName(ctx, seed.Runs[i].Name)
		if err != nil {
			return fmt.Errorf("failed to look up run %q: %w", seed.Runs[i].Name, err)
		}
		if existing != nil {
			skipped++
			l.logger.WithField("run_id", existing.ID).Debug("Seed run already exists")
			continue
		}
		if _, _, err := l.routes.CreateRun(ctx, &seed.Runs[i]); err != nil {
			return fmt.Errorf("failed to seed run %q: %w", seed.Runs[i].Name, err)
		}
		created++
	}

	l.logger.WithFields(logrus.Fields{
		"riders":       len(seed.Riders),
		"runs_created": created,
		"runs_skipped": skipped,
	}).Info("Seed data loaded")
	return nil
}
