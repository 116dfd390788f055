package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/segment-booking/internal/models"
)

// RunRepository handles runs, legs, seats and stops in PostgreSQL
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new RunRepository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// GetRun returns a run by id
func (r *RunRepository) GetRun(ctx context.Context, id int64) (*models.Run, error) {
	run := &models.Run{}
	query := `
		SELECT id, name, bus_type, operator_name, capacity, schedule_days, created_at, updated_at
		FROM runs
		WHERE id = $1`

	err := r.db.GetContext(ctx, run, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run ordered by id
func (r *RunRepository) ListRuns(ctx context.Context) ([]models.Run, error) {
	query := `
		SELECT id, name, bus_type, operator_name, capacity, schedule_days, created_at, updated_at
		FROM runs
		ORDER BY id`

	var runs []models.Run
	if err := r.db.SelectContext(ctx, &runs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// ListLegs returns the legs of a run in sequence order, joined with stop names
func (r *RunRepository) ListLegs(ctx context.Context, runID int64) ([]models.Leg, error) {
	query := `
		SELECT l.id, l.run_id, l.sequence_order, l.stop_id, s.name AS stop_name,
		       l.arrival_time, l.price_from_prev, l.cumulative_fare
		FROM legs l
		JOIN stops s ON s.id = l.stop_id
		WHERE l.run_id = $1
		ORDER BY l.sequence_order`

	var legs []models.Leg
	if err := r.db.SelectContext(ctx, &legs, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list legs: %w", err)
	}
	return legs, nil
}

// ListSeats returns the seats of a run ordered by id
func (r *RunRepository) ListSeats(ctx context.Context, runID int64) ([]models.Seat, error) {
	query := `
		SELECT id, run_id, seat_number, available
		FROM seats
		WHERE run_id = $1
		ORDER BY id`

	var seats []models.Seat
	if err := r.db.SelectContext(ctx, &seats, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	return seats, nil
}

// ListStops returns all stops ordered by name
func (r *RunRepository) ListStops(ctx context.Context) ([]models.Stop, error) {
	var stops []models.Stop
	err := r.db.SelectContext(ctx, &stops, `SELECT id, name, city_code FROM stops ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stops: %w", err)
	}
	return stops, nil
}

// FindOrCreateStop looks a stop up by name ignoring case, creating it if absent
func (r *RunRepository) FindOrCreateStop(ctx context.Context, name, cityCode string) (*models.Stop, error) {
	stop := &models.Stop{}
	query := `
		INSERT INTO stops (name, city_code)
		VALUES ($1, $2)
		ON CONFLICT ((LOWER(name))) DO UPDATE SET name = stops.name
		RETURNING id, name, city_code`

	err := r.db.QueryRowxContext(ctx, query, strings.TrimSpace(name), cityCode).StructScan(stop)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create stop %s: %w", name, err)
	}
	return stop, nil
}

// CreateRun inserts a run with its legs and seats 1..capacity in one transaction
func (r *RunRepository) CreateRun(ctx context.Context, run *models.Run, legs []models.Leg) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runQuery := `
		INSERT INTO runs (name, bus_type, operator_name, capacity, schedule_days)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, runQuery,
		run.Name, run.BusType, run.OperatorName, run.Capacity, run.ScheduleDays,
	).Scan(&run.ID, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	legQuery := `
		INSERT INTO legs (run_id, sequence_order, stop_id, arrival_time, price_from_prev, cumulative_fare)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range legs {
		legs[i].RunID = run.ID
		err = tx.QueryRowxContext(ctx, legQuery,
			legs[i].RunID, legs[i].SequenceOrder, legs[i].StopID,
			legs[i].ArrivalTime, legs[i].PriceFromPrev, legs[i].CumulativeFare,
		).Scan(&legs[i].ID)
		if err != nil {
			return fmt.Errorf("failed to create leg %d: %w", legs[i].SequenceOrder, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO seats (run_id, seat_number, available)
		SELECT $1, gs::text, TRUE FROM generate_series(1, $2) AS gs`,
		run.ID, run.Capacity)
	if err != nil {
		return fmt.Errorf("failed to create seats: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateLegFares rewrites the increment and cumulative columns of a run's
// legs under a row lock
func (r *RunRepository) UpdateLegFares(ctx context.Context, runID int64, update LegUpdate) ([]models.Leg, error) {
	return r.rewriteLegs(ctx, runID, update, `
		UPDATE legs
		SET price_from_prev = $1, cumulative_fare = $2
		WHERE run_id = $3 AND sequence_order = $4`,
		func(l models.Leg) []interface{} { return []interface{}{l.PriceFromPrev, l.CumulativeFare} })
}

// UpdateCumulativeFares rewrites only the cumulative column under a row lock
func (r *RunRepository) UpdateCumulativeFares(ctx context.Context, runID int64, update LegUpdate) ([]models.Leg, error) {
	return r.rewriteLegs(ctx, runID, update, `
		UPDATE legs
		SET cumulative_fare = $1
		WHERE run_id = $2 AND sequence_order = $3`,
		func(l models.Leg) []interface{} { return []interface{}{l.CumulativeFare} })
}

// rewriteLegs locks the legs, applies update and writes each returned leg
// with setQuery. The run id and sequence order follow the values from args.
func (r *RunRepository) rewriteLegs(
	ctx context.Context,
	runID int64,
	update LegUpdate,
	setQuery string,
	args func(models.Leg) []interface{},
) ([]models.Leg, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var legs []models.Leg
	err = tx.SelectContext(ctx, &legs, `
		SELECT l.id, l.run_id, l.sequence_order, l.stop_id, s.name AS stop_name,
		       l.arrival_time, l.price_from_prev, l.cumulative_fare
		FROM legs l
		JOIN stops s ON s.id = l.stop_id
		WHERE l.run_id = $1
		ORDER BY l.sequence_order
		FOR UPDATE OF l`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock legs: %w", err)
	}
	if len(legs) == 0 {
		return nil, models.ErrRunNotFound
	}

	updated, err := update(legs)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return legs, nil
	}

	for _, leg := range updated {
		values := append(args(leg), runID, leg.SequenceOrder)
		result, err := tx.ExecContext(ctx, setQuery, values...)
		if err != nil {
			return nil, fmt.Errorf("failed to update leg %d: %w", leg.SequenceOrder, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("%w: leg %d not found on run %d", models.ErrInvalidSegment, leg.SequenceOrder, runID)
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE runs SET updated_at = NOW() WHERE id = $1`, runID); err != nil {
		return nil, fmt.Errorf("failed to touch run: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}
