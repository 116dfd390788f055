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

// RiderRepository resolves rider identities in PostgreSQL
type RiderRepository struct {
	db *sqlx.DB
}

// NewRiderRepository creates a new RiderRepository
func NewRiderRepository(db *sqlx.DB) *RiderRepository {
	return &RiderRepository{db: db}
}

// GetRiderByEmail finds a rider by email ignoring case
func (r *RiderRepository) GetRiderByEmail(ctx context.Context, email string) (*models.Rider, error) {
	rider := &models.Rider{}
	query := `SELECT id, email, full_name, created_at FROM riders WHERE LOWER(email) = LOWER($1)`

	err := r.db.GetContext(ctx, rider, query, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrRiderNotFound
		}
		return nil, fmt.Errorf("failed to get rider: %w", err)
	}
	return rider, nil
}

// CreateRider inserts a rider, or refreshes the name of an existing one
func (r *RiderRepository) CreateRider(ctx context.Context, rider *models.Rider) error {
	query := `
		INSERT INTO riders (email, full_name)
		VALUES ($1, $2)
		ON CONFLICT ((LOWER(email))) DO UPDATE SET full_name = EXCLUDED.full_name
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query, strings.TrimSpace(rider.Email), rider.FullName).
		Scan(&rider.ID, &rider.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rider: %w", err)
	}
	return nil
}
