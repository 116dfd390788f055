package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/segment-booking/internal/models"
)

// AuditRepository writes booking audit records to PostgreSQL
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// InsertAuditLog stores one audit record
func (r *AuditRepository) InsertAuditLog(ctx context.Context, entry *models.AuditLog) error {
	details := []byte("{}")
	if len(entry.Details) > 0 {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to serialize audit details: %w", err)
		}
		details = b
	}

	query := `
		INSERT INTO booking_audit_logs (action, rider_id, booking_ids, ip_address, user_agent, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		entry.Action, entry.RiderID, entry.BookingIDs, entry.IPAddress, entry.UserAgent, string(details),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}
