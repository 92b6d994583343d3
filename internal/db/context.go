package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"alert-service/internal/models"
)

// LoadAlertContext fetches the alert's entity and, when referenced and still
// present, its source movement with the movement's entity fields.
func (d *DB) LoadAlertContext(ctx context.Context, alert models.Alert) (models.AlertContext, error) {
	var out models.AlertContext

	var e models.Entity
	err := d.Pool.QueryRow(ctx, `SELECT id, name, fiscal_id FROM entities WHERE id = $1`, alert.EntityID).
		Scan(&e.ID, &e.Name, &e.FiscalID)
	switch {
	case err == nil:
		out.Entity = &e
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return out, fmt.Errorf("failed to load entity %d: %w", alert.EntityID, err)
	}

	if alert.SourceMovementID == nil {
		return out, nil
	}

	query := `
	SELECT m.id, m.entity_id, m.description, m.due_date, m.created_at,
	       COALESCE(e.name, ''), COALESCE(e.fiscal_id, '')
	FROM movements m
	LEFT JOIN entities e ON e.id = m.entity_id
	WHERE m.id = $1`

	var m models.Movement
	err = d.Pool.QueryRow(ctx, query, *alert.SourceMovementID).Scan(
		&m.ID, &m.EntityID, &m.Description, &m.DueDate, &m.CreatedAt, &m.EntityName, &m.EntityFiscalID,
	)
	switch {
	case err == nil:
		out.Movement = &m
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return out, fmt.Errorf("failed to load movement %d: %w", *alert.SourceMovementID, err)
	}
	return out, nil
}
