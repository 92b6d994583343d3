package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"alert-service/internal/models"
)

const alertColumns = `id, type, level, status, entity_id, source_movement_id, notes,
	created_at, updated_at, resolved_at, notified_at`

func scanAlert(row pgx.Row) (models.Alert, error) {
	var a models.Alert
	err := row.Scan(
		&a.ID,
		&a.Type,
		&a.Level,
		&a.Status,
		&a.EntityID,
		&a.SourceMovementID,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.ResolvedAt,
		&a.NotifiedAt,
	)
	return a, err
}

func alertErr(op string, id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("alert %d: %w", id, models.ErrNotFound)
	}
	return fmt.Errorf("failed to %s alert %d: %w", op, id, err)
}

// CreateAlert inserts a new open alert at level simple. A second open alert
// for the same source movement and type yields models.ErrDuplicateAlert.
func (d *DB) CreateAlert(ctx context.Context, in models.AlertCreate) (models.Alert, error) {
	query := `
	INSERT INTO alerts (type, level, status, entity_id, source_movement_id, notes, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	RETURNING ` + alertColumns

	a, err := scanAlert(d.Pool.QueryRow(ctx, query,
		in.Type,
		models.LevelSimple,
		models.StatusOpen,
		in.EntityID,
		in.SourceMovementID,
		in.Notes,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Alert{}, models.ErrDuplicateAlert
		}
		return models.Alert{}, fmt.Errorf("failed to insert alert: %w", err)
	}
	return a, nil
}

func (d *DB) GetAlert(ctx context.Context, id int64) (models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	a, err := scanAlert(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return models.Alert{}, alertErr("get", id, err)
	}
	return a, nil
}

// FindOpenAlertForMovement returns the open alert of alertType raised for the
// movement, or nil when there is none.
func (d *DB) FindOpenAlertForMovement(ctx context.Context, movementID int64, alertType string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
	WHERE source_movement_id = $1 AND type = $2 AND status = 'open'`
	a, err := scanAlert(d.Pool.QueryRow(ctx, query, movementID, alertType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open alert for movement %d: %w", movementID, err)
	}
	return &a, nil
}

// UpdateAlertLevel moves an open alert forward. A row that is resolved or
// already at or beyond level is left untouched and reported as an invalid transition.
func (d *DB) UpdateAlertLevel(ctx context.Context, id int64, level models.AlertLevel) (models.Alert, error) {
	lower := lowerLevels(level)
	if len(lower) == 0 {
		return models.Alert{}, fmt.Errorf("alert %d to %s: %w", id, level, models.ErrInvalidLevelTransition)
	}

	query := `
	UPDATE alerts
	SET level = $1, updated_at = NOW()
	WHERE id = $2 AND status = 'open' AND level = ANY($3)
	RETURNING ` + alertColumns

	a, err := scanAlert(d.Pool.QueryRow(ctx, query, level, id, lower))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Alert{}, alertErr("update level of", id, err)
	}
	// Distinguish a missing row from a rejected transition.
	if _, getErr := d.GetAlert(ctx, id); getErr != nil {
		return models.Alert{}, getErr
	}
	return models.Alert{}, fmt.Errorf("alert %d to %s: %w", id, level, models.ErrInvalidLevelTransition)
}

// UpdateAlertStatus closes an open alert, setting status and resolved_at
// together. A row that is no longer open is left untouched and reported as
// models.ErrAlreadyResolved, so only one caller ever wins the transition.
func (d *DB) UpdateAlertStatus(ctx context.Context, id int64, status models.AlertStatus, resolvedAt *time.Time) (models.Alert, error) {
	query := `
	UPDATE alerts
	SET status = $1, resolved_at = $2, updated_at = NOW()
	WHERE id = $3 AND status = 'open'
	RETURNING ` + alertColumns

	a, err := scanAlert(d.Pool.QueryRow(ctx, query, status, resolvedAt, id))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Alert{}, alertErr("update status of", id, err)
	}
	if _, getErr := d.GetAlert(ctx, id); getErr != nil {
		return models.Alert{}, getErr
	}
	return models.Alert{}, fmt.Errorf("alert %d: %w", id, models.ErrAlreadyResolved)
}

func (d *DB) MarkAlertNotified(ctx context.Context, id int64, at time.Time) error {
	tag, err := d.Pool.Exec(ctx, `UPDATE alerts SET notified_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return alertErr("stamp", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// DeleteAlert hard-deletes the alert row and returns it.
func (d *DB) DeleteAlert(ctx context.Context, id int64) (models.Alert, error) {
	query := `DELETE FROM alerts WHERE id = $1 RETURNING ` + alertColumns
	a, err := scanAlert(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return models.Alert{}, alertErr("delete", id, err)
	}
	return a, nil
}

// FindOpenAlertsOlderThan returns open alerts at one of levels created at or before cutoff.
func (d *DB) FindOpenAlertsOlderThan(ctx context.Context, levels []models.AlertLevel, cutoff time.Time) ([]models.Alert, error) {
	query := `
	SELECT ` + alertColumns + `
	FROM alerts
	WHERE status = 'open' AND level = ANY($1) AND created_at <= $2
	ORDER BY created_at ASC`

	rows, err := d.Pool.Query(ctx, query, levelStrings(levels), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find open alerts: %w", err)
	}
	defer rows.Close()

	var list []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return list, nil
}

// lowerLevels returns every level strictly below level.
func lowerLevels(level models.AlertLevel) []string {
	if !level.Valid() {
		return nil
	}
	var out []string
	for _, l := range []models.AlertLevel{models.LevelSimple, models.LevelWarning, models.LevelUrgent} {
		if l.Rank() < level.Rank() {
			out = append(out, string(l))
		}
	}
	return out
}

func levelStrings(levels []models.AlertLevel) []string {
	out := make([]string, 0, len(levels))
	for _, l := range levels {
		out = append(out, string(l))
	}
	return out
}
