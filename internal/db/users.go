package db

import (
	"context"
	"fmt"

	"alert-service/internal/models"
)

// FindStaffUsers returns every user holding one of the configured staff roles.
func (d *DB) FindStaffUsers(ctx context.Context) ([]models.Recipient, error) {
	if len(d.staffRoles) == 0 {
		return nil, nil
	}
	return d.queryRecipients(ctx, `SELECT id, role FROM users WHERE role = ANY($1)`, d.staffRoles)
}

// FindUsersByEntity returns every user scoped to the entity.
func (d *DB) FindUsersByEntity(ctx context.Context, entityID int64) ([]models.Recipient, error) {
	return d.queryRecipients(ctx, `SELECT id, role FROM users WHERE entity_id = $1`, entityID)
}

func (d *DB) queryRecipients(ctx context.Context, query string, arg interface{}) ([]models.Recipient, error) {
	rows, err := d.Pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var list []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.ID, &r.Role); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}
