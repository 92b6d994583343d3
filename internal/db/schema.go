package db

import (
	"context"
	"fmt"
)

// schema holds the tables owned by this service. users, entities and movements
// belong to the back-office and are only created here if missing, so the
// service can run against an empty database.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		id        BIGSERIAL PRIMARY KEY,
		name      TEXT NOT NULL,
		fiscal_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id        BIGSERIAL PRIMARY KEY,
		role      TEXT NOT NULL,
		entity_id BIGINT REFERENCES entities(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_entity ON users(entity_id)`,
	`CREATE TABLE IF NOT EXISTS movements (
		id          BIGSERIAL PRIMARY KEY,
		entity_id   BIGINT NOT NULL REFERENCES entities(id),
		description TEXT NOT NULL DEFAULT '',
		due_date    TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id                 BIGSERIAL PRIMARY KEY,
		type               TEXT NOT NULL,
		level              TEXT NOT NULL DEFAULT 'simple' CHECK (level IN ('simple', 'warning', 'urgent')),
		status             TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'resolved')),
		entity_id          BIGINT NOT NULL,
		source_movement_id BIGINT,
		notes              TEXT,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		resolved_at        TIMESTAMPTZ,
		notified_at        TIMESTAMPTZ,
		CHECK ((status = 'resolved') = (resolved_at IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_open_level ON alerts(status, level, created_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_open_movement ON alerts(source_movement_id, type)
		WHERE status = 'open' AND source_movement_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL,
		alert_id   BIGINT REFERENCES alerts(id) ON DELETE CASCADE,
		payload    JSONB NOT NULL,
		read       BOOLEAN NOT NULL DEFAULT FALSE,
		deleted    BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, alert_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, deleted, created_at DESC)`,
}

// Migrate creates missing tables and indexes.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
