package db

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"alert-service/internal/models"
)

func TestLowerLevels(t *testing.T) {
	assert.Empty(t, lowerLevels(models.LevelSimple))
	assert.Equal(t, []string{"simple"}, lowerLevels(models.LevelWarning))
	assert.Equal(t, []string{"simple", "warning"}, lowerLevels(models.LevelUrgent))
	assert.Nil(t, lowerLevels(models.AlertLevel("critical")))
}

func TestLevelStrings(t *testing.T) {
	got := levelStrings([]models.AlertLevel{models.LevelSimple, models.LevelWarning})
	assert.Equal(t, []string{"simple", "warning"}, got)
}

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, isUniqueViolation(wrapped))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func schemaContains(fragment string) bool {
	for _, stmt := range schema {
		if strings.Contains(stmt, fragment) {
			return true
		}
	}
	return false
}

func TestSchemaDeclaresNotificationUniqueness(t *testing.T) {
	assert.True(t, schemaContains("UNIQUE (user_id, alert_id)"))
}

func TestSchemaCascadesAlertDeletion(t *testing.T) {
	// A notification inserted between the two deletes must not block the alert delete.
	assert.True(t, schemaContains("alert_id   BIGINT REFERENCES alerts(id) ON DELETE CASCADE"))
}

func TestSchemaAllowsOneOpenAlertPerMovement(t *testing.T) {
	assert.True(t, schemaContains("CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_open_movement ON alerts(source_movement_id, type)"))
	assert.True(t, schemaContains("WHERE status = 'open' AND source_movement_id IS NOT NULL"))
}
