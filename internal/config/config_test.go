package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"DB_DSN":     "postgres://localhost/alerts",
		"JWT_SECRET": "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9191", cfg.API.Port)
	assert.Equal(t, "/api/v0", cfg.API.BasePath)
	assert.Equal(t, []string{"admin", "accountant"}, cfg.Alerts.StaffRoles)
	assert.Equal(t, 24*time.Hour, cfg.Escalation.Interval)
	assert.Equal(t, 14*24*time.Hour, cfg.Escalation.WarningAfter)
	assert.Equal(t, 30*24*time.Hour, cfg.Escalation.UrgentAfter)
	assert.True(t, cfg.Escalation.RunOnStart)
	assert.Equal(t, 10, cfg.WebSocket.MaxConnectionsPerUser)
	assert.Equal(t, 5*time.Second, cfg.WebSocket.WriteTimeout)
	assert.Equal(t, "movement_events", cfg.Kafka.Topic)
	assert.Equal(t, "alert-service", cfg.Kafka.GroupID)
	assert.Equal(t, 1, cfg.Telegram.RateLimit)
	assert.Equal(t, "logs", cfg.Logging.Dir)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"DB_DSN":                      "dsn",
		"JWT_SECRET":                  "secret",
		"STAFF_ROLES":                 " admin , auditor ,",
		"ESCALATION_INTERVAL":         "1h",
		"ESCALATION_RUN_ON_START":     "false",
		"WS_MAX_CONNECTIONS_PER_USER": "3",
		"TELEGRAM_CHAT_ID":            "-100123",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"admin", "auditor"}, cfg.Alerts.StaffRoles)
	assert.Equal(t, time.Hour, cfg.Escalation.Interval)
	assert.False(t, cfg.Escalation.RunOnStart)
	assert.Equal(t, 3, cfg.WebSocket.MaxConnectionsPerUser)
	assert.Equal(t, int64(-100123), cfg.Telegram.ChatID)
}

func TestFromEnv_MissingRequired(t *testing.T) {
	_, err := FromEnv(envOf(map[string]string{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestFromEnv_InvalidDuration(t *testing.T) {
	_, err := FromEnv(envOf(map[string]string{
		"DB_DSN":                   "dsn",
		"JWT_SECRET":               "secret",
		"ESCALATION_WARNING_AFTER": "two weeks",
	}))
	assert.Error(t, err)
}

func TestFromEnv_UrgentBeforeWarning(t *testing.T) {
	_, err := FromEnv(envOf(map[string]string{
		"DB_DSN":                   "dsn",
		"JWT_SECRET":               "secret",
		"ESCALATION_WARNING_AFTER": "48h",
		"ESCALATION_URGENT_AFTER":  "24h",
	}))
	assert.Error(t, err)
}
