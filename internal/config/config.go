package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	API struct {
		Port     string
		BasePath string
	}
	Auth struct {
		JWTSecret string
	}
	Alerts struct {
		StaffRoles []string
	}
	Escalation struct {
		Interval     time.Duration
		WarningAfter time.Duration
		UrgentAfter  time.Duration
		RunOnStart   bool
	}
	WebSocket struct {
		MaxConnectionsPerUser int
		WriteTimeout          time.Duration
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	Redis struct {
		Addr     string
		Password string
	}
	Telegram struct {
		BotToken  string
		ChatID    int64
		RateLimit int
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	var cfg Config
	var err error

	cfg.DB.DSN = getenv("DB_DSN")

	cfg.API.Port = getenv("API_PORT")
	cfg.API.BasePath = getenv("API_BASE_PATH")

	cfg.Auth.JWTSecret = getenv("JWT_SECRET")

	cfg.Alerts.StaffRoles = splitList(getenv("STAFF_ROLES"))

	// Escalation settings
	if cfg.Escalation.Interval, err = parseDuration(getenv, "ESCALATION_INTERVAL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.Escalation.WarningAfter, err = parseDuration(getenv, "ESCALATION_WARNING_AFTER", 14*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.Escalation.UrgentAfter, err = parseDuration(getenv, "ESCALATION_URGENT_AFTER", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	cfg.Escalation.RunOnStart = true
	if v := getenv("ESCALATION_RUN_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ESCALATION_RUN_ON_START %q: %w", v, err)
		}
		cfg.Escalation.RunOnStart = b
	}

	// WebSocket settings
	if n, err := strconv.Atoi(getenv("WS_MAX_CONNECTIONS_PER_USER")); err == nil {
		cfg.WebSocket.MaxConnectionsPerUser = n
	}
	if cfg.WebSocket.WriteTimeout, err = parseDuration(getenv, "WS_WRITE_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}

	// Kafka settings
	cfg.Kafka.Broker = getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = getenv("KAFKA_GROUP_ID")

	// Redis settings
	cfg.Redis.Addr = getenv("REDIS_ADDR")
	cfg.Redis.Password = getenv("REDIS_PASSWORD")

	// Telegram relay settings
	cfg.Telegram.BotToken = getenv("TELEGRAM_BOT_TOKEN")
	if v := getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		cfg.Telegram.ChatID = id
	}
	if rl, err := strconv.Atoi(getenv("TELEGRAM_RATE_LIMIT")); err == nil {
		cfg.Telegram.RateLimit = rl
	}

	cfg.Logging.Dir = getenv("LOG_DIR")
	cfg.Logging.Level = getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}
	if cfg.Escalation.UrgentAfter < cfg.Escalation.WarningAfter {
		return Config{}, fmt.Errorf("ESCALATION_URGENT_AFTER (%s) must not be shorter than ESCALATION_WARNING_AFTER (%s)",
			cfg.Escalation.UrgentAfter, cfg.Escalation.WarningAfter)
	}

	// Apply defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":9191"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if len(cfg.Alerts.StaffRoles) == 0 {
		cfg.Alerts.StaffRoles = []string{"admin", "accountant"}
	}
	if cfg.WebSocket.MaxConnectionsPerUser <= 0 {
		cfg.WebSocket.MaxConnectionsPerUser = 10
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "movement_events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "alert-service"
	}
	if cfg.Telegram.RateLimit <= 0 {
		cfg.Telegram.RateLimit = 1
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}

func parseDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
