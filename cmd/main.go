package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"alert-service/internal/api"
	"alert-service/internal/auth"
	"alert-service/internal/config"
	"alert-service/internal/db"
	"alert-service/internal/kafka"
	"alert-service/internal/lock"
	"alert-service/internal/logging"
	"alert-service/internal/providers"
	"alert-service/internal/realtime"
	"alert-service/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN, cfg.Alerts.StaffRoles)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	if err := dbConn.Ping(ctx); err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}
	if err := dbConn.Migrate(ctx); err != nil {
		logger.Errorf("Failed to migrate database: %v", err)
		log.Fatalf("Database migration failed: %v", err)
	}

	// Real-time push
	registry := realtime.NewRegistry(cfg.WebSocket.MaxConnectionsPerUser, logger)
	dispatcher := realtime.NewDispatcher(registry, logger)
	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	gateway := realtime.NewGateway(registry, verifier, logger)

	// Alert lifecycle
	var opts []services.ManagerOption
	if cfg.Telegram.BotToken != "" {
		relay, err := providers.NewTelegramRelay(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.RateLimit, logger)
		if err != nil {
			log.Fatalf("Telegram relay init failed: %v", err)
		}
		opts = append(opts, services.WithUrgentRelay(relay))
		logger.Infof("Urgent alerts relayed to Telegram chat %d", cfg.Telegram.ChatID)
	}

	fanout := services.NewFanOut(services.NewResolver(dbConn), dbConn, dbConn, dbConn, dispatcher, logger)
	manager := services.NewManager(dbConn, dbConn, fanout, dispatcher, logger, opts...)

	var locker services.Locker
	if cfg.Redis.Addr != "" {
		redisLock, err := lock.NewRedisLocker(ctx, cfg.Redis.Addr, cfg.Redis.Password, logger)
		if err != nil {
			log.Fatalf("Redis lock init failed: %v", err)
		}
		defer redisLock.Close()
		locker = redisLock
	}

	var wg sync.WaitGroup
	scheduler := services.NewScheduler(manager, dbConn, locker, services.SchedulerConfig{
		Interval:     cfg.Escalation.Interval,
		WarningAfter: cfg.Escalation.WarningAfter,
		UrgentAfter:  cfg.Escalation.UrgentAfter,
		RunOnStart:   cfg.Escalation.RunOnStart,
	}, logger)
	scheduler.Start(&wg)

	// Initialize Kafka consumer
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, manager, logger)
		consumer.Start(&wg)
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
	}

	// Start API server
	handler := api.NewHandler(manager, dbConn, gateway, verifier, cfg.WebSocket.WriteTimeout, logger)
	router := api.NewRouter(logger, cfg, handler)
	srv := &http.Server{Addr: cfg.API.Port, Handler: router}

	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API server shutdown failed: %v", err)
	}
	for _, h := range registry.All() {
		_ = h.Close()
	}

	scheduler.Stop()
	if consumer != nil {
		consumer.Close()
	}
	wg.Wait()
	logger.Info("Shutdown complete")
}
