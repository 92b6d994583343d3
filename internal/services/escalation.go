package services

import (
	"context"
	"sync"
	"time"

	"alert-service/internal/logging"
	"alert-service/internal/metrics"
	"alert-service/internal/models"
)

const escalationLockKey = "alert-service:escalation"

// Locker grants a lease that keeps concurrent scheduler instances from
// escalating the same alerts in the same tick.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// SchedulerConfig sets the age thresholds measured from alert creation.
type SchedulerConfig struct {
	Interval     time.Duration
	WarningAfter time.Duration
	UrgentAfter  time.Duration
	RunOnStart   bool
}

// EscalationReport counts the outcome of one escalation pass.
type EscalationReport struct {
	Warning int
	Urgent  int
	Failed  int
	Skipped bool
}

// Scheduler periodically escalates open alerts by age.
type Scheduler struct {
	manager *Manager
	alerts  AlertStore
	locker  Locker
	cfg     SchedulerConfig
	logger  *logging.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a scheduler. locker may be nil for a single instance.
func NewScheduler(manager *Manager, alerts AlertStore, locker Locker, cfg SchedulerConfig, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		manager: manager,
		alerts:  alerts,
		locker:  locker,
		cfg:     cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start runs the scheduler loop until Stop is called.
func (s *Scheduler) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.run()
	}()
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) run() {
	s.logger.Infof("Escalation scheduler started (interval=%s warning_after=%s urgent_after=%s)",
		s.cfg.Interval, s.cfg.WarningAfter, s.cfg.UrgentAfter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopCh
		cancel()
	}()

	if s.cfg.RunOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopCh:
			s.logger.Info("Escalation scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Errorf("Escalation pass failed: %v", err)
		return
	}
	if report.Skipped {
		s.logger.Debug("Escalation lock held elsewhere, skipping tick")
		return
	}
	s.logger.Infof("Escalation pass done: warning=%d urgent=%d failed=%d",
		report.Warning, report.Urgent, report.Failed)
}

// RunOnce performs a single escalation pass. Alerts past the warning age go
// to warning first; alerts past the urgent age then go to urgent, so a very
// old simple alert reaches urgent in the same pass. A failure on one alert
// never stops the others.
func (s *Scheduler) RunOnce(ctx context.Context) (EscalationReport, error) {
	var report EscalationReport

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, escalationLockKey, s.lockTTL())
		if err != nil {
			return report, err
		}
		if !ok {
			report.Skipped = true
			return report, nil
		}
		defer unlock()
	}

	now := s.manager.now()

	n, failed, err := s.escalate(ctx, []models.AlertLevel{models.LevelSimple}, now.Add(-s.cfg.WarningAfter), models.LevelWarning)
	if err != nil {
		return report, err
	}
	report.Warning, report.Failed = n, failed

	n, failed, err = s.escalate(ctx, []models.AlertLevel{models.LevelSimple, models.LevelWarning}, now.Add(-s.cfg.UrgentAfter), models.LevelUrgent)
	if err != nil {
		return report, err
	}
	report.Urgent = n
	report.Failed += failed
	return report, nil
}

func (s *Scheduler) escalate(ctx context.Context, from []models.AlertLevel, cutoff time.Time, to models.AlertLevel) (int, int, error) {
	alerts, err := s.alerts.FindOpenAlertsOlderThan(ctx, from, cutoff)
	if err != nil {
		return 0, 0, err
	}

	var done, failed int
	for _, alert := range alerts {
		if ctx.Err() != nil {
			return done, failed, ctx.Err()
		}
		if _, err := s.manager.Escalate(ctx, alert, to); err != nil {
			failed++
			metrics.EscalationFailures.Inc()
			s.logger.Errorf("Failed to escalate alert %d to %s: %v", alert.ID, to, err)
			continue
		}
		done++
	}
	return done, failed, nil
}

func (s *Scheduler) lockTTL() time.Duration {
	if s.cfg.Interval > 0 {
		return s.cfg.Interval
	}
	return time.Minute
}
