package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alert-service/internal/logging"
	"alert-service/internal/metrics"
	"alert-service/internal/models"
)

// Manager owns every alert state transition. Each transition that needs
// recipients notified goes through the same fan-out call.
type Manager struct {
	alerts        AlertStore
	notifications NotificationStore
	fanout        *FanOut
	pusher        Pusher
	relay         UrgentRelay
	logger        *logging.Logger
	now           func() time.Time
}

type ManagerOption func(*Manager)

// WithUrgentRelay forwards alerts reaching the urgent level to relay.
func WithUrgentRelay(relay UrgentRelay) ManagerOption {
	return func(m *Manager) { m.relay = relay }
}

// WithClock overrides the time source of the manager and its fan-out.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(alerts AlertStore, notifications NotificationStore, fanout *FanOut, pusher Pusher, logger *logging.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		alerts:        alerts,
		notifications: notifications,
		fanout:        fanout,
		pusher:        pusher,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	fanout.now = m.now
	return m
}

func (m *Manager) Get(ctx context.Context, id int64) (models.Alert, error) {
	return m.alerts.GetAlert(ctx, id)
}

// CreateForEvent opens a new simple alert and fans it out inline. Fan-out
// problems are logged; the created alert is returned regardless. When the
// movement already has an open alert of the same type, that alert is
// returned and nothing is created.
func (m *Manager) CreateForEvent(ctx context.Context, in models.AlertCreate) (models.Alert, error) {
	if in.EntityID <= 0 {
		return models.Alert{}, fmt.Errorf("invalid entity id %d", in.EntityID)
	}
	if in.Type == "" {
		in.Type = models.AlertTypeMovement
	}

	existing, err := m.openAlertForMovement(ctx, in)
	if err != nil {
		return models.Alert{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	alert, err := m.alerts.CreateAlert(ctx, in)
	if errors.Is(err, models.ErrDuplicateAlert) {
		// A concurrent create for the same movement won.
		existing, findErr := m.openAlertForMovement(ctx, in)
		if findErr == nil && existing != nil {
			return *existing, nil
		}
	}
	if err != nil {
		return models.Alert{}, err
	}
	m.logger.Infof("Created alert %d (type=%s entity=%d)", alert.ID, alert.Type, alert.EntityID)

	if _, err := m.fanout.Run(ctx, alert); err != nil {
		m.logger.Errorf("Fan-out after create failed for alert %d: %v", alert.ID, err)
	}
	return alert, nil
}

func (m *Manager) openAlertForMovement(ctx context.Context, in models.AlertCreate) (*models.Alert, error) {
	if in.SourceMovementID == nil {
		return nil, nil
	}
	existing, err := m.alerts.FindOpenAlertForMovement(ctx, *in.SourceMovementID, in.Type)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		m.logger.Infof("Movement %d already has open alert %d, not creating another", *in.SourceMovementID, existing.ID)
	}
	return existing, nil
}

// Resolve closes an open alert, marks all of its notifications read and tells
// every notified user. Resolving twice returns models.ErrAlreadyResolved.
func (m *Manager) Resolve(ctx context.Context, id int64) (models.Alert, error) {
	alert, err := m.alerts.GetAlert(ctx, id)
	if err != nil {
		return models.Alert{}, err
	}
	if !alert.IsOpen() {
		return alert, fmt.Errorf("alert %d: %w", id, models.ErrAlreadyResolved)
	}

	// Notifications are read before the status flips so a failed resolve can be
	// retried. The status update itself is guarded, so a concurrent resolve that
	// got there first surfaces as ErrAlreadyResolved and nothing is pushed.
	if err := m.notifications.MarkAllReadForAlert(ctx, id); err != nil {
		return models.Alert{}, err
	}
	userIDs, err := m.notifications.FindUserIDsForAlert(ctx, id)
	if err != nil {
		return models.Alert{}, err
	}

	resolvedAt := m.now()
	alert, err = m.alerts.UpdateAlertStatus(ctx, id, models.StatusResolved, &resolvedAt)
	if err != nil {
		return models.Alert{}, err
	}
	m.logger.Infof("Resolved alert %d, notifying %d users", id, len(userIDs))

	seen := make(map[int64]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		m.pusher.SendToUser(userID, models.EventAlertResolved, models.AlertEvent{Alert: alert})
	}
	return alert, nil
}

// Delete removes the alert and all of its notifications, then tells every
// connected session.
func (m *Manager) Delete(ctx context.Context, id int64) (models.Alert, error) {
	if err := m.notifications.DeleteAllForAlert(ctx, id); err != nil {
		return models.Alert{}, err
	}
	alert, err := m.alerts.DeleteAlert(ctx, id)
	if err != nil {
		return models.Alert{}, err
	}
	m.logger.Infof("Deleted alert %d", id)

	m.pusher.Broadcast(models.EventAlertDeleted, models.AlertEvent{Alert: alert})
	return alert, nil
}

// Escalate moves an open alert forward to level, broadcasts the change and
// re-runs fan-out so recipients without a notification catch up.
func (m *Manager) Escalate(ctx context.Context, alert models.Alert, level models.AlertLevel) (models.Alert, error) {
	if !alert.IsOpen() || !alert.Level.CanEscalateTo(level) {
		return alert, fmt.Errorf("alert %d from %s/%s to %s: %w",
			alert.ID, alert.Status, alert.Level, level, models.ErrInvalidLevelTransition)
	}

	updated, err := m.alerts.UpdateAlertLevel(ctx, alert.ID, level)
	if err != nil {
		return alert, err
	}
	metrics.EscalationsTotal.WithLabelValues(string(level)).Inc()
	m.logger.Infof("Escalated alert %d from %s to %s", alert.ID, alert.Level, level)

	m.pusher.Broadcast(models.EventAlertUpdated, models.AlertEvent{Alert: updated})

	if _, err := m.fanout.Run(ctx, updated); err != nil {
		m.logger.Errorf("Fan-out after escalation failed for alert %d: %v", alert.ID, err)
	}

	if level == models.LevelUrgent && m.relay != nil {
		if err := m.relay.NotifyUrgent(ctx, updated); err != nil {
			m.logger.Warnf("Urgent relay failed for alert %d: %v", alert.ID, err)
		}
	}
	return updated, nil
}
