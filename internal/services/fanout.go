package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"alert-service/internal/logging"
	"alert-service/internal/metrics"
	"alert-service/internal/models"
)

// FanOutResult summarizes one fan-out invocation.
type FanOutResult struct {
	Recipients int
	Created    int
	Skipped    int
	Failed     int
}

// FanOut materializes one notification per recipient of an alert and pushes
// it to the recipient's live connections. It never creates a second
// notification for a (user, alert) pair, whatever the state of the first.
type FanOut struct {
	resolver      *Resolver
	notifications NotificationStore
	alerts        AlertStore
	contexts      ContextLoader
	pusher        Pusher
	logger        *logging.Logger
	now           func() time.Time
}

func NewFanOut(resolver *Resolver, notifications NotificationStore, alerts AlertStore, contexts ContextLoader, pusher Pusher, logger *logging.Logger) *FanOut {
	return &FanOut{
		resolver:      resolver,
		notifications: notifications,
		alerts:        alerts,
		contexts:      contexts,
		pusher:        pusher,
		logger:        logger,
		now:           time.Now,
	}
}

// Run fans the alert out. Only a failure to resolve recipients is returned;
// per-recipient failures are logged and counted in the result.
func (f *FanOut) Run(ctx context.Context, alert models.Alert) (FanOutResult, error) {
	var res FanOutResult
	log := f.logger.WithFields(logrus.Fields{"alert_id": alert.ID, "entity_id": alert.EntityID})

	if !alert.IsOpen() {
		log.Debugf("Alert is %s, skipping fan-out", alert.Status)
		return res, nil
	}

	payload := BuildPayload(alert, f.loadContext(ctx, alert, log))

	recipients, err := f.resolver.ResolveRecipients(ctx, alert.EntityID)
	if err != nil {
		return res, fmt.Errorf("fan-out of alert %d: %w", alert.ID, err)
	}
	res.Recipients = len(recipients)

	alertID := alert.ID
	for _, userID := range sortedIDs(recipients) {
		existing, err := f.notifications.FindNotificationByUserAndAlert(ctx, userID, alertID)
		if err != nil {
			res.Failed++
			metrics.FanOutFailures.Inc()
			log.Errorf("Existence check failed for user %d: %v", userID, err)
			continue
		}
		if existing != nil {
			res.Skipped++
			metrics.NotificationsSkipped.WithLabelValues(metrics.SkipExisting).Inc()
			log.Debugf("User %d already has notification %d, skipping", userID, existing.ID)
			continue
		}

		n, err := f.notifications.CreateNotification(ctx, models.NotificationCreate{
			UserID:  userID,
			AlertID: &alertID,
			Payload: payload,
		})
		if errors.Is(err, models.ErrDuplicateNotification) {
			// A concurrent fan-out inserted first.
			res.Skipped++
			metrics.NotificationsSkipped.WithLabelValues(metrics.SkipDuplicate).Inc()
			log.Debugf("Lost insert race for user %d, skipping", userID)
			continue
		}
		if err != nil {
			res.Failed++
			metrics.FanOutFailures.Inc()
			log.Errorf("CreateNotification failed for user %d: %v", userID, err)
			continue
		}
		res.Created++
		metrics.NotificationsCreated.Inc()

		f.pusher.SendToUser(userID, models.EventAlertCreated, models.AlertCreatedEvent{Alert: alert, Notification: n})
	}

	if err := f.alerts.MarkAlertNotified(ctx, alert.ID, f.now()); err != nil {
		log.Warnf("Failed to stamp notified_at: %v", err)
	}

	log.Infof("Fan-out done: recipients=%d created=%d skipped=%d failed=%d",
		res.Recipients, res.Created, res.Skipped, res.Failed)
	return res, nil
}

// loadContext falls back to an empty context when the lookup fails, so the
// payload is built from the alert alone.
func (f *FanOut) loadContext(ctx context.Context, alert models.Alert, log *logrus.Entry) models.AlertContext {
	actx, err := f.contexts.LoadAlertContext(ctx, alert)
	if err != nil {
		log.Warnf("Failed to load alert context, using alert fields only: %v", err)
		return models.AlertContext{}
	}
	return actx
}

// BuildPayload snapshots the alert context. The due date is the movement's
// due date, else the movement's creation time, else the alert's creation time.
func BuildPayload(alert models.Alert, actx models.AlertContext) models.NotificationPayload {
	p := models.NotificationPayload{
		AlertType:  alert.Type,
		Level:      alert.Level,
		DueDate:    alert.CreatedAt,
		EntityID:   alert.EntityID,
		MovementID: alert.SourceMovementID,
		Notes:      alert.Notes,
	}
	if alert.Notes != nil {
		p.Description = *alert.Notes
	}
	if e := actx.Entity; e != nil {
		p.EntityName = e.Name
		p.EntityFiscalID = e.FiscalID
	}
	if m := actx.Movement; m != nil {
		switch {
		case m.DueDate != nil:
			p.DueDate = *m.DueDate
		case m.CreatedAt != nil:
			p.DueDate = *m.CreatedAt
		}
		if m.Description != "" {
			p.Description = m.Description
		}
		if m.EntityName != "" {
			p.EntityName = m.EntityName
		}
		if m.EntityFiscalID != "" {
			p.EntityFiscalID = m.EntityFiscalID
		}
	}
	return p
}
