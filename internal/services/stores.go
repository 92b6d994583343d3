package services

import (
	"context"
	"time"

	"alert-service/internal/models"
)

// AlertStore is the persistence contract for alerts. UpdateAlertStatus only
// acts on open alerts and returns models.ErrAlreadyResolved otherwise.
type AlertStore interface {
	CreateAlert(ctx context.Context, in models.AlertCreate) (models.Alert, error)
	GetAlert(ctx context.Context, id int64) (models.Alert, error)
	FindOpenAlertForMovement(ctx context.Context, movementID int64, alertType string) (*models.Alert, error)
	UpdateAlertLevel(ctx context.Context, id int64, level models.AlertLevel) (models.Alert, error)
	UpdateAlertStatus(ctx context.Context, id int64, status models.AlertStatus, resolvedAt *time.Time) (models.Alert, error)
	MarkAlertNotified(ctx context.Context, id int64, at time.Time) error
	DeleteAlert(ctx context.Context, id int64) (models.Alert, error)
	FindOpenAlertsOlderThan(ctx context.Context, levels []models.AlertLevel, cutoff time.Time) ([]models.Alert, error)
}

// NotificationStore is the persistence contract for notifications.
// CreateNotification must return models.ErrDuplicateNotification when a row
// already exists for the (user, alert) pair.
type NotificationStore interface {
	FindNotificationByUserAndAlert(ctx context.Context, userID, alertID int64) (*models.Notification, error)
	CreateNotification(ctx context.Context, in models.NotificationCreate) (models.Notification, error)
	MarkAllReadForAlert(ctx context.Context, alertID int64) error
	DeleteAllForAlert(ctx context.Context, alertID int64) error
	FindUserIDsForAlert(ctx context.Context, alertID int64) ([]int64, error)
}

// UserDirectory looks up notification recipients.
type UserDirectory interface {
	FindStaffUsers(ctx context.Context) ([]models.Recipient, error)
	FindUsersByEntity(ctx context.Context, entityID int64) ([]models.Recipient, error)
}

// ContextLoader fetches the entity and source movement of an alert.
type ContextLoader interface {
	LoadAlertContext(ctx context.Context, alert models.Alert) (models.AlertContext, error)
}

// Pusher delivers real-time events. Both methods are best-effort and return
// the number of connections reached.
type Pusher interface {
	SendToUser(userID int64, event string, data interface{}) int
	Broadcast(event string, data interface{}) int
}

// UrgentRelay is told about alerts that just reached the urgent level.
type UrgentRelay interface {
	NotifyUrgent(ctx context.Context, alert models.Alert) error
}
