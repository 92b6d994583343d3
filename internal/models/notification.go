package models

import "time"

// NotificationPayload is a snapshot of the alert context captured when the
// notification is created. It is never recomputed.
type NotificationPayload struct {
	AlertType      string     `json:"alert_type"`
	Level          AlertLevel `json:"level"`
	DueDate        time.Time  `json:"due_date"`
	Description    string     `json:"description,omitempty"`
	EntityID       int64      `json:"entity_id"`
	EntityName     string     `json:"entity_name,omitempty"`
	EntityFiscalID string     `json:"entity_fiscal_id,omitempty"`
	MovementID     *int64     `json:"movement_id,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}

// Notification is the per-user, durable record of an alert event.
type Notification struct {
	ID        int64               `json:"id"`
	UserID    int64               `json:"user_id"`
	AlertID   *int64              `json:"alert_id,omitempty"`
	Payload   NotificationPayload `json:"payload"`
	Read      bool                `json:"read"`
	Deleted   bool                `json:"deleted"`
	DeletedAt *time.Time          `json:"deleted_at,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// NotificationCreate holds the attributes of a new notification row.
type NotificationCreate struct {
	UserID  int64
	AlertID *int64
	Payload NotificationPayload
}
