package models

// Real-time event names pushed to connected sessions.
const (
	EventAlertCreated  = "alert.created"
	EventAlertResolved = "alert.resolved"
	EventAlertUpdated  = "alert.updated"
	EventAlertDeleted  = "alert.deleted"
)

// Envelope is the wire format of every push.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// AlertEvent is the data of alert.resolved, alert.updated and alert.deleted.
type AlertEvent struct {
	Alert Alert `json:"alert"`
}

// AlertCreatedEvent is the data of alert.created.
type AlertCreatedEvent struct {
	Alert        Alert        `json:"alert"`
	Notification Notification `json:"notification"`
}

// Upstream event types consumed from the movement topic.
const (
	UpstreamMovementCreated = "movement.created"
	UpstreamMovementDeleted = "movement.deleted"
	UpstreamAlertResolve    = "alert.resolve"
	UpstreamAlertDelete     = "alert.delete"
)

// UpstreamEvent is published by the back-office when a movement changes or an
// operator acts on an alert.
type UpstreamEvent struct {
	Type        string  `json:"type"`
	EntityID    int64   `json:"entity_id"`
	MovementID  *int64  `json:"movement_id,omitempty"`
	AlertID     int64   `json:"alert_id,omitempty"`
	AlertType   string  `json:"alert_type,omitempty"`
	Description string  `json:"description,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}
