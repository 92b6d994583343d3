package models

import "time"

// AlertLevel is the severity of an open alert. It only ever moves forward.
type AlertLevel string

const (
	LevelSimple  AlertLevel = "simple"
	LevelWarning AlertLevel = "warning"
	LevelUrgent  AlertLevel = "urgent"
)

// Rank orders levels along simple -> warning -> urgent. Unknown levels rank below simple.
func (l AlertLevel) Rank() int {
	switch l {
	case LevelSimple:
		return 1
	case LevelWarning:
		return 2
	case LevelUrgent:
		return 3
	default:
		return 0
	}
}

// Valid reports whether l is one of the known levels.
func (l AlertLevel) Valid() bool {
	return l.Rank() > 0
}

// CanEscalateTo reports whether moving from l to next is a forward transition.
func (l AlertLevel) CanEscalateTo(next AlertLevel) bool {
	return next.Valid() && next.Rank() > l.Rank()
}

type AlertStatus string

const (
	StatusOpen     AlertStatus = "open"
	StatusResolved AlertStatus = "resolved"
)

// Alert types produced by upstream events.
const (
	AlertTypeMovement        = "movement"
	AlertTypeMovementDeleted = "movement_deleted"
)

// Alert is a condition requiring attention, scoped to an entity.
type Alert struct {
	ID               int64       `json:"id"`
	Type             string      `json:"type"`
	Level            AlertLevel  `json:"level"`
	Status           AlertStatus `json:"status"`
	EntityID         int64       `json:"entity_id"`
	SourceMovementID *int64      `json:"source_movement_id,omitempty"`
	Notes            *string     `json:"notes,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	ResolvedAt       *time.Time  `json:"resolved_at,omitempty"`
	NotifiedAt       *time.Time  `json:"notified_at,omitempty"`
}

// IsOpen reports whether the alert has not been resolved yet.
func (a Alert) IsOpen() bool {
	return a.Status == StatusOpen
}

// AlertCreate holds the attributes of a new alert. Level and status are always
// simple/open on insert.
type AlertCreate struct {
	Type             string  `json:"type"`
	EntityID         int64   `json:"entity_id" binding:"required"`
	SourceMovementID *int64  `json:"source_movement_id,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}
