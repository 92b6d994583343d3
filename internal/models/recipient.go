package models

import "time"

// Recipient is the minimal user descriptor used by fan-out.
type Recipient struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

// Entity is the owning enterprise of an alert.
type Entity struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FiscalID string `json:"fiscal_id"`
}

// Movement is the financial movement that triggered an alert, with its
// entity fields denormalized.
type Movement struct {
	ID             int64      `json:"id"`
	EntityID       int64      `json:"entity_id"`
	Description    string     `json:"description"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	EntityName     string     `json:"entity_name,omitempty"`
	EntityFiscalID string     `json:"entity_fiscal_id,omitempty"`
}

// AlertContext is everything fan-out needs to build a payload snapshot.
// Movement is nil when the alert has no source movement or it no longer exists.
type AlertContext struct {
	Entity   *Entity
	Movement *Movement
}
