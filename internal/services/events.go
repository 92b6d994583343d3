package services

import (
	"context"
	"errors"
	"fmt"

	"alert-service/internal/models"
)

var ErrUnknownEvent = errors.New("unknown upstream event")

// HandleEvent applies an upstream back-office event. Replays are harmless:
// resolving a resolved alert or deleting a missing one is not an error here.
func (m *Manager) HandleEvent(ctx context.Context, ev models.UpstreamEvent) error {
	switch ev.Type {
	case models.UpstreamMovementCreated:
		if ev.MovementID == nil {
			return fmt.Errorf("%s without movement_id", ev.Type)
		}
		alertType := ev.AlertType
		if alertType == "" {
			alertType = models.AlertTypeMovement
		}
		_, err := m.CreateForEvent(ctx, models.AlertCreate{
			Type:             alertType,
			EntityID:         ev.EntityID,
			SourceMovementID: ev.MovementID,
			Notes:            ev.Notes,
		})
		return err

	case models.UpstreamMovementDeleted:
		notes := ev.Notes
		if notes == nil {
			s := ev.Description
			if s == "" && ev.MovementID != nil {
				s = fmt.Sprintf("Movement %d deleted", *ev.MovementID)
			}
			if s != "" {
				notes = &s
			}
		}
		// The movement row is gone, so the alert keeps no reference to it.
		_, err := m.CreateForEvent(ctx, models.AlertCreate{
			Type:     models.AlertTypeMovementDeleted,
			EntityID: ev.EntityID,
			Notes:    notes,
		})
		return err

	case models.UpstreamAlertResolve:
		_, err := m.Resolve(ctx, ev.AlertID)
		if errors.Is(err, models.ErrAlreadyResolved) {
			return nil
		}
		return err

	case models.UpstreamAlertDelete:
		_, err := m.Delete(ctx, ev.AlertID)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err

	default:
		return fmt.Errorf("%q: %w", ev.Type, ErrUnknownEvent)
	}
}
