package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"alert-service/internal/models"
)

const notificationColumns = `id, user_id, alert_id, payload, read, deleted, deleted_at, created_at`

func scanNotification(row pgx.Row) (models.Notification, error) {
	var n models.Notification
	var payload []byte
	if err := row.Scan(
		&n.ID, &n.UserID, &n.AlertID, &payload, &n.Read, &n.Deleted, &n.DeletedAt, &n.CreatedAt,
	); err != nil {
		return models.Notification{}, err
	}
	if err := json.Unmarshal(payload, &n.Payload); err != nil {
		return models.Notification{}, fmt.Errorf("failed to decode payload of notification %d: %w", n.ID, err)
	}
	return n, nil
}

// FindNotificationByUserAndAlert returns the notification for the pair in any
// state, soft-deleted included, or nil when there is none.
func (d *DB) FindNotificationByUserAndAlert(ctx context.Context, userID, alertID int64) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 AND alert_id = $2`
	n, err := scanNotification(d.Pool.QueryRow(ctx, query, userID, alertID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find notification for user %d alert %d: %w", userID, alertID, err)
	}
	return &n, nil
}

// CreateNotification inserts a notification. A row already present for the
// same (user, alert) pair yields models.ErrDuplicateNotification.
func (d *DB) CreateNotification(ctx context.Context, in models.NotificationCreate) (models.Notification, error) {
	payload, err := json.Marshal(in.Payload)
	if err != nil {
		return models.Notification{}, fmt.Errorf("failed to encode notification payload: %w", err)
	}

	query := `
	INSERT INTO notifications (user_id, alert_id, payload, read, deleted, created_at)
	VALUES ($1, $2, $3, FALSE, FALSE, NOW())
	RETURNING ` + notificationColumns

	n, err := scanNotification(d.Pool.QueryRow(ctx, query, in.UserID, in.AlertID, payload))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Notification{}, models.ErrDuplicateNotification
		}
		return models.Notification{}, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

// MarkAllReadForAlert flips read on every notification of the alert, deleted ones included.
func (d *DB) MarkAllReadForAlert(ctx context.Context, alertID int64) error {
	if _, err := d.Pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE alert_id = $1`, alertID); err != nil {
		return fmt.Errorf("failed to mark notifications read for alert %d: %w", alertID, err)
	}
	return nil
}

// DeleteAllForAlert hard-deletes every notification referencing the alert.
func (d *DB) DeleteAllForAlert(ctx context.Context, alertID int64) error {
	if _, err := d.Pool.Exec(ctx, `DELETE FROM notifications WHERE alert_id = $1`, alertID); err != nil {
		return fmt.Errorf("failed to delete notifications for alert %d: %w", alertID, err)
	}
	return nil
}

// FindUserIDsForAlert returns the distinct users holding a notification for the alert.
func (d *DB) FindUserIDsForAlert(ctx context.Context, alertID int64) ([]int64, error) {
	rows, err := d.Pool.Query(ctx, `SELECT DISTINCT user_id FROM notifications WHERE alert_id = $1`, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to get users for alert %d: %w", alertID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetNotificationsByUserID lists a user's visible notifications, newest first.
func (d *DB) GetNotificationsByUserID(ctx context.Context, userID int64, limit, offset int) ([]models.Notification, error) {
	query := `
	SELECT ` + notificationColumns + `
	FROM notifications
	WHERE user_id = $1 AND deleted = FALSE
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3`

	rows, err := d.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications by user_id %d: %w", userID, err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead acknowledges one of the user's own notifications.
func (d *DB) MarkNotificationRead(ctx context.Context, userID, id int64) (models.Notification, error) {
	query := `
	UPDATE notifications SET read = TRUE
	WHERE id = $1 AND user_id = $2 AND deleted = FALSE
	RETURNING ` + notificationColumns

	n, err := scanNotification(d.Pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		return models.Notification{}, notificationErr("mark read", id, err)
	}
	return n, nil
}

// SoftDeleteNotification hides one of the user's own notifications for good.
// The row is kept so fan-out never recreates it.
func (d *DB) SoftDeleteNotification(ctx context.Context, userID, id int64) (models.Notification, error) {
	query := `
	UPDATE notifications SET deleted = TRUE, deleted_at = COALESCE(deleted_at, NOW())
	WHERE id = $1 AND user_id = $2
	RETURNING ` + notificationColumns

	n, err := scanNotification(d.Pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		return models.Notification{}, notificationErr("soft-delete", id, err)
	}
	return n, nil
}

func notificationErr(op string, id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("notification %d: %w", id, models.ErrNotFound)
	}
	return fmt.Errorf("failed to %s notification %d: %w", op, id, err)
}
