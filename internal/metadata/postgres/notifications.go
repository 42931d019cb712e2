package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/peardrive/peardrive/internal/files"
	"github.com/peardrive/peardrive/internal/metrics"
	"github.com/peardrive/peardrive/internal/notify"
)

// CreateNotification inserts a notification and fills in its ID.
func (s *Store) CreateNotification(ctx context.Context, n *notify.Notification) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_notification", time.Since(start)) }()

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO notifications (user_id, type, message, file_id, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		n.UserID, n.Type, n.Message, n.FileID, n.CreatedAt).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID int, unreadOnly bool, limit int) ([]notify.Notification, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_notifications", time.Since(start)) }()

	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, user_id, type, message, file_id, read, created_at
		 FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		var n notify.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.FileID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead marks one notification as read.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID int) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("mark_notification_read", time.Since(start)) }()

	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return files.ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks all of a user's notifications as read.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID int) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("mark_all_notifications_read", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}
