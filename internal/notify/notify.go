// Package notify records user-visible notifications and pushes them out
// over the event bus.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/peardrive/peardrive/internal/events"
	"github.com/peardrive/peardrive/internal/logging"
)

// Notification is a persisted user notification.
type Notification struct {
	ID        int
	UserID    int
	Type      string
	Message   string
	FileID    string
	Read      bool
	CreatedAt time.Time
}

// Store persists notifications.
type Store interface {
	CreateNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, userID int, unreadOnly bool, limit int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int) error
	MarkAllNotificationsRead(ctx context.Context, userID int) error
}

// Notifier writes notifications and mirrors them onto the SSE bus.
// Failures are logged, never returned: a notification must not break
// the operation it reports on.
type Notifier struct {
	store Store
	bus   *events.Broadcaster
}

// New creates a Notifier.
func New(store Store, bus *events.Broadcaster) *Notifier {
	return &Notifier{store: store, bus: bus}
}

// Notify records a notification for the user.
func (n *Notifier) Notify(ctx context.Context, userID int, kind, message, fileID string) {
	rec := &Notification{
		UserID:    userID,
		Type:      kind,
		Message:   message,
		FileID:    fileID,
		CreatedAt: time.Now(),
	}
	if err := n.store.CreateNotification(ctx, rec); err != nil {
		logging.Error("failed to record notification",
			zap.Int("user_id", userID),
			zap.String("type", kind),
			zap.Error(err))
		return
	}

	if n.bus != nil {
		n.bus.Publish(events.Event{
			Type:   events.EventNotification,
			UserID: userID,
			FileID: fileID,
			Name:   message,
		})
	}
}

// List returns the user's notifications, newest first.
func (n *Notifier) List(ctx context.Context, userID int, unreadOnly bool, limit int) ([]Notification, error) {
	return n.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

// MarkRead marks one notification as read.
func (n *Notifier) MarkRead(ctx context.Context, id, userID int) error {
	return n.store.MarkNotificationRead(ctx, id, userID)
}

// MarkAllRead marks all of the user's notifications as read.
func (n *Notifier) MarkAllRead(ctx context.Context, userID int) error {
	return n.store.MarkAllNotificationsRead(ctx, userID)
}
