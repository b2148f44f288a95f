package store

import (
	"context"
	"fmt"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

func (q *Queries) CreateNotification(ctx context.Context, n *models.Notification) error {
	id, err := q.insertReturningID(ctx, `
		INSERT INTO notifications (student_id, message, type, url, is_read, created_at)
		VALUES (:student_id, :message, :type, :url, :is_read, :created_at)
		RETURNING id
	`, n)
	if err != nil {
		return q.wrap(err, "failed to create notification")
	}
	n.ID = id
	return nil
}

func (q *Queries) ListNotifications(ctx context.Context, studentID int64, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := q.selectAll(ctx, &notifications, `
		SELECT id, student_id, message, type, url, is_read, created_at
		FROM notifications
		WHERE student_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, studentID, limit)
	if err != nil {
		return nil, q.wrap(err, "failed to list notifications")
	}
	return notifications, nil
}

func (q *Queries) MarkNotificationRead(ctx context.Context, id, studentID int64) error {
	n, err := q.exec(ctx, `
		UPDATE notifications SET is_read = ? WHERE id = ? AND student_id = ?
	`, true, id, studentID)
	if err != nil {
		return q.wrap(err, "failed to mark notification read")
	}
	if n == 0 {
		return fmt.Errorf("notification %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// SavePushSubscription upserts on (student_id, endpoint), refreshing the keys.
func (q *Queries) SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	id, err := q.insertReturningID(ctx, `
		INSERT INTO push_subscriptions (student_id, endpoint, p256dh, auth, created_at)
		VALUES (:student_id, :endpoint, :p256dh, :auth, :created_at)
		ON CONFLICT (student_id, endpoint) DO UPDATE SET
		p256dh = excluded.p256dh,
		auth = excluded.auth
		RETURNING id
	`, sub)
	if err != nil {
		return q.wrap(err, "failed to save push subscription")
	}
	sub.ID = id
	return nil
}

func (q *Queries) ListPushSubscriptions(ctx context.Context, studentID int64) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := q.selectAll(ctx, &subs, `
		SELECT id, student_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE student_id = ?
		ORDER BY id ASC
	`, studentID)
	if err != nil {
		return nil, q.wrap(err, "failed to list push subscriptions")
	}
	return subs, nil
}

func (q *Queries) DeletePushSubscription(ctx context.Context, id int64) error {
	if _, err := q.exec(ctx, `DELETE FROM push_subscriptions WHERE id = ?`, id); err != nil {
		return q.wrap(err, "failed to delete push subscription")
	}
	return nil
}

func (q *Queries) CountUnreadNotifications(ctx context.Context, studentID int64) (int, error) {
	var count int
	err := q.get(ctx, &count, `
		SELECT COUNT(*) FROM notifications WHERE student_id = ? AND is_read = ?
	`, studentID, false)
	if err != nil {
		return 0, q.wrap(err, "failed to count unread notifications")
	}
	return count, nil
}
