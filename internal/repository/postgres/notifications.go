package postgres

import (
	"context"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
)

// CreateNotification inserts a notification record.
func (r *Repository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	const query = `INSERT INTO notifications (id, user_id, kind, title, body, ref_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query, n.ID, n.UserID, n.Kind, n.Title, n.Body, n.RefID, n.Read, n.CreatedAt)
	return translateErr(err)
}

// ListNotifications returns the user's notifications, newest first.
func (r *Repository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `SELECT id, user_id, kind, title, body, ref_id, read, created_at
		FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	notifications := make([]domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.RefID, &n.Read, &n.CreatedAt); err != nil {
			return nil, translateErr(err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flags a single notification as read.
func (r *Repository) MarkNotificationRead(ctx context.Context, userID, id string) error {
	const query = `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead flags every unread notification for the user.
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	const query = `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`
	tag, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, translateErr(err)
	}
	return int(tag.RowsAffected()), nil
}
