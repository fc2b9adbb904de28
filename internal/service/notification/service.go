package notification

import (
	"context"
	"encoding/json"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
	"github.com/2611006/TeamUp26/internal/ws"
)

// Service handles notification persistence and live delivery.
type Service struct {
	repo   repository.NotificationRepository
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs a notification service.
func New(repo repository.NotificationRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{repo: repo, hub: hub, logger: logger}
}

// Push stores a notification and broadcasts it to the user's stream.
func (s Service) Push(ctx context.Context, userID, kind, title, body, refID string) error {
	n := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		RefID:     refID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return err
	}
	s.broadcast(n)
	return nil
}

// List returns the user's notifications.
func (s Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListNotifications(ctx, userID, unreadOnly, limit)
}

// MarkRead flags a single notification.
func (s Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkNotificationRead(ctx, userID, id)
}

// MarkAllRead flags every unread notification for the user.
func (s Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

// Hub returns the stream hub (useful for HTTP handlers).
func (s Service) Hub() *ws.Hub {
	return s.hub
}

// UserTopic names the stream topic for a user's notifications.
func UserTopic(userID string) string {
	return "user:" + userID
}

func (s Service) broadcast(n *domain.Notification) {
	data, err := MarshalNotification(n)
	if err != nil {
		s.logger.Warn("failed to marshal notification payload", "error", err)
		return
	}
	s.hub.Broadcast(UserTopic(n.UserID), data)
}

// MarshalNotification formats a notification for streaming payloads.
func MarshalNotification(n *domain.Notification) ([]byte, error) {
	payload := map[string]any{
		"id":         n.ID,
		"kind":       n.Kind,
		"title":      n.Title,
		"body":       n.Body,
		"ref_id":     n.RefID,
		"read":       n.Read,
		"created_at": n.CreatedAt.Format(time.RFC3339Nano),
	}
	return json.Marshal(payload)
}
