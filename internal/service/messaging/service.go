package messaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
	"github.com/2611006/TeamUp26/internal/service/notification"
)

// Service handles direct-messaging workflows.
type Service struct {
	conversations repository.ConversationRepository
	users         repository.UserRepository
	notify        notification.Service
	logger        *slog.Logger
}

// New constructs a Service.
func New(conversations repository.ConversationRepository, users repository.UserRepository, notify notification.Service, logger *slog.Logger) Service {
	return Service{conversations: conversations, users: users, notify: notify, logger: logger}
}

var (
	ErrNotParticipant = errors.New("messaging: caller is not a participant")

	errSelfConversation = errors.New("messaging: cannot message yourself")
	errEmptyBody        = errors.New("messaging: message body is required")
)

const previewLimit = 80

// Open returns the conversation between the caller and another user,
// creating it on first contact.
func (s Service) Open(ctx context.Context, callerID, otherID string) (*domain.Conversation, error) {
	if callerID == otherID {
		return nil, errSelfConversation
	}
	if _, err := s.users.GetUserByID(ctx, otherID); err != nil {
		return nil, err
	}
	a, b := orderPair(callerID, otherID)
	return s.conversations.GetOrCreateConversation(ctx, a, b)
}

// OpenWithSystemMessage opens (or reuses) a conversation between two users and
// appends a system message. Used by membership workflows to bootstrap contact.
func (s Service) OpenWithSystemMessage(ctx context.Context, userA, userB, body string) (*domain.Conversation, error) {
	a, b := orderPair(userA, userB)
	conv, err := s.conversations.GetOrCreateConversation(ctx, a, b)
	if err != nil {
		return nil, err
	}
	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       userA,
		Body:           body,
		System:         true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.conversations.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return conv, nil
}

// Send appends a message from the caller and notifies the recipient.
func (s Service) Send(ctx context.Context, callerID, conversationID, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errEmptyBody
	}
	conv, err := s.conversations.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Includes(callerID) {
		return nil, ErrNotParticipant
	}
	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       callerID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.conversations.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	sender, err := s.users.GetUserByID(ctx, callerID)
	senderName := "Someone"
	if err == nil && sender.Name != "" {
		senderName = sender.Name
	}
	recipient := conv.Other(callerID)
	if err := s.notify.Push(ctx, recipient, domain.NotificationNewMessage,
		"New message from "+senderName, preview(body), conversationID); err != nil {
		s.logger.Warn("failed to push message notification", "user_id", recipient, "error", err)
	}
	return msg, nil
}

// ListMessages returns a conversation's messages in order.
func (s Service) ListMessages(ctx context.Context, callerID, conversationID, after string, limit int) ([]domain.Message, error) {
	conv, err := s.conversations.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Includes(callerID) {
		return nil, ErrNotParticipant
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.conversations.ListMessages(ctx, conversationID, after, limit)
}

// ListConversations returns the caller's threads with unread counts.
func (s Service) ListConversations(ctx context.Context, callerID string) ([]domain.ConversationSummary, error) {
	return s.conversations.ListConversations(ctx, callerID)
}

// MarkRead flags every message sent to the caller in the conversation.
func (s Service) MarkRead(ctx context.Context, callerID, conversationID string) (int, error) {
	conv, err := s.conversations.GetConversationByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.Includes(callerID) {
		return 0, ErrNotParticipant
	}
	return s.conversations.MarkMessagesRead(ctx, conversationID, callerID)
}

// orderPair sorts two user IDs so a pair maps to one conversation row.
func orderPair(x, y string) (string, string) {
	if x < y {
		return x, y
	}
	return y, x
}

func preview(body string) string {
	runes := []rune(body)
	if len(runes) <= previewLimit {
		return body
	}
	return string(runes[:previewLimit]) + "…"
}
