package messaging

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"log/slog"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
	"github.com/2611006/TeamUp26/internal/service/notification"
	"github.com/2611006/TeamUp26/internal/ws"
)

type stubConversationRepository struct {
	conversations map[string]domain.Conversation
	messages      []domain.Message
	pairCalls     [][2]string
}

func (s *stubConversationRepository) GetOrCreateConversation(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	s.pairCalls = append(s.pairCalls, [2]string{userA, userB})
	return &domain.Conversation{ID: "conv-1", UserA: userA, UserB: userB}, nil
}

func (s *stubConversationRepository) GetConversationByID(ctx context.Context, id string) (*domain.Conversation, error) {
	if conv, ok := s.conversations[id]; ok {
		return &conv, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubConversationRepository) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	return nil, nil
}

func (s *stubConversationRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *stubConversationRepository) ListMessages(ctx context.Context, conversationID string, after string, limit int) ([]domain.Message, error) {
	return nil, nil
}

func (s *stubConversationRepository) MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int, error) {
	return 2, nil
}

type stubUserRepository struct {
	users map[string]domain.User
}

func (s *stubUserRepository) CreateUser(ctx context.Context, user *domain.User) error { return nil }

func (s *stubUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := s.users[id]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error { return nil }
func (s *stubUserRepository) SetUserTeam(ctx context.Context, userID string, teamID *string) error {
	return nil
}
func (s *stubUserRepository) SearchUsersBySkill(ctx context.Context, skill string, teamless bool, limit int) ([]domain.User, error) {
	return nil, nil
}

type stubNotificationRepository struct {
	created []domain.Notification
}

func (s *stubNotificationRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	s.created = append(s.created, *n)
	return nil
}

func (s *stubNotificationRepository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	return nil, nil
}

func (s *stubNotificationRepository) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return nil
}

func (s *stubNotificationRepository) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

func newService() (Service, *stubConversationRepository, *stubNotificationRepository) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	conversations := &stubConversationRepository{conversations: map[string]domain.Conversation{
		"conv-1": {ID: "conv-1", UserA: "anna", UserB: "ben"},
	}}
	users := &stubUserRepository{users: map[string]domain.User{
		"anna": {ID: "anna", Name: "Anna"},
		"ben":  {ID: "ben", Name: "Ben"},
	}}
	notifications := &stubNotificationRepository{}
	notifySvc := notification.New(notifications, ws.NewHub(), log)
	return New(conversations, users, notifySvc, log), conversations, notifications
}

func TestOpenRejectsSelfConversation(t *testing.T) {
	svc, _, _ := newService()
	if _, err := svc.Open(context.Background(), "anna", "anna"); !errors.Is(err, errSelfConversation) {
		t.Fatalf("expected errSelfConversation, got %v", err)
	}
}

func TestOpenOrdersPair(t *testing.T) {
	svc, conversations, _ := newService()
	if _, err := svc.Open(context.Background(), "ben", "anna"); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if len(conversations.pairCalls) != 1 || conversations.pairCalls[0] != [2]string{"anna", "ben"} {
		t.Fatalf("expected lexically ordered pair, got %+v", conversations.pairCalls)
	}
}

func TestSendRequiresParticipant(t *testing.T) {
	svc, _, _ := newService()
	if _, err := svc.Send(context.Background(), "mallory", "conv-1", "hey"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestSendNotifiesRecipient(t *testing.T) {
	svc, conversations, notifications := newService()
	msg, err := svc.Send(context.Background(), "anna", "conv-1", "  lunch?  ")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if msg.Body != "lunch?" {
		t.Fatalf("expected trimmed body, got %q", msg.Body)
	}
	if len(conversations.messages) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(conversations.messages))
	}
	if len(notifications.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications.created))
	}
	if got := notifications.created[0]; got.UserID != "ben" || got.Kind != domain.NotificationNewMessage {
		t.Fatalf("unexpected notification: %+v", got)
	}
}

func TestSendRejectsEmptyBody(t *testing.T) {
	svc, _, _ := newService()
	if _, err := svc.Send(context.Background(), "anna", "conv-1", "   "); !errors.Is(err, errEmptyBody) {
		t.Fatalf("expected errEmptyBody, got %v", err)
	}
}

func TestOpenWithSystemMessageMarksSystem(t *testing.T) {
	svc, conversations, _ := newService()
	if _, err := svc.OpenWithSystemMessage(context.Background(), "ben", "anna", "welcome"); err != nil {
		t.Fatalf("OpenWithSystemMessage returned error: %v", err)
	}
	if len(conversations.messages) != 1 || !conversations.messages[0].System {
		t.Fatalf("expected one system message, got %+v", conversations.messages)
	}
}

func TestMarkReadRequiresParticipant(t *testing.T) {
	svc, _, _ := newService()
	if _, err := svc.MarkRead(context.Background(), "mallory", "conv-1"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if n, err := svc.MarkRead(context.Background(), "ben", "conv-1"); err != nil || n != 2 {
		t.Fatalf("expected 2 marked messages, got %d (%v)", n, err)
	}
}

func TestPreviewTruncatesLongBodies(t *testing.T) {
	body := strings.Repeat("ж", previewLimit+10)
	got := preview(body)
	if runes := []rune(got); len(runes) != previewLimit+1 {
		t.Fatalf("expected %d runes, got %d", previewLimit+1, len(runes))
	}
}
