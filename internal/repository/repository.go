package repository

import (
	"context"

	"github.com/2611006/TeamUp26/internal/domain"
)

// UserRepository persists users and profiles.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	SetUserTeam(ctx context.Context, userID string, teamID *string) error
	SearchUsersBySkill(ctx context.Context, skill string, teamless bool, limit int) ([]domain.User, error)
}

// TeamRepository manages teams and memberships.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team *domain.Team) error
	GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error)
	UpdateTeam(ctx context.Context, team *domain.Team) error
	DeleteTeam(ctx context.Context, teamID string) error
	AddMember(ctx context.Context, member *domain.TeamMember) error
	RemoveMember(ctx context.Context, teamID, userID string) error
	ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error)
	CountMembers(ctx context.Context, teamID string) (int, error)
	ListOpenTeams(ctx context.Context, limit int) ([]domain.Team, error)
}

// InvitationRepository persists invitations and join requests.
type InvitationRepository interface {
	CreateInvitation(ctx context.Context, inv *domain.Invitation) error
	GetInvitationByID(ctx context.Context, id string) (*domain.Invitation, error)
	HasPendingInvitation(ctx context.Context, teamID, userID string) (bool, error)
	UpdateInvitationStatus(ctx context.Context, id, status string) error
	CancelPendingForUser(ctx context.Context, userID string) (int, error)
	CancelPendingForTeam(ctx context.Context, teamID string) (int, error)
	ListInvitationsForUser(ctx context.Context, userID string, pendingOnly bool) ([]domain.Invitation, error)
	ListInvitationsForTeam(ctx context.Context, teamID string, pendingOnly bool) ([]domain.Invitation, error)
	AcceptInvitation(ctx context.Context, inv *domain.Invitation, member *domain.TeamMember) error
}

// NotificationRepository persists user notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

// FeedRepository persists posts, comments, and likes.
type FeedRepository interface {
	CreatePost(ctx context.Context, post *domain.FeedPost) error
	GetPostByID(ctx context.Context, id string) (*domain.FeedPost, error)
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context, before string, limit int) ([]domain.FeedPost, error)
	CreateComment(ctx context.Context, comment *domain.FeedComment) error
	ListComments(ctx context.Context, postID string, limit int) ([]domain.FeedComment, error)
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, err error)
}

// TaskRepository persists team tasks.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *domain.TeamTask) error
	GetTaskByID(ctx context.Context, id string) (*domain.TeamTask, error)
	UpdateTask(ctx context.Context, task *domain.TeamTask) error
	DeleteTask(ctx context.Context, id string) error
	ListTasksByTeam(ctx context.Context, teamID string) ([]domain.TeamTask, error)
}

// ConversationRepository persists conversations and messages.
type ConversationRepository interface {
	GetOrCreateConversation(ctx context.Context, userA, userB string) (*domain.Conversation, error)
	GetConversationByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	CreateMessage(ctx context.Context, msg *domain.Message) error
	ListMessages(ctx context.Context, conversationID string, after string, limit int) ([]domain.Message, error)
	MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int, error)
}

// VerificationRepository persists GitHub links and skill verifications.
type VerificationRepository interface {
	UpsertGitHubLink(ctx context.Context, link *domain.GitHubLink) error
	GetGitHubLink(ctx context.Context, userID string) (*domain.GitHubLink, error)
	CreateVerification(ctx context.Context, v *domain.SkillVerification) error
	ListVerifications(ctx context.Context, userID string) ([]domain.SkillVerification, error)
}
