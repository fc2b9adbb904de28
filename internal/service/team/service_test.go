package team

import (
	"context"
	"errors"
	"io"
	"testing"

	"log/slog"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
	"github.com/2611006/TeamUp26/internal/service/notification"
	"github.com/2611006/TeamUp26/internal/ws"
)

type stubTeamRepository struct {
	teams        map[string]domain.Team
	memberLists  map[string][]domain.TeamMember
	counts       map[string]int
	added        []domain.TeamMember
	removed      [][2]string
	updated      []domain.Team
	deletedTeams []string
}

func (s *stubTeamRepository) CreateTeam(ctx context.Context, team *domain.Team) error {
	if s.teams == nil {
		s.teams = map[string]domain.Team{}
	}
	s.teams[team.ID] = *team
	return nil
}

func (s *stubTeamRepository) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	if team, ok := s.teams[teamID]; ok {
		return &team, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubTeamRepository) UpdateTeam(ctx context.Context, team *domain.Team) error {
	s.updated = append(s.updated, *team)
	return nil
}

func (s *stubTeamRepository) DeleteTeam(ctx context.Context, teamID string) error {
	s.deletedTeams = append(s.deletedTeams, teamID)
	return nil
}

func (s *stubTeamRepository) AddMember(ctx context.Context, member *domain.TeamMember) error {
	s.added = append(s.added, *member)
	return nil
}

func (s *stubTeamRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	s.removed = append(s.removed, [2]string{teamID, userID})
	return nil
}

func (s *stubTeamRepository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	return append([]domain.TeamMember(nil), s.memberLists[teamID]...), nil
}

func (s *stubTeamRepository) CountMembers(ctx context.Context, teamID string) (int, error) {
	return s.counts[teamID], nil
}

func (s *stubTeamRepository) ListOpenTeams(ctx context.Context, limit int) ([]domain.Team, error) {
	return nil, nil
}

type stubUserRepository struct {
	users    map[string]domain.User
	teamSets []string
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
	s.teamSets = append(s.teamSets, userID)
	return nil
}

func (s *stubUserRepository) SearchUsersBySkill(ctx context.Context, skill string, teamless bool, limit int) ([]domain.User, error) {
	return nil, nil
}

type stubInvitationRepository struct {
	cancelledUsers []string
	cancelledTeams []string
}

func (s *stubInvitationRepository) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	return nil
}

func (s *stubInvitationRepository) GetInvitationByID(ctx context.Context, id string) (*domain.Invitation, error) {
	return nil, repository.ErrNotFound
}

func (s *stubInvitationRepository) HasPendingInvitation(ctx context.Context, teamID, userID string) (bool, error) {
	return false, nil
}

func (s *stubInvitationRepository) UpdateInvitationStatus(ctx context.Context, id, status string) error {
	return nil
}

func (s *stubInvitationRepository) CancelPendingForUser(ctx context.Context, userID string) (int, error) {
	s.cancelledUsers = append(s.cancelledUsers, userID)
	return 1, nil
}

func (s *stubInvitationRepository) CancelPendingForTeam(ctx context.Context, teamID string) (int, error) {
	s.cancelledTeams = append(s.cancelledTeams, teamID)
	return 1, nil
}

func (s *stubInvitationRepository) ListInvitationsForUser(ctx context.Context, userID string, pendingOnly bool) ([]domain.Invitation, error) {
	return nil, nil
}

func (s *stubInvitationRepository) ListInvitationsForTeam(ctx context.Context, teamID string, pendingOnly bool) ([]domain.Invitation, error) {
	return nil, nil
}

func (s *stubInvitationRepository) AcceptInvitation(ctx context.Context, inv *domain.Invitation, member *domain.TeamMember) error {
	return nil
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

type fixture struct {
	svc           Service
	teams         *stubTeamRepository
	users         *stubUserRepository
	invitations   *stubInvitationRepository
	notifications *stubNotificationRepository
}

func newFixture() *fixture {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	teamID := "team-1"
	f := &fixture{
		teams: &stubTeamRepository{
			teams: map[string]domain.Team{
				teamID: {ID: teamID, Name: "Crew", LeaderID: "leader-1", MaxMembers: 5},
			},
			memberLists: map[string][]domain.TeamMember{
				teamID: {
					{TeamID: teamID, UserID: "leader-1", Role: domain.TeamRoleLeader},
					{TeamID: teamID, UserID: "user-1", Role: domain.TeamRoleMember},
				},
			},
			counts: map[string]int{teamID: 2},
		},
		users: &stubUserRepository{users: map[string]domain.User{
			"leader-1": {ID: "leader-1", Name: "Lena", TeamID: &teamID},
			"user-1":   {ID: "user-1", Name: "Sam", TeamID: &teamID},
			"free-1":   {ID: "free-1", Name: "Finn"},
		}},
		invitations:   &stubInvitationRepository{},
		notifications: &stubNotificationRepository{},
	}
	notifySvc := notification.New(f.notifications, ws.NewHub(), log)
	f.svc = New(f.teams, f.users, f.invitations, notifySvc, log)
	return f
}

func TestCreateDefaultsCapacity(t *testing.T) {
	f := newFixture()
	team, err := f.svc.Create(context.Background(), "free-1", CreateInput{Name: " Builders "})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if team.Name != "Builders" {
		t.Fatalf("expected trimmed name, got %q", team.Name)
	}
	if team.MaxMembers != defaultMaxMembers {
		t.Fatalf("expected default capacity %d, got %d", defaultMaxMembers, team.MaxMembers)
	}
	if len(f.teams.added) != 1 || f.teams.added[0].Role != domain.TeamRoleLeader {
		t.Fatalf("expected leader membership, got %+v", f.teams.added)
	}
	if len(f.invitations.cancelledUsers) != 1 || f.invitations.cancelledUsers[0] != "free-1" {
		t.Fatalf("expected pending records cancelled for creator, got %v", f.invitations.cancelledUsers)
	}
}

func TestCreateRejectsUserOnTeam(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Create(context.Background(), "user-1", CreateInput{Name: "Crew 2"}); !errors.Is(err, ErrAlreadyOnTeam) {
		t.Fatalf("expected ErrAlreadyOnTeam, got %v", err)
	}
}

func TestCreateRejectsCapacityOutOfRange(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Create(context.Background(), "free-1", CreateInput{Name: "Big", MaxMembers: capMaxMembers + 1}); !errors.Is(err, errCapacityRange) {
		t.Fatalf("expected errCapacityRange, got %v", err)
	}
}

func TestUpdateRequiresLeader(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Update(context.Background(), "user-1", "team-1", UpdateInput{Name: "New"}); !errors.Is(err, ErrNotLeader) {
		t.Fatalf("expected ErrNotLeader, got %v", err)
	}
}

func TestUpdateKeepsDescriptionWhenOmitted(t *testing.T) {
	f := newFixture()
	team := f.teams.teams["team-1"]
	team.Description = "Weekend hackathon crew"
	f.teams.teams["team-1"] = team

	updated, err := f.svc.Update(context.Background(), "leader-1", "team-1", UpdateInput{MaxMembers: 6})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Description != "Weekend hackathon crew" {
		t.Fatalf("omitted description was overwritten: %q", updated.Description)
	}
	if updated.MaxMembers != 6 {
		t.Fatalf("expected capacity updated, got %d", updated.MaxMembers)
	}

	empty := ""
	updated, err = f.svc.Update(context.Background(), "leader-1", "team-1", UpdateInput{Description: &empty})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Description != "" {
		t.Fatalf("explicit empty description must clear, got %q", updated.Description)
	}
}

func TestUpdateRejectsCapacityBelowMembers(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Update(context.Background(), "leader-1", "team-1", UpdateInput{MaxMembers: 1}); !errors.Is(err, errCapacityBelow) {
		t.Fatalf("expected errCapacityBelow, got %v", err)
	}
}

func TestDisbandNotifiesMembers(t *testing.T) {
	f := newFixture()
	if err := f.svc.Disband(context.Background(), "leader-1", "team-1"); err != nil {
		t.Fatalf("Disband returned error: %v", err)
	}
	if len(f.teams.deletedTeams) != 1 {
		t.Fatalf("expected team deleted, got %v", f.teams.deletedTeams)
	}
	if len(f.invitations.cancelledTeams) != 1 {
		t.Fatalf("expected pending invitations cancelled, got %v", f.invitations.cancelledTeams)
	}
	// The leader does not get notified about their own action.
	if len(f.notifications.created) != 1 || f.notifications.created[0].UserID != "user-1" {
		t.Fatalf("expected disband notification for user-1 only, got %+v", f.notifications.created)
	}
}

func TestLeaveRejectsLeader(t *testing.T) {
	f := newFixture()
	if err := f.svc.Leave(context.Background(), "leader-1", "team-1"); !errors.Is(err, ErrLeaderLeaving) {
		t.Fatalf("expected ErrLeaderLeaving, got %v", err)
	}
}

func TestLeaveReleasesMember(t *testing.T) {
	f := newFixture()
	if err := f.svc.Leave(context.Background(), "user-1", "team-1"); err != nil {
		t.Fatalf("Leave returned error: %v", err)
	}
	if len(f.teams.removed) != 1 || f.teams.removed[0] != [2]string{"team-1", "user-1"} {
		t.Fatalf("expected membership removal, got %v", f.teams.removed)
	}
	if len(f.users.teamSets) != 1 || f.users.teamSets[0] != "user-1" {
		t.Fatalf("expected team_id cleared for user-1, got %v", f.users.teamSets)
	}
	if len(f.notifications.created) != 1 || f.notifications.created[0].UserID != "leader-1" {
		t.Fatalf("expected leader notified, got %+v", f.notifications.created)
	}
}

func TestLeaveRequiresMembership(t *testing.T) {
	f := newFixture()
	if err := f.svc.Leave(context.Background(), "free-1", "team-1"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestRemoveMemberRules(t *testing.T) {
	f := newFixture()
	if err := f.svc.RemoveMember(context.Background(), "user-1", "team-1", "leader-1"); !errors.Is(err, ErrNotLeader) {
		t.Fatalf("expected ErrNotLeader, got %v", err)
	}
	if err := f.svc.RemoveMember(context.Background(), "leader-1", "team-1", "leader-1"); !errors.Is(err, errRemoveSelf) {
		t.Fatalf("expected errRemoveSelf, got %v", err)
	}
	if err := f.svc.RemoveMember(context.Background(), "leader-1", "team-1", "user-1"); err != nil {
		t.Fatalf("RemoveMember returned error: %v", err)
	}
	if len(f.notifications.created) != 1 || f.notifications.created[0].Kind != domain.NotificationMemberRemoved {
		t.Fatalf("expected removal notification, got %+v", f.notifications.created)
	}
}
