package team

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

// Default and maximum team capacity.
const (
	defaultMaxMembers = 5
	capMaxMembers     = 10
)

// Service handles team lifecycle and membership workflows.
type Service struct {
	teams       repository.TeamRepository
	users       repository.UserRepository
	invitations repository.InvitationRepository
	notify      notification.Service
	logger      *slog.Logger
}

// New constructs a Service.
func New(teams repository.TeamRepository, users repository.UserRepository, invitations repository.InvitationRepository, notify notification.Service, logger *slog.Logger) Service {
	return Service{teams: teams, users: users, invitations: invitations, notify: notify, logger: logger}
}

var (
	ErrAlreadyOnTeam = errors.New("team: user already belongs to a team")
	ErrNotLeader     = errors.New("team: caller is not the team leader")
	ErrNotMember     = errors.New("team: caller is not a team member")
	ErrLeaderLeaving = errors.New("team: leader must disband or transfer before leaving")

	errInvalidTeamName = errors.New("team: name is required")
	errCapacityRange   = errors.New("team: capacity out of range")
	errCapacityBelow   = errors.New("team: capacity below current member count")
	errRemoveSelf      = errors.New("team: leader cannot remove themselves")
)

// CreateInput captures team creation fields.
type CreateInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
	MaxMembers  int      `json:"max_members"`
}

// Detail pairs a team with its membership list.
type Detail struct {
	Team    domain.Team         `json:"team"`
	Members []domain.TeamMember `json:"members"`
}

// Create registers a team with the caller as leader and sole member.
func (s Service) Create(ctx context.Context, leaderID string, input CreateInput) (*domain.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errInvalidTeamName
	}
	maxMembers := input.MaxMembers
	if maxMembers == 0 {
		maxMembers = defaultMaxMembers
	}
	if maxMembers < 1 || maxMembers > capMaxMembers {
		return nil, errCapacityRange
	}
	leader, err := s.users.GetUserByID(ctx, leaderID)
	if err != nil {
		return nil, err
	}
	if leader.OnTeam() {
		return nil, ErrAlreadyOnTeam
	}

	now := time.Now().UTC()
	team := &domain.Team{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		LeaderID:    leaderID,
		Skills:      input.Skills,
		MaxMembers:  maxMembers,
		CreatedAt:   now,
	}
	if team.Skills == nil {
		team.Skills = []string{}
	}
	if err := s.teams.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	member := &domain.TeamMember{
		TeamID:   team.ID,
		UserID:   leaderID,
		Role:     domain.TeamRoleLeader,
		JoinedAt: now,
	}
	if err := s.teams.AddMember(ctx, member); err != nil {
		return nil, err
	}
	if err := s.users.SetUserTeam(ctx, leaderID, &team.ID); err != nil {
		return nil, err
	}
	// The caller's other pending join requests no longer make sense.
	if _, err := s.invitations.CancelPendingForUser(ctx, leaderID); err != nil {
		s.logger.Warn("failed to cancel pending invitations", "user_id", leaderID, "error", err)
	}
	s.logger.Info("team created", "team_id", team.ID, "leader_id", leaderID)
	return team, nil
}

// Get returns a team with its member list.
func (s Service) Get(ctx context.Context, teamID string) (*Detail, error) {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	members, err := s.teams.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return &Detail{Team: *team, Members: members}, nil
}

// ListOpen returns teams that still have capacity.
func (s Service) ListOpen(ctx context.Context, limit int) ([]domain.Team, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.teams.ListOpenTeams(ctx, limit)
}

// UpdateInput captures mutable team fields. Absent fields keep their
// current value; Description is a pointer so it can be cleared explicitly.
type UpdateInput struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Skills      []string `json:"skills"`
	MaxMembers  int      `json:"max_members"`
}

// Update edits team fields. Leader only. Capacity can never drop below the
// current member count.
func (s Service) Update(ctx context.Context, callerID, teamID string, input UpdateInput) (*domain.Team, error) {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != callerID {
		return nil, ErrNotLeader
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		team.Name = name
	}
	if input.Description != nil {
		team.Description = strings.TrimSpace(*input.Description)
	}
	if input.Skills != nil {
		team.Skills = input.Skills
	}
	if input.MaxMembers != 0 {
		if input.MaxMembers < 1 || input.MaxMembers > capMaxMembers {
			return nil, errCapacityRange
		}
		count, err := s.teams.CountMembers(ctx, teamID)
		if err != nil {
			return nil, err
		}
		if input.MaxMembers < count {
			return nil, errCapacityBelow
		}
		team.MaxMembers = input.MaxMembers
	}
	if err := s.teams.UpdateTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// Disband deletes the team, releases every member, and cancels the team's
// pending invitations. Leader only.
func (s Service) Disband(ctx context.Context, callerID, teamID string) error {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team.LeaderID != callerID {
		return ErrNotLeader
	}
	members, err := s.teams.ListMembers(ctx, teamID)
	if err != nil {
		return err
	}
	if _, err := s.invitations.CancelPendingForTeam(ctx, teamID); err != nil {
		s.logger.Warn("failed to cancel pending invitations", "team_id", teamID, "error", err)
	}
	// users.team_id clears via ON DELETE SET NULL, membership rows cascade.
	if err := s.teams.DeleteTeam(ctx, teamID); err != nil {
		return err
	}
	for _, m := range members {
		if m.UserID == callerID {
			continue
		}
		if err := s.notify.Push(ctx, m.UserID, domain.NotificationTeamDisbanded,
			"Team disbanded", "Team "+team.Name+" was disbanded by its leader.", teamID); err != nil {
			s.logger.Warn("failed to push notification", "user_id", m.UserID, "error", err)
		}
	}
	s.logger.Info("team disbanded", "team_id", teamID, "members_released", len(members))
	return nil
}

// Leave removes the caller from their team. The leader cannot leave.
func (s Service) Leave(ctx context.Context, callerID, teamID string) error {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team.LeaderID == callerID {
		return ErrLeaderLeaving
	}
	caller, err := s.users.GetUserByID(ctx, callerID)
	if err != nil {
		return err
	}
	if caller.TeamID == nil || *caller.TeamID != teamID {
		return ErrNotMember
	}
	if err := s.teams.RemoveMember(ctx, teamID, callerID); err != nil {
		return err
	}
	if err := s.users.SetUserTeam(ctx, callerID, nil); err != nil {
		return err
	}
	if err := s.notify.Push(ctx, team.LeaderID, domain.NotificationMemberRemoved,
		"Member left", caller.Name+" left your team.", teamID); err != nil {
		s.logger.Warn("failed to push notification", "user_id", team.LeaderID, "error", err)
	}
	s.logger.Info("member left team", "team_id", teamID, "user_id", callerID)
	return nil
}

// RemoveMember ejects a member. Leader only, and never the leader themselves.
func (s Service) RemoveMember(ctx context.Context, callerID, teamID, userID string) error {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team.LeaderID != callerID {
		return ErrNotLeader
	}
	if userID == callerID {
		return errRemoveSelf
	}
	if err := s.teams.RemoveMember(ctx, teamID, userID); err != nil {
		return err
	}
	if err := s.users.SetUserTeam(ctx, userID, nil); err != nil {
		return err
	}
	if err := s.notify.Push(ctx, userID, domain.NotificationMemberRemoved,
		"Removed from team", "You were removed from team "+team.Name+".", teamID); err != nil {
		s.logger.Warn("failed to push notification", "user_id", userID, "error", err)
	}
	s.logger.Info("member removed", "team_id", teamID, "user_id", userID)
	return nil
}
