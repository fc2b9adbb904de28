package invitation

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
	"github.com/2611006/TeamUp26/internal/service/messaging"
	"github.com/2611006/TeamUp26/internal/service/notification"
)

// Service handles the invitation / join-request workflow. It owns the
// membership consistency rules: a user belongs to at most one team, a team
// never exceeds its capacity, and a (user, team) pair carries at most one
// pending record.
type Service struct {
	invitations repository.InvitationRepository
	teams       repository.TeamRepository
	users       repository.UserRepository
	notify      notification.Service
	messaging   messaging.Service
	logger      *slog.Logger
}

// New constructs a Service.
func New(invitations repository.InvitationRepository, teams repository.TeamRepository, users repository.UserRepository, notify notification.Service, msg messaging.Service, logger *slog.Logger) Service {
	return Service{invitations: invitations, teams: teams, users: users, notify: notify, messaging: msg, logger: logger}
}

var (
	ErrDuplicatePending = errors.New("invitation: pending record already exists for this pair")
	ErrTeamFull         = errors.New("invitation: team is at capacity")
	ErrAlreadyOnTeam    = errors.New("invitation: user already belongs to a team")
	ErrNotLeader        = errors.New("invitation: caller is not the team leader")
	ErrNotPending       = errors.New("invitation: record is no longer pending")
	ErrWrongDecider     = errors.New("invitation: caller cannot decide this record")
	ErrWrongCanceller   = errors.New("invitation: caller cannot cancel this record")

	errUnknownKind = errors.New("invitation: unknown kind")
)

// CreateInput captures invitation creation fields.
type CreateInput struct {
	TeamID  string `json:"team_id"`
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Create issues an invite (leader to a user) or a join request (user to a
// team). Capacity and one-team rules are pre-checked here; the accept path
// re-checks them transactionally.
func (s Service) Create(ctx context.Context, callerID string, input CreateInput) (*domain.Invitation, error) {
	team, err := s.teams.GetTeamByID(ctx, input.TeamID)
	if err != nil {
		return nil, err
	}

	var subjectID string
	switch input.Kind {
	case domain.InvitationKindInvite:
		if team.LeaderID != callerID {
			return nil, ErrNotLeader
		}
		subjectID = input.UserID
	case domain.InvitationKindJoinRequest:
		subjectID = callerID
	default:
		return nil, errUnknownKind
	}

	subject, err := s.users.GetUserByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if subject.OnTeam() {
		return nil, ErrAlreadyOnTeam
	}

	count, err := s.teams.CountMembers(ctx, team.ID)
	if err != nil {
		return nil, err
	}
	if count >= team.MaxMembers {
		return nil, ErrTeamFull
	}

	exists, err := s.invitations.HasPendingInvitation(ctx, team.ID, subjectID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicatePending
	}

	inv := &domain.Invitation{
		ID:        uuid.NewString(),
		TeamID:    team.ID,
		UserID:    subjectID,
		Kind:      input.Kind,
		Status:    domain.InvitationStatusPending,
		Message:   strings.TrimSpace(input.Message),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.invitations.CreateInvitation(ctx, inv); err != nil {
		// The partial unique index backs the pre-check under races.
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicatePending
		}
		return nil, err
	}

	switch input.Kind {
	case domain.InvitationKindInvite:
		s.pushNotification(ctx, subjectID, domain.NotificationInviteReceived,
			"Team invitation", "Team "+team.Name+" invited you to join.", inv.ID)
	case domain.InvitationKindJoinRequest:
		s.pushNotification(ctx, team.LeaderID, domain.NotificationRequestReceived,
			"Join request", subject.Name+" asked to join your team.", inv.ID)
	}
	s.logger.Info("invitation created", "invitation_id", inv.ID, "team_id", team.ID, "user_id", subjectID, "kind", input.Kind)
	return inv, nil
}

// Accept resolves a pending record to accepted. Invites are accepted by the
// invited user; join requests by the team leader. The membership write, the
// status flip, and the cancellation of the user's other pending records run
// in one transaction, with capacity and one-team re-checked inside it. On
// success a conversation between leader and new member is bootstrapped.
func (s Service) Accept(ctx context.Context, callerID, invitationID string) (*domain.Invitation, error) {
	inv, team, err := s.loadPending(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if deciderFor(inv, team) != callerID {
		return nil, ErrWrongDecider
	}

	member := &domain.TeamMember{
		TeamID:   inv.TeamID,
		UserID:   inv.UserID,
		Role:     domain.TeamRoleMember,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.invitations.AcceptInvitation(ctx, inv, member); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrTeamFull
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotPending
		}
		return nil, err
	}
	inv.Status = domain.InvitationStatusAccepted

	joiner, err := s.users.GetUserByID(ctx, inv.UserID)
	joinerName := "A new member"
	if err == nil && joiner.Name != "" {
		joinerName = joiner.Name
	}

	switch inv.Kind {
	case domain.InvitationKindInvite:
		s.pushNotification(ctx, team.LeaderID, domain.NotificationInviteAccepted,
			"Invitation accepted", joinerName+" joined your team.", inv.ID)
	case domain.InvitationKindJoinRequest:
		s.pushNotification(ctx, inv.UserID, domain.NotificationInviteAccepted,
			"Request accepted", "You joined team "+team.Name+".", inv.ID)
	}

	if _, err := s.messaging.OpenWithSystemMessage(ctx, team.LeaderID, inv.UserID,
		joinerName+" joined "+team.Name+". Say hello!"); err != nil {
		s.logger.Warn("failed to bootstrap conversation", "invitation_id", inv.ID, "error", err)
	}

	s.logger.Info("invitation accepted", "invitation_id", inv.ID, "team_id", inv.TeamID, "user_id", inv.UserID)
	return inv, nil
}

// Reject resolves a pending record to rejected and notifies the initiator.
func (s Service) Reject(ctx context.Context, callerID, invitationID string) (*domain.Invitation, error) {
	inv, team, err := s.loadPending(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if deciderFor(inv, team) != callerID {
		return nil, ErrWrongDecider
	}
	if err := s.invitations.UpdateInvitationStatus(ctx, inv.ID, domain.InvitationStatusRejected); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotPending
		}
		return nil, err
	}
	inv.Status = domain.InvitationStatusRejected

	switch inv.Kind {
	case domain.InvitationKindInvite:
		s.pushNotification(ctx, team.LeaderID, domain.NotificationInviteRejected,
			"Invitation declined", "Your invitation was declined.", inv.ID)
	case domain.InvitationKindJoinRequest:
		s.pushNotification(ctx, inv.UserID, domain.NotificationInviteRejected,
			"Request declined", "Team "+team.Name+" declined your request.", inv.ID)
	}
	s.logger.Info("invitation rejected", "invitation_id", inv.ID)
	return inv, nil
}

// Cancel withdraws a pending record. Only the initiator can cancel: the
// leader for invites, the requesting user for join requests.
func (s Service) Cancel(ctx context.Context, callerID, invitationID string) error {
	inv, team, err := s.loadPending(ctx, invitationID)
	if err != nil {
		return err
	}
	initiator := team.LeaderID
	if inv.Kind == domain.InvitationKindJoinRequest {
		initiator = inv.UserID
	}
	if initiator != callerID {
		return ErrWrongCanceller
	}
	if err := s.invitations.UpdateInvitationStatus(ctx, inv.ID, domain.InvitationStatusCancelled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotPending
		}
		return err
	}
	s.logger.Info("invitation cancelled", "invitation_id", inv.ID)
	return nil
}

// ListForUser returns records involving the user.
func (s Service) ListForUser(ctx context.Context, userID string, pendingOnly bool) ([]domain.Invitation, error) {
	return s.invitations.ListInvitationsForUser(ctx, userID, pendingOnly)
}

// ListForTeam returns records targeting the team. Leader only.
func (s Service) ListForTeam(ctx context.Context, callerID, teamID string, pendingOnly bool) ([]domain.Invitation, error) {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != callerID {
		return nil, ErrNotLeader
	}
	return s.invitations.ListInvitationsForTeam(ctx, teamID, pendingOnly)
}

func (s Service) loadPending(ctx context.Context, invitationID string) (*domain.Invitation, *domain.Team, error) {
	inv, err := s.invitations.GetInvitationByID(ctx, invitationID)
	if err != nil {
		return nil, nil, err
	}
	if !inv.Pending() {
		return nil, nil, ErrNotPending
	}
	team, err := s.teams.GetTeamByID(ctx, inv.TeamID)
	if err != nil {
		return nil, nil, err
	}
	return inv, team, nil
}

// deciderFor names the user allowed to accept or reject a record.
func deciderFor(inv *domain.Invitation, team *domain.Team) string {
	if inv.Kind == domain.InvitationKindInvite {
		return inv.UserID
	}
	return team.LeaderID
}

func (s Service) pushNotification(ctx context.Context, userID, kind, title, body, refID string) {
	if err := s.notify.Push(ctx, userID, kind, title, body, refID); err != nil {
		s.logger.Warn("failed to push notification", "user_id", userID, "kind", kind, "error", err)
	}
}
