package domain

import "time"

// Invitation links a user and a team while a membership decision is pending.
// Kind distinguishes leader-issued invites from user-issued join requests.
type Invitation struct {
	ID         string     `json:"id"`
	TeamID     string     `json:"team_id"`
	UserID     string     `json:"user_id"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

// Invitation kinds.
const (
	InvitationKindInvite      = "invite"
	InvitationKindJoinRequest = "join_request"
)

// Invitation statuses.
const (
	InvitationStatusPending   = "pending"
	InvitationStatusAccepted  = "accepted"
	InvitationStatusRejected  = "rejected"
	InvitationStatusCancelled = "cancelled"
)

// Pending reports whether the invitation still awaits a decision.
func (i *Invitation) Pending() bool {
	return i.Status == InvitationStatusPending
}
