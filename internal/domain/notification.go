package domain

import "time"

// Notification is an event record surfaced to a single user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	RefID     string    `json:"ref_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification kinds.
const (
	NotificationInviteReceived  = "invite_received"
	NotificationRequestReceived = "request_received"
	NotificationInviteAccepted  = "invite_accepted"
	NotificationInviteRejected  = "invite_rejected"
	NotificationMemberRemoved   = "member_removed"
	NotificationTeamDisbanded   = "team_disbanded"
	NotificationNewMessage      = "new_message"
)
