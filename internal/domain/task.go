package domain

import "time"

// TeamTask tracks a unit of work owned by a team.
type TeamTask struct {
	ID         string    `json:"id"`
	TeamID     string    `json:"team_id"`
	CreatorID  string    `json:"creator_id"`
	AssigneeID *string   `json:"assignee_id"`
	Title      string    `json:"title"`
	Details    string    `json:"details"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Task statuses.
const (
	TaskStatusOpen       = "open"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)
