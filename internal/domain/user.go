package domain

import "time"

// User represents a platform account with its public profile.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Name         string    `json:"name"`
	Bio          string    `json:"bio"`
	Role         string    `json:"role"`
	Skills       []string  `json:"skills"`
	AvatarURL    string    `json:"avatar_url"`
	GitHubLogin  string    `json:"github_login"`
	TeamID       *string   `json:"team_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OnTeam reports whether the user currently belongs to a team.
func (u *User) OnTeam() bool {
	return u.TeamID != nil && *u.TeamID != ""
}
