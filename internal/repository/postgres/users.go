package postgres

import (
	"context"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
)

const userColumns = `id, email, password_hash, name, bio, role, skills, avatar_url, github_login, team_id, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Bio, &u.Role, &u.Skills, &u.AvatarURL, &u.GitHubLogin, &u.TeamID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &u, nil
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, name, bio, role, skills, avatar_url, github_login, team_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.Name, user.Bio, user.Role, user.Skills, user.AvatarURL, user.GitHubLogin, user.TeamID, user.CreatedAt)
	return translateErr(err)
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// UpdateProfile persists the mutable profile fields. Team association is
// handled by SetUserTeam only.
func (r *Repository) UpdateProfile(ctx context.Context, user *domain.User) error {
	const query = `UPDATE users
		SET name = $2, bio = $3, role = $4, skills = $5, avatar_url = $6, github_login = $7, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.Bio, user.Role, user.Skills, user.AvatarURL, user.GitHubLogin)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetUserTeam points the user at a team, or clears the association when nil.
func (r *Repository) SetUserTeam(ctx context.Context, userID string, teamID *string) error {
	const query = `UPDATE users SET team_id = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, teamID)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SearchUsersBySkill returns users advertising the given skill, optionally
// restricted to users without a team.
func (r *Repository) SearchUsersBySkill(ctx context.Context, skill string, teamless bool, limit int) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE $1 = ANY(skills)`
	if teamless {
		query += ` AND team_id IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, skill, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
