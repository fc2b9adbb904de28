package postgres

import (
	"context"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
)

const teamColumns = `id, name, description, leader_id, skills, max_members, created_at, updated_at`

func scanTeam(row interface{ Scan(...any) error }) (*domain.Team, error) {
	var t domain.Team
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.LeaderID, &t.Skills, &t.MaxMembers, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &t, nil
}

// CreateTeam creates a team record.
func (r *Repository) CreateTeam(ctx context.Context, team *domain.Team) error {
	const query = `INSERT INTO teams (id, name, description, leader_id, skills, max_members, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	_, err := r.pool.Exec(ctx, query, team.ID, team.Name, team.Description, team.LeaderID, team.Skills, team.MaxMembers, team.CreatedAt)
	return translateErr(err)
}

// GetTeamByID returns a team by identifier.
func (r *Repository) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	return scanTeam(r.pool.QueryRow(ctx, query, teamID))
}

// UpdateTeam persists mutable team fields.
func (r *Repository) UpdateTeam(ctx context.Context, team *domain.Team) error {
	const query = `UPDATE teams
		SET name = $2, description = $3, leader_id = $4, skills = $5, max_members = $6, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, team.ID, team.Name, team.Description, team.LeaderID, team.Skills, team.MaxMembers)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteTeam removes a team. Membership rows cascade.
func (r *Repository) DeleteTeam(ctx context.Context, teamID string) error {
	const query = `DELETE FROM teams WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, teamID)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AddMember inserts a membership row.
func (r *Repository) AddMember(ctx context.Context, member *domain.TeamMember) error {
	const query = `INSERT INTO team_members (team_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, member.TeamID, member.UserID, member.Role, member.JoinedAt)
	return translateErr(err)
}

// RemoveMember deletes a membership row.
func (r *Repository) RemoveMember(ctx context.Context, teamID, userID string) error {
	const query = `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, teamID, userID)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListMembers returns team members ordered by join time.
func (r *Repository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	const query = `SELECT team_id, user_id, role, joined_at FROM team_members
		WHERE team_id = $1 ORDER BY joined_at ASC`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	members := make([]domain.TeamMember, 0)
	for rows.Next() {
		var m domain.TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, translateErr(err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CountMembers counts current members of a team.
func (r *Repository) CountMembers(ctx context.Context, teamID string) (int, error) {
	const query = `SELECT COUNT(1) FROM team_members WHERE team_id = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, teamID).Scan(&count); err != nil {
		return 0, translateErr(err)
	}
	return count, nil
}

// ListOpenTeams returns teams that still have capacity, newest first.
func (r *Repository) ListOpenTeams(ctx context.Context, limit int) ([]domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams t
		WHERE (SELECT COUNT(1) FROM team_members tm WHERE tm.team_id = t.id) < t.max_members
		ORDER BY t.created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	teams := make([]domain.Team, 0)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}
