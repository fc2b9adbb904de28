package postgres

import (
	"context"

	"github.com/2611006/TeamUp26/internal/domain"
)

// UpsertGitHubLink stores or refreshes the user's linked GitHub identity.
func (r *Repository) UpsertGitHubLink(ctx context.Context, link *domain.GitHubLink) error {
	const query = `INSERT INTO github_links (user_id, login, encrypted_token, linked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET login = EXCLUDED.login, encrypted_token = EXCLUDED.encrypted_token, linked_at = EXCLUDED.linked_at`
	_, err := r.pool.Exec(ctx, query, link.UserID, link.Login, link.EncryptedToken, link.LinkedAt)
	return translateErr(err)
}

// GetGitHubLink fetches the user's linked GitHub identity.
func (r *Repository) GetGitHubLink(ctx context.Context, userID string) (*domain.GitHubLink, error) {
	const query = `SELECT user_id, login, encrypted_token, linked_at FROM github_links WHERE user_id = $1`
	var link domain.GitHubLink
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&link.UserID, &link.Login, &link.EncryptedToken, &link.LinkedAt); err != nil {
		return nil, translateErr(err)
	}
	return &link, nil
}

// CreateVerification inserts a skill verification record.
func (r *Repository) CreateVerification(ctx context.Context, v *domain.SkillVerification) error {
	const query = `INSERT INTO skill_verifications (id, user_id, kind, skill, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, v.ID, v.UserID, v.Kind, v.Skill, v.Status, v.Payload, v.CreatedAt)
	return translateErr(err)
}

// ListVerifications returns the user's verifications, newest first.
func (r *Repository) ListVerifications(ctx context.Context, userID string) ([]domain.SkillVerification, error) {
	const query = `SELECT id, user_id, kind, skill, status, payload, created_at
		FROM skill_verifications WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	verifications := make([]domain.SkillVerification, 0)
	for rows.Next() {
		var v domain.SkillVerification
		if err := rows.Scan(&v.ID, &v.UserID, &v.Kind, &v.Skill, &v.Status, &v.Payload, &v.CreatedAt); err != nil {
			return nil, translateErr(err)
		}
		verifications = append(verifications, v)
	}
	return verifications, rows.Err()
}
