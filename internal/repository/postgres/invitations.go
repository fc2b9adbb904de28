package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
)

const invitationColumns = `id, team_id, user_id, kind, status, message, created_at, resolved_at`

func scanInvitation(row interface{ Scan(...any) error }) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := row.Scan(&inv.ID, &inv.TeamID, &inv.UserID, &inv.Kind, &inv.Status, &inv.Message, &inv.CreatedAt, &inv.ResolvedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &inv, nil
}

// CreateInvitation inserts an invitation. A partial unique index on
// (team_id, user_id) WHERE status = 'pending' backs the one-pending rule.
func (r *Repository) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	const query = `INSERT INTO invitations (id, team_id, user_id, kind, status, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, inv.ID, inv.TeamID, inv.UserID, inv.Kind, inv.Status, inv.Message, inv.CreatedAt)
	return translateErr(err)
}

// GetInvitationByID fetches one invitation.
func (r *Repository) GetInvitationByID(ctx context.Context, id string) (*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`
	return scanInvitation(r.pool.QueryRow(ctx, query, id))
}

// HasPendingInvitation reports whether a pending record links the pair.
func (r *Repository) HasPendingInvitation(ctx context.Context, teamID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM invitations
		WHERE team_id = $1 AND user_id = $2 AND status = 'pending')`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, teamID, userID).Scan(&exists); err != nil {
		return false, translateErr(err)
	}
	return exists, nil
}

// UpdateInvitationStatus resolves a pending invitation.
func (r *Repository) UpdateInvitationStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE invitations SET status = $2, resolved_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CancelPendingForUser cancels every pending record involving the user.
func (r *Repository) CancelPendingForUser(ctx context.Context, userID string) (int, error) {
	const query = `UPDATE invitations SET status = 'cancelled', resolved_at = NOW()
		WHERE user_id = $1 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, translateErr(err)
	}
	return int(tag.RowsAffected()), nil
}

// CancelPendingForTeam cancels every pending record targeting the team.
func (r *Repository) CancelPendingForTeam(ctx context.Context, teamID string) (int, error) {
	const query = `UPDATE invitations SET status = 'cancelled', resolved_at = NOW()
		WHERE team_id = $1 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, query, teamID)
	if err != nil {
		return 0, translateErr(err)
	}
	return int(tag.RowsAffected()), nil
}

// ListInvitationsForUser returns invitations involving the user, newest first.
func (r *Repository) ListInvitationsForUser(ctx context.Context, userID string, pendingOnly bool) ([]domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE user_id = $1`
	if pendingOnly {
		query += ` AND status = 'pending'`
	}
	query += ` ORDER BY created_at DESC`
	return r.listInvitations(ctx, query, userID)
}

// ListInvitationsForTeam returns invitations targeting the team, newest first.
func (r *Repository) ListInvitationsForTeam(ctx context.Context, teamID string, pendingOnly bool) ([]domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE team_id = $1`
	if pendingOnly {
		query += ` AND status = 'pending'`
	}
	query += ` ORDER BY created_at DESC`
	return r.listInvitations(ctx, query, teamID)
}

func (r *Repository) listInvitations(ctx context.Context, query string, arg any) ([]domain.Invitation, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	invitations := make([]domain.Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, *inv)
	}
	return invitations, rows.Err()
}

// AcceptInvitation applies the full accept transition in one transaction:
// capacity re-check, membership insert, user.team_id flip, status update, and
// cancellation of the user's other pending records. The team row is locked
// before counting so concurrent accepts for the same team serialize; the
// locked row also supplies the authoritative max_members. Returns ErrConflict
// when the team is already full or the user joined a team meanwhile.
func (r *Repository) AcceptInvitation(ctx context.Context, inv *domain.Invitation, member *domain.TeamMember) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var maxMembers int
	if err := tx.QueryRow(ctx, `SELECT max_members FROM teams WHERE id = $1 FOR UPDATE`, inv.TeamID).Scan(&maxMembers); err != nil {
		return translateErr(err)
	}
	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(1) FROM team_members WHERE team_id = $1`, inv.TeamID).Scan(&count); err != nil {
		return translateErr(err)
	}
	if count >= maxMembers {
		return repository.ErrConflict
	}

	tag, err := tx.Exec(ctx, `UPDATE users SET team_id = $2, updated_at = NOW()
		WHERE id = $1 AND team_id IS NULL`, inv.UserID, inv.TeamID)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}

	if _, err := tx.Exec(ctx, `INSERT INTO team_members (team_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`, member.TeamID, member.UserID, member.Role, member.JoinedAt); err != nil {
		return translateErr(err)
	}

	tag, err = tx.Exec(ctx, `UPDATE invitations SET status = 'accepted', resolved_at = NOW()
		WHERE id = $1 AND status = 'pending'`, inv.ID)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `UPDATE invitations SET status = 'cancelled', resolved_at = NOW()
		WHERE user_id = $1 AND status = 'pending'`, inv.UserID); err != nil {
		return translateErr(err)
	}

	return tx.Commit(ctx)
}
