package postgres

import (
	"context"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
)

const taskColumns = `id, team_id, creator_id, assignee_id, title, details, status, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*domain.TeamTask, error) {
	var t domain.TeamTask
	err := row.Scan(&t.ID, &t.TeamID, &t.CreatorID, &t.AssigneeID, &t.Title, &t.Details, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &t, nil
}

// CreateTask inserts a team task.
func (r *Repository) CreateTask(ctx context.Context, task *domain.TeamTask) error {
	const query = `INSERT INTO team_tasks (id, team_id, creator_id, assignee_id, title, details, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	_, err := r.pool.Exec(ctx, query, task.ID, task.TeamID, task.CreatorID, task.AssigneeID, task.Title, task.Details, task.Status, task.CreatedAt)
	return translateErr(err)
}

// GetTaskByID fetches one task.
func (r *Repository) GetTaskByID(ctx context.Context, id string) (*domain.TeamTask, error) {
	query := `SELECT ` + taskColumns + ` FROM team_tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// UpdateTask persists status and assignment changes.
func (r *Repository) UpdateTask(ctx context.Context, task *domain.TeamTask) error {
	const query = `UPDATE team_tasks
		SET assignee_id = $2, title = $3, details = $4, status = $5, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, task.ID, task.AssigneeID, task.Title, task.Details, task.Status)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteTask removes a task.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	const query = `DELETE FROM team_tasks WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListTasksByTeam returns a team's tasks, open work first, then by recency.
func (r *Repository) ListTasksByTeam(ctx context.Context, teamID string) ([]domain.TeamTask, error) {
	query := `SELECT ` + taskColumns + ` FROM team_tasks WHERE team_id = $1
		ORDER BY status = 'done', created_at DESC`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	tasks := make([]domain.TeamTask, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
