package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
)

// Service handles team task workflows.
type Service struct {
	tasks  repository.TaskRepository
	teams  repository.TeamRepository
	users  repository.UserRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(tasks repository.TaskRepository, teams repository.TeamRepository, users repository.UserRepository, logger *slog.Logger) Service {
	return Service{tasks: tasks, teams: teams, users: users, logger: logger}
}

var (
	ErrNotMember   = errors.New("task: caller is not a team member")
	ErrNotLeader   = errors.New("task: caller is not the team leader")
	ErrNotAllowed  = errors.New("task: caller cannot delete this task")
	ErrBadAssignee = errors.New("task: assignee is not a team member")

	errTitleRequired = errors.New("task: title is required")
	errBadStatus     = errors.New("task: unknown status")
)

// CreateInput captures task creation fields.
type CreateInput struct {
	Title   string `json:"title"`
	Details string `json:"details"`
}

// Create adds a task to the caller's team.
func (s Service) Create(ctx context.Context, callerID, teamID string, input CreateInput) (*domain.TeamTask, error) {
	if err := s.requireMember(ctx, callerID, teamID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errTitleRequired
	}
	task := &domain.TeamTask{
		ID:        uuid.NewString(),
		TeamID:    teamID,
		CreatorID: callerID,
		Title:     title,
		Details:   strings.TrimSpace(input.Details),
		Status:    domain.TaskStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("task created", "task_id", task.ID, "team_id", teamID)
	return task, nil
}

// ListByTeam returns the team's tasks. Members only.
func (s Service) ListByTeam(ctx context.Context, callerID, teamID string) ([]domain.TeamTask, error) {
	if err := s.requireMember(ctx, callerID, teamID); err != nil {
		return nil, err
	}
	return s.tasks.ListTasksByTeam(ctx, teamID)
}

// UpdateStatus moves a task between open, in_progress, and done. Any member.
func (s Service) UpdateStatus(ctx context.Context, callerID, taskID, status string) (*domain.TeamTask, error) {
	switch status {
	case domain.TaskStatusOpen, domain.TaskStatusInProgress, domain.TaskStatusDone:
	default:
		return nil, errBadStatus
	}
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, callerID, task.TeamID); err != nil {
		return nil, err
	}
	task.Status = status
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Assign sets the task assignee. Leader only; the assignee must be a member.
func (s Service) Assign(ctx context.Context, callerID, taskID, assigneeID string) (*domain.TeamTask, error) {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	team, err := s.teams.GetTeamByID(ctx, task.TeamID)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != callerID {
		return nil, ErrNotLeader
	}
	if assigneeID == "" {
		task.AssigneeID = nil
	} else {
		assignee, err := s.users.GetUserByID(ctx, assigneeID)
		if err != nil {
			return nil, err
		}
		if assignee.TeamID == nil || *assignee.TeamID != task.TeamID {
			return nil, ErrBadAssignee
		}
		task.AssigneeID = &assigneeID
	}
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes a task. Allowed for the creator or the team leader.
func (s Service) Delete(ctx context.Context, callerID, taskID string) error {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.CreatorID != callerID {
		team, err := s.teams.GetTeamByID(ctx, task.TeamID)
		if err != nil {
			return err
		}
		if team.LeaderID != callerID {
			return ErrNotAllowed
		}
	}
	return s.tasks.DeleteTask(ctx, taskID)
}

func (s Service) requireMember(ctx context.Context, callerID, teamID string) error {
	caller, err := s.users.GetUserByID(ctx, callerID)
	if err != nil {
		return err
	}
	if caller.TeamID == nil || *caller.TeamID != teamID {
		return ErrNotMember
	}
	return nil
}
