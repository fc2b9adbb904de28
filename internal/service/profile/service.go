package profile

import (
	"context"
	"errors"
	"strings"

	"log/slog"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
)

// Service handles profile reads and updates.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger) Service {
	return Service{users: users, logger: logger}
}

var (
	errNameRequired  = errors.New("profile: name is required")
	errSkillRequired = errors.New("profile: skill query is required")
)

// UpdateInput captures the mutable profile fields.
type UpdateInput struct {
	Name        string   `json:"name"`
	Bio         string   `json:"bio"`
	Role        string   `json:"role"`
	Skills      []string `json:"skills"`
	AvatarURL   string   `json:"avatar_url"`
	GitHubLogin string   `json:"github_login"`
}

// Get returns a user's profile.
func (s Service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// Update replaces the caller's profile fields. Team association is owned by
// the membership workflow and never changes here.
func (s Service) Update(ctx context.Context, userID string, input UpdateInput) (*domain.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errNameRequired
	}
	user.Name = name
	user.Bio = strings.TrimSpace(input.Bio)
	user.Role = strings.TrimSpace(input.Role)
	user.AvatarURL = strings.TrimSpace(input.AvatarURL)
	user.GitHubLogin = strings.TrimSpace(input.GitHubLogin)
	user.Skills = normalizeSkills(input.Skills)
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", "user_id", userID)
	return user, nil
}

// SearchBySkill finds users advertising a skill.
func (s Service) SearchBySkill(ctx context.Context, skill string, teamless bool, limit int) ([]domain.User, error) {
	skill = strings.ToLower(strings.TrimSpace(skill))
	if skill == "" {
		return nil, errSkillRequired
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.users.SearchUsersBySkill(ctx, skill, teamless, limit)
}

// normalizeSkills lowercases, trims, and de-duplicates a skill list.
func normalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		s := strings.ToLower(strings.TrimSpace(skill))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
