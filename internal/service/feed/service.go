package feed

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

const maxPostLength = 4000

// Service handles the social feed.
type Service struct {
	repo   repository.FeedRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(repo repository.FeedRepository, logger *slog.Logger) Service {
	return Service{repo: repo, logger: logger}
}

var (
	ErrNotAuthor = errors.New("feed: caller is not the author")

	errEmptyBody   = errors.New("feed: body is required")
	errBodyTooLong = errors.New("feed: body too long")
)

// CreatePost publishes a post by the caller.
func (s Service) CreatePost(ctx context.Context, authorID, body string) (*domain.FeedPost, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errEmptyBody
	}
	if len(body) > maxPostLength {
		return nil, errBodyTooLong
	}
	post := &domain.FeedPost{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	s.logger.Info("feed post created", "post_id", post.ID, "author_id", authorID)
	return post, nil
}

// ListPosts pages through the feed newest first.
func (s Service) ListPosts(ctx context.Context, before string, limit int) ([]domain.FeedPost, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListPosts(ctx, before, limit)
}

// DeletePost removes the caller's own post.
func (s Service) DeletePost(ctx context.Context, callerID, postID string) error {
	post, err := s.repo.GetPostByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != callerID {
		return ErrNotAuthor
	}
	return s.repo.DeletePost(ctx, postID)
}

// AddComment attaches a comment to a post.
func (s Service) AddComment(ctx context.Context, authorID, postID, body string) (*domain.FeedComment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errEmptyBody
	}
	comment := &domain.FeedComment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments returns a post's comments oldest first.
func (s Service) ListComments(ctx context.Context, postID string, limit int) ([]domain.FeedComment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListComments(ctx, postID, limit)
}

// ToggleLike flips the caller's like. Returns the resulting state.
func (s Service) ToggleLike(ctx context.Context, callerID, postID string) (bool, error) {
	return s.repo.ToggleLike(ctx, postID, callerID)
}
