package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
)

const postColumns = `id, author_id, body, like_count, comment_count, created_at`

func scanPost(row interface{ Scan(...any) error }) (*domain.FeedPost, error) {
	var p domain.FeedPost
	err := row.Scan(&p.ID, &p.AuthorID, &p.Body, &p.LikeCount, &p.CommentCount, &p.CreatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

// CreatePost inserts a feed post.
func (r *Repository) CreatePost(ctx context.Context, post *domain.FeedPost) error {
	const query = `INSERT INTO feed_posts (id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, post.ID, post.AuthorID, post.Body, post.CreatedAt)
	return translateErr(err)
}

// GetPostByID fetches one post with its counters.
func (r *Repository) GetPostByID(ctx context.Context, id string) (*domain.FeedPost, error) {
	query := `SELECT ` + postColumns + ` FROM feed_posts WHERE id = $1`
	return scanPost(r.pool.QueryRow(ctx, query, id))
}

// DeletePost removes a post. Comments and likes cascade.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	const query = `DELETE FROM feed_posts WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListPosts pages through the feed newest first. before is an exclusive post
// ID cursor; empty means start from the top.
func (r *Repository) ListPosts(ctx context.Context, before string, limit int) ([]domain.FeedPost, error) {
	query := `SELECT ` + postColumns + ` FROM feed_posts`
	args := []any{limit}
	if before != "" {
		query += ` WHERE (created_at, id) < (SELECT created_at, id FROM feed_posts WHERE id = $2)`
		args = append(args, before)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	posts := make([]domain.FeedPost, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// CreateComment inserts a comment and bumps the post counter.
func (r *Repository) CreateComment(ctx context.Context, comment *domain.FeedComment) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO feed_comments (id, post_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, insert, comment.ID, comment.PostID, comment.AuthorID, comment.Body, comment.CreatedAt); err != nil {
		return translateErr(err)
	}
	tag, err := tx.Exec(ctx, `UPDATE feed_posts SET comment_count = comment_count + 1 WHERE id = $1`, comment.PostID)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return tx.Commit(ctx)
}

// ListComments returns a post's comments oldest first.
func (r *Repository) ListComments(ctx context.Context, postID string, limit int) ([]domain.FeedComment, error) {
	const query = `SELECT id, post_id, author_id, body, created_at FROM feed_comments
		WHERE post_id = $1 ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, postID, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	comments := make([]domain.FeedComment, 0)
	for rows.Next() {
		var c domain.FeedComment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, translateErr(err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// ToggleLike flips the user's like on a post and adjusts the counter.
func (r *Repository) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM feed_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, translateErr(err)
	}
	liked := tag.RowsAffected() == 0
	delta := -1
	if liked {
		if _, err := tx.Exec(ctx, `INSERT INTO feed_likes (post_id, user_id, created_at) VALUES ($1, $2, NOW())`, postID, userID); err != nil {
			return false, translateErr(err)
		}
		delta = 1
	}
	tag, err = tx.Exec(ctx, `UPDATE feed_posts SET like_count = like_count + $2 WHERE id = $1`, postID, delta)
	if err != nil {
		return false, translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return false, repository.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return liked, nil
}
