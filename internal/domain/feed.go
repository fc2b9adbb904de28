package domain

import "time"

// FeedPost is a public post on the social feed.
type FeedPost struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	Body         string    `json:"body"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// FeedComment is a comment attached to a feed post.
type FeedComment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedLike records one user liking one post.
type FeedLike struct {
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
