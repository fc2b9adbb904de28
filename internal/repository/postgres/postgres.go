package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/2611006/TeamUp26/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository         = (*Repository)(nil)
	_ repository.TeamRepository         = (*Repository)(nil)
	_ repository.InvitationRepository   = (*Repository)(nil)
	_ repository.NotificationRepository = (*Repository)(nil)
	_ repository.FeedRepository         = (*Repository)(nil)
	_ repository.TaskRepository         = (*Repository)(nil)
	_ repository.ConversationRepository = (*Repository)(nil)
	_ repository.VerificationRepository = (*Repository)(nil)
)

// translateErr maps common pgx failures to repository sentinels.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return repository.ErrConflict
		case "23503":
			return repository.ErrNotFound
		}
	}
	return err
}
