package store

import (
	"context"

	"ladder-app/internal/ladder"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BanStore struct {
	db *sqlx.DB
}

func NewBanStore(db *sqlx.DB) *BanStore {
	return &BanStore{db: db}
}

func (s *BanStore) GetBanByUser(ctx context.Context, userID uuid.UUID) (*ladder.Ban, error) {
	var ban ladder.Ban
	err := s.db.GetContext(ctx, &ban, "SELECT * FROM bans WHERE user_id = ?", userID)
	return &ban, err
}

func (s *BanStore) CreateBan(ctx context.Context, ban *ladder.Ban) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO bans (id, user_id, banned_by_id, reason, created_at)
		VALUES (:id, :user_id, :banned_by_id, :reason, :created_at)`, ban)
	return err
}

func (s *BanStore) DeleteBanByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM bans WHERE user_id = ?", userID)
	return err
}

// BanWithPlayers joins a ban with the usernames of the banned player and the
// staff member who issued it, for listing.
type BanWithPlayers struct {
	ladder.Ban
	Username         string `db:"username"`
	BannedByUsername string `db:"banned_by_username"`
}

func (s *BanStore) ListBans(ctx context.Context) ([]BanWithPlayers, error) {
	var bans []BanWithPlayers
	err := s.db.SelectContext(ctx, &bans, `
		SELECT b.*, p.username, a.username AS banned_by_username
		FROM bans b
		JOIN players p ON p.id = b.user_id
		JOIN players a ON a.id = b.banned_by_id
		ORDER BY b.created_at DESC, b.id DESC`)
	return bans, err
}
