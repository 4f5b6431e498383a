package store

import (
	"context"

	players "ladder-app/internal/player"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PlayerStore struct {
	db *sqlx.DB
}

const (
	getPlayerQuery           = "SELECT * FROM players WHERE id = ?"
	getPlayerByProviderQuery = `
        SELECT * FROM players
        WHERE provider = ?
        AND provider_id = ?
    `
	createPlayerQuery = `
		INSERT INTO players (id, email, username, role, rating, rated_match_count, provider, provider_id, avatar_url) VALUES
		(:id, :email, :username, :role, :rating, :rated_match_count, :provider, :provider_id, :avatar_url)
	`
	updatePlayerNameAndAvatarQuery = `
		UPDATE players SET
		username = :username,
		avatar_url = :avatar_url
		WHERE id = :id
	`
	updatePlayerRatingQuery = `
		UPDATE players SET rating = ?, rated_match_count = ? WHERE id = ?
	`
)

func NewPlayerStore(db *sqlx.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

func (s *PlayerStore) GetPlayer(ctx context.Context, id uuid.UUID) (*players.Player, error) {
	var player players.Player
	err := s.db.GetContext(ctx, &player, getPlayerQuery, id)
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *PlayerStore) GetPlayerTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*players.Player, error) {
	var player players.Player
	err := tx.GetContext(ctx, &player, getPlayerQuery, id)
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *PlayerStore) GetPlayerByProvider(ctx context.Context, provider string, providerID string) (*players.Player, error) {
	var player players.Player
	err := s.db.GetContext(ctx, &player, getPlayerByProviderQuery, provider, providerID)
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *PlayerStore) CreatePlayer(ctx context.Context, player *players.Player) error {
	_, err := s.db.NamedExecContext(ctx, createPlayerQuery, player)
	return err
}

func (s *PlayerStore) UpdatePlayerNameAndAvatar(ctx context.Context, player *players.Player) error {
	_, err := s.db.NamedExecContext(ctx, updatePlayerNameAndAvatarQuery, player)
	return err
}

// ExistingPlayerIDsTx returns which of the given ids reference real players.
func (s *PlayerStore) ExistingPlayerIDsTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	query, inArgs, err := sqlx.In("SELECT id FROM players WHERE id IN (?)", args)
	if err != nil {
		return nil, err
	}
	var found []uuid.UUID
	err = tx.SelectContext(ctx, &found, tx.Rebind(query), inArgs...)
	return found, err
}

// UpdatePlayerRatingTx writes a player's live rating state. Only the rating
// ledger calls this.
func (s *PlayerStore) UpdatePlayerRatingTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, rating int, ratedMatchCount int) error {
	_, err := tx.ExecContext(ctx, updatePlayerRatingQuery, rating, ratedMatchCount, id)
	return err
}

func (s *PlayerStore) ListPlayers(ctx context.Context) ([]players.Player, error) {
	var list []players.Player
	err := s.db.SelectContext(ctx, &list, "SELECT * FROM players ORDER BY username ASC")
	return list, err
}

// ListRankings returns players ordered by rating descending, id as
// tiebreaker so the order is stable.
func (s *PlayerStore) ListRankings(ctx context.Context, limit int) ([]players.Player, error) {
	var list []players.Player
	err := s.db.SelectContext(ctx, &list, "SELECT * FROM players ORDER BY rating DESC, id ASC LIMIT ?", limit)
	return list, err
}
