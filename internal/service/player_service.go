package service

import (
	"context"
	"database/sql"
	"errors"

	"ladder-app/internal/elo"
	players "ladder-app/internal/player"
	"ladder-app/internal/store"
	"ladder-app/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth"
)

type PlayerService struct {
	db      *sqlx.DB
	players *store.PlayerStore
}

func NewPlayerService(db *sqlx.DB, players *store.PlayerStore) *PlayerService {
	return &PlayerService{db: db, players: players}
}

func (s *PlayerService) FindOrCreatePlayerByProvider(ctx context.Context, gothUser goth.User) (*players.Player, error) {
	player, err := s.players.GetPlayerByProvider(ctx, gothUser.Provider, gothUser.UserID)

	if err == nil {
		if utils.OrZero(player.AvatarURL) != gothUser.AvatarURL || player.Username != gothUser.NickName {
			player.AvatarURL = &gothUser.AvatarURL
			s.players.UpdatePlayerNameAndAvatar(ctx, player)
		}
		return player, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		newPlayer := &players.Player{
			ID:         uuid.New(),
			Email:      gothUser.Email,
			Username:   gothUser.Name,
			Role:       players.RoleUser,
			Rating:     elo.DefaultRating,
			Provider:   &gothUser.Provider,
			ProviderID: &gothUser.UserID,
			AvatarURL:  &gothUser.AvatarURL,
		}
		err := s.players.CreatePlayer(ctx, newPlayer)
		return newPlayer, err
	}

	return nil, err
}

func (s *PlayerService) List(ctx context.Context) ([]players.Player, error) {
	return s.players.ListPlayers(ctx)
}

// Rankings returns the top players by rating.
func (s *PlayerService) Rankings(ctx context.Context, limit int) ([]players.Player, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.players.ListRankings(ctx, limit)
}
