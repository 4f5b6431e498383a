package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ladder-app/internal/ladder"
	players "ladder-app/internal/player"
	"ladder-app/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// BanService implements the permanent-ban overlay. Banning deletes every
// match the target touched (with rating reverts for applied ones) and every
// report they authored; unbanning removes the overlay but restores nothing.
type BanService struct {
	db           *sqlx.DB
	bans         *store.BanStore
	players      *store.PlayerStore
	matches      *store.MatchStore
	reports      *store.ReportStore
	matchService *MatchService
}

func NewBanService(db *sqlx.DB, bans *store.BanStore, players *store.PlayerStore, matches *store.MatchStore, reports *store.ReportStore, matchService *MatchService) *BanService {
	return &BanService{db: db, bans: bans, players: players, matches: matches, reports: reports, matchService: matchService}
}

type BanArgs struct {
	UserID       uuid.UUID
	BannedByID   uuid.UUID
	BannedByRole players.Role
	Reason       *string
}

// Ban creates the ban record and cascades deletion of the target's matches
// and reports. The cascade stops at the first match that fails to delete,
// naming it; whatever was already deleted stays deleted.
//
// Staff authorization is enforced at the API boundary; the cascade itself
// runs with the actor's role.
func (s *BanService) Ban(ctx context.Context, args BanArgs) (*ladder.Ban, error) {
	if _, err := s.players.GetPlayer(ctx, args.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", ladder.ErrNotFound, args.UserID)
		}
		return nil, err
	}
	if _, err := s.players.GetPlayer(ctx, args.BannedByID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: actor %s", ladder.ErrNotFound, args.BannedByID)
		}
		return nil, err
	}

	_, err := s.bans.GetBanByUser(ctx, args.UserID)
	if err == nil {
		return nil, fmt.Errorf("%w: user is already banned", ladder.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	ban := &ladder.Ban{
		ID:         uuid.New(),
		UserID:     args.UserID,
		BannedByID: args.BannedByID,
		Reason:     args.Reason,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.bans.CreateBan(ctx, ban); err != nil {
		return nil, fmt.Errorf("failed to create ban: %w", err)
	}

	matchIDs, err := s.matches.MatchIDsInvolving(ctx, args.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.reports.DeleteReportsByAuthor(ctx, args.UserID); err != nil {
		return nil, err
	}

	for _, id := range matchIDs {
		if _, err := s.matchService.Delete(ctx, id, args.BannedByID, args.BannedByRole); err != nil {
			return nil, fmt.Errorf("failed to delete match %s while banning user %s: %w", id, args.UserID, err)
		}
	}

	return ban, nil
}

// Unban removes the ban overlay. Deleted matches and reports stay deleted.
func (s *BanService) Unban(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.bans.GetBanByUser(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: user is not banned", ladder.ErrNotFound)
		}
		return err
	}
	return s.bans.DeleteBanByUser(ctx, userID)
}

func (s *BanService) List(ctx context.Context) ([]store.BanWithPlayers, error) {
	return s.bans.ListBans(ctx)
}
