package service

import (
	"context"
	"fmt"
	"time"

	"ladder-app/internal/elo"
	"ladder-app/internal/ladder"
	"ladder-app/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RatingService is the rating ledger: it applies a completed rated match's
// rating exchange to the two players exactly once, and reverts it exactly
// once when the match is deleted. Exactly-once is enforced by the claim
// columns on the match row, not by caller discipline.
type RatingService struct {
	db      *sqlx.DB
	matches *store.MatchStore
	players *store.PlayerStore
}

func NewRatingService(db *sqlx.DB, matches *store.MatchStore, players *store.PlayerStore) *RatingService {
	return &RatingService{db: db, matches: matches, players: players}
}

// Apply settles the rating exchange for a rated, completed match. Losing the
// claim (already applied, or the match is not eligible) is a no-op, not an
// error; the hydrated match is returned either way.
func (s *RatingService) Apply(ctx context.Context, matchID uuid.UUID) (*MatchData, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	claimed, err := s.matches.ClaimRatingAppliedTx(ctx, tx, matchID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to claim rating application: %w", err)
	}
	if !claimed {
		// Release the transaction's connection before reading from the
		// pool, or a saturated pool deadlocks.
		tx.Rollback()
		return loadMatchData(ctx, s.matches, matchID)
	}

	if err := s.applyClaimedTx(ctx, tx, matchID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return loadMatchData(ctx, s.matches, matchID)
}

// applyClaimedTx does the actual exchange after the claim has landed. The
// per-participant snapshot (before/after/delta) is frozen here so the revert
// can undo exactly what was applied, independent of later rating drift.
func (s *RatingService) applyClaimedTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) error {
	match, err := s.matches.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return err
	}
	participants, err := s.matches.GetParticipantsTx(ctx, tx, matchID)
	if err != nil {
		return err
	}
	if len(participants) != 2 {
		return fmt.Errorf("%w: match %s has %d participants, expected 2", ladder.ErrIntegrity, matchID, len(participants))
	}

	pa, pb := participants[0], participants[1]

	outcomeA, outcomeB := elo.Outcomes(pa.Score, pb.Score, match.WinnerID, pa.UserID, pb.UserID)
	deltaA := elo.Delta(pa.PlayerRating, pb.PlayerRating, outcomeA, elo.KFactor(pa.RatedMatchCount, pa.PlayerRating))
	deltaB := elo.Delta(pb.PlayerRating, pa.PlayerRating, outcomeB, elo.KFactor(pb.RatedMatchCount, pb.PlayerRating))

	afterA := elo.Clamp(pa.PlayerRating + deltaA)
	afterB := elo.Clamp(pb.PlayerRating + deltaB)

	if err := s.matches.SetParticipantSnapshotTx(ctx, tx, matchID, pa.UserID, pa.PlayerRating, afterA, deltaA); err != nil {
		return err
	}
	if err := s.matches.SetParticipantSnapshotTx(ctx, tx, matchID, pb.UserID, pb.PlayerRating, afterB, deltaB); err != nil {
		return err
	}

	if err := s.players.UpdatePlayerRatingTx(ctx, tx, pa.UserID, afterA, pa.RatedMatchCount+1); err != nil {
		return err
	}
	return s.players.UpdatePlayerRatingTx(ctx, tx, pb.UserID, afterB, pb.RatedMatchCount+1)
}

// Revert undoes an applied rating exchange in its own transaction. Reverting
// a match that was never applied, or already reverted, is a no-op.
func (s *RatingService) Revert(ctx context.Context, matchID uuid.UUID) (*MatchData, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.revertTx(ctx, tx, matchID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return loadMatchData(ctx, s.matches, matchID)
}

// revertTx subtracts the stored deltas from the players' live ratings inside
// the caller's transaction. The match delete path runs this before the
// participant rows (and their deltas) disappear.
func (s *RatingService) revertTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) error {
	claimed, err := s.matches.ClaimRatingRevertedTx(ctx, tx, matchID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to claim rating revert: %w", err)
	}
	if !claimed {
		return nil
	}

	participants, err := s.matches.GetParticipantsTx(ctx, tx, matchID)
	if err != nil {
		return err
	}

	for _, p := range participants {
		if p.RatingDelta == nil {
			return fmt.Errorf("%w: cannot revert match %s, participant %s has no stored rating delta", ladder.ErrIntegrity, matchID, p.UserID)
		}
		restored := elo.Clamp(p.PlayerRating - *p.RatingDelta)
		count := p.RatedMatchCount - 1
		if count < 0 {
			count = 0
		}
		if err := s.players.UpdatePlayerRatingTx(ctx, tx, p.UserID, restored, count); err != nil {
			return err
		}
	}
	return nil
}
