package store

import (
	"context"
	"time"

	"ladder-app/internal/ladder"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchStore struct {
	db *sqlx.DB
}

func NewMatchStore(db *sqlx.DB) *MatchStore {
	return &MatchStore{db: db}
}

// ParticipantWithPlayer joins a participant row with its owning player's
// live state, which the ledger needs for K-factor and rating updates.
type ParticipantWithPlayer struct {
	ladder.Participant
	Username        string `db:"username"`
	PlayerRating    int    `db:"rating"`
	RatedMatchCount int    `db:"rated_match_count"`
}

const participantsWithPlayersQuery = `
	SELECT p.match_id, p.user_id, p.score, p.rating_before, p.rating_after, p.rating_delta,
	       pl.username, pl.rating, pl.rated_match_count
	FROM participants p
	JOIN players pl ON pl.id = p.user_id
	WHERE p.match_id = ?
	ORDER BY p.user_id ASC
`

func (s *MatchStore) CreateMatchTx(ctx context.Context, tx *sqlx.Tx, match *ladder.Match) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, status, rated, winner_id, created_by_id, reports_count, created_at, completed_at, rating_applied_at, rating_reverted_at)
		VALUES (:id, :status, :rated, :winner_id, :created_by_id, :reports_count, :created_at, :completed_at, :rating_applied_at, :rating_reverted_at)`, match)
	return err
}

func (s *MatchStore) CreateParticipantsTx(ctx context.Context, tx *sqlx.Tx, participants []ladder.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO participants (match_id, user_id, score, rating_before, rating_after, rating_delta)
		VALUES (:match_id, :user_id, :score, :rating_before, :rating_after, :rating_delta)`, participants)
	return err
}

func (s *MatchStore) GetMatch(ctx context.Context, id uuid.UUID) (*ladder.Match, error) {
	var match ladder.Match
	err := s.db.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	return &match, err
}

func (s *MatchStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*ladder.Match, error) {
	var match ladder.Match
	err := tx.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	return &match, err
}

func (s *MatchStore) UpdateMatchTx(ctx context.Context, tx *sqlx.Tx, match *ladder.Match) error {
	_, err := tx.NamedExecContext(ctx, `UPDATE matches SET
		status = :status,
		rated = :rated,
		winner_id = :winner_id,
		completed_at = :completed_at
		WHERE id = :id`, match)
	return err
}

func (s *MatchStore) GetParticipants(ctx context.Context, matchID uuid.UUID) ([]ParticipantWithPlayer, error) {
	var participants []ParticipantWithPlayer
	err := s.db.SelectContext(ctx, &participants, participantsWithPlayersQuery, matchID)
	return participants, err
}

func (s *MatchStore) GetParticipantsTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) ([]ParticipantWithPlayer, error) {
	var participants []ParticipantWithPlayer
	err := tx.SelectContext(ctx, &participants, participantsWithPlayersQuery, matchID)
	return participants, err
}

func (s *MatchStore) DeleteParticipantsTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM participants WHERE match_id = ?", matchID)
	return err
}

func (s *MatchStore) DeleteMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE id = ?", id)
	return err
}

func (s *MatchStore) DeleteReportsForMatchTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM reports WHERE match_id = ?", matchID)
	return err
}

// ClaimRatingAppliedTx atomically claims the rating application for a match.
// The conditional update only lands if the match is rated, completed and not
// yet applied; a false return means another caller already claimed it or the
// match is ineligible.
func (s *MatchStore) ClaimRatingAppliedTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE matches SET rating_applied_at = ?
		WHERE id = ? AND rated = 1 AND status = ? AND rating_applied_at IS NULL`,
		now, matchID, ladder.MatchCompleted)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}

// ClaimRatingRevertedTx mirrors ClaimRatingAppliedTx for the revert side:
// the rating must have been applied and not already reverted.
func (s *MatchStore) ClaimRatingRevertedTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE matches SET rating_reverted_at = ?
		WHERE id = ? AND rating_applied_at IS NOT NULL AND rating_reverted_at IS NULL`,
		now, matchID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}

func (s *MatchStore) SetParticipantSnapshotTx(ctx context.Context, tx *sqlx.Tx, matchID, userID uuid.UUID, before, after, delta int) error {
	_, err := tx.ExecContext(ctx, `UPDATE participants SET rating_before = ?, rating_after = ?, rating_delta = ?
		WHERE match_id = ? AND user_id = ?`, before, after, delta, matchID, userID)
	return err
}

// HasPendingRatedPairTx reports whether another rated PENDING match already
// exists between the unordered pair {a,b}. Pass uuid.Nil as exclude when not
// editing; it never matches a real id.
func (s *MatchStore) HasPendingRatedPairTx(ctx context.Context, tx *sqlx.Tx, a, b uuid.UUID, exclude uuid.UUID) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM matches m
		JOIN participants p1 ON p1.match_id = m.id AND p1.user_id = ?
		JOIN participants p2 ON p2.match_id = m.id AND p2.user_id = ?
		WHERE m.rated = 1 AND m.status = ? AND m.id != ?`,
		a, b, ladder.MatchPending, exclude)
	return count > 0, err
}

func (s *MatchStore) IncrementReportsCountTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "UPDATE matches SET reports_count = reports_count + 1 WHERE id = ?", matchID)
	return err
}

// MatchIDsInvolving returns every match the user participates in or created.
func (s *MatchStore) MatchIDsInvolving(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id FROM matches WHERE created_by_id = ?
		UNION
		SELECT match_id FROM participants WHERE user_id = ?`,
		userID, userID)
	return ids, err
}

// MatchCursor is the opaque listing cursor: creation time plus id tiebreaker.
type MatchCursor struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListMatches pages through matches with keyset pagination on
// (created_at, id). The caller passes limit+1 to detect a next page.
func (s *MatchStore) ListMatches(ctx context.Context, cursor *MatchCursor, limit int, ascending bool) ([]ladder.Match, error) {
	query := "SELECT * FROM matches"
	args := []interface{}{}

	if cursor != nil {
		if ascending {
			query += " WHERE (created_at > ? OR (created_at = ? AND id > ?))"
		} else {
			query += " WHERE (created_at < ? OR (created_at = ? AND id < ?))"
		}
		args = append(args, cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	if ascending {
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var matches []ladder.Match
	err := s.db.SelectContext(ctx, &matches, query, args...)
	return matches, err
}
