package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"ladder-app/internal/elo"
	"ladder-app/internal/ladder"
	players "ladder-app/internal/player"
	"ladder-app/internal/store"
	"ladder-app/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// MatchService orchestrates the match lifecycle: creation, edits,
// deletion/cancellation, the duplicate-pairing guard, and triggering the
// rating ledger on the rated+completed transitions.
type MatchService struct {
	db      *sqlx.DB
	matches *store.MatchStore
	players *store.PlayerStore
	rating  *RatingService
}

func NewMatchService(db *sqlx.DB, matches *store.MatchStore, players *store.PlayerStore, rating *RatingService) *MatchService {
	return &MatchService{db: db, matches: matches, players: players, rating: rating}
}

type ParticipantInput struct {
	UserID uuid.UUID `json:"userId"`
	Score  int       `json:"score"`
}

type MatchValues struct {
	Status       ladder.MatchStatus `json:"status"`
	Rated        bool               `json:"rated"`
	Participants []ParticipantInput `json:"participants"`
	WinnerID     *uuid.UUID         `json:"winnerId,omitempty"`
}

// MatchData is a fully hydrated match: the match row plus both participants
// with their player summaries, ordered by user id.
type MatchData struct {
	Match        *ladder.Match                 `json:"match"`
	Participants []store.ParticipantWithPlayer `json:"participants"`
}

func loadMatchData(ctx context.Context, matches *store.MatchStore, id uuid.UUID) (*MatchData, error) {
	match, err := matches.GetMatch(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: match %s", ladder.ErrNotFound, id)
		}
		return nil, err
	}
	participants, err := matches.GetParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	return &MatchData{Match: match, Participants: participants}, nil
}

func validateMatchValues(values *MatchValues) error {
	if values.Status != ladder.MatchPending && values.Status != ladder.MatchCompleted {
		return ladder.Invalid("status", "status must be PENDING or COMPLETED")
	}
	if len(values.Participants) != 2 {
		return ladder.Invalid("participants", "a match must have exactly two players")
	}

	p1, p2 := values.Participants[0], values.Participants[1]
	if p1.Score < 0 || p2.Score < 0 {
		return ladder.Invalid("participants", "score cannot be negative")
	}
	if p1.UserID == p2.UserID {
		return ladder.Invalid("participants", "players must be distinct")
	}

	if values.Status == ladder.MatchCompleted {
		if values.WinnerID == nil {
			return ladder.Invalid("winnerId", "winner is required for a completed match")
		}
		winnerIsP1 := p1.UserID == *values.WinnerID
		winnerIsP2 := p2.UserID == *values.WinnerID
		if !winnerIsP1 && !winnerIsP2 {
			return ladder.Invalid("winnerId", "winner must be one of the two players")
		}
		if winnerIsP1 && p1.Score <= p2.Score {
			return ladder.Invalid("participants", "winner must have a higher score than the opponent")
		}
		if winnerIsP2 && p2.Score <= p1.Score {
			return ladder.Invalid("participants", "winner must have a higher score than the opponent")
		}
	} else if values.WinnerID != nil {
		return ladder.Invalid("winnerId", "winner should only be set when the match is completed")
	}

	return nil
}

// resolveParticipantsTx verifies both participant ids reference existing
// players and returns the inputs ordered by user id ascending.
func (s *MatchService) resolveParticipantsTx(ctx context.Context, tx *sqlx.Tx, values *MatchValues) ([]ParticipantInput, error) {
	inputs := make([]ParticipantInput, len(values.Participants))
	copy(inputs, values.Participants)
	sort.Slice(inputs, func(i, j int) bool {
		return inputs[i].UserID.String() < inputs[j].UserID.String()
	})

	ids := []uuid.UUID{inputs[0].UserID, inputs[1].UserID}
	found, err := s.players.ExistingPlayerIDsTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		return nil, fmt.Errorf("%w: one or more players do not exist", ladder.ErrNotFound)
	}
	return inputs, nil
}

// checkPairingGuardTx enforces the duplicate-active-rated-pairing rule: at
// most one rated PENDING match may exist for an unordered pair of players.
func (s *MatchService) checkPairingGuardTx(ctx context.Context, tx *sqlx.Tx, values *MatchValues, exclude uuid.UUID) error {
	if !values.Rated || values.Status != ladder.MatchPending {
		return nil
	}
	a, b := values.Participants[0].UserID, values.Participants[1].UserID
	exists, err := s.matches.HasPendingRatedPairTx(ctx, tx, a, b, exclude)
	if err != nil {
		return fmt.Errorf("failed to check for an existing rated match: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: there is already a rated match pending between these two players; finish or cancel it first", ladder.ErrConflict)
	}
	return nil
}

// buildParticipantsTx materialises the participant rows with a preview
// rating snapshot computed from the players' current state and the provided
// scores/winner. The preview is written for every match regardless of
// rated/status; the ledger overwrites it when the rating actually applies.
func (s *MatchService) buildParticipantsTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, inputs []ParticipantInput, winnerID *uuid.UUID) ([]ladder.Participant, error) {
	pa, err := s.players.GetPlayerTx(ctx, tx, inputs[0].UserID)
	if err != nil {
		return nil, err
	}
	pb, err := s.players.GetPlayerTx(ctx, tx, inputs[1].UserID)
	if err != nil {
		return nil, err
	}

	outcomeA, outcomeB := elo.Outcomes(inputs[0].Score, inputs[1].Score, winnerID, pa.ID, pb.ID)
	deltaA := elo.Delta(pa.Rating, pb.Rating, outcomeA, elo.KFactor(pa.RatedMatchCount, pa.Rating))
	deltaB := elo.Delta(pb.Rating, pa.Rating, outcomeB, elo.KFactor(pb.RatedMatchCount, pb.Rating))

	return []ladder.Participant{
		{
			MatchID:      matchID,
			UserID:       pa.ID,
			Score:        inputs[0].Score,
			RatingBefore: utils.Ptr(pa.Rating),
			RatingAfter:  utils.Ptr(elo.Clamp(pa.Rating + deltaA)),
			RatingDelta:  utils.Ptr(deltaA),
		},
		{
			MatchID:      matchID,
			UserID:       pb.ID,
			Score:        inputs[1].Score,
			RatingBefore: utils.Ptr(pb.Rating),
			RatingAfter:  utils.Ptr(elo.Clamp(pb.Rating + deltaB)),
			RatingDelta:  utils.Ptr(deltaB),
		},
	}, nil
}

// Create validates and persists a new match with its two participants. A
// match created directly as rated+COMPLETED has its rating applied
// immediately after the insert commits.
func (s *MatchService) Create(ctx context.Context, values *MatchValues, creatorID *uuid.UUID) (*MatchData, error) {
	if err := validateMatchValues(values); err != nil {
		return nil, err
	}

	matchID := uuid.New()
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	inputs, err := s.resolveParticipantsTx(ctx, tx, values)
	if err != nil {
		return nil, err
	}

	if err := s.checkPairingGuardTx(ctx, tx, values, uuid.Nil); err != nil {
		return nil, err
	}

	// An unknown creator id leaves the match creator-less rather than
	// failing the create.
	var createdByID *uuid.UUID
	if creatorID != nil {
		if _, err := s.players.GetPlayerTx(ctx, tx, *creatorID); err == nil {
			createdByID = creatorID
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	match := &ladder.Match{
		ID:          matchID,
		Status:      values.Status,
		Rated:       values.Rated,
		WinnerID:    values.WinnerID,
		CreatedByID: createdByID,
		CreatedAt:   now,
	}
	if values.Status == ladder.MatchCompleted {
		match.CompletedAt = &now
	}

	if err := s.matches.CreateMatchTx(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	participants, err := s.buildParticipantsTx(ctx, tx, matchID, inputs, values.WinnerID)
	if err != nil {
		return nil, err
	}
	if err := s.matches.CreateParticipantsTx(ctx, tx, participants); err != nil {
		return nil, fmt.Errorf("failed to create participants: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if values.Rated && values.Status == ladder.MatchCompleted {
		return s.rating.Apply(ctx, matchID)
	}
	return loadMatchData(ctx, s.matches, matchID)
}

// Update edits an existing match. Staff may edit any match; the creator may
// edit their own match only while it is still PENDING. Participant rows are
// replaced and the preview snapshot recomputed. If the result is
// rated+COMPLETED the ledger is invoked; its claim guard means an edit to a
// match whose rating was already applied does not recompute ratings.
func (s *MatchService) Update(ctx context.Context, id uuid.UUID, values *MatchValues, actorID uuid.UUID, actorRole players.Role) (*MatchData, error) {
	if err := validateMatchValues(values); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := s.matches.GetMatchTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: match %s", ladder.ErrNotFound, id)
		}
		return nil, err
	}

	if !actorRole.IsStaff() {
		if existing.CreatedByID == nil || *existing.CreatedByID != actorID {
			return nil, fmt.Errorf("%w: only the creator may edit this match", ladder.ErrForbidden)
		}
		if existing.Status != ladder.MatchPending {
			return nil, fmt.Errorf("%w: a completed match can only be edited by an admin", ladder.ErrForbidden)
		}
	}

	inputs, err := s.resolveParticipantsTx(ctx, tx, values)
	if err != nil {
		return nil, err
	}

	if err := s.checkPairingGuardTx(ctx, tx, values, id); err != nil {
		return nil, err
	}

	existing.Status = values.Status
	existing.Rated = values.Rated
	existing.WinnerID = values.WinnerID
	if values.Status == ladder.MatchCompleted {
		if existing.CompletedAt == nil {
			now := time.Now().UTC()
			existing.CompletedAt = &now
		}
	} else {
		existing.CompletedAt = nil
	}

	if err := s.matches.UpdateMatchTx(ctx, tx, existing); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	if err := s.matches.DeleteParticipantsTx(ctx, tx, id); err != nil {
		return nil, err
	}
	participants, err := s.buildParticipantsTx(ctx, tx, id, inputs, values.WinnerID)
	if err != nil {
		return nil, err
	}
	if err := s.matches.CreateParticipantsTx(ctx, tx, participants); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if values.Rated && values.Status == ladder.MatchCompleted {
		return s.rating.Apply(ctx, id)
	}
	return loadMatchData(ctx, s.matches, id)
}

// Delete removes a match. Staff may delete any match; the creator may
// cancel their own PENDING match. A rated match whose rating was applied is
// reverted in the same transaction, before its participant rows (and their
// snapshot deltas) disappear.
func (s *MatchService) Delete(ctx context.Context, id uuid.UUID, actorID uuid.UUID, actorRole players.Role) (uuid.UUID, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	match, err := s.matches.GetMatchTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: match %s", ladder.ErrNotFound, id)
		}
		return uuid.Nil, err
	}

	if !actorRole.IsStaff() {
		if match.CreatedByID == nil || *match.CreatedByID != actorID {
			return uuid.Nil, fmt.Errorf("%w: only the creator may cancel this match", ladder.ErrForbidden)
		}
		if match.Status != ladder.MatchPending {
			return uuid.Nil, fmt.Errorf("%w: only an admin may delete a completed match", ladder.ErrForbidden)
		}
	}

	if match.Rated && match.RatingAppliedAt != nil && match.RatingRevertedAt == nil {
		if err := s.rating.revertTx(ctx, tx, id); err != nil {
			return uuid.Nil, err
		}
	}

	if err := s.matches.DeleteReportsForMatchTx(ctx, tx, id); err != nil {
		return uuid.Nil, err
	}
	if err := s.matches.DeleteParticipantsTx(ctx, tx, id); err != nil {
		return uuid.Nil, err
	}
	if err := s.matches.DeleteMatchTx(ctx, tx, id); err != nil {
		return uuid.Nil, err
	}

	return id, tx.Commit()
}

func (s *MatchService) Get(ctx context.Context, id uuid.UUID) (*MatchData, error) {
	return loadMatchData(ctx, s.matches, id)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type ListMatchesArgs struct {
	Cursor    *store.MatchCursor
	Limit     int
	Ascending bool
}

type MatchesBatch struct {
	Items      []MatchData        `json:"items"`
	NextCursor *store.MatchCursor `json:"nextCursor"`
	HasNext    bool               `json:"hasNext"`
}

// List pages through matches newest first (or oldest first when asked),
// fetching one extra row past the limit to detect whether a next page
// exists.
func (s *MatchService) List(ctx context.Context, args ListMatchesArgs) (*MatchesBatch, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	matches, err := s.matches.ListMatches(ctx, args.Cursor, limit+1, args.Ascending)
	if err != nil {
		return nil, err
	}

	hasNext := len(matches) > limit
	if hasNext {
		matches = matches[:limit]
	}

	items := make([]MatchData, 0, len(matches))
	for i := range matches {
		participants, err := s.matches.GetParticipants(ctx, matches[i].ID)
		if err != nil {
			return nil, err
		}
		items = append(items, MatchData{Match: &matches[i], Participants: participants})
	}

	var nextCursor *store.MatchCursor
	if hasNext && len(matches) > 0 {
		last := matches[len(matches)-1]
		nextCursor = &store.MatchCursor{ID: last.ID, CreatedAt: last.CreatedAt}
	}

	return &MatchesBatch{Items: items, NextCursor: nextCursor, HasNext: hasNext}, nil
}

type PlayerPreview struct {
	UserID uuid.UUID `json:"userId"`
	elo.OutcomeDeltas
}

type PreviewData struct {
	A PlayerPreview `json:"A"`
	B PlayerPreview `json:"B"`
}

// Preview returns the per-outcome rating deltas for a match's two
// participants, based on their current live ratings. Read-only; safe for
// PENDING matches.
func (s *MatchService) Preview(ctx context.Context, matchID uuid.UUID) (*PreviewData, error) {
	participants, err := s.matches.GetParticipants(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if len(participants) != 2 {
		return nil, fmt.Errorf("%w: match %s", ladder.ErrNotFound, matchID)
	}

	pa, pb := participants[0], participants[1]
	a, b := elo.Preview(pa.PlayerRating, pa.RatedMatchCount, pb.PlayerRating, pb.RatedMatchCount)

	return &PreviewData{
		A: PlayerPreview{UserID: pa.UserID, OutcomeDeltas: a},
		B: PlayerPreview{UserID: pb.UserID, OutcomeDeltas: b},
	}, nil
}
