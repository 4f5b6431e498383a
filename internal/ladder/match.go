package ladder

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "PENDING"
	MatchCompleted MatchStatus = "COMPLETED"
)

// Match is a single 1v1 pairing. The two watermark timestamps are the
// concurrency anchors for the rating ledger: RatingAppliedAt is claimed
// exactly once when the rating effect lands, RatingRevertedAt exactly once
// when it is undone.
type Match struct {
	ID     uuid.UUID   `db:"id"`
	Status MatchStatus `db:"status"`
	Rated  bool        `db:"rated"`

	WinnerID    *uuid.UUID `db:"winner_id"`
	CreatedByID *uuid.UUID `db:"created_by_id"`

	ReportsCount int `db:"reports_count"`

	CreatedAt        time.Time  `db:"created_at"`
	CompletedAt      *time.Time `db:"completed_at"`
	RatingAppliedAt  *time.Time `db:"rating_applied_at"`
	RatingRevertedAt *time.Time `db:"rating_reverted_at"`
}

// Participant is one side of a match. The rating snapshot triple is the
// audit trail of what this match contributed to the player's rating; it is
// written as a preview on create/edit and overwritten by the ledger when
// the rating is actually applied. Reverts leave it in place.
type Participant struct {
	MatchID uuid.UUID `db:"match_id"`
	UserID  uuid.UUID `db:"user_id"`
	Score   int       `db:"score"`

	RatingBefore *int `db:"rating_before"`
	RatingAfter  *int `db:"rating_after"`
	RatingDelta  *int `db:"rating_delta"`
}
