package ladder

import (
	"time"

	"github.com/google/uuid"
)

// Ban is an overlay record; the banned player row itself is never deleted.
// At most one ban per user.
type Ban struct {
	ID         uuid.UUID `db:"id"`
	UserID     uuid.UUID `db:"user_id"`
	BannedByID uuid.UUID `db:"banned_by_id"`
	Reason     *string   `db:"reason"`
	CreatedAt  time.Time `db:"created_at"`
}
