package players

import (
	"time"

	"github.com/google/uuid"
)

type ContextKey string

const PlayerKey ContextKey = "player"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
	RoleOwner Role = "OWNER"
)

// IsStaff reports whether the role can moderate. ADMIN and OWNER are
// equivalent for every operation in this system.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleOwner
}

// Player carries the live rating state. Rating and RatedMatchCount are
// mutated only by the rating ledger.
type Player struct {
	ID              uuid.UUID `db:"id"`
	Email           string    `db:"email"`
	Username        string    `db:"username"`
	Role            Role      `db:"role"`
	Rating          int       `db:"rating"`
	RatedMatchCount int       `db:"rated_match_count"`
	CreatedAt       time.Time `db:"created_at"`
	Provider        *string   `db:"provider"`
	ProviderID      *string   `db:"provider_id"`
	AvatarURL       *string   `db:"avatar_url"`
}
