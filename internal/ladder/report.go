package ladder

import (
	"time"

	"github.com/google/uuid"
)

type ReportStatus string

const (
	ReportPending ReportStatus = "PENDING"
	// ReportClosed means the report was dismissed. Terminal.
	ReportClosed ReportStatus = "CLOSED"
	// ReportCompleted means the report was accepted and its match deleted. Terminal.
	ReportCompleted ReportStatus = "COMPLETED"
)

type Report struct {
	ID          uuid.UUID    `db:"id"`
	MatchID     uuid.UUID    `db:"match_id"`
	CreatedByID uuid.UUID    `db:"created_by_id"`
	Message     *string      `db:"message"`
	Status      ReportStatus `db:"status"`
	CreatedAt   time.Time    `db:"created_at"`
}
