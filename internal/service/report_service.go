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

// ReportService handles disputed-match reports. Accepting a report deletes
// the reported match through the match lifecycle's delete path, which takes
// care of the rating revert.
type ReportService struct {
	db           *sqlx.DB
	reports      *store.ReportStore
	matches      *store.MatchStore
	matchService *MatchService
}

func NewReportService(db *sqlx.DB, reports *store.ReportStore, matches *store.MatchStore, matchService *MatchService) *ReportService {
	return &ReportService{db: db, reports: reports, matches: matches, matchService: matchService}
}

// Create files a report against a match. The unique (match, author)
// constraint turns a duplicate submission into a conflict error instead of
// a second row.
func (s *ReportService) Create(ctx context.Context, actorID, matchID uuid.UUID, message *string) (*ladder.Report, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.matches.GetMatchTx(ctx, tx, matchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: match %s", ladder.ErrNotFound, matchID)
		}
		return nil, err
	}

	report := &ladder.Report{
		ID:          uuid.New(),
		MatchID:     matchID,
		CreatedByID: actorID,
		Message:     message,
		Status:      ladder.ReportPending,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.reports.CreateReportTx(ctx, tx, report); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: you have already reported this match", ladder.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	if err := s.matches.IncrementReportsCountTx(ctx, tx, matchID); err != nil {
		return nil, err
	}

	return report, tx.Commit()
}

// Reject dismisses a report without touching the match. Idempotent when the
// report is already CLOSED; an accepted (COMPLETED) report is terminal and
// cannot be rejected.
func (s *ReportService) Reject(ctx context.Context, reportID uuid.UUID, actorRole players.Role) (*ladder.Report, error) {
	if !actorRole.IsStaff() {
		return nil, fmt.Errorf("%w: admin privileges required", ladder.ErrForbidden)
	}

	report, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: report %s", ladder.ErrNotFound, reportID)
		}
		return nil, err
	}

	if report.Status == ladder.ReportCompleted {
		return nil, fmt.Errorf("%w: cannot reject a completed report", ladder.ErrConflict)
	}

	if err := s.reports.UpdateReportStatus(ctx, reportID, ladder.ReportClosed); err != nil {
		return nil, err
	}
	report.Status = ladder.ReportClosed
	return report, nil
}

type AcceptResult struct {
	ReportID       uuid.UUID `json:"reportId"`
	DeletedMatchID uuid.UUID `json:"deletedMatchId"`
}

// Accept marks the report COMPLETED and deletes the reported match via the
// lifecycle delete path (rating revert included). Accepting an already
// completed report returns the prior result.
func (s *ReportService) Accept(ctx context.Context, reportID, actorID uuid.UUID, actorRole players.Role) (*AcceptResult, error) {
	if !actorRole.IsStaff() {
		return nil, fmt.Errorf("%w: admin privileges required", ladder.ErrForbidden)
	}

	report, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: report %s", ladder.ErrNotFound, reportID)
		}
		return nil, err
	}

	if report.Status == ladder.ReportCompleted {
		return &AcceptResult{ReportID: report.ID, DeletedMatchID: report.MatchID}, nil
	}

	if err := s.reports.UpdateReportStatus(ctx, reportID, ladder.ReportCompleted); err != nil {
		return nil, err
	}

	deletedID, err := s.matchService.Delete(ctx, report.MatchID, actorID, actorRole)
	if err != nil {
		return nil, err
	}

	return &AcceptResult{ReportID: report.ID, DeletedMatchID: deletedID}, nil
}

// List returns the reports visible to the actor: staff see everything,
// users only their own.
func (s *ReportService) List(ctx context.Context, actorID uuid.UUID, actorRole players.Role) ([]ladder.Report, error) {
	if actorRole.IsStaff() {
		return s.reports.ListReports(ctx, nil)
	}
	return s.reports.ListReports(ctx, &actorID)
}
