package store

import (
	"context"
	"errors"

	"ladder-app/internal/ladder"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

type ReportStore struct {
	db *sqlx.DB
}

func NewReportStore(db *sqlx.DB) *ReportStore {
	return &ReportStore{db: db}
}

// IsUniqueViolation reports whether err is a SQLite unique-constraint
// failure, e.g. a second report on the same match by the same author.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (s *ReportStore) CreateReportTx(ctx context.Context, tx *sqlx.Tx, report *ladder.Report) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO reports (id, match_id, created_by_id, message, status, created_at)
		VALUES (:id, :match_id, :created_by_id, :message, :status, :created_at)`, report)
	return err
}

func (s *ReportStore) GetReport(ctx context.Context, id uuid.UUID) (*ladder.Report, error) {
	var report ladder.Report
	err := s.db.GetContext(ctx, &report, "SELECT * FROM reports WHERE id = ?", id)
	return &report, err
}

func (s *ReportStore) UpdateReportStatus(ctx context.Context, id uuid.UUID, status ladder.ReportStatus) error {
	_, err := s.db.ExecContext(ctx, "UPDATE reports SET status = ? WHERE id = ?", status, id)
	return err
}

// ListReports returns all reports newest first, or only those created by
// the given author when one is supplied.
func (s *ReportStore) ListReports(ctx context.Context, createdByID *uuid.UUID) ([]ladder.Report, error) {
	var reports []ladder.Report
	if createdByID != nil {
		err := s.db.SelectContext(ctx, &reports,
			"SELECT * FROM reports WHERE created_by_id = ? ORDER BY created_at DESC, id DESC", *createdByID)
		return reports, err
	}
	err := s.db.SelectContext(ctx, &reports, "SELECT * FROM reports ORDER BY created_at DESC, id DESC")
	return reports, err
}

func (s *ReportStore) DeleteReportsByAuthor(ctx context.Context, createdByID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM reports WHERE created_by_id = ?", createdByID)
	return err
}
