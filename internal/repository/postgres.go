package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/tara-platform/report-engine/internal/model"
	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

// Schema creates the version store tables. The partial unique index on
// is_current backs the one-current-version-per-report invariant at the
// storage level.
const Schema = `
CREATE TABLE IF NOT EXISTS reports (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	created_by  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS report_versions (
	id                 TEXT PRIMARY KEY,
	report_id          TEXT NOT NULL REFERENCES reports(id),
	major              INT NOT NULL,
	minor              INT NOT NULL,
	parent_version_id  TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	is_current         BOOLEAN NOT NULL DEFAULT FALSE,
	is_baseline        BOOLEAN NOT NULL DEFAULT FALSE,
	change_summary     TEXT NOT NULL DEFAULT '',
	created_by         TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	approved_by        TEXT NOT NULL DEFAULT '',
	approved_at        TIMESTAMPTZ,
	rejected_by        TEXT NOT NULL DEFAULT '',
	reject_reason      TEXT NOT NULL DEFAULT '',
	snapshot           JSONB NOT NULL,
	changes            JSONB NOT NULL DEFAULT '[]',
	UNIQUE (report_id, major, minor)
);

CREATE UNIQUE INDEX IF NOT EXISTS report_versions_current_idx
	ON report_versions (report_id) WHERE is_current;

CREATE UNIQUE INDEX IF NOT EXISTS report_versions_baseline_idx
	ON report_versions (report_id) WHERE is_baseline;
`

// PostgresStore is the durable version store backed by PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a Postgres-backed version store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the store tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

// dbVersion is the row shape of report_versions.
type dbVersion struct {
	ID            string         `db:"id"`
	ReportID      string         `db:"report_id"`
	Major         int            `db:"major"`
	Minor         int            `db:"minor"`
	ParentID      string         `db:"parent_version_id"`
	Status        string         `db:"status"`
	IsCurrent     bool           `db:"is_current"`
	IsBaseline    bool           `db:"is_baseline"`
	ChangeSummary string         `db:"change_summary"`
	CreatedBy     string         `db:"created_by"`
	CreatedAt     time.Time      `db:"created_at"`
	ApprovedBy    string         `db:"approved_by"`
	ApprovedAt    *time.Time     `db:"approved_at"`
	RejectedBy    string         `db:"rejected_by"`
	RejectReason  string         `db:"reject_reason"`
	Snapshot      types.JSONText `db:"snapshot"`
	Changes       types.JSONText `db:"changes"`
}

// CreateReport inserts a report row.
func (s *PostgresStore) CreateReport(ctx context.Context, report *model.Report) error {
	query := `
		INSERT INTO reports (id, project_id, title, created_at, created_by)
		VALUES (:id, :project_id, :title, :created_at, :created_by)
	`
	_, err := s.db.NamedExecContext(ctx, query, report)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by ID.
func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (*model.Report, error) {
	var report model.Report
	err := s.db.GetContext(ctx, &report, `SELECT * FROM reports WHERE id = $1`, reportID)
	if err == sql.ErrNoRows {
		return nil, apperrors.ReportNotFound(reportID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

// ListVersions returns version metadata ordered by (major, minor).
func (s *PostgresStore) ListVersions(ctx context.Context, reportID string) ([]*model.ReportVersion, error) {
	if _, err := s.GetReport(ctx, reportID); err != nil {
		return nil, err
	}

	var rows []dbVersion
	query := `
		SELECT id, report_id, major, minor, parent_version_id, status,
		       is_current, is_baseline, change_summary, created_by, created_at,
		       approved_by, approved_at, rejected_by, reject_reason,
		       '{}'::jsonb AS snapshot, '[]'::jsonb AS changes
		FROM report_versions
		WHERE report_id = $1
		ORDER BY major, minor
	`
	if err := s.db.SelectContext(ctx, &rows, query, reportID); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	versions := make([]*model.ReportVersion, 0, len(rows))
	for i := range rows {
		v, err := rows[i].toModel(false)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// GetVersion returns one full version.
func (s *PostgresStore) GetVersion(ctx context.Context, reportID string, number model.VersionNumber) (*model.ReportVersion, error) {
	var row dbVersion
	query := `SELECT * FROM report_versions WHERE report_id = $1 AND major = $2 AND minor = $3`
	err := s.db.GetContext(ctx, &row, query, reportID, number.Major, number.Minor)
	if err == sql.ErrNoRows {
		if _, reportErr := s.GetReport(ctx, reportID); reportErr != nil {
			return nil, reportErr
		}
		return nil, apperrors.VersionNotFound(reportID, number.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return row.toModel(true)
}

// LatestVersion returns the highest-numbered version, or nil.
func (s *PostgresStore) LatestVersion(ctx context.Context, reportID string) (*model.ReportVersion, error) {
	var row dbVersion
	query := `
		SELECT * FROM report_versions
		WHERE report_id = $1
		ORDER BY major DESC, minor DESC
		LIMIT 1
	`
	err := s.db.GetContext(ctx, &row, query, reportID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return row.toModel(true)
}

// CurrentVersion returns the version flagged is_current, or nil.
func (s *PostgresStore) CurrentVersion(ctx context.Context, reportID string) (*model.ReportVersion, error) {
	var row dbVersion
	query := `SELECT * FROM report_versions WHERE report_id = $1 AND is_current`
	err := s.db.GetContext(ctx, &row, query, reportID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}
	return row.toModel(true)
}

// AppendVersion inserts a version and clears the previous is_current
// flag in one transaction.
func (s *PostgresStore) AppendVersion(ctx context.Context, v *model.ReportVersion) error {
	row, err := toDBVersion(v)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE report_versions SET is_current = FALSE WHERE report_id = $1 AND is_current`,
		v.ReportID,
	); err != nil {
		return fmt.Errorf("failed to clear current flag: %w", err)
	}

	query := `
		INSERT INTO report_versions (
			id, report_id, major, minor, parent_version_id, status,
			is_current, is_baseline, change_summary, created_by, created_at,
			approved_by, approved_at, rejected_by, reject_reason,
			snapshot, changes
		) VALUES (
			:id, :report_id, :major, :minor, :parent_version_id, :status,
			:is_current, :is_baseline, :change_summary, :created_by, :created_at,
			:approved_by, :approved_at, :rejected_by, :reject_reason,
			:snapshot, :changes
		)
	`
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}

	return tx.Commit()
}

// UpdateVersion persists status, approval and rejection fields.
func (s *PostgresStore) UpdateVersion(ctx context.Context, v *model.ReportVersion) error {
	query := `
		UPDATE report_versions SET
			status = $1,
			approved_by = $2,
			approved_at = $3,
			rejected_by = $4,
			reject_reason = $5,
			change_summary = $6
		WHERE report_id = $7 AND major = $8 AND minor = $9
	`
	result, err := s.db.ExecContext(ctx, query,
		v.Status, v.ApprovedBy, v.ApprovedAt, v.RejectedBy, v.RejectReason,
		v.ChangeSummary, v.ReportID, v.Number.Major, v.Number.Minor,
	)
	if err != nil {
		return fmt.Errorf("failed to update version: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperrors.VersionNotFound(v.ReportID, v.Number.String())
	}
	return nil
}

// SetBaseline flags one version as baseline and clears any other in
// one transaction.
func (s *PostgresStore) SetBaseline(ctx context.Context, reportID string, number model.VersionNumber) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE report_versions SET is_baseline = FALSE WHERE report_id = $1 AND is_baseline`,
		reportID,
	); err != nil {
		return fmt.Errorf("failed to clear baseline flag: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE report_versions SET is_baseline = TRUE WHERE report_id = $1 AND major = $2 AND minor = $3`,
		reportID, number.Major, number.Minor,
	)
	if err != nil {
		return fmt.Errorf("failed to set baseline flag: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperrors.VersionNotFound(reportID, number.String())
	}

	return tx.Commit()
}

func toDBVersion(v *model.ReportVersion) (*dbVersion, error) {
	snapshot, err := json.Marshal(v.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	changes := v.Changes
	if changes == nil {
		changes = []model.VersionChange{}
	}
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal changes: %w", err)
	}

	return &dbVersion{
		ID:            v.ID,
		ReportID:      v.ReportID,
		Major:         v.Number.Major,
		Minor:         v.Number.Minor,
		ParentID:      v.ParentID,
		Status:        string(v.Status),
		IsCurrent:     v.IsCurrent,
		IsBaseline:    v.IsBaseline,
		ChangeSummary: v.ChangeSummary,
		CreatedBy:     v.CreatedBy,
		CreatedAt:     v.CreatedAt,
		ApprovedBy:    v.ApprovedBy,
		ApprovedAt:    v.ApprovedAt,
		RejectedBy:    v.RejectedBy,
		RejectReason:  v.RejectReason,
		Snapshot:      types.JSONText(snapshot),
		Changes:       types.JSONText(changesJSON),
	}, nil
}

func (row *dbVersion) toModel(withPayload bool) (*model.ReportVersion, error) {
	v := &model.ReportVersion{
		ID:            row.ID,
		ReportID:      row.ReportID,
		Number:        model.VersionNumber{Major: row.Major, Minor: row.Minor},
		ParentID:      row.ParentID,
		Status:        model.VersionStatus(row.Status),
		IsCurrent:     row.IsCurrent,
		IsBaseline:    row.IsBaseline,
		ChangeSummary: row.ChangeSummary,
		CreatedBy:     row.CreatedBy,
		CreatedAt:     row.CreatedAt,
		ApprovedBy:    row.ApprovedBy,
		ApprovedAt:    row.ApprovedAt,
		RejectedBy:    row.RejectedBy,
		RejectReason:  row.RejectReason,
	}

	if !withPayload {
		return v, nil
	}

	if len(row.Snapshot) > 0 {
		var snap model.Snapshot
		if err := json.Unmarshal(row.Snapshot, &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		v.Snapshot = &snap
	}
	if len(row.Changes) > 0 {
		if err := json.Unmarshal(row.Changes, &v.Changes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
		}
	}
	return v, nil
}
