// Package version manages report version history: an append-only,
// branch-free sequence of snapshots with approval and baseline state.
package version

import (
	"context"

	"github.com/tara-platform/report-engine/internal/model"
)

// Store is the durable backing for reports and their version history.
// Implementations must keep the is_current and is_baseline pointer
// flips in the same transaction as the row write that triggers them.
type Store interface {
	CreateReport(ctx context.Context, report *model.Report) error
	GetReport(ctx context.Context, reportID string) (*model.Report, error)

	// ListVersions returns version metadata ordered by version number
	// ascending, without snapshots or change lists.
	ListVersions(ctx context.Context, reportID string) ([]*model.ReportVersion, error)

	// GetVersion returns one version including snapshot and changes.
	GetVersion(ctx context.Context, reportID string, number model.VersionNumber) (*model.ReportVersion, error)

	// LatestVersion returns the highest-numbered version including its
	// snapshot, or nil when the report has none.
	LatestVersion(ctx context.Context, reportID string) (*model.ReportVersion, error)

	// CurrentVersion returns the version flagged is_current including
	// its snapshot, or nil.
	CurrentVersion(ctx context.Context, reportID string) (*model.ReportVersion, error)

	// AppendVersion inserts a new version and, in the same transaction,
	// clears the is_current flag on every other version of the report.
	AppendVersion(ctx context.Context, v *model.ReportVersion) error

	// UpdateVersion persists status, approval and rejection fields.
	UpdateVersion(ctx context.Context, v *model.ReportVersion) error

	// SetBaseline flags one version as baseline and, in the same
	// transaction, clears the flag on every other version of the report.
	SetBaseline(ctx context.Context, reportID string, number model.VersionNumber) error
}
