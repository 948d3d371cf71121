package version

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tara-platform/report-engine/internal/diff"
	"github.com/tara-platform/report-engine/internal/events"
	"github.com/tara-platform/report-engine/internal/model"
	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

// Service drives the version lifecycle state machine over a Store.
// Version number allocation and pointer flips are serialized per
// report; different reports proceed independently.
type Service struct {
	store     Store
	publisher *events.Publisher
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a version service. publisher may be nil.
func NewService(store Store, publisher *events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "version-service"),
		locks:     make(map[string]*sync.Mutex),
	}
}

// reportLock returns the mutex serializing mutations for one report.
func (s *Service) reportLock(reportID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[reportID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[reportID] = lock
	}
	return lock
}

// CreateOptions configures version creation.
type CreateOptions struct {
	IsMajor       bool
	CreatedBy     string
	ChangeSummary string
}

// CreateReport registers a new report container.
func (s *Service) CreateReport(ctx context.Context, projectID, title, createdBy string) (*model.Report, error) {
	if projectID == "" {
		return nil, apperrors.Validation("project_id is required")
	}
	report := &model.Report{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
		CreatedBy: createdBy,
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// GetReport retrieves a report.
func (s *Service) GetReport(ctx context.Context, reportID string) (*model.Report, error) {
	return s.store.GetReport(ctx, reportID)
}

// CreateVersion appends a new draft version holding the snapshot,
// allocates the next version number, records the diff against the
// parent version and flips the is_current pointer.
func (s *Service) CreateVersion(ctx context.Context, reportID string, snap *model.Snapshot, opts CreateOptions) (*model.ReportVersion, error) {
	lock := s.reportLock(reportID)
	lock.Lock()
	defer lock.Unlock()

	return s.createLocked(ctx, reportID, snap, "", opts)
}

// createLocked appends a version; the caller holds the report lock.
// parentID overrides the default parent (the current version) when set.
func (s *Service) createLocked(ctx context.Context, reportID string, snap *model.Snapshot, parentID string, opts CreateOptions) (*model.ReportVersion, error) {
	if _, err := s.store.GetReport(ctx, reportID); err != nil {
		return nil, err
	}

	latest, err := s.store.LatestVersion(ctx, reportID)
	if err != nil {
		return nil, err
	}
	current, err := s.store.CurrentVersion(ctx, reportID)
	if err != nil {
		return nil, err
	}

	number := model.VersionNumber{}
	if latest != nil {
		number = latest.Number
	}
	number = number.Next(opts.IsMajor)

	v := &model.ReportVersion{
		ID:            uuid.New().String(),
		ReportID:      reportID,
		Number:        number,
		Status:        model.StatusDraft,
		IsCurrent:     true,
		ChangeSummary: opts.ChangeSummary,
		CreatedBy:     opts.CreatedBy,
		CreatedAt:     time.Now().UTC(),
		Snapshot:      snap.Clone(),
	}

	if parentID != "" {
		v.ParentID = parentID
	} else if current != nil {
		v.ParentID = current.ID
	}

	// The audit trail is the diff against the snapshot this version
	// was derived from.
	if current != nil && current.Snapshot != nil {
		v.Changes = diff.Snapshots(current.Snapshot, v.Snapshot)
	}

	if err := s.store.AppendVersion(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("version created",
		"report_id", reportID,
		"version", v.Number.String(),
		"major", opts.IsMajor,
		"changes", len(v.Changes),
	)
	s.publish(ctx, events.EventVersionCreated, v, opts.CreatedBy, "")

	return v, nil
}

// SubmitForApproval moves a draft version to pending_approval.
func (s *Service) SubmitForApproval(ctx context.Context, reportID string, number model.VersionNumber) (*model.ReportVersion, error) {
	return s.transition(ctx, reportID, number, model.StatusDraft, model.StatusPendingApproval,
		func(v *model.ReportVersion) {},
		events.EventVersionSubmitted, "")
}

// Approve moves a pending_approval version to approved, recording the
// approver and timestamp. Any other source status is an invalid
// transition; approved versions are immutable from then on.
func (s *Service) Approve(ctx context.Context, reportID string, number model.VersionNumber, approver string) (*model.ReportVersion, error) {
	if approver == "" {
		return nil, apperrors.Validation("approver is required")
	}
	return s.transition(ctx, reportID, number, model.StatusPendingApproval, model.StatusApproved,
		func(v *model.ReportVersion) {
			now := time.Now().UTC()
			v.ApprovedBy = approver
			v.ApprovedAt = &now
		},
		events.EventVersionApproved, approver)
}

// Reject moves a pending_approval version to rejected with a reason.
// A rejected version may be resubmitted.
func (s *Service) Reject(ctx context.Context, reportID string, number model.VersionNumber, reviewer, reason string) (*model.ReportVersion, error) {
	return s.transition(ctx, reportID, number, model.StatusPendingApproval, model.StatusRejected,
		func(v *model.ReportVersion) {
			v.RejectedBy = reviewer
			v.RejectReason = reason
		},
		events.EventVersionRejected, reviewer)
}

// Resubmit moves a rejected version back to draft for rework.
func (s *Service) Resubmit(ctx context.Context, reportID string, number model.VersionNumber) (*model.ReportVersion, error) {
	return s.transition(ctx, reportID, number, model.StatusRejected, model.StatusDraft,
		func(v *model.ReportVersion) {
			v.RejectedBy = ""
			v.RejectReason = ""
		},
		events.EventVersionSubmitted, "")
}

func (s *Service) transition(
	ctx context.Context,
	reportID string,
	number model.VersionNumber,
	from, to model.VersionStatus,
	apply func(*model.ReportVersion),
	eventType events.EventType,
	actor string,
) (*model.ReportVersion, error) {
	lock := s.reportLock(reportID)
	lock.Lock()
	defer lock.Unlock()

	v, err := s.store.GetVersion(ctx, reportID, number)
	if err != nil {
		return nil, err
	}
	if v.Status != from {
		return nil, apperrors.InvalidTransition(string(v.Status), string(to))
	}

	v.Status = to
	apply(v)

	if err := s.store.UpdateVersion(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("version status changed",
		"report_id", reportID,
		"version", number.String(),
		"from", from,
		"to", to,
	)
	s.publish(ctx, eventType, v, actor, "")

	return v, nil
}

// SetBaseline designates an approved version as the report's baseline.
// Only approved versions qualify; the previous baseline, if any, is
// cleared in the same transaction.
func (s *Service) SetBaseline(ctx context.Context, reportID string, number model.VersionNumber, actor string) (*model.ReportVersion, error) {
	lock := s.reportLock(reportID)
	lock.Lock()
	defer lock.Unlock()

	v, err := s.store.GetVersion(ctx, reportID, number)
	if err != nil {
		return nil, err
	}
	if v.Status != model.StatusApproved {
		return nil, apperrors.InvalidTransition(string(v.Status), "baseline").
			WithDetail("version", number.String())
	}

	if err := s.store.SetBaseline(ctx, reportID, number); err != nil {
		return nil, err
	}
	v.IsBaseline = true

	s.logger.Info("baseline set", "report_id", reportID, "version", number.String())
	s.publish(ctx, events.EventBaselineSet, v, actor, "")

	return v, nil
}

// RollbackTo creates a brand-new draft version cloning the target
// version's snapshot verbatim. The parent is the current version at
// call time, so the recorded diff is a full reversal. History is never
// rewritten.
func (s *Service) RollbackTo(ctx context.Context, reportID string, target model.VersionNumber, createdBy string) (*model.ReportVersion, error) {
	lock := s.reportLock(reportID)
	lock.Lock()
	defer lock.Unlock()

	targetVersion, err := s.store.GetVersion(ctx, reportID, target)
	if err != nil {
		return nil, err
	}
	if targetVersion.Snapshot == nil {
		return nil, apperrors.Internal(fmt.Sprintf("version %s has no snapshot", target.String()))
	}

	current, err := s.store.CurrentVersion(ctx, reportID)
	if err != nil {
		return nil, err
	}
	parentID := ""
	if current != nil {
		parentID = current.ID
	}

	v, err := s.createLocked(ctx, reportID, targetVersion.Snapshot, parentID, CreateOptions{
		CreatedBy:     createdBy,
		ChangeSummary: fmt.Sprintf("rollback to version %s", target.String()),
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventVersionRolledBack, v, createdBy, target.String())
	return v, nil
}

// GetVersion retrieves one version with snapshot and changes.
func (s *Service) GetVersion(ctx context.Context, reportID string, number model.VersionNumber) (*model.ReportVersion, error) {
	return s.store.GetVersion(ctx, reportID, number)
}

// ListVersions lists version metadata ordered by version number.
func (s *Service) ListVersions(ctx context.Context, reportID string) ([]*model.ReportVersion, error) {
	return s.store.ListVersions(ctx, reportID)
}

// Diff computes the structured differences between two stored versions.
func (s *Service) Diff(ctx context.Context, reportID string, a, b model.VersionNumber) ([]model.VersionChange, error) {
	older, err := s.store.GetVersion(ctx, reportID, a)
	if err != nil {
		return nil, err
	}
	newer, err := s.store.GetVersion(ctx, reportID, b)
	if err != nil {
		return nil, err
	}
	return diff.Snapshots(older.Snapshot, newer.Snapshot), nil
}

// PublishGenerationFailed emits a generation failure event for the
// report. The generation coordinator calls it; failures are events,
// not state the version history records.
func (s *Service) PublishGenerationFailed(ctx context.Context, reportID, actor, detail string) {
	s.publisher.Publish(ctx, events.Event{
		Type:     events.EventGenerationFailed,
		ReportID: reportID,
		Actor:    actor,
		Detail:   detail,
	})
}

func (s *Service) publish(ctx context.Context, eventType events.EventType, v *model.ReportVersion, actor, detail string) {
	s.publisher.Publish(ctx, events.Event{
		Type:     eventType,
		ReportID: v.ReportID,
		Version:  v.Number.String(),
		Actor:    actor,
		Detail:   detail,
	})
}
