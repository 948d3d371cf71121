// Package repository provides version store implementations.
package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/tara-platform/report-engine/internal/model"
	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

// MemoryStore is an in-memory version store. It backs tests and
// ephemeral deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	reports  map[string]*model.Report
	versions map[string][]*model.ReportVersion // reportID -> versions, ascending
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:  make(map[string]*model.Report),
		versions: make(map[string][]*model.ReportVersion),
	}
}

// CreateReport registers a report.
func (s *MemoryStore) CreateReport(ctx context.Context, report *model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.ID]; exists {
		return apperrors.New(apperrors.CodeConflict, "report already exists")
	}
	clone := *report
	s.reports[report.ID] = &clone
	return nil
}

// GetReport retrieves a report by ID.
func (s *MemoryStore) GetReport(ctx context.Context, reportID string) (*model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, exists := s.reports[reportID]
	if !exists {
		return nil, apperrors.ReportNotFound(reportID)
	}
	clone := *report
	return &clone, nil
}

// ListVersions returns version metadata ordered by version number.
func (s *MemoryStore) ListVersions(ctx context.Context, reportID string) ([]*model.ReportVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.reports[reportID]; !exists {
		return nil, apperrors.ReportNotFound(reportID)
	}

	list := make([]*model.ReportVersion, 0, len(s.versions[reportID]))
	for _, v := range s.versions[reportID] {
		list = append(list, v.CloneShallow())
	}
	return list, nil
}

// GetVersion returns one full version.
func (s *MemoryStore) GetVersion(ctx context.Context, reportID string, number model.VersionNumber) (*model.ReportVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.reports[reportID]; !exists {
		return nil, apperrors.ReportNotFound(reportID)
	}
	for _, v := range s.versions[reportID] {
		if v.Number == number {
			return cloneFull(v), nil
		}
	}
	return nil, apperrors.VersionNotFound(reportID, number.String())
}

// LatestVersion returns the highest-numbered version, or nil.
func (s *MemoryStore) LatestVersion(ctx context.Context, reportID string) (*model.ReportVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.versions[reportID]
	if len(list) == 0 {
		return nil, nil
	}
	return cloneFull(list[len(list)-1]), nil
}

// CurrentVersion returns the version flagged is_current, or nil.
func (s *MemoryStore) CurrentVersion(ctx context.Context, reportID string) (*model.ReportVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.versions[reportID] {
		if v.IsCurrent {
			return cloneFull(v), nil
		}
	}
	return nil, nil
}

// AppendVersion inserts a version and clears the previous current flag.
func (s *MemoryStore) AppendVersion(ctx context.Context, v *model.ReportVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[v.ReportID]; !exists {
		return apperrors.ReportNotFound(v.ReportID)
	}
	for _, existing := range s.versions[v.ReportID] {
		if existing.Number == v.Number {
			return apperrors.New(apperrors.CodeConflict, "version number already allocated").
				WithDetail("version", v.Number.String())
		}
	}

	for _, existing := range s.versions[v.ReportID] {
		existing.IsCurrent = false
	}

	s.versions[v.ReportID] = append(s.versions[v.ReportID], cloneFull(v))
	sort.Slice(s.versions[v.ReportID], func(i, j int) bool {
		return s.versions[v.ReportID][i].Number.Less(s.versions[v.ReportID][j].Number)
	})
	return nil
}

// UpdateVersion persists status, approval and rejection fields.
func (s *MemoryStore) UpdateVersion(ctx context.Context, v *model.ReportVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.versions[v.ReportID] {
		if existing.Number != v.Number {
			continue
		}
		existing.Status = v.Status
		existing.ApprovedBy = v.ApprovedBy
		existing.ApprovedAt = v.ApprovedAt
		existing.RejectedBy = v.RejectedBy
		existing.RejectReason = v.RejectReason
		existing.ChangeSummary = v.ChangeSummary
		return nil
	}
	return apperrors.VersionNotFound(v.ReportID, v.Number.String())
}

// SetBaseline flags one version as baseline, clearing any other.
func (s *MemoryStore) SetBaseline(ctx context.Context, reportID string, number model.VersionNumber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *model.ReportVersion
	for _, v := range s.versions[reportID] {
		if v.Number == number {
			target = v
			break
		}
	}
	if target == nil {
		return apperrors.VersionNotFound(reportID, number.String())
	}

	for _, v := range s.versions[reportID] {
		v.IsBaseline = false
	}
	target.IsBaseline = true
	return nil
}

func cloneFull(v *model.ReportVersion) *model.ReportVersion {
	clone := *v
	clone.Snapshot = v.Snapshot.Clone()
	clone.Changes = append([]model.VersionChange(nil), v.Changes...)
	return &clone
}
