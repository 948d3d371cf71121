package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VersionStatus represents report version status values.
type VersionStatus string

const (
	StatusDraft           VersionStatus = "draft"
	StatusPendingApproval VersionStatus = "pending_approval"
	StatusApproved        VersionStatus = "approved"
	StatusRejected        VersionStatus = "rejected"
)

// VersionNumber is a (major, minor) pair. Ordering is lexicographic.
type VersionNumber struct {
	Major int `json:"major" db:"major"`
	Minor int `json:"minor" db:"minor"`
}

// String renders the number as "major.minor".
func (n VersionNumber) String() string {
	return fmt.Sprintf("%d.%d", n.Major, n.Minor)
}

// Less reports whether n orders before other.
func (n VersionNumber) Less(other VersionNumber) bool {
	if n.Major != other.Major {
		return n.Major < other.Major
	}
	return n.Minor < other.Minor
}

// Next allocates the successor number: major+1/minor=0 for a major
// bump, otherwise minor+1.
func (n VersionNumber) Next(isMajor bool) VersionNumber {
	if isMajor {
		return VersionNumber{Major: n.Major + 1, Minor: 0}
	}
	return VersionNumber{Major: n.Major, Minor: n.Minor + 1}
}

// ParseVersionNumber parses a "major.minor" string.
func ParseVersionNumber(s string) (VersionNumber, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return VersionNumber{}, fmt.Errorf("invalid version number %q", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return VersionNumber{}, fmt.Errorf("invalid version number %q", s)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return VersionNumber{}, fmt.Errorf("invalid version number %q", s)
	}
	if major < 0 || minor < 0 {
		return VersionNumber{}, fmt.Errorf("invalid version number %q", s)
	}
	return VersionNumber{Major: major, Minor: minor}, nil
}

// Report is the container for a project's version history.
type Report struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	CreatedBy string    `json:"created_by" db:"created_by"`
}

// Snapshot is an immutable, fully-resolved copy of a project's
// entities at generation time. It never aliases live records.
type Snapshot struct {
	ProjectID   string    `json:"project_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Assets          []Asset          `json:"assets"`
	DamageScenarios []DamageScenario `json:"damage_scenarios"`
	ThreatRisks     []ThreatRisk     `json:"threat_risks"`
	AttackPaths     []AttackPath     `json:"attack_paths"`
	ControlMeasures []ControlMeasure `json:"control_measures"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		ProjectID:   s.ProjectID,
		GeneratedAt: s.GeneratedAt,
	}
	out.Assets = append([]Asset(nil), s.Assets...)
	out.DamageScenarios = append([]DamageScenario(nil), s.DamageScenarios...)
	out.ThreatRisks = append([]ThreatRisk(nil), s.ThreatRisks...)
	out.AttackPaths = append([]AttackPath(nil), s.AttackPaths...)
	out.ControlMeasures = append([]ControlMeasure(nil), s.ControlMeasures...)
	return out
}

// EntityType identifies an entity kind in a diff. The canonical diff
// order is the declaration order below.
type EntityType string

const (
	EntityAsset          EntityType = "asset"
	EntityThreatRisk     EntityType = "threat_risk"
	EntityAttackPath     EntityType = "attack_path"
	EntityControlMeasure EntityType = "control_measure"
)

// ChangeType classifies a diff entry.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// VersionChange is one structured difference between two snapshots,
// persisted alongside a version as its audit trail.
type VersionChange struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Field      string     `json:"field,omitempty"`
	ChangeType ChangeType `json:"change_type"`
	OldValue   string     `json:"old_value,omitempty"`
	NewValue   string     `json:"new_value,omitempty"`
}

// ReportVersion is one entry in a report's append-only version
// history. It owns its snapshot and the change list relative to its
// parent version.
type ReportVersion struct {
	ID       string        `json:"id" db:"id"`
	ReportID string        `json:"report_id" db:"report_id"`
	Number   VersionNumber `json:"version_number"`
	ParentID string        `json:"parent_version_id,omitempty" db:"parent_version_id"`

	Status     VersionStatus `json:"status" db:"status"`
	IsCurrent  bool          `json:"is_current" db:"is_current"`
	IsBaseline bool          `json:"is_baseline" db:"is_baseline"`

	ChangeSummary string `json:"change_summary,omitempty" db:"change_summary"`

	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	ApprovedBy string     `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt *time.Time `json:"approved_at,omitempty" db:"approved_at"`

	RejectedBy   string `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectReason string `json:"reject_reason,omitempty" db:"reject_reason"`

	Snapshot *Snapshot       `json:"snapshot,omitempty"`
	Changes  []VersionChange `json:"changes,omitempty"`
}

// CloneShallow returns a copy of the version metadata without snapshot
// or changes, for listings.
func (v *ReportVersion) CloneShallow() *ReportVersion {
	out := *v
	out.Snapshot = nil
	out.Changes = nil
	return &out
}
