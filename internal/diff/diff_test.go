package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tara-platform/report-engine/internal/model"
)

func baseSnapshot() *model.Snapshot {
	return &model.Snapshot{
		ProjectID: "p1",
		Assets: []model.Asset{
			{ID: "a1", Name: "Telematics ECU", Type: model.AssetTypeECU, Criticality: model.LevelHigh,
				Confidentiality: model.LevelMedium, Integrity: model.LevelHigh,
				Availability: model.LevelMedium, Authenticity: model.LevelHigh},
			{ID: "a2", Name: "CAN Bus", Type: model.AssetTypeCommunication, Criticality: model.LevelMedium},
		},
		ThreatRisks: []model.ThreatRisk{
			{ID: "t1", AssetID: "a1", Name: "Firmware tampering", Category: model.StrideTampering,
				ImpactLevel: 3, Likelihood: 4, RiskValue: 12, RiskLevel: model.RiskCAL3,
				Treatment: model.TreatmentReduce, ResidualRisk: 12},
		},
		AttackPaths: []model.AttackPath{
			{ID: "ap1", ThreatRiskID: "t1", Name: "OTA channel", Expertise: 2, ElapsedTime: 3,
				Equipment: 1, Knowledge: 1, WindowOfOpportunity: 2, AttackPotential: 9,
				FeasibilityRating: model.FeasibilityVeryHigh},
		},
		ControlMeasures: []model.ControlMeasure{
			{ID: "m1", AttackPathID: "ap1", Name: "Signed updates",
				Effectiveness: model.LevelHigh, ReductionDelta: 5, Status: model.MeasurePlanned},
		},
	}
}

func TestDiffEqualSnapshotsIsEmpty(t *testing.T) {
	a := baseSnapshot()
	changes := Snapshots(a, a.Clone())
	assert.Empty(t, changes)
}

func TestDiffAddedAndDeleted(t *testing.T) {
	a := baseSnapshot()
	b := a.Clone()

	// a2 removed, a3 added.
	b.Assets = []model.Asset{b.Assets[0], {ID: "a3", Name: "Gateway"}}

	changes := Snapshots(a, b)
	require.Len(t, changes, 2)

	assert.Equal(t, model.VersionChange{
		EntityType: model.EntityAsset,
		EntityID:   "a2",
		ChangeType: model.ChangeDeleted,
		OldValue:   "CAN Bus",
	}, changes[0])
	assert.Equal(t, model.VersionChange{
		EntityType: model.EntityAsset,
		EntityID:   "a3",
		ChangeType: model.ChangeAdded,
		NewValue:   "Gateway",
	}, changes[1])
}

func TestDiffModifiedPerField(t *testing.T) {
	a := baseSnapshot()
	b := a.Clone()

	b.ThreatRisks[0].Likelihood = 2
	b.ThreatRisks[0].RiskValue = 6
	b.ThreatRisks[0].RiskLevel = model.RiskCAL2

	changes := Snapshots(a, b)
	require.Len(t, changes, 3)

	// Modified entries for one identifier are ordered by field name.
	assert.Equal(t, "likelihood", changes[0].Field)
	assert.Equal(t, "risk_level", changes[1].Field)
	assert.Equal(t, "risk_value", changes[2].Field)

	assert.Equal(t, model.ChangeModified, changes[0].ChangeType)
	assert.Equal(t, "4", changes[0].OldValue)
	assert.Equal(t, "2", changes[0].NewValue)
}

func TestDiffCanonicalEntityOrder(t *testing.T) {
	a := baseSnapshot()
	b := a.Clone()

	b.ControlMeasures[0].Status = model.MeasureImplemented
	b.AttackPaths[0].Expertise = 3
	b.ThreatRisks[0].ImpactLevel = 4
	b.Assets[0].Criticality = model.LevelMedium

	changes := Snapshots(a, b)
	require.Len(t, changes, 4)

	assert.Equal(t, model.EntityAsset, changes[0].EntityType)
	assert.Equal(t, model.EntityThreatRisk, changes[1].EntityType)
	assert.Equal(t, model.EntityAttackPath, changes[2].EntityType)
	assert.Equal(t, model.EntityControlMeasure, changes[3].EntityType)
}

// Entity ordering inside a snapshot must not affect the diff.
func TestDiffOrderIndependent(t *testing.T) {
	a := baseSnapshot()
	b := a.Clone()
	b.Assets = []model.Asset{b.Assets[1], b.Assets[0]}

	assert.Empty(t, Snapshots(a, b))
}

func TestDiffTimestampsExcluded(t *testing.T) {
	a := baseSnapshot()
	b := a.Clone()
	b.Assets[0].UpdatedAt = b.Assets[0].UpdatedAt.AddDate(0, 0, 1)
	b.GeneratedAt = b.GeneratedAt.AddDate(0, 0, 1)

	assert.Empty(t, Snapshots(a, b))
}
