package snapshot

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tara-platform/report-engine/internal/model"
	"github.com/tara-platform/report-engine/internal/risk"
	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

type stubSource struct {
	entities *ProjectEntities
	err      error
}

func (s *stubSource) ProjectEntities(_ context.Context, _ string) (*ProjectEntities, error) {
	return s.entities, s.err
}

func testEntities() *ProjectEntities {
	return &ProjectEntities{
		Assets: []model.Asset{
			{ID: "a1", ProjectID: "p1", Name: "Telematics ECU", Type: model.AssetTypeECU},
		},
		DamageScenarios: []model.DamageScenario{
			{ID: "ds1", AssetID: "a1", Name: "Loss of remote control",
				Safety: 1, Financial: 2, Operational: 3, Privacy: 0},
		},
		ThreatRisks: []model.ThreatRisk{
			{ID: "t1", AssetID: "a1", DamageScenarioID: "ds1",
				Name: "Firmware tampering", Category: model.StrideTampering},
		},
		AttackPaths: []model.AttackPath{
			{ID: "ap1", ThreatRiskID: "t1", Name: "OTA channel",
				Expertise: 2, ElapsedTime: 3, Equipment: 1, Knowledge: 1, WindowOfOpportunity: 2},
		},
		ControlMeasures: []model.ControlMeasure{
			{ID: "m1", AttackPathID: "ap1", Name: "Signed updates",
				Status: model.MeasureImplemented, ReductionDelta: 5},
		},
	}
}

func newTestBuilder(source EntitySource) *Builder {
	b := NewBuilder(source, risk.DefaultProfile(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return b
}

func TestBuildRecomputesDerivedFields(t *testing.T) {
	b := newTestBuilder(&stubSource{entities: testEntities()})

	snap, err := b.Build(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "p1", snap.ProjectID)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), snap.GeneratedAt)

	require.Len(t, snap.DamageScenarios, 1)
	assert.Equal(t, 3, snap.DamageScenarios[0].ImpactLevel)

	require.Len(t, snap.AttackPaths, 1)
	assert.Equal(t, 9, snap.AttackPaths[0].AttackPotential)
	assert.Equal(t, model.FeasibilityVeryHigh, snap.AttackPaths[0].FeasibilityRating)

	require.Len(t, snap.ThreatRisks, 1)
	threat := snap.ThreatRisks[0]
	assert.Equal(t, 3, threat.ImpactLevel)
	assert.Equal(t, 4, threat.Likelihood)
	assert.Equal(t, 12, threat.RiskValue)
	assert.Equal(t, model.RiskCAL3, threat.RiskLevel)
	assert.Equal(t, model.TreatmentReduce, threat.Treatment)
	assert.Equal(t, 7, threat.ResidualRisk, "implemented measure reduces by 5")
}

// Stale stored values must not leak through: the build recomputes
// everything from the raw scores.
func TestBuildOverwritesStaleValues(t *testing.T) {
	entities := testEntities()
	entities.ThreatRisks[0].RiskValue = 99
	entities.ThreatRisks[0].RiskLevel = model.RiskCAL1
	entities.AttackPaths[0].AttackPotential = 50
	entities.DamageScenarios[0].ImpactLevel = 0

	b := newTestBuilder(&stubSource{entities: entities})

	snap, err := b.Build(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, 12, snap.ThreatRisks[0].RiskValue)
	assert.Equal(t, model.RiskCAL3, snap.ThreatRisks[0].RiskLevel)
	assert.Equal(t, 9, snap.AttackPaths[0].AttackPotential)
	assert.Equal(t, 3, snap.DamageScenarios[0].ImpactLevel)
}

func TestBuildWorstScenarioOfAsset(t *testing.T) {
	entities := testEntities()
	entities.ThreatRisks[0].DamageScenarioID = ""
	entities.DamageScenarios = append(entities.DamageScenarios, model.DamageScenario{
		ID: "ds2", AssetID: "a1", Name: "Safety hazard", Safety: 4,
	})

	b := newTestBuilder(&stubSource{entities: entities})

	snap, err := b.Build(context.Background(), "p1")
	require.NoError(t, err)

	// Worst of the asset's scenarios per dimension: safety 4 dominates.
	assert.Equal(t, 4, snap.ThreatRisks[0].ImpactLevel)
}

func TestBuildRejectsDanglingReferences(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ProjectEntities)
	}{
		{"asset parent missing", func(e *ProjectEntities) { e.Assets[0].ParentID = "ghost" }},
		{"scenario asset missing", func(e *ProjectEntities) { e.DamageScenarios[0].AssetID = "ghost" }},
		{"threat asset missing", func(e *ProjectEntities) { e.ThreatRisks[0].AssetID = "ghost" }},
		{"threat scenario missing", func(e *ProjectEntities) { e.ThreatRisks[0].DamageScenarioID = "ghost" }},
		{"path threat missing", func(e *ProjectEntities) { e.AttackPaths[0].ThreatRiskID = "ghost" }},
		{"measure path missing", func(e *ProjectEntities) { e.ControlMeasures[0].AttackPathID = "ghost" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entities := testEntities()
			tt.mutate(entities)

			b := newTestBuilder(&stubSource{entities: entities})
			_, err := b.Build(context.Background(), "p1")
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeIncompleteData))
		})
	}
}

func TestBuildRejectsThreatWithoutPaths(t *testing.T) {
	entities := testEntities()
	entities.AttackPaths = nil
	entities.ControlMeasures = nil

	b := newTestBuilder(&stubSource{entities: entities})
	_, err := b.Build(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeIncompleteData))
}

// The builder reads the source's records; recomputed values land only
// in the snapshot.
func TestBuildDoesNotMutateSource(t *testing.T) {
	entities := testEntities()
	b := newTestBuilder(&stubSource{entities: entities})

	_, err := b.Build(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, 0, entities.DamageScenarios[0].ImpactLevel)
	assert.Equal(t, 0, entities.ThreatRisks[0].RiskValue)
	assert.Equal(t, model.RiskLevel(""), entities.ThreatRisks[0].RiskLevel)
	assert.Equal(t, 0, entities.AttackPaths[0].AttackPotential)
	assert.Equal(t, model.Feasibility(""), entities.AttackPaths[0].FeasibilityRating)
}

func TestBuildSortsEntities(t *testing.T) {
	entities := testEntities()
	entities.Assets = append(entities.Assets, model.Asset{ID: "a0", ProjectID: "p1", Name: "Gateway"})

	b := newTestBuilder(&stubSource{entities: entities})
	snap, err := b.Build(context.Background(), "p1")
	require.NoError(t, err)

	require.Len(t, snap.Assets, 2)
	assert.Equal(t, "a0", snap.Assets[0].ID)
	assert.Equal(t, "a1", snap.Assets[1].ID)
}
