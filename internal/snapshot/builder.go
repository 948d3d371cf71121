// Package snapshot assembles consistent point-in-time views of a
// project's assessment entities.
package snapshot

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/tara-platform/report-engine/internal/model"
	"github.com/tara-platform/report-engine/internal/risk"
	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

// ProjectEntities is the consistent entity set returned by an
// EntitySource for one project. No record may reference an identifier
// absent from the same read.
type ProjectEntities struct {
	Assets          []model.Asset
	DamageScenarios []model.DamageScenario
	ThreatRisks     []model.ThreatRisk
	AttackPaths     []model.AttackPath
	ControlMeasures []model.ControlMeasure
}

// EntitySource provides read access to the live entity records of a
// project. The CRUD layer that owns those records implements it.
type EntitySource interface {
	ProjectEntities(ctx context.Context, projectID string) (*ProjectEntities, error)
}

// Builder resolves a project's entity graph, recomputes every derived
// risk field and produces an immutable snapshot.
type Builder struct {
	source  EntitySource
	profile *risk.Profile
	logger  *slog.Logger
	now     func() time.Time
}

// NewBuilder creates a snapshot builder.
func NewBuilder(source EntitySource, profile *risk.Profile, logger *slog.Logger) *Builder {
	return &Builder{
		source:  source,
		profile: profile,
		logger:  logger.With("component", "snapshot-builder"),
		now:     time.Now,
	}
}

// Build produces a snapshot for the project. Every threat risk is run
// through the full computation chain so derived fields are current at
// generation time. A dangling reference aborts the build with an
// incomplete-data error; nothing is silently skipped.
func (b *Builder) Build(ctx context.Context, projectID string) (*model.Snapshot, error) {
	entities, err := b.source.ProjectEntities(ctx, projectID)
	if err != nil {
		return nil, err
	}

	assetIndex := make(map[string]*model.Asset, len(entities.Assets))
	for i := range entities.Assets {
		assetIndex[entities.Assets[i].ID] = &entities.Assets[i]
	}
	scenarioIndex := make(map[string]*model.DamageScenario, len(entities.DamageScenarios))
	for i := range entities.DamageScenarios {
		scenarioIndex[entities.DamageScenarios[i].ID] = &entities.DamageScenarios[i]
	}
	threatIndex := make(map[string]*model.ThreatRisk, len(entities.ThreatRisks))
	for i := range entities.ThreatRisks {
		threatIndex[entities.ThreatRisks[i].ID] = &entities.ThreatRisks[i]
	}
	pathIndex := make(map[string]*model.AttackPath, len(entities.AttackPaths))
	pathsByThreat := make(map[string][]*model.AttackPath)
	for i := range entities.AttackPaths {
		p := &entities.AttackPaths[i]
		pathIndex[p.ID] = p
		pathsByThreat[p.ThreatRiskID] = append(pathsByThreat[p.ThreatRiskID], p)
	}
	measuresByPath := make(map[string][]model.ControlMeasure)
	for _, m := range entities.ControlMeasures {
		measuresByPath[m.AttackPathID] = append(measuresByPath[m.AttackPathID], m)
	}

	if err := b.checkReferences(entities, assetIndex, threatIndex, pathIndex); err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		ProjectID:   projectID,
		GeneratedAt: b.now().UTC(),
	}

	// Recompute damage scenario impact levels first; threats aggregate
	// from them. The index is repointed at the snapshot copies so the
	// source's records are never written to.
	snap.DamageScenarios = make([]model.DamageScenario, len(entities.DamageScenarios))
	for i, ds := range entities.DamageScenarios {
		level, err := risk.AggregateImpact(risk.ImpactInput{
			Safety:      ds.Safety,
			Financial:   ds.Financial,
			Operational: ds.Operational,
			Privacy:     ds.Privacy,
		})
		if err != nil {
			return nil, err
		}
		ds.ImpactLevel = level
		snap.DamageScenarios[i] = ds
		scenarioIndex[ds.ID] = &snap.DamageScenarios[i]
	}

	snap.AttackPaths = make([]model.AttackPath, 0, len(entities.AttackPaths))
	snap.ThreatRisks = make([]model.ThreatRisk, 0, len(entities.ThreatRisks))

	for _, threat := range entities.ThreatRisks {
		paths := pathsByThreat[threat.ID]
		if len(paths) == 0 {
			return nil, apperrors.IncompleteData("threat_risk", threat.ID, "attack_path", "")
		}

		var factors []risk.Factors
		var measures []model.ControlMeasure
		for _, p := range paths {
			f := risk.Factors{
				Expertise:           p.Expertise,
				ElapsedTime:         p.ElapsedTime,
				Equipment:           p.Equipment,
				Knowledge:           p.Knowledge,
				WindowOfOpportunity: p.WindowOfOpportunity,
			}
			potential, err := risk.AttackPotential(f)
			if err != nil {
				return nil, err
			}
			rating, _ := b.profile.Feasibility(potential)

			path := *p
			path.AttackPotential = potential
			path.FeasibilityRating = rating
			snap.AttackPaths = append(snap.AttackPaths, path)

			factors = append(factors, f)
			measures = append(measures, measuresByPath[p.ID]...)
		}

		result, err := b.profile.ComputeRisk(risk.ComputeInput{
			Impact:            b.impactFor(&threat, scenarioIndex),
			Paths:             factors,
			Measures:          measures,
			TreatmentDecision: threat.TreatmentDecision,
		})
		if err != nil {
			return nil, err
		}

		threat.ImpactLevel = result.ImpactLevel
		threat.Likelihood = result.Likelihood
		threat.RiskValue = result.RiskValue
		threat.RiskLevel = result.RiskLevel
		threat.Treatment = result.Treatment
		threat.ResidualRisk = result.ResidualRisk
		snap.ThreatRisks = append(snap.ThreatRisks, threat)
	}

	snap.Assets = append(snap.Assets, entities.Assets...)
	snap.ControlMeasures = append(snap.ControlMeasures, entities.ControlMeasures...)

	sortSnapshot(snap)

	b.logger.Debug("snapshot built",
		"project_id", projectID,
		"assets", len(snap.Assets),
		"threat_risks", len(snap.ThreatRisks),
	)

	return snap, nil
}

// impactFor derives the impact input for a threat. A directly linked
// damage scenario governs; otherwise the worst linked scenario of the
// threat's asset is used, falling back to the threat's stored level.
func (b *Builder) impactFor(threat *model.ThreatRisk, scenarios map[string]*model.DamageScenario) risk.ImpactInput {
	if threat.DamageScenarioID != "" {
		if ds, ok := scenarios[threat.DamageScenarioID]; ok {
			return risk.ImpactInput{
				Safety:      ds.Safety,
				Financial:   ds.Financial,
				Operational: ds.Operational,
				Privacy:     ds.Privacy,
			}
		}
	}

	worst := risk.ImpactInput{}
	found := false
	for _, ds := range scenarios {
		if ds.AssetID != threat.AssetID {
			continue
		}
		found = true
		if ds.Safety > worst.Safety {
			worst.Safety = ds.Safety
		}
		if ds.Financial > worst.Financial {
			worst.Financial = ds.Financial
		}
		if ds.Operational > worst.Operational {
			worst.Operational = ds.Operational
		}
		if ds.Privacy > worst.Privacy {
			worst.Privacy = ds.Privacy
		}
	}
	if found {
		return worst
	}

	// No scenario linked anywhere: honor the threat's stored level via
	// the operational dimension so aggregation reproduces it.
	return risk.ImpactInput{Operational: threat.ImpactLevel}
}

func (b *Builder) checkReferences(
	entities *ProjectEntities,
	assets map[string]*model.Asset,
	threats map[string]*model.ThreatRisk,
	paths map[string]*model.AttackPath,
) error {
	for _, a := range entities.Assets {
		if a.ParentID == "" {
			continue
		}
		if _, ok := assets[a.ParentID]; !ok {
			return apperrors.IncompleteData("asset", a.ID, "asset", a.ParentID)
		}
	}
	for _, ds := range entities.DamageScenarios {
		if _, ok := assets[ds.AssetID]; !ok {
			return apperrors.IncompleteData("damage_scenario", ds.ID, "asset", ds.AssetID)
		}
	}
	scenarios := make(map[string]struct{}, len(entities.DamageScenarios))
	for _, ds := range entities.DamageScenarios {
		scenarios[ds.ID] = struct{}{}
	}
	for _, t := range entities.ThreatRisks {
		if _, ok := assets[t.AssetID]; !ok {
			return apperrors.IncompleteData("threat_risk", t.ID, "asset", t.AssetID)
		}
		if t.DamageScenarioID != "" {
			if _, ok := scenarios[t.DamageScenarioID]; !ok {
				return apperrors.IncompleteData("threat_risk", t.ID, "damage_scenario", t.DamageScenarioID)
			}
		}
	}
	for _, p := range entities.AttackPaths {
		if _, ok := threats[p.ThreatRiskID]; !ok {
			return apperrors.IncompleteData("attack_path", p.ID, "threat_risk", p.ThreatRiskID)
		}
	}
	for _, m := range entities.ControlMeasures {
		if _, ok := paths[m.AttackPathID]; !ok {
			return apperrors.IncompleteData("control_measure", m.ID, "attack_path", m.AttackPathID)
		}
	}
	return nil
}

// sortSnapshot fixes entity ordering by identifier so snapshot
// comparison is order-independent.
func sortSnapshot(s *model.Snapshot) {
	sort.Slice(s.Assets, func(i, j int) bool { return s.Assets[i].ID < s.Assets[j].ID })
	sort.Slice(s.DamageScenarios, func(i, j int) bool { return s.DamageScenarios[i].ID < s.DamageScenarios[j].ID })
	sort.Slice(s.ThreatRisks, func(i, j int) bool { return s.ThreatRisks[i].ID < s.ThreatRisks[j].ID })
	sort.Slice(s.AttackPaths, func(i, j int) bool { return s.AttackPaths[i].ID < s.AttackPaths[j].ID })
	sort.Slice(s.ControlMeasures, func(i, j int) bool { return s.ControlMeasures[i].ID < s.ControlMeasures[j].ID })
}
