// Package diff computes structured differences between two report
// snapshots.
package diff

import (
	"fmt"
	"sort"

	"github.com/tara-platform/report-engine/internal/model"
)

// fieldValue is one comparable field of an entity. Volatile fields
// such as timestamps are never listed.
type fieldValue struct {
	name  string
	value string
}

// entitySet is an identifier-keyed view of one entity type in a
// snapshot.
type entitySet struct {
	entityType model.EntityType
	byID       map[string][]fieldValue
	names      map[string]string
}

// Snapshots compares an older snapshot A with a newer snapshot B and
// returns the ordered change list. Identifiers only in B are added,
// only in A are deleted, and shared identifiers are compared field by
// field with one modified entry per differing field. Output ordering
// is deterministic: canonical entity-type order, then identifier,
// then field name. Equal snapshots yield an empty list.
func Snapshots(a, b *model.Snapshot) []model.VersionChange {
	changes := make([]model.VersionChange, 0)
	for _, pair := range [][2]entitySet{
		{assetSet(a), assetSet(b)},
		{threatRiskSet(a), threatRiskSet(b)},
		{attackPathSet(a), attackPathSet(b)},
		{controlMeasureSet(a), controlMeasureSet(b)},
	} {
		changes = append(changes, diffSets(pair[0], pair[1])...)
	}
	return changes
}

func diffSets(a, b entitySet) []model.VersionChange {
	ids := make(map[string]struct{}, len(a.byID)+len(b.byID))
	for id := range a.byID {
		ids[id] = struct{}{}
	}
	for id := range b.byID {
		ids[id] = struct{}{}
	}

	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	var changes []model.VersionChange
	for _, id := range ordered {
		oldFields, inA := a.byID[id]
		newFields, inB := b.byID[id]

		switch {
		case !inA:
			changes = append(changes, model.VersionChange{
				EntityType: b.entityType,
				EntityID:   id,
				ChangeType: model.ChangeAdded,
				NewValue:   b.names[id],
			})
		case !inB:
			changes = append(changes, model.VersionChange{
				EntityType: a.entityType,
				EntityID:   id,
				ChangeType: model.ChangeDeleted,
				OldValue:   a.names[id],
			})
		default:
			changes = append(changes, diffFields(a.entityType, id, oldFields, newFields)...)
		}
	}
	return changes
}

// diffFields compares two field lists for the same identifier. Field
// lists are built in ascending name order, so the output ordering
// requirement holds without re-sorting.
func diffFields(entityType model.EntityType, id string, oldFields, newFields []fieldValue) []model.VersionChange {
	var changes []model.VersionChange
	for i, oldField := range oldFields {
		newField := newFields[i]
		if oldField.value == newField.value {
			continue
		}
		changes = append(changes, model.VersionChange{
			EntityType: entityType,
			EntityID:   id,
			Field:      oldField.name,
			ChangeType: model.ChangeModified,
			OldValue:   oldField.value,
			NewValue:   newField.value,
		})
	}
	return changes
}

// Field extractors. Fields are listed in ascending name order.

func assetSet(s *model.Snapshot) entitySet {
	set := newEntitySet(model.EntityAsset, len(s.Assets))
	for _, a := range s.Assets {
		set.names[a.ID] = a.Name
		set.byID[a.ID] = []fieldValue{
			{"authenticity", string(a.Authenticity)},
			{"availability", string(a.Availability)},
			{"confidentiality", string(a.Confidentiality)},
			{"criticality", string(a.Criticality)},
			{"integrity", string(a.Integrity)},
			{"name", a.Name},
			{"parent_id", a.ParentID},
			{"type", string(a.Type)},
		}
	}
	return set
}

func threatRiskSet(s *model.Snapshot) entitySet {
	set := newEntitySet(model.EntityThreatRisk, len(s.ThreatRisks))
	for _, t := range s.ThreatRisks {
		set.names[t.ID] = t.Name
		set.byID[t.ID] = []fieldValue{
			{"asset_id", t.AssetID},
			{"category", string(t.Category)},
			{"damage_scenario_id", t.DamageScenarioID},
			{"impact_level", itoa(t.ImpactLevel)},
			{"likelihood", itoa(t.Likelihood)},
			{"name", t.Name},
			{"residual_risk", itoa(t.ResidualRisk)},
			{"risk_level", string(t.RiskLevel)},
			{"risk_value", itoa(t.RiskValue)},
			{"treatment", string(t.Treatment)},
			{"treatment_decision", string(t.TreatmentDecision)},
		}
	}
	return set
}

func attackPathSet(s *model.Snapshot) entitySet {
	set := newEntitySet(model.EntityAttackPath, len(s.AttackPaths))
	for _, p := range s.AttackPaths {
		set.names[p.ID] = p.Name
		set.byID[p.ID] = []fieldValue{
			{"attack_potential", itoa(p.AttackPotential)},
			{"elapsed_time", itoa(p.ElapsedTime)},
			{"equipment", itoa(p.Equipment)},
			{"expertise", itoa(p.Expertise)},
			{"feasibility_rating", string(p.FeasibilityRating)},
			{"knowledge", itoa(p.Knowledge)},
			{"name", p.Name},
			{"threat_risk_id", p.ThreatRiskID},
			{"window_of_opportunity", itoa(p.WindowOfOpportunity)},
		}
	}
	return set
}

func controlMeasureSet(s *model.Snapshot) entitySet {
	set := newEntitySet(model.EntityControlMeasure, len(s.ControlMeasures))
	for _, m := range s.ControlMeasures {
		set.names[m.ID] = m.Name
		set.byID[m.ID] = []fieldValue{
			{"attack_path_id", m.AttackPathID},
			{"effectiveness", string(m.Effectiveness)},
			{"name", m.Name},
			{"residual_risk_reduction", itoa(m.ReductionDelta)},
			{"status", string(m.Status)},
		}
	}
	return set
}

func newEntitySet(entityType model.EntityType, size int) entitySet {
	return entitySet{
		entityType: entityType,
		byID:       make(map[string][]fieldValue, size),
		names:      make(map[string]string, size),
	}
}

func itoa(v int) string {
	return fmt.Sprintf("%d", v)
}
