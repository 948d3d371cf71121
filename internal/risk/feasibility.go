package risk

import (
	"github.com/tara-platform/report-engine/internal/model"
	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

// Factors holds the five attack-potential factors for one attack path.
type Factors struct {
	Expertise           int `json:"expertise"`
	ElapsedTime         int `json:"elapsed_time"`
	Equipment           int `json:"equipment"`
	Knowledge           int `json:"knowledge"`
	WindowOfOpportunity int `json:"window_of_opportunity"`
}

// AttackPotential validates the factors against their maxima and
// returns their sum. Values outside a factor's range are rejected, not
// clamped.
func AttackPotential(f Factors) (int, error) {
	checks := []struct {
		name  string
		value int
		max   int
	}{
		{"expertise", f.Expertise, MaxExpertise},
		{"elapsed_time", f.ElapsedTime, MaxElapsedTime},
		{"equipment", f.Equipment, MaxEquipment},
		{"knowledge", f.Knowledge, MaxKnowledge},
		{"window_of_opportunity", f.WindowOfOpportunity, MaxWindowOfOpportunity},
	}

	sum := 0
	for _, c := range checks {
		if c.value < 0 || c.value > c.max {
			return 0, apperrors.FactorOutOfRange(c.name, c.value, c.max)
		}
		sum += c.value
	}
	return sum, nil
}

// Feasibility maps an attack potential onto its feasibility rating and
// likelihood through the profile's band table. Ascending potential
// yields non-increasing likelihood.
func (p *Profile) Feasibility(potential int) (model.Feasibility, int) {
	for _, band := range p.FeasibilityBands {
		if potential >= band.MinPotential && potential <= band.MaxPotential {
			return band.Rating, band.Likelihood
		}
	}
	// Bands are validated to be exhaustive; past the last band only
	// potential above the table maximum remains.
	last := p.FeasibilityBands[len(p.FeasibilityBands)-1]
	return last.Rating, last.Likelihood
}

// WorstPathPotential returns the minimum attack potential across a
// threat's paths: the easiest path governs overall likelihood.
func WorstPathPotential(paths []Factors) (int, error) {
	if len(paths) == 0 {
		return 0, apperrors.Validation("at least one attack path is required")
	}

	min := 0
	for i, f := range paths {
		potential, err := AttackPotential(f)
		if err != nil {
			return 0, err
		}
		if i == 0 || potential < min {
			min = potential
		}
	}
	return min, nil
}
