// Package risk implements the TARA risk computation chain: impact
// aggregation, attack feasibility, risk resolution and residual risk.
package risk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tara-platform/report-engine/internal/model"
)

// Factor maxima are fixed by the attack potential rating method and
// are not profile-configurable.
const (
	MaxExpertise           = 8
	MaxElapsedTime         = 19
	MaxEquipment           = 10
	MaxKnowledge           = 7
	MaxWindowOfOpportunity = 10

	// MaxAttackPotential is the sum of all factor maxima.
	MaxAttackPotential = MaxExpertise + MaxElapsedTime + MaxEquipment + MaxKnowledge + MaxWindowOfOpportunity

	// MaxImpactLevel bounds impact dimension scores and likelihood.
	MaxImpactLevel = 4
)

// FeasibilityBand maps an attack potential range onto a feasibility
// rating and likelihood.
type FeasibilityBand struct {
	MinPotential int               `yaml:"min_potential"`
	MaxPotential int               `yaml:"max_potential"`
	Rating       model.Feasibility `yaml:"rating"`
	Likelihood   int               `yaml:"likelihood"`
}

// RiskBand maps a risk value range onto a CAL level.
type RiskBand struct {
	MinValue int             `yaml:"min_value"`
	MaxValue int             `yaml:"max_value"`
	Level    model.RiskLevel `yaml:"level"`
}

// Profile holds the banding tables for the risk chain. The defaults
// are an internally consistent choice; deployments with access to the
// authoritative standard mapping substitute their own table via YAML
// without touching the component contracts.
type Profile struct {
	FeasibilityBands []FeasibilityBand                   `yaml:"feasibility_bands"`
	RiskBands        []RiskBand                          `yaml:"risk_bands"`
	Treatments       map[model.RiskLevel]model.Treatment `yaml:"treatments"`
}

// DefaultProfile returns the built-in banding tables.
func DefaultProfile() *Profile {
	return &Profile{
		FeasibilityBands: []FeasibilityBand{
			{MinPotential: 0, MaxPotential: 9, Rating: model.FeasibilityVeryHigh, Likelihood: 4},
			{MinPotential: 10, MaxPotential: 13, Rating: model.FeasibilityHigh, Likelihood: 3},
			{MinPotential: 14, MaxPotential: 19, Rating: model.FeasibilityMedium, Likelihood: 2},
			{MinPotential: 20, MaxPotential: 24, Rating: model.FeasibilityLow, Likelihood: 1},
			{MinPotential: 25, MaxPotential: MaxAttackPotential, Rating: model.FeasibilityVeryLow, Likelihood: 0},
		},
		RiskBands: []RiskBand{
			{MinValue: 0, MaxValue: 3, Level: model.RiskCAL1},
			{MinValue: 4, MaxValue: 8, Level: model.RiskCAL2},
			{MinValue: 9, MaxValue: 14, Level: model.RiskCAL3},
			{MinValue: 15, MaxValue: 16, Level: model.RiskCAL4},
		},
		Treatments: map[model.RiskLevel]model.Treatment{
			model.RiskCAL4: model.TreatmentReduce,
			model.RiskCAL3: model.TreatmentReduce,
			model.RiskCAL2: model.TreatmentReduceOrAccept,
			model.RiskCAL1: model.TreatmentAccept,
		},
	}
}

// LoadProfile reads a banding profile from a YAML file. An empty path
// returns the defaults.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read risk profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse risk profile: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk profile %s: %w", path, err)
	}

	return &p, nil
}

// Validate checks that the band tables are contiguous, exhaustive and
// monotonic, so every potential and risk value maps to exactly one band,
// higher potential never yields higher likelihood and higher risk value
// never yields a lower CAL level.
func (p *Profile) Validate() error {
	if len(p.FeasibilityBands) == 0 {
		return fmt.Errorf("no feasibility bands")
	}
	next := 0
	prevLikelihood := MaxImpactLevel + 1
	for i, band := range p.FeasibilityBands {
		if band.MinPotential != next {
			return fmt.Errorf("feasibility band %d starts at %d, expected %d", i, band.MinPotential, next)
		}
		if band.MaxPotential < band.MinPotential {
			return fmt.Errorf("feasibility band %d is empty", i)
		}
		if band.Likelihood < 0 || band.Likelihood > MaxImpactLevel {
			return fmt.Errorf("feasibility band %d likelihood %d is outside [0,%d]", i, band.Likelihood, MaxImpactLevel)
		}
		if band.Likelihood >= prevLikelihood {
			return fmt.Errorf("feasibility band %d likelihood %d is not decreasing", i, band.Likelihood)
		}
		prevLikelihood = band.Likelihood
		next = band.MaxPotential + 1
	}
	if next <= MaxAttackPotential {
		return fmt.Errorf("feasibility bands end at %d, expected %d", next-1, MaxAttackPotential)
	}

	if len(p.RiskBands) == 0 {
		return fmt.Errorf("no risk bands")
	}
	levelRank := map[model.RiskLevel]int{
		model.RiskCAL1: 1,
		model.RiskCAL2: 2,
		model.RiskCAL3: 3,
		model.RiskCAL4: 4,
	}
	next = 0
	prevRank := 0
	for i, band := range p.RiskBands {
		if band.MinValue != next {
			return fmt.Errorf("risk band %d starts at %d, expected %d", i, band.MinValue, next)
		}
		if band.MaxValue < band.MinValue {
			return fmt.Errorf("risk band %d is empty", i)
		}
		rank, ok := levelRank[band.Level]
		if !ok {
			return fmt.Errorf("risk band %d has unknown level %q", i, band.Level)
		}
		if rank < prevRank {
			return fmt.Errorf("risk band %d level %s is lower than the previous band", i, band.Level)
		}
		prevRank = rank
		next = band.MaxValue + 1
	}
	maxRisk := MaxImpactLevel * MaxImpactLevel
	if next <= maxRisk {
		return fmt.Errorf("risk bands end at %d, expected %d", next-1, maxRisk)
	}

	for _, band := range p.RiskBands {
		if _, ok := p.Treatments[band.Level]; !ok {
			return fmt.Errorf("no treatment mapped for %s", band.Level)
		}
	}

	return nil
}
