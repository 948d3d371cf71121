package risk

import (
	"github.com/tara-platform/report-engine/internal/model"
	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

// Resolution is the output of resolving impact and likelihood into a
// risk decision.
type Resolution struct {
	RiskValue int             `json:"risk_value"`
	RiskLevel model.RiskLevel `json:"risk_level"`
	Treatment model.Treatment `json:"treatment"`
}

// Resolve combines an impact level and a likelihood into a risk value,
// CAL level and default treatment. risk_value = impact x likelihood,
// mapped through the profile's risk bands. The band mapping is
// monotonic in both inputs.
func (p *Profile) Resolve(impactLevel, likelihood int) (*Resolution, error) {
	if impactLevel < 0 || impactLevel > MaxImpactLevel {
		return nil, apperrors.ScoreOutOfRange("impact_level", impactLevel)
	}
	if likelihood < 0 || likelihood > MaxImpactLevel {
		return nil, apperrors.ScoreOutOfRange("likelihood", likelihood)
	}

	value := impactLevel * likelihood
	level := p.riskLevelFor(value)

	return &Resolution{
		RiskValue: value,
		RiskLevel: level,
		Treatment: p.Treatments[level],
	}, nil
}

func (p *Profile) riskLevelFor(value int) model.RiskLevel {
	for _, band := range p.RiskBands {
		if value >= band.MinValue && value <= band.MaxValue {
			return band.Level
		}
	}
	return p.RiskBands[len(p.RiskBands)-1].Level
}

// ComputeInput is the full input for one threat risk computation.
type ComputeInput struct {
	Impact ImpactInput `json:"impact"`
	// Paths carries the attack-potential factors of every attack path
	// of the threat. The easiest path governs likelihood.
	Paths []Factors `json:"attack_paths"`
	// Measures attached to the threat's attack paths.
	Measures []model.ControlMeasure `json:"control_measures,omitempty"`
	// TreatmentDecision, when set, is a recorded human override that
	// is carried through unchanged.
	TreatmentDecision model.Treatment `json:"treatment_decision,omitempty"`
}

// ComputeResult is the fully-resolved risk outcome for one threat.
type ComputeResult struct {
	ImpactLevel       int               `json:"impact_level"`
	AttackPotential   int               `json:"attack_potential"`
	FeasibilityRating model.Feasibility `json:"feasibility_rating"`
	Likelihood        int               `json:"likelihood"`
	RiskValue         int               `json:"risk_value"`
	RiskLevel         model.RiskLevel   `json:"risk_level"`
	Treatment         model.Treatment   `json:"treatment"`
	TreatmentDecision model.Treatment   `json:"treatment_decision,omitempty"`
	ResidualRisk      int               `json:"residual_risk"`
}

// ComputeRisk runs the full chain for one threat: impact aggregation,
// worst-path feasibility, risk resolution and residual risk. It is
// pure; identical inputs yield identical outputs.
func (p *Profile) ComputeRisk(in ComputeInput) (*ComputeResult, error) {
	impactLevel, err := AggregateImpact(in.Impact)
	if err != nil {
		return nil, err
	}

	potential, err := WorstPathPotential(in.Paths)
	if err != nil {
		return nil, err
	}
	rating, likelihood := p.Feasibility(potential)

	resolution, err := p.Resolve(impactLevel, likelihood)
	if err != nil {
		return nil, err
	}

	return &ComputeResult{
		ImpactLevel:       impactLevel,
		AttackPotential:   potential,
		FeasibilityRating: rating,
		Likelihood:        likelihood,
		RiskValue:         resolution.RiskValue,
		RiskLevel:         resolution.RiskLevel,
		Treatment:         resolution.Treatment,
		TreatmentDecision: in.TreatmentDecision,
		ResidualRisk:      ResidualRisk(resolution.RiskValue, in.Measures),
	}, nil
}
