// Package model provides data models for TARA risk assessment and report versioning.
package model

import "time"

// SecurityLevel represents a three-step qualitative rating.
type SecurityLevel string

const (
	LevelLow    SecurityLevel = "low"
	LevelMedium SecurityLevel = "medium"
	LevelHigh   SecurityLevel = "high"
)

// AssetType classifies an item under assessment.
type AssetType string

const (
	AssetTypeECU           AssetType = "ecu"
	AssetTypeCommunication AssetType = "communication"
	AssetTypeData          AssetType = "data"
	AssetTypeFunction      AssetType = "function"
	AssetTypeInterface     AssetType = "interface"
)

// StrideCategory is the six-category threat classification.
type StrideCategory string

const (
	StrideSpoofing              StrideCategory = "spoofing"
	StrideTampering             StrideCategory = "tampering"
	StrideRepudiation           StrideCategory = "repudiation"
	StrideInformationDisclosure StrideCategory = "information_disclosure"
	StrideDenialOfService       StrideCategory = "denial_of_service"
	StrideElevationOfPrivilege  StrideCategory = "elevation_of_privilege"
)

// Feasibility is the categorical ease-of-attack rating derived from
// attack potential. Higher feasibility means higher likelihood.
type Feasibility string

const (
	FeasibilityVeryHigh Feasibility = "very_high"
	FeasibilityHigh     Feasibility = "high"
	FeasibilityMedium   Feasibility = "medium"
	FeasibilityLow      Feasibility = "low"
	FeasibilityVeryLow  Feasibility = "very_low"
)

// RiskLevel is the CAL risk tier, CAL-1 lowest to CAL-4 highest.
type RiskLevel string

const (
	RiskCAL1 RiskLevel = "CAL-1"
	RiskCAL2 RiskLevel = "CAL-2"
	RiskCAL3 RiskLevel = "CAL-3"
	RiskCAL4 RiskLevel = "CAL-4"
)

// Treatment is the risk treatment decision for a threat.
type Treatment string

const (
	TreatmentReduce Treatment = "reduce"
	// TreatmentReduceOrAccept allows acceptance with a recorded justification.
	TreatmentReduceOrAccept Treatment = "reduce_or_accept"
	TreatmentAccept         Treatment = "accept"
)

// MeasureStatus represents the implementation state of a control measure.
// Only implemented measures reduce residual risk.
type MeasureStatus string

const (
	MeasureProposed    MeasureStatus = "proposed"
	MeasurePlanned     MeasureStatus = "planned"
	MeasureImplemented MeasureStatus = "implemented"
	MeasureRejected    MeasureStatus = "rejected"
)

// Asset is an item under assessment, owned by a project. Assets form a
// tree via ParentID; cycles are rejected upstream.
type Asset struct {
	ID        string `json:"id" db:"id"`
	ProjectID string `json:"project_id" db:"project_id"`
	ParentID  string `json:"parent_id,omitempty" db:"parent_id"`

	Name        string        `json:"name" db:"name"`
	Type        AssetType     `json:"type" db:"type"`
	Criticality SecurityLevel `json:"criticality" db:"criticality"`

	// Security attribute ratings
	Confidentiality SecurityLevel `json:"confidentiality" db:"confidentiality"`
	Integrity       SecurityLevel `json:"integrity" db:"integrity"`
	Availability    SecurityLevel `json:"availability" db:"availability"`
	Authenticity    SecurityLevel `json:"authenticity" db:"authenticity"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DamageScenario describes the damage caused if a threat against an
// asset materializes. Dimension scores are ordinal 0 (negligible) to
// 4 (severe); ImpactLevel is derived by the impact aggregator.
type DamageScenario struct {
	ID      string `json:"id" db:"id"`
	AssetID string `json:"asset_id" db:"asset_id"`
	Name    string `json:"name" db:"name"`

	Safety      int `json:"safety" db:"safety"`
	Financial   int `json:"financial" db:"financial"`
	Operational int `json:"operational" db:"operational"`
	Privacy     int `json:"privacy" db:"privacy"`

	ImpactLevel int `json:"impact_level" db:"impact_level"`
}

// ThreatRisk is a threat against an asset together with its computed
// risk fields. Likelihood, RiskValue, RiskLevel, Treatment and
// ResidualRisk are derived during snapshot build.
type ThreatRisk struct {
	ID               string `json:"id" db:"id"`
	AssetID          string `json:"asset_id" db:"asset_id"`
	DamageScenarioID string `json:"damage_scenario_id,omitempty" db:"damage_scenario_id"`

	Name     string         `json:"name" db:"name"`
	Category StrideCategory `json:"category" db:"category"`

	ImpactLevel int       `json:"impact_level" db:"impact_level"`
	Likelihood  int       `json:"likelihood" db:"likelihood"`
	RiskValue   int       `json:"risk_value" db:"risk_value"`
	RiskLevel   RiskLevel `json:"risk_level" db:"risk_level"`

	// Treatment is the resolver's default recommendation.
	// TreatmentDecision, when set, is a recorded human override and is
	// carried through recomputation unchanged.
	Treatment         Treatment `json:"treatment" db:"treatment"`
	TreatmentDecision Treatment `json:"treatment_decision,omitempty" db:"treatment_decision"`

	ResidualRisk int `json:"residual_risk" db:"residual_risk"`
}

// AttackPath is one way to realize a threat, rated by five
// attack-potential factors. AttackPotential and FeasibilityRating are
// derived by the feasibility calculator.
type AttackPath struct {
	ID           string `json:"id" db:"id"`
	ThreatRiskID string `json:"threat_risk_id" db:"threat_risk_id"`
	Name         string `json:"name" db:"name"`

	Expertise           int `json:"expertise" db:"expertise"`
	ElapsedTime         int `json:"elapsed_time" db:"elapsed_time"`
	Equipment           int `json:"equipment" db:"equipment"`
	Knowledge           int `json:"knowledge" db:"knowledge"`
	WindowOfOpportunity int `json:"window_of_opportunity" db:"window_of_opportunity"`

	AttackPotential   int         `json:"attack_potential" db:"attack_potential"`
	FeasibilityRating Feasibility `json:"feasibility_rating" db:"feasibility_rating"`
}

// ControlMeasure mitigates an attack path. ReductionDelta is the
// integer amount subtracted from risk value when the measure is
// implemented.
type ControlMeasure struct {
	ID           string `json:"id" db:"id"`
	AttackPathID string `json:"attack_path_id" db:"attack_path_id"`
	Name         string `json:"name" db:"name"`

	Effectiveness  SecurityLevel `json:"effectiveness" db:"effectiveness"`
	ReductionDelta int           `json:"residual_risk_reduction" db:"residual_risk_reduction"`
	Status         MeasureStatus `json:"status" db:"status"`
}
