package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tara-platform/report-engine/internal/model"
)

func TestDefaultProfileIsValid(t *testing.T) {
	require.NoError(t, DefaultProfile().Validate())
}

func TestLoadProfileEmptyPathReturnsDefaults(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), p)
}

func TestLoadProfileFromYAML(t *testing.T) {
	content := `
feasibility_bands:
  - {min_potential: 0, max_potential: 12, rating: very_high, likelihood: 4}
  - {min_potential: 13, max_potential: 20, rating: high, likelihood: 3}
  - {min_potential: 21, max_potential: 30, rating: medium, likelihood: 2}
  - {min_potential: 31, max_potential: 40, rating: low, likelihood: 1}
  - {min_potential: 41, max_potential: 54, rating: very_low, likelihood: 0}
risk_bands:
  - {min_value: 0, max_value: 4, level: CAL-1}
  - {min_value: 5, max_value: 9, level: CAL-2}
  - {min_value: 10, max_value: 13, level: CAL-3}
  - {min_value: 14, max_value: 16, level: CAL-4}
treatments:
  CAL-1: accept
  CAL-2: reduce_or_accept
  CAL-3: reduce
  CAL-4: reduce
`
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)

	rating, likelihood := p.Feasibility(12)
	assert.Equal(t, model.FeasibilityVeryHigh, rating)
	assert.Equal(t, 4, likelihood)

	assert.Equal(t, model.RiskCAL2, p.riskLevelFor(9))
}

func TestValidateRejectsBrokenTables(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"gap in feasibility bands", func(p *Profile) { p.FeasibilityBands[1].MinPotential = 11 }},
		{"non-decreasing likelihood", func(p *Profile) { p.FeasibilityBands[1].Likelihood = 4 }},
		{"feasibility bands end early", func(p *Profile) {
			p.FeasibilityBands[len(p.FeasibilityBands)-1].MaxPotential = 40
		}},
		{"gap in risk bands", func(p *Profile) { p.RiskBands[1].MinValue = 5 }},
		{"risk bands end early", func(p *Profile) { p.RiskBands[len(p.RiskBands)-1].MaxValue = 15 }},
		{"risk band levels inverted", func(p *Profile) {
			p.RiskBands[1].Level = model.RiskCAL4
			p.RiskBands[3].Level = model.RiskCAL1
		}},
		{"unknown risk band level", func(p *Profile) { p.RiskBands[0].Level = "CAL-9" }},
		{"missing treatment", func(p *Profile) { delete(p.Treatments, model.RiskCAL2) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile()
			tt.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
