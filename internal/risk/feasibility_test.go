package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tara-platform/report-engine/internal/model"
	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

func TestAttackPotential(t *testing.T) {
	potential, err := AttackPotential(Factors{
		Expertise:           2,
		ElapsedTime:         3,
		Equipment:           1,
		Knowledge:           1,
		WindowOfOpportunity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 9, potential)

	potential, err = AttackPotential(Factors{
		Expertise:           MaxExpertise,
		ElapsedTime:         MaxElapsedTime,
		Equipment:           MaxEquipment,
		Knowledge:           MaxKnowledge,
		WindowOfOpportunity: MaxWindowOfOpportunity,
	})
	require.NoError(t, err)
	assert.Equal(t, MaxAttackPotential, potential)
}

func TestAttackPotentialRejectsPerFactor(t *testing.T) {
	tests := []struct {
		name string
		f    Factors
	}{
		{"expertise above max", Factors{Expertise: 9}},
		{"elapsed time above max", Factors{ElapsedTime: 20}},
		{"equipment above max", Factors{Equipment: 11}},
		{"knowledge above max", Factors{Knowledge: 8}},
		{"window above max", Factors{WindowOfOpportunity: 11}},
		{"negative factor", Factors{Equipment: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AttackPotential(tt.f)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeFactorOutOfRange))
		})
	}
}

func TestFeasibilityBands(t *testing.T) {
	p := DefaultProfile()

	tests := []struct {
		potential  int
		rating     model.Feasibility
		likelihood int
	}{
		{0, model.FeasibilityVeryHigh, 4},
		{9, model.FeasibilityVeryHigh, 4},
		{10, model.FeasibilityHigh, 3},
		{13, model.FeasibilityHigh, 3},
		{14, model.FeasibilityMedium, 2},
		{19, model.FeasibilityMedium, 2},
		{20, model.FeasibilityLow, 1},
		{24, model.FeasibilityLow, 1},
		{25, model.FeasibilityVeryLow, 0},
		{MaxAttackPotential, model.FeasibilityVeryLow, 0},
	}

	for _, tt := range tests {
		rating, likelihood := p.Feasibility(tt.potential)
		assert.Equal(t, tt.rating, rating, "potential %d", tt.potential)
		assert.Equal(t, tt.likelihood, likelihood, "potential %d", tt.potential)
	}
}

// Likelihood never increases as attack potential grows.
func TestFeasibilityMonotonic(t *testing.T) {
	p := DefaultProfile()

	prev := MaxImpactLevel
	for potential := 0; potential <= MaxAttackPotential; potential++ {
		_, likelihood := p.Feasibility(potential)
		assert.LessOrEqual(t, likelihood, prev, "potential %d", potential)
		prev = likelihood
	}
}

// Attack potential is non-decreasing in every factor.
func TestAttackPotentialMonotonicPerFactor(t *testing.T) {
	base := Factors{Expertise: 2, ElapsedTime: 3, Equipment: 1, Knowledge: 1, WindowOfOpportunity: 2}
	basePotential, err := AttackPotential(base)
	require.NoError(t, err)

	bumps := []Factors{
		{Expertise: 3, ElapsedTime: 3, Equipment: 1, Knowledge: 1, WindowOfOpportunity: 2},
		{Expertise: 2, ElapsedTime: 4, Equipment: 1, Knowledge: 1, WindowOfOpportunity: 2},
		{Expertise: 2, ElapsedTime: 3, Equipment: 2, Knowledge: 1, WindowOfOpportunity: 2},
		{Expertise: 2, ElapsedTime: 3, Equipment: 1, Knowledge: 2, WindowOfOpportunity: 2},
		{Expertise: 2, ElapsedTime: 3, Equipment: 1, Knowledge: 1, WindowOfOpportunity: 3},
	}
	for _, f := range bumps {
		potential, err := AttackPotential(f)
		require.NoError(t, err)
		assert.Greater(t, potential, basePotential)
	}
}

func TestWorstPathPotential(t *testing.T) {
	easy := Factors{Expertise: 1, ElapsedTime: 1, Equipment: 1, Knowledge: 1, WindowOfOpportunity: 1}
	hard := Factors{Expertise: 8, ElapsedTime: 10, Equipment: 5, Knowledge: 4, WindowOfOpportunity: 6}

	potential, err := WorstPathPotential([]Factors{hard, easy})
	require.NoError(t, err)
	assert.Equal(t, 5, potential, "the easiest path governs")

	_, err = WorstPathPotential(nil)
	require.Error(t, err)
}
