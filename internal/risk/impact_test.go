package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

func TestAggregateImpact(t *testing.T) {
	tests := []struct {
		name string
		in   ImpactInput
		want int
	}{
		{"all zero", ImpactInput{}, 0},
		{"max governs below safety threshold", ImpactInput{Safety: 2, Financial: 3, Operational: 1}, 3},
		{"safety dominates at three", ImpactInput{Safety: 3, Financial: 1}, 3},
		{"safety dominates regardless of others", ImpactInput{Safety: 4, Financial: 1}, 4},
		{"severe privacy without safety", ImpactInput{Privacy: 4}, 4},
		{"safety two does not dominate", ImpactInput{Safety: 2, Privacy: 4}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AggregateImpact(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregateImpactRejectsOutOfRange(t *testing.T) {
	_, err := AggregateImpact(ImpactInput{Financial: 5})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeScoreOutOfRange))

	_, err = AggregateImpact(ImpactInput{Safety: -1})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeScoreOutOfRange))
}
