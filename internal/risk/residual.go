package risk

import (
	"github.com/tara-platform/report-engine/internal/model"
)

// ResidualRisk applies control-measure effectiveness to a risk value.
// Only measures in implemented status contribute; the result never
// goes below zero. The function is pure and idempotent.
func ResidualRisk(riskValue int, measures []model.ControlMeasure) int {
	reduction := 0
	for _, m := range measures {
		if m.Status != model.MeasureImplemented {
			continue
		}
		reduction += m.ReductionDelta
	}

	residual := riskValue - reduction
	if residual < 0 {
		return 0
	}
	return residual
}
