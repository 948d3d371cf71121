package risk

import (
	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

// ImpactInput holds the four damage scenario impact dimensions, each
// ordinal 0 (negligible) to 4 (severe). Absent dimensions are zero.
type ImpactInput struct {
	Safety      int `json:"safety"`
	Financial   int `json:"financial"`
	Operational int `json:"operational"`
	Privacy     int `json:"privacy"`
}

// AggregateImpact combines the four dimensions into a single impact
// level. Safety dominates: a safety score of 3 or above is the impact
// level regardless of the other dimensions, so safety-relevant damage
// is never diluted. Otherwise the maximum dimension governs.
func AggregateImpact(in ImpactInput) (int, error) {
	dims := []struct {
		name  string
		value int
	}{
		{"safety", in.Safety},
		{"financial", in.Financial},
		{"operational", in.Operational},
		{"privacy", in.Privacy},
	}

	level := 0
	for _, d := range dims {
		if d.value < 0 || d.value > MaxImpactLevel {
			return 0, apperrors.ScoreOutOfRange(d.name, d.value)
		}
		if d.value > level {
			level = d.value
		}
	}

	if in.Safety >= 3 {
		return in.Safety, nil
	}
	return level, nil
}
