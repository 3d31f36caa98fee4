// Package priority implements the mod priority classification extension.
// A hosted model estimates the axis scores; the priority itself is computed
// locally from those estimates. The model never decides the outcome.
package priority

import "math"

// AxisScores are the model-estimated inputs to the priority formula. Each
// axis ranges 0–3.
type AxisScores struct {
	RemovalImpact float64 `json:"removal_impact"`
	Framework     float64 `json:"framework"`
	Essential     float64 `json:"essential"`
}

// Classification is the final priority assignment for one mod.
type Classification struct {
	Priority      int        `json:"priority"`
	Score         float64    `json:"score"`
	CategoryCode  string     `json:"code"`
	CategoryLabel string     `json:"label"`
	Scores        AxisScores `json:"scores"`
}

// categories is the closed thematic category set. The classifier must pick
// one of these codes; anything else falls back to Uncategorized.
var categories = map[string]string{
	"1A": "Gameplay Overhaul",
	"2B": "UI & Quality of Life",
	"3C": "Family & Relationships",
	"4D": "CAS & Appearance",
	"5E": "Build & Buy",
	"6F": "Utility & Frameworks",
}

const (
	uncategorizedCode  = "0X"
	uncategorizedLabel = "Uncategorized"
)

// CategoryLabel resolves a category code against the closed set.
func CategoryLabel(code string) (string, bool) {
	label, ok := categories[code]
	return label, ok
}

// Compute derives the priority from the axis scores. The score is summed and
// rounded up, then bucketed: ≥7 → P1, ≥5 → P2, ≥3 → P3, exactly 2 → P4,
// anything lower → P0 (no priority).
func Compute(scores AxisScores) (priority int, total float64) {
	total = scores.RemovalImpact + scores.Framework + scores.Essential
	rounded := int(math.Ceil(total))

	switch {
	case rounded >= 7:
		priority = 1
	case rounded >= 5:
		priority = 2
	case rounded >= 3:
		priority = 3
	case rounded == 2:
		priority = 4
	default:
		priority = 0
	}
	return priority, total
}
