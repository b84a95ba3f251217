package types

import (
	"math"
	"strings"
)

// Score bounds for the Young Entrepreneur Credit Score.
const (
	MinScore = 300
	MaxScore = 850

	MinComponentScore = 0
	MaxComponentScore = 100
)

// RiskLevel classifies a score.
type RiskLevel string

// Risk levels.
const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ParseRiskLevel normalizes a model-provided risk level.
// Returns false if the value is not one of the known levels.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, true
	case "medium", "moderate":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	default:
		return "", false
	}
}

// RiskLevelFor derives a risk level from a score: above 700 is Low,
// above 600 is Medium, anything else High.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score > 700:
		return RiskLow
	case score > 600:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ScoreSource records which strategy produced a score.
type ScoreSource string

// Score sources.
const (
	SourceHeuristic ScoreSource = "heuristic"
	SourceModel     ScoreSource = "model"
)

// ComponentName is one of the scoring rubric components.
type ComponentName string

// Rubric components.
const (
	ComponentBusinessViability   ComponentName = "business_viability"
	ComponentPaymentHistory      ComponentName = "payment_history"
	ComponentFinancialManagement ComponentName = "financial_management"
	ComponentPersonalCredit      ComponentName = "personal_credit"
	ComponentEducationBackground ComponentName = "education_background"
	ComponentSocialVerification  ComponentName = "social_verification"
)

// Component is a rubric component and its weight in percent.
type Component struct {
	Name   ComponentName
	Weight int
}

// Rubric returns the scoring components in rubric order. Weights sum to 100.
func Rubric() []Component {
	return []Component{
		{Name: ComponentBusinessViability, Weight: 25},
		{Name: ComponentPaymentHistory, Weight: 20},
		{Name: ComponentFinancialManagement, Weight: 18},
		{Name: ComponentPersonalCredit, Weight: 15},
		{Name: ComponentEducationBackground, Weight: 12},
		{Name: ComponentSocialVerification, Weight: 10},
	}
}

// IsComponent reports whether name is a rubric component.
func IsComponent(name string) bool {
	for _, c := range Rubric() {
		if string(c.Name) == name {
			return true
		}
	}
	return false
}

// ScoreResult is the outcome of one scoring computation. It is never mutated
// after it is produced; a new computation replaces it.
type ScoreResult struct {
	YECSScore       int                   `json:"yecs_score"`
	RiskLevel       RiskLevel             `json:"risk_level"`
	Reasoning       string                `json:"reasoning,omitempty"`
	ComponentScores map[ComponentName]int `json:"component_scores,omitempty"`
	Source          ScoreSource           `json:"source"`
}

// Score returns the YECS value.
func (r *ScoreResult) Score() int {
	return r.YECSScore
}

// ClampScore rounds v and clamps it to [MinScore, MaxScore].
func ClampScore(v float64) int {
	return clampInt(v, MinScore, MaxScore)
}

// ClampComponent rounds v and clamps it to [MinComponentScore, MaxComponentScore].
func ClampComponent(v float64) int {
	return clampInt(v, MinComponentScore, MaxComponentScore)
}

func clampInt(v float64, lo, hi int) int {
	if math.IsNaN(v) {
		return lo
	}
	r := math.Round(v)
	if r < float64(lo) {
		return lo
	}
	if r > float64(hi) {
		return hi
	}
	return int(r)
}
