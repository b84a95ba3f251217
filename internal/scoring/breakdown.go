package scoring

import (
	"math"

	"github.com/jonathan/yecs/internal/types"
)

// Breakdown component points and weights.
const (
	breakdownRevenuePoints    = 40
	breakdownExperiencePoints = 35
	breakdownStagePoints      = 25
	breakdownCashFlowPoints   = 50
	breakdownSavingsPoints    = 50

	viabilityWeight = 1.25
	financialWeight = 0.9

	// BreakdownJitterRange is the exclusive upper bound of the random points in a breakdown score.
	BreakdownJitterRange = 150
)

// Breakdown scores a profile with per-component points for business
// viability and financial management, each in [0, 100]:
//
//	300
//	+ 1.25 * business_viability
//	+ 0.9  * financial_management
//	+ jitter in [0, 150)
//
// Financial points are only awarded when monthly income is positive.
func (h *Heuristic) Breakdown(profile types.ApplicantProfile) *types.ScoreResult {
	viability := 0
	if profile.Business.RevenueProjection.Float() > revenueThreshold {
		viability += breakdownRevenuePoints
	}
	if profile.Business.YearsExperience.Float() > experienceThreshold {
		viability += breakdownExperiencePoints
	}
	if tractionStage(profile.Business.BusinessStage) {
		viability += breakdownStagePoints
	}

	financial := 0
	fin := profile.Financials
	if fin.MonthlyIncome.Float() > 0 {
		if fin.CashFlow() > cashFlowThreshold {
			financial += breakdownCashFlowPoints
		}
		if expenses := fin.MonthlyExpenses.Float(); expenses > 0 && fin.SavingsAmount.Float() > savingsMultiple*expenses {
			financial += breakdownSavingsPoints
		}
	}

	h.mu.Lock()
	jitter := h.jitter.Intn(BreakdownJitterRange)
	h.mu.Unlock()

	raw := baseScore + float64(viability)*viabilityWeight + float64(financial)*financialWeight + float64(jitter)
	score := min(int(math.Floor(raw)), types.MaxScore)

	return &types.ScoreResult{
		YECSScore: score,
		RiskLevel: types.RiskLevelFor(score),
		ComponentScores: map[types.ComponentName]int{
			types.ComponentBusinessViability:   viability,
			types.ComponentFinancialManagement: financial,
		},
		Source: types.SourceHeuristic,
	}
}
