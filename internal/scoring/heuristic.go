// Package scoring produces YECS scores, either from a fixed heuristic or from
// the generative model.
package scoring

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jonathan/yecs/internal/types"
)

// Heuristic point table.
const (
	baseScore = 300

	revenueThreshold = 50000
	revenuePoints    = 50

	experienceThreshold = 2
	experiencePoints    = 40

	stagePoints = 35

	cashFlowThreshold = 500
	cashFlowPoints    = 60

	savingsMultiple = 3
	savingsPoints   = 40

	// JitterRange is the exclusive upper bound of the random points added to every score.
	JitterRange = 100
)

// Jitter supplies the random component of a heuristic score.
// *rand.Rand satisfies it.
type Jitter interface {
	Intn(n int) int
}

// Heuristic is the deterministic-plus-jitter scorer used when the model is
// not used or not available. It performs no I/O and cannot fail.
type Heuristic struct {
	mu     sync.Mutex
	jitter Jitter
}

// NewHeuristic creates a Heuristic. A nil jitter uses a time-seeded source.
func NewHeuristic(jitter Jitter) *Heuristic {
	if jitter == nil {
		jitter = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Heuristic{jitter: jitter}
}

// Score returns a value in [MinScore, MaxScore]:
//
//	300
//	+50 if revenue projection > 50000
//	+40 if years of experience > 2
//	+35 if the stage is MVP Ready, Early Customers or Revenue Generating
//	+60 if monthly income - expenses > 500
//	+40 if expenses > 0 and savings > 3 * expenses
//	+ jitter in [0, 100)
func (h *Heuristic) Score(profile types.ApplicantProfile) int {
	score := baseScore + Points(profile)

	h.mu.Lock()
	score += h.jitter.Intn(JitterRange)
	h.mu.Unlock()

	return min(max(score, types.MinScore), types.MaxScore)
}

// Result wraps Score in a ScoreResult with a threshold risk level and no components.
func (h *Heuristic) Result(profile types.ApplicantProfile) *types.ScoreResult {
	score := h.Score(profile)
	return &types.ScoreResult{
		YECSScore: score,
		RiskLevel: types.RiskLevelFor(score),
		Source:    types.SourceHeuristic,
	}
}

// Points returns the deterministic points above the base score.
func Points(profile types.ApplicantProfile) int {
	points := 0

	if profile.Business.RevenueProjection.Float() > revenueThreshold {
		points += revenuePoints
	}
	if profile.Business.YearsExperience.Float() > experienceThreshold {
		points += experiencePoints
	}
	if tractionStage(profile.Business.BusinessStage) {
		points += stagePoints
	}

	fin := profile.Financials
	if fin.CashFlow() > cashFlowThreshold {
		points += cashFlowPoints
	}
	if expenses := fin.MonthlyExpenses.Float(); expenses > 0 && fin.SavingsAmount.Float() > savingsMultiple*expenses {
		points += savingsPoints
	}

	return points
}

func tractionStage(stage types.BusinessStage) bool {
	switch stage {
	case types.StageMVPReady, types.StageEarlyCustomers, types.StageRevenueGenerating:
		return true
	default:
		return false
	}
}
