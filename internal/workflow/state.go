// Package workflow drives an applicant from data collection through scoring
// to the insights dashboard.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/yecs/internal/types"
)

// State is a workflow step.
type State string

// Workflow states in order. Scoring is transient.
const (
	StatePersonal   State = "personal"
	StateBusiness   State = "business"
	StateFinancials State = "financials"
	StateScoring    State = "scoring"
	StateResults    State = "results"
	StateDashboard  State = "dashboard"
)

// States returns every state in workflow order.
func States() []State {
	return []State{StatePersonal, StateBusiness, StateFinancials, StateScoring, StateResults, StateDashboard}
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	for _, state := range States() {
		if s == state {
			return true
		}
	}
	return false
}

// InsightsStatus describes the dashboard insights request.
type InsightsStatus string

// Insights statuses.
const (
	InsightsIdle     InsightsStatus = "idle"
	InsightsLoading  InsightsStatus = "loading"
	InsightsReady    InsightsStatus = "ready"
	InsightsFallback InsightsStatus = "fallback"
)

// Banner messages shown to the applicant.
const (
	RestoreErrorMessage = "We couldn't load your saved information. You can continue, and we'll keep trying to save your progress."
	ScoreErrorMessage   = "We couldn't calculate your score right now. Please review your financials and try again."
)

// ErrSuperseded is returned to a scoring request whose result was discarded
// because a newer submission started after it.
var ErrSuperseded = errors.New("superseded by a newer submission")

// InvalidTransitionError is returned when an action is not allowed in the current state.
type InvalidTransitionError struct {
	From   State
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from the %s step", e.Action, e.From)
}

// Snapshot is a point-in-time copy of a workflow.
type Snapshot struct {
	Identity       string                 `json:"identity"`
	State          State                  `json:"state"`
	Profile        types.ApplicantProfile `json:"profile"`
	Score          *types.ScoreResult     `json:"score,omitempty"`
	InsightsStatus InsightsStatus         `json:"insightsStatus"`
	Insights       *types.InsightsBundle  `json:"insights,omitempty"`
	RestoreError   string                 `json:"restoreError,omitempty"`
	ScoreError     string                 `json:"scoreError,omitempty"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}
