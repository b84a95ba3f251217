package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jonathan/yecs/internal/observability"
	"github.com/jonathan/yecs/internal/profile"
	"github.com/jonathan/yecs/internal/types"
	"go.uber.org/zap"
)

// Scorer produces a score for a complete profile. scoring.Strategy satisfies it.
type Scorer interface {
	Score(ctx context.Context, profile types.ApplicantProfile) (*types.ScoreResult, error)
}

// InsightsSource produces dashboard insights. gateway.Gateway satisfies it.
type InsightsSource interface {
	ComputeInsights(ctx context.Context, profile types.ApplicantProfile, score *types.ScoreResult) (*types.InsightsBundle, error)
}

// ScoreRecorder keeps score history. db.Store satisfies it.
type ScoreRecorder interface {
	SaveScore(ctx context.Context, identity string, score *types.ScoreResult) error
}

// Deps are the collaborators shared by every workflow.
type Deps struct {
	Scorer   Scorer
	Insights InsightsSource // nil uses the fixed fallback insights
	Scores   ScoreRecorder  // nil keeps no history
	Sessions SessionStore   // nil keeps no snapshots
	Logger   *zap.Logger
}

// Workflow is one applicant's step-by-step session. Transitions are
// serialized; model calls run outside the lock so a newer submission can
// supersede an older one.
type Workflow struct {
	identity string
	profile  *profile.Store
	deps     Deps
	logger   *zap.Logger

	// ctx scopes background work; Close cancels it
	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	mu             sync.Mutex
	state          State
	score          *types.ScoreResult
	insights       *types.InsightsBundle
	insightsStatus InsightsStatus
	insightsDone   chan struct{}
	restoreErr     string
	scoreErr       string
	scoreSeq       uint64
	insightsSeq    uint64
	updatedAt      time.Time

	saveMu sync.Mutex
}

// New creates a workflow at the personal step around store.
func New(identity string, store *profile.Store, deps Deps) *Workflow {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Workflow{
		identity:       identity,
		profile:        store,
		deps:           deps,
		logger:         deps.Logger.Named("workflow").With(zap.String("identity", identity)),
		ctx:            ctx,
		cancel:         cancel,
		state:          StatePersonal,
		insightsStatus: InsightsIdle,
		updatedAt:      time.Now(),
	}
}

// Identity returns the applicant identity.
func (w *Workflow) Identity() string {
	return w.identity
}

// SubmitPersonal merges the personal section and moves to the business step.
func (w *Workflow) SubmitPersonal(ctx context.Context, data json.RawMessage) (Snapshot, error) {
	return w.submitStep(ctx, StatePersonal, StateBusiness, types.SectionPersonal, data)
}

// SubmitBusiness merges the business section and moves to the financials step.
func (w *Workflow) SubmitBusiness(ctx context.Context, data json.RawMessage) (Snapshot, error) {
	return w.submitStep(ctx, StateBusiness, StateFinancials, types.SectionBusiness, data)
}

// AddDocuments records document metadata. Documents may be added at any step.
func (w *Workflow) AddDocuments(ctx context.Context, data json.RawMessage) (Snapshot, error) {
	w.mu.Lock()
	if _, err := w.profile.MergeSection(ctx, types.SectionDocuments, data); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}
	w.touchLocked()
	w.mu.Unlock()

	return w.saved(ctx), nil
}

func (w *Workflow) submitStep(ctx context.Context, from, to State, section types.Section, data json.RawMessage) (Snapshot, error) {
	w.mu.Lock()
	if w.state != from {
		state := w.state
		w.mu.Unlock()
		return Snapshot{}, &InvalidTransitionError{From: state, Action: "submit " + string(section)}
	}
	if _, err := w.profile.MergeSection(ctx, section, data); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}
	w.transitionLocked(to)
	w.mu.Unlock()

	return w.saved(ctx), nil
}

// SubmitFinancials merges the financials section, scores the profile and
// moves to the results step. It may be called again from any later step;
// the newest submission wins and older ones return ErrSuperseded. On a
// scoring error the workflow returns to the financials step.
func (w *Workflow) SubmitFinancials(ctx context.Context, data json.RawMessage) (Snapshot, error) {
	w.mu.Lock()
	switch w.state {
	case StateFinancials, StateScoring, StateResults, StateDashboard:
	default:
		state := w.state
		w.mu.Unlock()
		return Snapshot{}, &InvalidTransitionError{From: state, Action: "submit financials"}
	}
	if _, err := w.profile.MergeSection(ctx, types.SectionFinancials, data); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}

	w.scoreSeq++
	seq := w.scoreSeq
	// Insights for an older score are no longer wanted
	w.insightsSeq++
	w.score = nil
	w.insights = nil
	w.insightsStatus = InsightsIdle
	w.scoreErr = ""
	w.transitionLocked(StateScoring)
	current := w.profile.Get()
	w.mu.Unlock()

	w.save(ctx)

	result, err := w.deps.Scorer.Score(ctx, current)

	w.mu.Lock()
	if seq != w.scoreSeq {
		w.mu.Unlock()
		w.logger.Debug("discarding superseded score", zap.Uint64("seq", seq))
		return Snapshot{}, ErrSuperseded
	}
	if err != nil {
		w.scoreErr = ScoreErrorMessage
		w.transitionLocked(StateFinancials)
		w.mu.Unlock()
		w.logger.Warn("scoring failed", zap.Error(err))
		w.save(ctx)
		return w.Snapshot(), err
	}
	w.score = result
	w.transitionLocked(StateResults)
	w.mu.Unlock()

	w.recordScore(result)
	return w.saved(ctx), nil
}

// Continue moves from results to the dashboard and starts computing insights
// in the background. From the dashboard it recomputes them.
func (w *Workflow) Continue(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	switch w.state {
	case StateResults:
		w.transitionLocked(StateDashboard)
	case StateDashboard:
	default:
		state := w.state
		w.mu.Unlock()
		return Snapshot{}, &InvalidTransitionError{From: state, Action: "continue"}
	}
	w.startInsightsLocked()
	w.mu.Unlock()

	return w.saved(ctx), nil
}

// AwaitInsights blocks until the current insights request settles or ctx is done.
func (w *Workflow) AwaitInsights(ctx context.Context) (Snapshot, error) {
	for {
		w.mu.Lock()
		if w.insightsStatus != InsightsLoading {
			snap := w.snapshotLocked()
			w.mu.Unlock()
			return snap, nil
		}
		done := w.insightsDone
		w.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
}

// Snapshot returns a copy of the current workflow.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// ChatContext returns the profile and score the assistant should use.
func (w *Workflow) ChatContext() (types.ApplicantProfile, *types.ScoreResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.profile.Get(), w.score
}

// SetRestoreError records a failed profile restore for the banner.
func (w *Workflow) SetRestoreError(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	w.restoreErr = RestoreErrorMessage
	w.mu.Unlock()
}

// Close stops background work and waits for it and for pending saves.
func (w *Workflow) Close() {
	w.cancel()
	w.bg.Wait()
	w.profile.Flush()
}

func (w *Workflow) startInsightsLocked() {
	w.insightsSeq++
	seq := w.insightsSeq
	done := make(chan struct{})
	w.insightsDone = done
	w.insights = nil
	w.insightsStatus = InsightsLoading
	current := w.profile.Get()
	score := w.score

	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		defer close(done)
		w.loadInsights(seq, current, score)
	}()
}

func (w *Workflow) loadInsights(seq uint64, current types.ApplicantProfile, score *types.ScoreResult) {
	bundle, status := types.FallbackInsights(), InsightsFallback
	if w.deps.Insights != nil {
		result, err := w.deps.Insights.ComputeInsights(w.ctx, current, score)
		if err != nil {
			w.logger.Warn("insights failed, using fallback", zap.Error(err))
		} else {
			bundle, status = result, InsightsReady
		}
	}

	w.mu.Lock()
	if seq != w.insightsSeq {
		w.mu.Unlock()
		w.logger.Debug("dropping stale insights", zap.Uint64("seq", seq))
		return
	}
	w.insights = bundle
	w.insightsStatus = status
	w.touchLocked()
	w.mu.Unlock()

	w.save(w.ctx)
}

func (w *Workflow) recordScore(score *types.ScoreResult) {
	if w.deps.Scores == nil {
		return
	}
	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), profile.DefaultPersistTimeout)
		defer cancel()
		if err := w.deps.Scores.SaveScore(ctx, w.identity, score); err != nil {
			observability.PersistenceFailures.WithLabelValues("score").Inc()
			w.logger.Warn("score history save failed", zap.Error(err))
		}
	}()
}

func (w *Workflow) transitionLocked(to State) {
	if w.state != to {
		observability.WorkflowTransitions.WithLabelValues(string(w.state), string(to)).Inc()
		w.logger.Debug("transition", zap.String("from", string(w.state)), zap.String("to", string(to)))
	}
	w.state = to
	w.touchLocked()
}

func (w *Workflow) touchLocked() {
	w.updatedAt = time.Now()
}

func (w *Workflow) snapshotLocked() Snapshot {
	return Snapshot{
		Identity:       w.identity,
		State:          w.state,
		Profile:        w.profile.Get(),
		Score:          w.score,
		InsightsStatus: w.insightsStatus,
		Insights:       w.insights,
		RestoreError:   w.restoreErr,
		ScoreError:     w.scoreErr,
		UpdatedAt:      w.updatedAt,
	}
}

// saved stores the latest snapshot and returns it.
func (w *Workflow) saved(ctx context.Context) Snapshot {
	w.save(ctx)
	return w.Snapshot()
}

// save writes the latest snapshot to the session store. Failures are logged.
func (w *Workflow) save(ctx context.Context) {
	if w.deps.Sessions == nil {
		return
	}

	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := w.deps.Sessions.Save(ctx, w.Snapshot()); err != nil {
		observability.PersistenceFailures.WithLabelValues("session").Inc()
		w.logger.Warn("session save failed", zap.Error(err))
	}
}

// resume restores the non-profile parts of a saved snapshot. A snapshot
// saved mid-scoring resumes at financials; one saved while insights were
// loading restarts them.
func (w *Workflow) resume(snap *Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !snap.State.Valid() {
		return
	}
	w.state = snap.State
	w.score = snap.Score
	w.insights = snap.Insights
	w.insightsStatus = snap.InsightsStatus
	w.scoreErr = snap.ScoreError
	w.updatedAt = snap.UpdatedAt

	switch {
	case w.state == StateScoring:
		w.state = StateFinancials
	case (w.state == StateResults || w.state == StateDashboard) && w.score == nil:
		w.state = StateFinancials
	}
	if w.insightsStatus == "" {
		w.insightsStatus = InsightsIdle
	}
	if w.state == StateDashboard && w.insightsStatus == InsightsLoading {
		w.startInsightsLocked()
	} else if w.state != StateDashboard {
		w.insights = nil
		w.insightsStatus = InsightsIdle
	}
}
