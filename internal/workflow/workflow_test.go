package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/yecs/internal/llm"
	"github.com/jonathan/yecs/internal/profile"
	"github.com/jonathan/yecs/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockScorer struct {
	ScoreFunc func(ctx context.Context, p types.ApplicantProfile) (*types.ScoreResult, error)
}

func (m *mockScorer) Score(ctx context.Context, p types.ApplicantProfile) (*types.ScoreResult, error) {
	if m.ScoreFunc != nil {
		return m.ScoreFunc(ctx, p)
	}
	return &types.ScoreResult{YECSScore: 650, RiskLevel: types.RiskMedium, Source: types.SourceHeuristic}, nil
}

type mockInsights struct {
	InsightsFunc func(ctx context.Context, p types.ApplicantProfile, s *types.ScoreResult) (*types.InsightsBundle, error)
}

func (m *mockInsights) ComputeInsights(ctx context.Context, p types.ApplicantProfile, s *types.ScoreResult) (*types.InsightsBundle, error) {
	if m.InsightsFunc != nil {
		return m.InsightsFunc(ctx, p, s)
	}
	return &types.InsightsBundle{MarketAlert: "model alert"}, nil
}

type recordingScores struct {
	mu     sync.Mutex
	scores []*types.ScoreResult
}

func (r *recordingScores) SaveScore(_ context.Context, _ string, s *types.ScoreResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = append(r.scores, s)
	return nil
}

func newWorkflow(t *testing.T, deps Deps) *Workflow {
	t.Helper()
	if deps.Scorer == nil {
		deps.Scorer = &mockScorer{}
	}
	deps.Logger = zaptest.NewLogger(t)
	w := New("user-1", profile.New("user-1", nil, deps.Logger), deps)
	t.Cleanup(w.Close)
	return w
}

var (
	personalJSON   = json.RawMessage(`{"firstName": "Maya", "email": "maya@example.com", "age": 24}`)
	businessJSON   = json.RawMessage(`{"businessName": "Maya's Bakery", "industry": "Food", "businessStage": "MVP Ready"}`)
	financialsJSON = json.RawMessage(`{"monthlyIncome": "4000", "monthlyExpenses": "3000"}`)
)

// toFinancials walks a workflow to the financials step.
func toFinancials(t *testing.T, w *Workflow) {
	t.Helper()
	ctx := context.Background()
	_, err := w.SubmitPersonal(ctx, personalJSON)
	require.NoError(t, err)
	_, err = w.SubmitBusiness(ctx, businessJSON)
	require.NoError(t, err)
}

func TestWorkflow_HappyPath(t *testing.T) {
	scores := &recordingScores{}
	w := newWorkflow(t, Deps{Insights: &mockInsights{}, Scores: scores})
	ctx := context.Background()

	assert.Equal(t, StatePersonal, w.Snapshot().State)

	snap, err := w.SubmitPersonal(ctx, personalJSON)
	require.NoError(t, err)
	assert.Equal(t, StateBusiness, snap.State)
	assert.Equal(t, "Maya", snap.Profile.Personal.FirstName)

	snap, err = w.SubmitBusiness(ctx, businessJSON)
	require.NoError(t, err)
	assert.Equal(t, StateFinancials, snap.State)

	snap, err = w.SubmitFinancials(ctx, financialsJSON)
	require.NoError(t, err)
	assert.Equal(t, StateResults, snap.State)
	require.NotNil(t, snap.Score)
	assert.Equal(t, 650, snap.Score.Score())
	assert.Equal(t, types.Amount(4000), snap.Profile.Financials.MonthlyIncome)

	snap, err = w.Continue(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateDashboard, snap.State)

	snap, err = w.AwaitInsights(ctx)
	require.NoError(t, err)
	assert.Equal(t, InsightsReady, snap.InsightsStatus)
	assert.Equal(t, "model alert", snap.Insights.MarketAlert)

	w.Close()
	assert.Len(t, scores.scores, 1)
}

func TestWorkflow_OutOfOrderSubmissions(t *testing.T) {
	w := newWorkflow(t, Deps{})
	ctx := context.Background()

	_, err := w.SubmitBusiness(ctx, businessJSON)
	var transitionErr *InvalidTransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, StatePersonal, transitionErr.From)

	_, err = w.SubmitFinancials(ctx, financialsJSON)
	assert.True(t, errors.As(err, &transitionErr))

	_, err = w.Continue(ctx)
	assert.True(t, errors.As(err, &transitionErr))

	// No backward navigation
	toFinancials(t, w)
	_, err = w.SubmitPersonal(ctx, personalJSON)
	assert.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, StateFinancials, w.Snapshot().State)

	// Rejected submissions leave the profile alone
	assert.Empty(t, w.Snapshot().Profile.Financials)
}

func TestWorkflow_InvalidSectionData(t *testing.T) {
	w := newWorkflow(t, Deps{})

	_, err := w.SubmitPersonal(context.Background(), json.RawMessage(`["not an object"]`))
	assert.Error(t, err)
	assert.Equal(t, StatePersonal, w.Snapshot().State)
}

func TestWorkflow_ScoringFailureReturnsToFinancials(t *testing.T) {
	w := newWorkflow(t, Deps{Scorer: &mockScorer{
		ScoreFunc: func(context.Context, types.ApplicantProfile) (*types.ScoreResult, error) {
			return nil, &llm.ModelUnavailableError{Cause: errors.New("503")}
		},
	}})
	toFinancials(t, w)

	snap, err := w.SubmitFinancials(context.Background(), financialsJSON)
	require.Error(t, err)
	assert.True(t, llm.IsModelError(err))
	assert.Equal(t, StateFinancials, snap.State)
	assert.Equal(t, ScoreErrorMessage, snap.ScoreError)
	assert.Nil(t, snap.Score)
	// The submitted data is kept for the retry
	assert.Equal(t, types.Amount(4000), snap.Profile.Financials.MonthlyIncome)
}

func TestWorkflow_ScoringStateIsVisible(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	w := newWorkflow(t, Deps{Scorer: &mockScorer{
		ScoreFunc: func(context.Context, types.ApplicantProfile) (*types.ScoreResult, error) {
			close(entered)
			<-release
			return &types.ScoreResult{YECSScore: 700, Source: types.SourceModel}, nil
		},
	}})
	toFinancials(t, w)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := w.SubmitFinancials(context.Background(), financialsJSON)
		assert.NoError(t, err)
	}()

	<-entered
	assert.Equal(t, StateScoring, w.Snapshot().State)

	_, err := w.Continue(context.Background())
	var transitionErr *InvalidTransitionError
	assert.True(t, errors.As(err, &transitionErr))

	close(release)
	<-done
	assert.Equal(t, StateResults, w.Snapshot().State)
}

func TestWorkflow_RapidResubmissionLastWriterWins(t *testing.T) {
	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})

	var mu sync.Mutex
	calls := 0
	w := newWorkflow(t, Deps{Scorer: &mockScorer{
		ScoreFunc: func(_ context.Context, p types.ApplicantProfile) (*types.ScoreResult, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()

			if n == 1 {
				close(firstEntered)
				<-releaseFirst
				return &types.ScoreResult{YECSScore: 500, Source: types.SourceModel}, nil
			}
			return &types.ScoreResult{YECSScore: 720, Source: types.SourceModel}, nil
		},
	}})
	toFinancials(t, w)
	ctx := context.Background()

	firstErr := make(chan error, 1)
	go func() {
		_, err := w.SubmitFinancials(ctx, json.RawMessage(`{"monthlyIncome": 1000}`))
		firstErr <- err
	}()
	<-firstEntered

	snap, err := w.SubmitFinancials(ctx, json.RawMessage(`{"monthlyIncome": 9000}`))
	require.NoError(t, err)
	assert.Equal(t, 720, snap.Score.Score())

	close(releaseFirst)
	assert.ErrorIs(t, <-firstErr, ErrSuperseded)

	final := w.Snapshot()
	assert.Equal(t, StateResults, final.State)
	assert.Equal(t, 720, final.Score.Score())
	assert.Equal(t, types.Amount(9000), final.Profile.Financials.MonthlyIncome)
}

func TestWorkflow_ResubmitFromDashboardDropsInsights(t *testing.T) {
	release := make(chan struct{})
	w := newWorkflow(t, Deps{Insights: &mockInsights{
		InsightsFunc: func(ctx context.Context, _ types.ApplicantProfile, _ *types.ScoreResult) (*types.InsightsBundle, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return &types.InsightsBundle{MarketAlert: "stale"}, nil
		},
	}})
	toFinancials(t, w)
	ctx := context.Background()

	_, err := w.SubmitFinancials(ctx, financialsJSON)
	require.NoError(t, err)
	snap, err := w.Continue(ctx)
	require.NoError(t, err)
	assert.Equal(t, InsightsLoading, snap.InsightsStatus)

	snap, err = w.SubmitFinancials(ctx, financialsJSON)
	require.NoError(t, err)
	assert.Equal(t, StateResults, snap.State)
	assert.Equal(t, InsightsIdle, snap.InsightsStatus)

	close(release)
	w.Close()

	snap = w.Snapshot()
	assert.Nil(t, snap.Insights)
	assert.Equal(t, InsightsIdle, snap.InsightsStatus)
}

func TestWorkflow_InsightsFallback(t *testing.T) {
	w := newWorkflow(t, Deps{Insights: &mockInsights{
		InsightsFunc: func(context.Context, types.ApplicantProfile, *types.ScoreResult) (*types.InsightsBundle, error) {
			return nil, &llm.ModelResponseError{Message: "invalid JSON"}
		},
	}})
	toFinancials(t, w)
	ctx := context.Background()

	_, err := w.SubmitFinancials(ctx, financialsJSON)
	require.NoError(t, err)
	_, err = w.Continue(ctx)
	require.NoError(t, err)

	snap, err := w.AwaitInsights(ctx)
	require.NoError(t, err)
	assert.Equal(t, InsightsFallback, snap.InsightsStatus)
	assert.Equal(t, types.FallbackInsights(), snap.Insights)
}

func TestWorkflow_NoInsightsSourceUsesFallback(t *testing.T) {
	w := newWorkflow(t, Deps{})
	toFinancials(t, w)
	ctx := context.Background()

	_, err := w.SubmitFinancials(ctx, financialsJSON)
	require.NoError(t, err)
	_, err = w.Continue(ctx)
	require.NoError(t, err)

	snap, err := w.AwaitInsights(ctx)
	require.NoError(t, err)
	assert.Equal(t, InsightsFallback, snap.InsightsStatus)
}

func TestWorkflow_RefreshDropsStaleInsights(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})
	w := newWorkflow(t, Deps{Insights: &mockInsights{
		InsightsFunc: func(context.Context, types.ApplicantProfile, *types.ScoreResult) (*types.InsightsBundle, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				close(firstEntered)
				<-releaseFirst
				return &types.InsightsBundle{MarketAlert: "first"}, nil
			}
			return &types.InsightsBundle{MarketAlert: "second"}, nil
		},
	}})
	toFinancials(t, w)
	ctx := context.Background()

	_, err := w.SubmitFinancials(ctx, financialsJSON)
	require.NoError(t, err)
	_, err = w.Continue(ctx)
	require.NoError(t, err)
	<-firstEntered
	_, err = w.Continue(ctx)
	require.NoError(t, err)

	snap, err := w.AwaitInsights(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", snap.Insights.MarketAlert)

	close(releaseFirst)
	w.Close()
	assert.Equal(t, "second", w.Snapshot().Insights.MarketAlert)
}

func TestWorkflow_AwaitInsightsHonorsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	w := newWorkflow(t, Deps{Insights: &mockInsights{
		InsightsFunc: func(ctx context.Context, _ types.ApplicantProfile, _ *types.ScoreResult) (*types.InsightsBundle, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, errors.New("gone")
		},
	}})
	toFinancials(t, w)

	_, err := w.SubmitFinancials(context.Background(), financialsJSON)
	require.NoError(t, err)
	_, err = w.Continue(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = w.AwaitInsights(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkflow_AwaitInsightsWhenIdle(t *testing.T) {
	w := newWorkflow(t, Deps{})
	snap, err := w.AwaitInsights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, InsightsIdle, snap.InsightsStatus)
}

func TestWorkflow_AddDocumentsAnyStep(t *testing.T) {
	w := newWorkflow(t, Deps{})

	snap, err := w.AddDocuments(context.Background(), json.RawMessage(`[{"name": "plan.pdf", "size": 100}]`))
	require.NoError(t, err)
	assert.Equal(t, StatePersonal, snap.State)
	require.Len(t, snap.Profile.Documents, 1)
}

func TestWorkflow_ChatContext(t *testing.T) {
	w := newWorkflow(t, Deps{})
	toFinancials(t, w)

	p, score := w.ChatContext()
	assert.Equal(t, "Maya's Bakery", p.Business.BusinessName)
	assert.Nil(t, score)

	_, err := w.SubmitFinancials(context.Background(), financialsJSON)
	require.NoError(t, err)
	_, score = w.ChatContext()
	require.NotNil(t, score)
}

func TestWorkflow_SavesSessionSnapshots(t *testing.T) {
	sessions := NewMemorySessionStore()
	w := newWorkflow(t, Deps{Sessions: sessions})
	toFinancials(t, w)

	saved, err := sessions.Load(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, StateFinancials, saved.State)
	assert.Equal(t, "Maya's Bakery", saved.Profile.Business.BusinessName)
}

func TestWorkflow_Resume(t *testing.T) {
	score := &types.ScoreResult{YECSScore: 700, RiskLevel: types.RiskMedium, Source: types.SourceModel}

	tests := []struct {
		name string
		snap Snapshot
		want State
	}{
		{"results", Snapshot{State: StateResults, Score: score}, StateResults},
		{"mid scoring", Snapshot{State: StateScoring}, StateFinancials},
		{"results without score", Snapshot{State: StateResults}, StateFinancials},
		{"business", Snapshot{State: StateBusiness}, StateBusiness},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorkflow(t, Deps{})
			w.resume(&tt.snap)
			assert.Equal(t, tt.want, w.Snapshot().State)
		})
	}
}

func TestWorkflow_ResumeRestartsLoadingInsights(t *testing.T) {
	w := newWorkflow(t, Deps{Insights: &mockInsights{}})
	w.resume(&Snapshot{
		State:          StateDashboard,
		Score:          &types.ScoreResult{YECSScore: 700},
		InsightsStatus: InsightsLoading,
	})

	snap, err := w.AwaitInsights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, InsightsReady, snap.InsightsStatus)
}

func TestWorkflow_RestoreErrorBanner(t *testing.T) {
	w := newWorkflow(t, Deps{})
	w.SetRestoreError(nil)
	assert.Empty(t, w.Snapshot().RestoreError)

	w.SetRestoreError(errors.New("db down"))
	assert.Equal(t, RestoreErrorMessage, w.Snapshot().RestoreError)
}
