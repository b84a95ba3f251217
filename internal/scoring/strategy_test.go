package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/jonathan/yecs/internal/llm"
	"github.com/jonathan/yecs/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockScorer struct {
	result *types.ScoreResult
	err    error
	calls  int
}

func (m *mockScorer) ComputeScore(_ context.Context, _ types.ApplicantProfile) (*types.ScoreResult, error) {
	m.calls++
	return m.result, m.err
}

var modelResult = &types.ScoreResult{YECSScore: 710, RiskLevel: types.RiskLow, Source: types.SourceModel}

func TestParseStrategy(t *testing.T) {
	name, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyModelFallback, name)

	name, err = ParseStrategy(" Heuristic ")
	require.NoError(t, err)
	assert.Equal(t, StrategyHeuristic, name)

	_, err = ParseStrategy("coin-flip")
	assert.Error(t, err)
}

func TestHeuristicStrategy_NeverCallsModel(t *testing.T) {
	model := &mockScorer{result: modelResult}
	s, err := NewStrategy(StrategyHeuristic, model, NewHeuristic(fixedJitter(0)), zaptest.NewLogger(t))
	require.NoError(t, err)

	result, err := s.Score(context.Background(), strongProfile())
	require.NoError(t, err)
	assert.Equal(t, types.SourceHeuristic, result.Source)
	assert.Equal(t, 0, model.calls)
}

func TestModelStrategy_SurfacesError(t *testing.T) {
	model := &mockScorer{err: &llm.ModelUnavailableError{Cause: errors.New("503")}}
	s, err := NewStrategy(StrategyModel, model, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, StrategyModel, s.Name())

	_, err = s.Score(context.Background(), strongProfile())
	assert.True(t, llm.IsModelError(err))
}

func TestModelStrategy_RequiresModel(t *testing.T) {
	_, err := NewStrategy(StrategyModel, nil, nil, nil)
	assert.Error(t, err)
}

func TestFallbackStrategy_UsesModel(t *testing.T) {
	s, err := NewStrategy("", &mockScorer{result: modelResult}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, StrategyModelFallback, s.Name())

	result, err := s.Score(context.Background(), strongProfile())
	require.NoError(t, err)
	assert.Same(t, modelResult, result)
}

func TestFallbackStrategy_FallsBackOnModelError(t *testing.T) {
	model := &mockScorer{err: &llm.ModelResponseError{Message: "invalid JSON"}}
	s, err := NewStrategy(StrategyModelFallback, model, NewHeuristic(fixedJitter(10)), zaptest.NewLogger(t))
	require.NoError(t, err)

	result, err := s.Score(context.Background(), strongProfile())
	require.NoError(t, err)
	assert.Equal(t, types.SourceHeuristic, result.Source)
	assert.Equal(t, 535, result.Score())
	assert.Equal(t, 1, model.calls)
}

func TestFallbackStrategy_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &mockScorer{err: &llm.ModelUnavailableError{Cause: context.Canceled}}
	s := &FallbackStrategy{Model: model, Heuristic: NewHeuristic(nil)}

	_, err := s.Score(ctx, strongProfile())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallbackStrategy_WithoutModelDegrades(t *testing.T) {
	s, err := NewStrategy(StrategyModelFallback, nil, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, StrategyHeuristic, s.Name())
}
