package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/yecs/internal/observability"
	"github.com/jonathan/yecs/internal/types"
	"go.uber.org/zap"
)

// Strategy names accepted by ParseStrategy.
const (
	StrategyHeuristic     = "heuristic"
	StrategyModel         = "model"
	StrategyModelFallback = "model-fallback"
)

// Strategy produces a score for a complete profile.
type Strategy interface {
	Name() string
	Score(ctx context.Context, profile types.ApplicantProfile) (*types.ScoreResult, error)
}

// ModelScorer is the part of the model gateway used for scoring.
type ModelScorer interface {
	ComputeScore(ctx context.Context, profile types.ApplicantProfile) (*types.ScoreResult, error)
}

// HeuristicStrategy never calls the model.
type HeuristicStrategy struct {
	Heuristic *Heuristic
}

// Name implements Strategy.
func (s *HeuristicStrategy) Name() string { return StrategyHeuristic }

// Score implements Strategy.
func (s *HeuristicStrategy) Score(_ context.Context, profile types.ApplicantProfile) (*types.ScoreResult, error) {
	result := s.Heuristic.Result(profile)
	observability.ScoresProduced.WithLabelValues(string(result.Source)).Inc()
	return result, nil
}

// ModelStrategy returns the model's score or its error.
type ModelStrategy struct {
	Model ModelScorer
}

// Name implements Strategy.
func (s *ModelStrategy) Name() string { return StrategyModel }

// Score implements Strategy.
func (s *ModelStrategy) Score(ctx context.Context, profile types.ApplicantProfile) (*types.ScoreResult, error) {
	result, err := s.Model.ComputeScore(ctx, profile)
	if err != nil {
		return nil, err
	}
	observability.ScoresProduced.WithLabelValues(string(result.Source)).Inc()
	return result, nil
}

// FallbackStrategy asks the model and falls back to the heuristic on any
// model failure. It only fails if ctx is done.
type FallbackStrategy struct {
	Model     ModelScorer
	Heuristic *Heuristic
	Logger    *zap.Logger
}

// Name implements Strategy.
func (s *FallbackStrategy) Name() string { return StrategyModelFallback }

// Score implements Strategy.
func (s *FallbackStrategy) Score(ctx context.Context, profile types.ApplicantProfile) (*types.ScoreResult, error) {
	result, err := s.Model.ComputeScore(ctx, profile)
	if err == nil {
		observability.ScoresProduced.WithLabelValues(string(result.Source)).Inc()
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if s.Logger != nil {
		s.Logger.Warn("model scoring failed, using heuristic", zap.Error(err))
	}
	observability.ScoringFallbacks.Inc()
	result = s.Heuristic.Result(profile)
	observability.ScoresProduced.WithLabelValues(string(result.Source)).Inc()
	return result, nil
}

// ParseStrategy validates a strategy name. Empty selects StrategyModelFallback.
func ParseStrategy(name string) (string, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "":
		return StrategyModelFallback, nil
	case StrategyHeuristic, StrategyModel, StrategyModelFallback:
		return n, nil
	default:
		return "", fmt.Errorf("unknown scoring strategy %q (want %s, %s or %s)",
			name, StrategyHeuristic, StrategyModel, StrategyModelFallback)
	}
}

// NewStrategy builds the named strategy. model may be nil when no model is
// configured: model-fallback then degrades to the heuristic, and model is an error.
func NewStrategy(name string, model ModelScorer, heuristic *Heuristic, logger *zap.Logger) (Strategy, error) {
	name, err := ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	if heuristic == nil {
		heuristic = NewHeuristic(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch name {
	case StrategyModel:
		if model == nil {
			return nil, fmt.Errorf("scoring strategy %q requires a model; set GEMINI_API_KEY", name)
		}
		return &ModelStrategy{Model: model}, nil
	case StrategyModelFallback:
		if model == nil {
			logger.Warn("no model configured, scoring with the heuristic only")
			return &HeuristicStrategy{Heuristic: heuristic}, nil
		}
		return &FallbackStrategy{Model: model, Heuristic: heuristic, Logger: logger}, nil
	default:
		return &HeuristicStrategy{Heuristic: heuristic}, nil
	}
}
