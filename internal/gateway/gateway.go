// Package gateway turns an applicant profile into model prompts and turns
// model replies back into validated, clamped domain values.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/yecs/internal/llm"
	"github.com/jonathan/yecs/internal/observability"
	"github.com/jonathan/yecs/internal/prompts"
	"github.com/jonathan/yecs/internal/types"
	"go.uber.org/zap"
)

// Operation names. They double as prompt keys and metric labels.
const (
	OpComputeScore    = "compute-score"
	OpComputeInsights = "compute-insights"
	OpChat            = "chat"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 30 * time.Second

// Gateway calls the generative model for scores, insights and chat replies.
// It holds no per-applicant state and is safe for concurrent use.
type Gateway struct {
	client  llm.Client
	logger  *zap.Logger
	timeout time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// New creates a Gateway around client.
func New(client llm.Client, logger *zap.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		client:  client,
		logger:  logger.Named("gateway"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ComputeScore asks the model for a YECS with component scores.
func (g *Gateway) ComputeScore(ctx context.Context, profile types.ApplicantProfile) (*types.ScoreResult, error) {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}

	prompt, err := prompts.Render(prompts.YECSFile, OpComputeScore, map[string]string{
		"Rubric":  rubricText(),
		"Profile": string(profileJSON),
	})
	if err != nil {
		return nil, err
	}

	started := time.Now()
	raw, err := g.call(ctx, OpComputeScore, func(ctx context.Context) (string, error) {
		return g.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	})
	if err != nil {
		observability.ObserveModelCall(OpComputeScore, observability.OutcomeUnavailable, started)
		return nil, err
	}

	result, err := parseScore(raw)
	if err != nil {
		observability.ObserveModelCall(OpComputeScore, observability.OutcomeBadResponse, started)
		g.logResponseError(OpComputeScore, raw, err)
		return nil, llm.WithOp(err, OpComputeScore)
	}

	observability.ObserveModelCall(OpComputeScore, observability.OutcomeSuccess, started)
	g.logger.Debug("model score",
		zap.Int("yecs_score", result.YECSScore),
		zap.String("risk_level", string(result.RiskLevel)),
		zap.Duration("duration", time.Since(started)))
	return result, nil
}

// ComputeInsights asks the model for loan recommendations and credit
// improvements. The bundle always has exactly LoanRecommendationCount loans
// and CreditImprovementCount improvements.
func (g *Gateway) ComputeInsights(ctx context.Context, profile types.ApplicantProfile, score *types.ScoreResult) (*types.InsightsBundle, error) {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}

	prompt, err := prompts.Render(prompts.YECSFile, OpComputeInsights, map[string]string{
		"LoanCount":        fmt.Sprint(types.LoanRecommendationCount),
		"ImprovementCount": fmt.Sprint(types.CreditImprovementCount),
		"Profile":          string(profileJSON),
		"Score":            scoreText(score),
	})
	if err != nil {
		return nil, err
	}

	started := time.Now()
	raw, err := g.call(ctx, OpComputeInsights, func(ctx context.Context) (string, error) {
		return g.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	})
	if err != nil {
		observability.ObserveModelCall(OpComputeInsights, observability.OutcomeUnavailable, started)
		return nil, err
	}

	bundle, err := parseInsights(raw)
	if err != nil {
		observability.ObserveModelCall(OpComputeInsights, observability.OutcomeBadResponse, started)
		g.logResponseError(OpComputeInsights, raw, err)
		return nil, llm.WithOp(err, OpComputeInsights)
	}

	observability.ObserveModelCall(OpComputeInsights, observability.OutcomeSuccess, started)
	return bundle, nil
}

// Chat answers one user message with the profile and score as context.
// history is accepted for the caller's bookkeeping; only the latest message
// is sent to the model.
func (g *Gateway) Chat(ctx context.Context, profile types.ApplicantProfile, score *types.ScoreResult, history []types.ChatMessage, message string) (string, error) {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("failed to encode profile: %w", err)
	}

	prompt, err := prompts.Render(prompts.YECSFile, OpChat, map[string]string{
		"Profile": string(profileJSON),
		"Score":   scoreText(score),
		"Message": message,
	})
	if err != nil {
		return "", err
	}

	started := time.Now()
	reply, err := g.call(ctx, OpChat, func(ctx context.Context) (string, error) {
		return g.client.GenerateContent(ctx, prompt, llm.TierLite)
	})
	if err != nil {
		observability.ObserveModelCall(OpChat, observability.OutcomeUnavailable, started)
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		observability.ObserveModelCall(OpChat, observability.OutcomeBadResponse, started)
		return "", &llm.ModelResponseError{Op: OpChat, Message: "empty reply"}
	}

	observability.ObserveModelCall(OpChat, observability.OutcomeSuccess, started)
	g.logger.Debug("chat reply",
		zap.Int("history", len(history)),
		zap.Int("reply_len", len(reply)),
		zap.Duration("duration", time.Since(started)))
	return reply, nil
}

// call runs fn under the gateway timeout and normalizes its error to a model error.
func (g *Gateway) call(ctx context.Context, op string, fn func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := fn(callCtx)
	if err == nil && callCtx.Err() != nil {
		// The client ignored the deadline
		err = callCtx.Err()
	}
	if err != nil {
		if !llm.IsModelError(err) {
			err = &llm.ModelUnavailableError{Cause: err}
		}
		err = llm.WithOp(err, op)
		g.logger.Warn("model call failed", zap.String("operation", op), zap.Error(err))
		return "", err
	}
	return text, nil
}

func (g *Gateway) logResponseError(op, raw string, err error) {
	g.logger.Warn("invalid model response",
		zap.String("operation", op),
		zap.String("raw", raw),
		zap.Error(err))
}

func rubricText() string {
	var sb strings.Builder
	for _, c := range types.Rubric() {
		sb.WriteString(fmt.Sprintf("- %s: %d%%\n", c.Name, c.Weight))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func scoreText(score *types.ScoreResult) string {
	if score == nil {
		return "not yet computed"
	}
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Sprintf(`{"yecs_score": %d}`, score.YECSScore)
	}
	return string(data)
}
