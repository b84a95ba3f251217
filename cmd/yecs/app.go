package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/yecs/internal/assistant"
	"github.com/jonathan/yecs/internal/config"
	"github.com/jonathan/yecs/internal/db"
	"github.com/jonathan/yecs/internal/gateway"
	"github.com/jonathan/yecs/internal/llm"
	"github.com/jonathan/yecs/internal/scoring"
	"github.com/jonathan/yecs/internal/server"
	"github.com/jonathan/yecs/internal/server/ratelimit"
	"github.com/jonathan/yecs/internal/workflow"
	"go.uber.org/zap"
)

// app holds the wired collaborators of the service.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	client    llm.Client // nil without an API key
	gateway   *gateway.Gateway
	heuristic *scoring.Heuristic
	strategy  scoring.Strategy
	store     db.Store
	sessions  workflow.SessionStore
	registry  *workflow.Registry
}

// newModel connects to the generative model, or returns nils when no API key is set.
func newModel(ctx context.Context, cfg *config.Config, logger *zap.Logger) (llm.Client, *gateway.Gateway, error) {
	if !cfg.HasModel() {
		return nil, nil, nil
	}
	llmCfg := llm.DefaultConfig()
	if cfg.GeminiModel != "" {
		llmCfg = llmCfg.WithModel(llm.TierStandard, cfg.GeminiModel)
	}
	client, err := llm.NewClient(ctx, llmCfg, cfg.GeminiAPIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create model client: %w", err)
	}
	return client, gateway.New(client, logger, gateway.WithTimeout(cfg.ModelTimeout)), nil
}

// newApp opens the stores and wires the workflow registry. Close releases
// what it opened.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, heuristic: scoring.NewHeuristic(nil)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.client, a.gateway, err = newModel(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Interfaces must stay nil, not hold a nil *Gateway
	var (
		model    scoring.ModelScorer
		insights workflow.InsightsSource
		chat     assistant.ChatModel
	)
	if a.gateway != nil {
		model, insights, chat = a.gateway, a.gateway, a.gateway
	}

	a.strategy, err = scoring.NewStrategy(cfg.ScoringStrategy, model, a.heuristic, logger)
	if err != nil {
		return nil, err
	}

	a.store, err = db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.RedisURL != "" {
		client, err := workflow.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.sessions = workflow.NewRedisSessionStore(client, workflow.DefaultSessionTTL)
	} else {
		a.sessions = workflow.NewMemorySessionStore()
	}

	a.registry = workflow.NewRegistry(workflow.Deps{
		Scorer:   a.strategy,
		Insights: insights,
		Scores:   a.store,
		Sessions: a.sessions,
		Logger:   logger,
	}, a.store, chat, workflow.WithIdleTTL(workflow.DefaultSessionTTL))

	logger.Info("service wired",
		zap.String("strategy", a.strategy.Name()),
		zap.Bool("model", a.gateway != nil),
		zap.Bool("redis", cfg.RedisURL != ""),
	)
	return a, nil
}

// serverDeps returns the HTTP server's collaborators.
func (a *app) serverDeps() server.Deps {
	deps := server.Deps{
		Heuristic: a.heuristic,
		Store:     a.store,
		Registry:  a.registry,
		Sessions:  a.sessions,
		Tokens:    server.NewTokenService(a.cfg.Session),
		Limiter:   ratelimit.NewLimiter(ratelimit.LoadConfig()),
		Logger:    a.logger,
	}
	if a.gateway != nil {
		deps.Model = a.gateway
	}
	return deps
}

// Close releases the model client and stores. The server's Shutdown closes
// the stores itself, so Close is only needed when the server never ran.
func (a *app) Close() error {
	var errs []error
	if a.registry != nil {
		a.registry.Close()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.sessions != nil {
		errs = append(errs, a.sessions.Close())
	}
	if err := a.closeModel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *app) closeModel() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}
