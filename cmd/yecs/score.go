package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/jonathan/yecs/internal/config"
	"github.com/jonathan/yecs/internal/observability"
	"github.com/jonathan/yecs/internal/scoring"
	"github.com/jonathan/yecs/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type scoreOptions struct {
	seed      int64
	strategy  string
	breakdown bool
	insights  bool
	asJSON    bool
}

func newScoreCmd() *cobra.Command {
	var opts scoreOptions

	cmd := &cobra.Command{
		Use:   "score <profile.json>",
		Short: "Score an applicant profile from a JSON file",
		Long: `Score an applicant profile offline. The heuristic is used by default;
--strategy model or model-fallback calls the generative model when GEMINI_API_KEY is set.
Use "-" to read the profile from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applicant, err := readProfile(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return runScore(cmd.Context(), cmd.OutOrStdout(), applicant, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Seed for the score jitter (0 uses the clock)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", scoring.StrategyHeuristic, "Scoring strategy: heuristic, model or model-fallback")
	cmd.Flags().BoolVar(&opts.breakdown, "breakdown", false, "Use the component breakdown heuristic")
	cmd.Flags().BoolVar(&opts.insights, "insights", false, "Also print dashboard insights")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print JSON instead of boxes")
	return cmd
}

func readProfile(stdin io.Reader, path string) (types.ApplicantProfile, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return types.ApplicantProfile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	applicant := types.NewApplicantProfile()
	if err := json.Unmarshal(data, &applicant); err != nil {
		return types.ApplicantProfile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	return applicant, nil
}

func runScore(ctx context.Context, out io.Writer, applicant types.ApplicantProfile, opts scoreOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var jitter scoring.Jitter
	if opts.seed != 0 {
		jitter = rand.New(rand.NewSource(opts.seed))
	}
	heuristic := scoring.NewHeuristic(jitter)

	var result *types.ScoreResult
	var bundle *types.InsightsBundle

	if opts.breakdown {
		result = heuristic.Breakdown(applicant)
	} else {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		if opts.strategy == scoring.StrategyHeuristic {
			// Never dial the model for a heuristic score
			cfg.GeminiAPIKey = ""
		}
		client, gw, err := newModel(ctx, cfg, zap.NewNop())
		if err != nil {
			return err
		}
		if client != nil {
			defer client.Close() //nolint:errcheck
		}

		var model scoring.ModelScorer
		if gw != nil {
			model = gw
		}
		strategy, err := scoring.NewStrategy(opts.strategy, model, heuristic, zap.NewNop())
		if err != nil {
			return err
		}
		if result, err = strategy.Score(ctx, applicant); err != nil {
			return fmt.Errorf("scoring failed: %w", err)
		}

		if opts.insights {
			bundle = types.FallbackInsights()
			if gw != nil {
				if b, err := gw.ComputeInsights(ctx, applicant, result); err == nil {
					bundle = b
				}
			}
		}
	}
	if opts.insights && bundle == nil {
		bundle = types.FallbackInsights()
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if bundle != nil {
			return enc.Encode(map[string]any{"score": result, "insights": bundle})
		}
		return enc.Encode(result)
	}

	printer := observability.NewPrinter(out)
	printer.PrintProfile(&applicant)
	printer.PrintScore(result)
	printer.PrintInsights(bundle)
	return nil
}
