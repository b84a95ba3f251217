package gateway

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jonathan/yecs/internal/llm"
	"github.com/jonathan/yecs/internal/schemas"
	"github.com/jonathan/yecs/internal/types"
	rootschemas "github.com/jonathan/yecs/schemas"
)

type scorePayload struct {
	YECSScore       float64            `json:"yecs_score"`
	RiskLevel       string             `json:"risk_level"`
	Reasoning       string             `json:"reasoning"`
	ComponentScores map[string]float64 `json:"component_scores"`
}

// parseScore decodes a scoring reply. yecs_score is clamped to
// [MinScore, MaxScore]; an unknown risk level is derived from the score;
// component scores are limited to the rubric, clamped, and default to zero.
func parseScore(raw string) (*types.ScoreResult, error) {
	cleaned, err := decodeChecked(raw, rootschemas.ScoreResult)
	if err != nil {
		return nil, err
	}

	var payload scorePayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &llm.ModelResponseError{Message: "invalid JSON", Raw: raw, Cause: err}
	}

	score := types.ClampScore(payload.YECSScore)
	risk, ok := types.ParseRiskLevel(payload.RiskLevel)
	if !ok {
		risk = types.RiskLevelFor(score)
	}

	components := make(map[types.ComponentName]int, len(types.Rubric()))
	for _, c := range types.Rubric() {
		components[c.Name] = types.ClampComponent(payload.ComponentScores[string(c.Name)])
	}

	return &types.ScoreResult{
		YECSScore:       score,
		RiskLevel:       risk,
		Reasoning:       strings.TrimSpace(payload.Reasoning),
		ComponentScores: components,
		Source:          types.SourceModel,
	}, nil
}

// text decodes a JSON string or number into a string.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = text(strings.TrimSpace(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*t = text(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	// null and other shapes are treated as absent
	*t = ""
	return nil
}

type insightsPayload struct {
	MarketAlert         text `json:"marketAlert"`
	LoanRecommendations []struct {
		Type   text `json:"type"`
		Rate   text `json:"rate"`
		Amount text `json:"amount"`
		Reason text `json:"reason"`
	} `json:"loanRecommendations"`
	CreditImprovements []struct {
		Title  text `json:"title"`
		Action text `json:"action"`
		Impact text `json:"impact"`
	} `json:"creditImprovements"`
}

// parseInsights decodes an insights reply. Entries without a name are
// dropped, then both lists are truncated or padded from FallbackInsights to
// their fixed counts.
func parseInsights(raw string) (*types.InsightsBundle, error) {
	cleaned, err := decodeChecked(raw, rootschemas.InsightsBundle)
	if err != nil {
		return nil, err
	}

	var payload insightsPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &llm.ModelResponseError{Message: "invalid JSON", Raw: raw, Cause: err}
	}

	fallback := types.FallbackInsights()
	bundle := &types.InsightsBundle{
		MarketAlert:         string(payload.MarketAlert),
		LoanRecommendations: make([]types.LoanRecommendation, 0, types.LoanRecommendationCount),
		CreditImprovements:  make([]types.CreditImprovement, 0, types.CreditImprovementCount),
	}
	if bundle.MarketAlert == "" {
		bundle.MarketAlert = fallback.MarketAlert
	}

	for _, l := range payload.LoanRecommendations {
		if l.Type == "" || len(bundle.LoanRecommendations) == types.LoanRecommendationCount {
			continue
		}
		bundle.LoanRecommendations = append(bundle.LoanRecommendations, types.LoanRecommendation{
			Type:   string(l.Type),
			Rate:   string(l.Rate),
			Amount: string(l.Amount),
			Reason: string(l.Reason),
		})
	}
	for i := len(bundle.LoanRecommendations); i < types.LoanRecommendationCount; i++ {
		bundle.LoanRecommendations = append(bundle.LoanRecommendations, fallback.LoanRecommendations[i])
	}

	for _, c := range payload.CreditImprovements {
		if c.Title == "" || len(bundle.CreditImprovements) == types.CreditImprovementCount {
			continue
		}
		bundle.CreditImprovements = append(bundle.CreditImprovements, types.CreditImprovement{
			Title:  string(c.Title),
			Action: string(c.Action),
			Impact: string(c.Impact),
		})
	}
	for i := len(bundle.CreditImprovements); i < types.CreditImprovementCount; i++ {
		bundle.CreditImprovements = append(bundle.CreditImprovements, fallback.CreditImprovements[i])
	}

	return bundle, nil
}

// decodeChecked strips code fences and checks the reply is JSON matching schema.
func decodeChecked(raw, schema string) (string, error) {
	cleaned := llm.CleanJSONBlock(raw)
	if cleaned == "" {
		return "", &llm.ModelResponseError{Message: "empty response", Raw: raw}
	}
	if !json.Valid([]byte(cleaned)) {
		var probe any
		err := json.Unmarshal([]byte(cleaned), &probe)
		return "", &llm.ModelResponseError{Message: "invalid JSON", Raw: raw, Cause: err}
	}
	if err := schemas.Validate(schema, cleaned); err != nil {
		return "", &llm.ModelResponseError{Message: "schema violation", Raw: raw, Cause: err}
	}
	return cleaned, nil
}
