package types

// Expected sizes of an insights bundle.
const (
	LoanRecommendationCount = 3
	CreditImprovementCount  = 2
)

// LoanRecommendation is a suggested financing product.
type LoanRecommendation struct {
	Type   string `json:"type"`
	Rate   string `json:"rate"`
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

// CreditImprovement is a suggested action to raise the score.
type CreditImprovement struct {
	Title  string `json:"title"`
	Action string `json:"action"`
	Impact string `json:"impact"`
}

// InsightsBundle is the dashboard advice derived from a profile and score.
// It is recomputed on every dashboard view and never stored as authoritative state.
type InsightsBundle struct {
	MarketAlert         string               `json:"marketAlert"`
	LoanRecommendations []LoanRecommendation `json:"loanRecommendations"`
	CreditImprovements  []CreditImprovement  `json:"creditImprovements"`
}

// FallbackInsights returns the fixed insights shown when the model cannot be used.
func FallbackInsights() *InsightsBundle {
	return &InsightsBundle{
		MarketAlert: "Market insights are temporarily unavailable. Lenders continue to favor founders with steady cash flow and a clear savings buffer.",
		LoanRecommendations: []LoanRecommendation{
			{
				Type:   "Microloan",
				Rate:   "8-13%",
				Amount: "$5,000 - $50,000",
				Reason: "Small, short-term financing suited to early-stage ventures building a repayment record.",
			},
			{
				Type:   "SBA 7(a) Loan",
				Rate:   "10-14%",
				Amount: "$50,000 - $350,000",
				Reason: "Government-backed loan with flexible terms for businesses with demonstrated revenue.",
			},
			{
				Type:   "Business Line of Credit",
				Rate:   "12-20%",
				Amount: "$10,000 - $100,000",
				Reason: "Revolving credit to smooth monthly cash flow gaps.",
			},
		},
		CreditImprovements: []CreditImprovement{
			{
				Title:  "Build an emergency fund",
				Action: "Keep at least three months of expenses in savings.",
				Impact: "+20-40 points",
			},
			{
				Title:  "Separate business finances",
				Action: "Open a dedicated business account and route all revenue through it.",
				Impact: "+10-25 points",
			},
		},
	}
}
