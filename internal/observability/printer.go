package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/yecs/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
)

// Printer writes boxed, human-readable summaries for the CLI.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProfile outputs the fields of a profile that drive the heuristic.
func (p *Printer) PrintProfile(profile *types.ApplicantProfile) {
	if profile == nil {
		return
	}

	var sb strings.Builder
	if name := profile.Personal.FullName(); name != "" {
		sb.WriteString(fmt.Sprintf("Applicant:   %s\n", name))
	}
	if profile.Business.BusinessName != "" {
		sb.WriteString(fmt.Sprintf("Business:    %s\n", profile.Business.BusinessName))
	}
	if profile.Business.BusinessStage != "" {
		sb.WriteString(fmt.Sprintf("Stage:       %s\n", profile.Business.BusinessStage))
	}
	sb.WriteString(fmt.Sprintf("Experience:  %.0f years\n", profile.Business.YearsExperience.Float()))
	sb.WriteString(fmt.Sprintf("Revenue:     $%.0f projected\n", profile.Business.RevenueProjection.Float()))
	sb.WriteString(fmt.Sprintf("Cash flow:   $%.0f / month\n", profile.Financials.CashFlow()))
	sb.WriteString(fmt.Sprintf("Savings:     $%.0f", profile.Financials.SavingsAmount.Float()))

	p.printBox("APPLICANT PROFILE", sb.String())
}

// PrintScore outputs a score with its risk level and any component scores.
func (p *Printer) PrintScore(result *types.ScoreResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("YECS:   %d\n", result.Score()))
	sb.WriteString(fmt.Sprintf("Risk:   %s\n", result.RiskLevel))
	sb.WriteString(fmt.Sprintf("Source: %s", result.Source))

	if len(result.ComponentScores) > 0 {
		sb.WriteString("\n\nComponents:\n")
		for _, c := range types.Rubric() {
			if v, ok := result.ComponentScores[c.Name]; ok {
				sb.WriteString(fmt.Sprintf("  • %-22s %3d (%d%%)\n", c.Name, v, c.Weight))
			}
		}
	}

	p.printBox("YOUNG ENTREPRENEUR CREDIT SCORE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintInsights outputs loan recommendations and credit improvements.
func (p *Printer) PrintInsights(insights *types.InsightsBundle) {
	if insights == nil {
		return
	}

	var sb strings.Builder
	if insights.MarketAlert != "" {
		sb.WriteString(insights.MarketAlert + "\n\n")
	}

	sb.WriteString("Loans:\n")
	for _, loan := range insights.LoanRecommendations {
		sb.WriteString(fmt.Sprintf("  • %s (%s, %s)\n", loan.Type, loan.Rate, loan.Amount))
	}

	sb.WriteString("\nImprovements:\n")
	for _, imp := range insights.CreditImprovements {
		sb.WriteString(fmt.Sprintf("  • %s %s\n", imp.Title, imp.Impact))
	}

	p.printBox("INSIGHTS", strings.TrimSuffix(sb.String(), "\n"))
}
