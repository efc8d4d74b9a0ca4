package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dualstock/adviser/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(18)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("213")).
			MarginTop(1)

	buyStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	holdStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	sellStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	narrativeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Width(76).
			MarginLeft(2)
)

// Result renders one analysis as a styled terminal report.
func Result(r *models.AnalysisResult) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s (%s)", r.CompanyName, r.Symbol)))
	sb.WriteString("\n\n")

	writeRow(&sb, "Market", string(r.Market))
	writeRow(&sb, "Current price", r.CurrentPrice.StringFixed(2))
	writeRow(&sb, "Recommendation", recommendationStyle(r.Recommendation).Render(string(r.Recommendation)))
	writeRow(&sb, "Confidence", fmt.Sprintf("%.0f%%", r.ConfidenceLevel*100))
	writeRow(&sb, "Risk level", string(r.RiskLevel))

	sb.WriteString(sectionStyle.Render("Price targets"))
	sb.WriteString("\n")
	writeRow(&sb, "Target", r.PriceTargets.TargetPrice.StringFixed(2))
	writeRow(&sb, "Entry", r.PriceTargets.EntryPrice.StringFixed(2))
	writeRow(&sb, "Stop loss", r.PriceTargets.StopLoss.StringFixed(2))
	writeRow(&sb, "Horizon", r.PriceTargets.TimeHorizon)

	writeFactors(&sb, "Positive factors", r.Rationale.PositiveFactors)
	writeFactors(&sb, "Negative factors", r.Rationale.NegativeFactors)
	writeFactors(&sb, "Risk factors", r.Rationale.RiskFactors)
	writeFactors(&sb, "Catalysts", r.Rationale.Catalysts)

	if r.Rationale.Narrative != "" {
		sb.WriteString(sectionStyle.Render("Analyst narrative"))
		sb.WriteString("\n")
		sb.WriteString(narrativeStyle.Render(r.Rationale.Narrative))
		sb.WriteString("\n")
	}

	if len(r.SubAnalyses) > 0 {
		sb.WriteString(sectionStyle.Render("Sub-analyses"))
		sb.WriteString("\n")
		for _, sub := range r.SubAnalyses {
			writeRow(&sb, string(sub.Kind), fmt.Sprintf("%s (confidence %.0f%%)", sub.Summary, sub.Confidence*100))
		}
	}

	writeRow(&sb, "Processing time", fmt.Sprintf("%.1fs", r.ProcessingTime))
	return sb.String()
}

// Compare renders a side-by-side summary of several results plus any
// per-symbol failures.
func Compare(results []*models.AnalysisResult, failures map[string]error) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Comparison"))
	sb.WriteString("\n\n")

	for _, r := range results {
		line := fmt.Sprintf("%-12s %10s  %-12s risk: %-10s confidence: %.0f%%",
			r.Symbol,
			r.CurrentPrice.StringFixed(2),
			recommendationStyle(r.Recommendation).Render(string(r.Recommendation)),
			r.RiskLevel,
			r.ConfidenceLevel*100)
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if len(failures) > 0 {
		sb.WriteString(sectionStyle.Render("Failed"))
		sb.WriteString("\n")
		symbols := make([]string, 0, len(failures))
		for s := range failures {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
		for _, s := range symbols {
			writeRow(&sb, s, failures[s].Error())
		}
	}
	return sb.String()
}

// Portfolio renders a portfolio report.
func Portfolio(report *models.PortfolioReport) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Portfolio analysis"))
	sb.WriteString("\n\n")

	writeRow(&sb, "Holdings", fmt.Sprintf("%d (%d analyzed)", report.TotalHoldings, report.AnalyzedCount))
	writeRow(&sb, "Volatility", fmt.Sprintf("%.2f%%", report.Risk.Volatility*100))
	writeRow(&sb, "VaR 95%", fmt.Sprintf("%.2f%%", report.Risk.VaR95*100))
	writeRow(&sb, "VaR 99%", fmt.Sprintf("%.2f%%", report.Risk.VaR99*100))
	writeRow(&sb, "Avg confidence", fmt.Sprintf("%.0f%%", report.Summary.AverageConfidence*100))

	if len(report.Summary.Recommendations) > 0 {
		sb.WriteString(sectionStyle.Render("Recommendations"))
		sb.WriteString("\n")
		for _, rec := range []models.Recommendation{models.StrongBuy, models.Buy, models.Hold, models.Sell, models.StrongSell} {
			if n := report.Summary.Recommendations[rec]; n > 0 {
				writeRow(&sb, string(rec), fmt.Sprintf("%d", n))
			}
		}
	}

	for _, r := range report.Results {
		sb.WriteString("\n")
		sb.WriteString(Result(r))
	}
	return sb.String()
}

func writeRow(sb *strings.Builder, label, value string) {
	sb.WriteString(labelStyle.Render(label))
	sb.WriteString(value)
	sb.WriteString("\n")
}

func writeFactors(sb *strings.Builder, heading string, factors []string) {
	if len(factors) == 0 {
		return
	}
	sb.WriteString(sectionStyle.Render(heading))
	sb.WriteString("\n")
	for _, f := range factors {
		sb.WriteString("  • ")
		sb.WriteString(f)
		sb.WriteString("\n")
	}
}

func recommendationStyle(rec models.Recommendation) lipgloss.Style {
	switch rec {
	case models.StrongBuy, models.Buy:
		return buyStyle
	case models.Sell, models.StrongSell:
		return sellStyle
	default:
		return holdStyle
	}
}
