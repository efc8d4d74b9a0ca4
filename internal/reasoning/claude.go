package reasoning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/dualstock/adviser/internal/config"
	"github.com/dualstock/adviser/pkg/models"
)

const systemPrompt = `You are a seasoned equity analyst advising on Korean and US stocks.
Given technical indicators, risk metrics and news sentiment for a security,
write a concise investment narrative: the overall posture, the strongest
supporting factors, the main risks, and what would change your view.
Answer in the language of the market (Korean for domestic, English for foreign).
Do not invent data that was not provided.`

// AdviceRequest carries the analysis context handed to the language model.
type AdviceRequest struct {
	Symbol      string
	CompanyName string
	Market      models.Market
	Data        *models.StockData
	Risk        *models.AgentAnalysis
	Sentiment   *models.AgentAnalysis
	Posture     models.Recommendation
	Profile     *models.UserProfile
}

// Reasoner produces a free-form investment narrative for a security.
type Reasoner interface {
	Advise(ctx context.Context, req AdviceRequest) (string, error)
}

// ClaudeReasoner calls the Anthropic API for narrative synthesis.
type ClaudeReasoner struct {
	client anthropic.Client
	config config.ReasoningConfig
	log    *zap.Logger
}

// NewClaudeReasoner creates a reasoner backed by the Anthropic API.
func NewClaudeReasoner(cfg config.ReasoningConfig, apiKey string, log *zap.Logger) *ClaudeReasoner {
	return &ClaudeReasoner{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		config: cfg,
		log:    log,
	}
}

// Advise requests a narrative for the analyzed security. The call is
// bounded by the configured timeout independently of the caller's context.
func (r *ClaudeReasoner) Advise(ctx context.Context, req AdviceRequest) (string, error) {
	timeout := time.Duration(r.config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.config.Model),
		MaxTokens: int64(r.config.MaxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req))),
		},
	}
	params.Temperature = anthropic.Float(r.config.Temperature)

	started := time.Now()
	message, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("requesting narrative: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	narrative := strings.TrimSpace(sb.String())
	if narrative == "" {
		return "", fmt.Errorf("empty narrative from model %s", r.config.Model)
	}

	r.log.Debug("narrative synthesized",
		zap.String("symbol", req.Symbol),
		zap.Duration("elapsed", time.Since(started)))

	return narrative, nil
}

// buildPrompt renders the analysis context as a compact briefing.
func buildPrompt(req AdviceRequest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Security: %s (%s), market: %s\n", req.CompanyName, req.Symbol, req.Market)
	if req.Data != nil {
		fmt.Fprintf(&sb, "Current price: %s %s\n", req.Data.CurrentPrice.Close.StringFixed(2), req.Data.Info.Currency)
		writeIndicators(&sb, req.Data.Indicators)
		writeFinancials(&sb, req.Data.Financials)
		writeNews(&sb, req.Data.News)
	}
	writeAnalysis(&sb, "Risk assessment", req.Risk)
	writeAnalysis(&sb, "News sentiment", req.Sentiment)
	if p := req.Profile; p != nil {
		sb.WriteString("Investor profile:\n")
		if p.RiskTolerance != "" {
			fmt.Fprintf(&sb, "  risk tolerance: %s\n", p.RiskTolerance)
		}
		if p.InvestmentHorizon != "" {
			fmt.Fprintf(&sb, "  horizon: %s\n", p.InvestmentHorizon)
		}
		if p.InvestmentStyle != "" {
			fmt.Fprintf(&sb, "  style: %s\n", p.InvestmentStyle)
		}
	}
	fmt.Fprintf(&sb, "\nQuantitative posture: %s\n", req.Posture)
	sb.WriteString("Write the investment narrative for this security.\n")

	return sb.String()
}

func writeIndicators(sb *strings.Builder, ind models.IndicatorSet) {
	sb.WriteString("Technical indicators:\n")
	writeFloat(sb, "RSI(14)", ind.RSI)
	writeFloat(sb, "SMA20", ind.SMA20)
	writeFloat(sb, "SMA50", ind.SMA50)
	writeFloat(sb, "SMA200", ind.SMA200)
	writeFloat(sb, "MACD", ind.MACD)
	writeFloat(sb, "MACD signal", ind.MACDSignal)
	writeFloat(sb, "Bollinger upper", ind.BollingerUpper)
	writeFloat(sb, "Bollinger lower", ind.BollingerLower)
	writeFloat(sb, "ATR(14)", ind.ATR)
	writeFloat(sb, "Stochastic %K", ind.StochasticK)
}

func writeFinancials(sb *strings.Builder, fin models.FinancialMetrics) {
	if fin.PERatio == nil && fin.PBRatio == nil && fin.ROE == nil {
		return
	}
	sb.WriteString("Fundamentals:\n")
	if fin.PERatio != nil {
		fmt.Fprintf(sb, "  P/E: %s\n", fin.PERatio.StringFixed(2))
	}
	if fin.PBRatio != nil {
		fmt.Fprintf(sb, "  P/B: %s\n", fin.PBRatio.StringFixed(2))
	}
	if fin.ROE != nil {
		fmt.Fprintf(sb, "  ROE: %s\n", fin.ROE.StringFixed(4))
	}
	if fin.DebtRatio != nil {
		fmt.Fprintf(sb, "  Debt ratio: %s\n", fin.DebtRatio.StringFixed(2))
	}
}

func writeNews(sb *strings.Builder, news []models.NewsItem) {
	if len(news) == 0 {
		return
	}
	sb.WriteString("Recent headlines:\n")
	limit := len(news)
	if limit > 5 {
		limit = 5
	}
	for _, item := range news[:limit] {
		fmt.Fprintf(sb, "  - %s\n", item.Title)
	}
}

func writeAnalysis(sb *strings.Builder, label string, analysis *models.AgentAnalysis) {
	if analysis == nil {
		fmt.Fprintf(sb, "%s: unavailable\n", label)
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", label, analysis.Summary)
	for _, point := range analysis.KeyPoints {
		fmt.Fprintf(sb, "  - %s\n", point)
	}
}

func writeFloat(sb *strings.Builder, label string, v *float64) {
	if v == nil {
		return
	}
	fmt.Fprintf(sb, "  %s: %.4f\n", label, *v)
}
