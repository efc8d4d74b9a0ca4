package advisor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dualstock/adviser/internal/config"
	"github.com/dualstock/adviser/internal/reasoning"
	"github.com/dualstock/adviser/pkg/models"
)

// Price target ratios applied to the current close.
var (
	targetRatio   = decimal.NewFromFloat(1.15)
	entryRatio    = decimal.NewFromFloat(0.98)
	stopRatio     = decimal.NewFromFloat(0.90)
	failStopRatio = decimal.NewFromFloat(0.95)
)

// DataSource supplies the collected market snapshot for a security.
type DataSource interface {
	Collect(ctx context.Context, symbol string, market models.Market) (*models.StockData, error)
}

// SentimentAnalyzer scores news flow for a security.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, symbol, companyName string, news []models.NewsItem) models.AgentAnalysis
}

// RiskAnalyzer assesses price-series risk for a security.
type RiskAnalyzer interface {
	Analyze(ctx context.Context, symbol, companyName string, market models.Market, bars []models.PriceBar) models.AgentAnalysis
	PortfolioRisk(holdings []models.Holding) models.PortfolioRisk
}

// Advisor orchestrates data collection, the analysis engines and the
// reasoning collaborator into a single recommendation per security.
type Advisor struct {
	config    *config.Config
	source    DataSource
	sentiment SentimentAnalyzer
	risk      RiskAnalyzer
	reasoner  reasoning.Reasoner
	journal   Journal
	log       *zap.Logger
}

// Journal receives completed results for persistence. Append failures
// are logged, never propagated.
type Journal interface {
	Append(result *models.AnalysisResult) error
}

// NewAdvisor wires the orchestrator from its collaborators.
func NewAdvisor(cfg *config.Config, source DataSource, sentiment SentimentAnalyzer, risk RiskAnalyzer, reasoner reasoning.Reasoner, journal Journal, log *zap.Logger) *Advisor {
	return &Advisor{
		config:    cfg,
		source:    source,
		sentiment: sentiment,
		risk:      risk,
		reasoner:  reasoner,
		journal:   journal,
		log:       log,
	}
}

// AnalyzeStock runs the full pipeline for one security. Data collection
// failure aborts the run; engine or synthesis failures degrade the result
// instead of failing it.
func (a *Advisor) AnalyzeStock(ctx context.Context, symbol string, market models.Market, profile *models.UserProfile) (*models.AnalysisResult, error) {
	started := time.Now()

	data, err := a.source.Collect(ctx, symbol, market)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", symbol, err)
	}

	sentimentSlot, riskSlot := a.runEngines(ctx, symbol, data)

	result := a.synthesize(ctx, symbol, market, data, sentimentSlot, riskSlot, profile)
	result.ProcessingTime = time.Since(started).Seconds()

	if err := a.journal.Append(result); err != nil {
		a.log.Warn("journal append failed", zap.String("symbol", symbol), zap.Error(err))
	}

	a.log.Info("analysis complete",
		zap.String("symbol", symbol),
		zap.String("recommendation", string(result.Recommendation)),
		zap.Float64("confidence", result.ConfidenceLevel),
		zap.Float64("elapsed_s", result.ProcessingTime))

	return result, nil
}

// runEngines executes the sentiment and risk engines concurrently. A
// panicking engine yields a nil slot; the other engine's result survives.
func (a *Advisor) runEngines(ctx context.Context, symbol string, data *models.StockData) (sentimentSlot, riskSlot *models.AgentAnalysis) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("sentiment engine panicked", zap.String("symbol", symbol), zap.Any("panic", r))
			}
		}()
		analysis := a.sentiment.Analyze(ctx, symbol, data.Info.Name, data.News)
		sentimentSlot = &analysis
	}()

	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("risk engine panicked", zap.String("symbol", symbol), zap.Any("panic", r))
			}
		}()
		analysis := a.risk.Analyze(ctx, symbol, data.Info.Name, data.Info.Market, data.PriceHistory)
		riskSlot = &analysis
	}()

	wg.Wait()
	return sentimentSlot, riskSlot
}

// synthesize merges the engine outputs into the final record. Narrative
// synthesis failure downgrades to a conservative default recommendation.
func (a *Advisor) synthesize(ctx context.Context, symbol string, market models.Market, data *models.StockData, sentimentSlot, riskSlot *models.AgentAnalysis, profile *models.UserProfile) *models.AnalysisResult {
	price := data.CurrentPrice.Close

	riskLevel := models.RiskMedium
	var riskMetrics models.RiskMetrics
	if riskSlot != nil {
		if metrics, ok := riskSlot.Payload["risk_metrics"].(models.RiskMetrics); ok {
			riskMetrics = metrics
		}
		if level, ok := riskSlot.Payload["risk_level"].(models.RiskLevel); ok {
			riskLevel = level
		}
	}

	score := a.compositeScore(sentimentSlot, riskLevel, data.Indicators)
	posture := a.recommend(score)

	result := &models.AnalysisResult{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		CompanyName:  data.Info.Name,
		Market:       market,
		CurrentPrice: price,
		AnalyzedAt:   time.Now().UTC(),
		RiskLevel:    riskLevel,
	}
	if sentimentSlot != nil {
		result.SubAnalyses = append(result.SubAnalyses, *sentimentSlot)
	}
	if riskSlot != nil {
		result.SubAnalyses = append(result.SubAnalyses, *riskSlot)
	}

	narrative, err := a.reasoner.Advise(ctx, reasoning.AdviceRequest{
		Symbol:      symbol,
		CompanyName: data.Info.Name,
		Market:      market,
		Data:        data,
		Risk:        riskSlot,
		Sentiment:   sentimentSlot,
		Posture:     posture,
		Profile:     profile,
	})
	if err != nil {
		a.log.Error("narrative synthesis failed", zap.String("symbol", symbol), zap.Error(err))
		result.Recommendation = models.Hold
		result.ConfidenceLevel = 0.1
		result.RiskLevel = models.RiskHigh
		result.PriceTargets = models.PriceTargets{
			TargetPrice: price,
			EntryPrice:  price,
			StopLoss:    price.Mul(failStopRatio),
			TimeHorizon: "medium_term",
		}
		result.Rationale = models.Rationale{
			NegativeFactors: []string{fmt.Sprintf("narrative synthesis unavailable: %v", err)},
			RiskFactors:     []string{"recommendation degraded to conservative default"},
		}
		return result
	}

	result.Recommendation = posture
	result.ConfidenceLevel = a.confidence(sentimentSlot, riskSlot)
	result.PriceTargets = models.PriceTargets{
		TargetPrice: price.Mul(targetRatio),
		EntryPrice:  price.Mul(entryRatio),
		StopLoss:    price.Mul(stopRatio),
		TimeHorizon: "medium_term",
	}
	result.Rationale = a.buildRationale(sentimentSlot, riskSlot, data.Indicators)
	result.Rationale.Narrative = narrative
	result.Performance = a.performance(score, riskMetrics)
	result.SubAnalyses = append(result.SubAnalyses, models.AgentAnalysis{
		Source:     "Investment Strategist",
		Kind:       models.KindSynthesis,
		Summary:    fmt.Sprintf("composite score %.3f mapped to %s", score, posture),
		KeyPoints:  []string{fmt.Sprintf("risk level %s", riskLevel)},
		Confidence: result.ConfidenceLevel,
	})

	return result
}

// compositeScore blends sentiment, risk posture and momentum into one
// signal in roughly [-1,1].
func (a *Advisor) compositeScore(sentimentSlot *models.AgentAnalysis, riskLevel models.RiskLevel, ind models.IndicatorSet) float64 {
	score := 0.0

	if raw, ok := sentimentScore(sentimentSlot); ok {
		score += 0.5 * raw
	}

	switch riskLevel {
	case models.RiskLow:
		score += 0.1
	case models.RiskHigh:
		score -= 0.1
	case models.RiskVeryHigh:
		score -= 0.25
	}

	if ind.RSI != nil {
		if *ind.RSI < 30 {
			score += 0.2
		} else if *ind.RSI > 70 {
			score -= 0.2
		}
	}
	if ind.MACDHistogram != nil {
		if *ind.MACDHistogram > 0 {
			score += 0.1
		} else if *ind.MACDHistogram < 0 {
			score -= 0.1
		}
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// recommend maps a composite score through the configured thresholds.
func (a *Advisor) recommend(score float64) models.Recommendation {
	t := a.config.Analysis.Signal
	switch {
	case score >= t.StrongBuy:
		return models.StrongBuy
	case score >= t.Buy:
		return models.Buy
	case score <= t.StrongSell:
		return models.StrongSell
	case score <= t.Sell:
		return models.Sell
	default:
		return models.Hold
	}
}

// confidence averages the available engine confidences; missing engines
// pull it down.
func (a *Advisor) confidence(slots ...*models.AgentAnalysis) float64 {
	if len(slots) == 0 {
		return 0.1
	}
	total := 0.0
	for _, slot := range slots {
		if slot != nil {
			total += slot.Confidence
		}
	}
	c := total / float64(len(slots))
	if c < 0.1 {
		return 0.1
	}
	if c > 1 {
		return 1
	}
	return c
}

func (a *Advisor) buildRationale(sentimentSlot, riskSlot *models.AgentAnalysis, ind models.IndicatorSet) models.Rationale {
	var r models.Rationale

	if raw, ok := sentimentScore(sentimentSlot); ok {
		switch {
		case raw > 0.1:
			r.PositiveFactors = append(r.PositiveFactors, "news flow skews positive")
		case raw < -0.1:
			r.NegativeFactors = append(r.NegativeFactors, "news flow skews negative")
		}
	} else {
		r.RiskFactors = append(r.RiskFactors, "sentiment analysis unavailable")
	}

	if riskSlot != nil {
		r.RiskFactors = append(r.RiskFactors, riskSlot.KeyPoints...)
	} else {
		r.RiskFactors = append(r.RiskFactors, "risk analysis unavailable")
	}

	if ind.RSI != nil {
		switch {
		case *ind.RSI < 30:
			r.PositiveFactors = append(r.PositiveFactors, fmt.Sprintf("RSI %.1f indicates oversold conditions", *ind.RSI))
		case *ind.RSI > 70:
			r.NegativeFactors = append(r.NegativeFactors, fmt.Sprintf("RSI %.1f indicates overbought conditions", *ind.RSI))
		}
	}
	if ind.MACDHistogram != nil && *ind.MACDHistogram > 0 {
		r.Catalysts = append(r.Catalysts, "MACD histogram turned positive")
	}

	return r
}

// performance derives forward-looking estimates from the composite score
// and the risk figures.
func (a *Advisor) performance(score float64, metrics models.RiskMetrics) models.PerformanceMetrics {
	vol := metrics.Volatility
	if vol <= 0 {
		vol = 0.25
	}
	winProb := 0.5 + 0.25*score
	if winProb < 0.1 {
		winProb = 0.1
	}
	if winProb > 0.9 {
		winProb = 0.9
	}
	return models.PerformanceMetrics{
		ExpectedReturn:     0.15 * score,
		ExpectedVolatility: vol,
		WinProbability:     winProb,
		RiskRewardRatio:    1.5,
	}
}

// Compare analyzes several symbols in the same market concurrently.
// Failures are isolated per symbol and reported in the error map.
func (a *Advisor) Compare(ctx context.Context, symbols []string, market models.Market) ([]*models.AnalysisResult, map[string]error) {
	results := make([]*models.AnalysisResult, len(symbols))
	errs := make([]error, len(symbols))

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			result, err := a.AnalyzeStock(ctx, symbol, market, nil)
			results[i] = result
			errs[i] = err
		}(i, symbol)
	}
	wg.Wait()

	failures := make(map[string]error)
	ok := results[:0]
	for i, result := range results {
		if errs[i] != nil {
			failures[symbols[i]] = errs[i]
			continue
		}
		ok = append(ok, result)
	}
	return ok, failures
}

// AnalyzePortfolio analyzes each holding and aggregates portfolio-level
// risk and a recommendation summary. Per-holding failures shrink the
// analyzed set instead of failing the report.
func (a *Advisor) AnalyzePortfolio(ctx context.Context, holdings []models.Holding) (*models.PortfolioReport, error) {
	if len(holdings) == 0 {
		return nil, fmt.Errorf("empty portfolio")
	}

	results := make([]*models.AnalysisResult, len(holdings))
	var wg sync.WaitGroup
	for i, h := range holdings {
		wg.Add(1)
		go func(i int, h models.Holding) {
			defer wg.Done()
			result, err := a.AnalyzeStock(ctx, h.Symbol, h.Market, nil)
			if err != nil {
				a.log.Warn("portfolio holding analysis failed",
					zap.String("symbol", h.Symbol), zap.Error(err))
				return
			}
			results[i] = result
		}(i, h)
	}
	wg.Wait()

	enriched := make([]models.Holding, len(holdings))
	copy(enriched, holdings)
	analyzed := make([]*models.AnalysisResult, 0, len(holdings))
	for i, result := range results {
		if result == nil {
			continue
		}
		analyzed = append(analyzed, result)
		for _, sub := range result.SubAnalyses {
			if sub.Kind != models.KindRisk {
				continue
			}
			if metrics, ok := sub.Payload["risk_metrics"].(models.RiskMetrics); ok {
				enriched[i].Volatility = metrics.Volatility
			}
		}
	}

	report := &models.PortfolioReport{
		TotalHoldings: len(holdings),
		AnalyzedCount: len(analyzed),
		Results:       analyzed,
		Risk:          a.risk.PortfolioRisk(enriched),
		Summary:       summarize(analyzed),
		AnalyzedAt:    time.Now().UTC(),
	}
	return report, nil
}

// sentimentScore extracts the aggregate score from a sentiment slot.
func sentimentScore(slot *models.AgentAnalysis) (float64, bool) {
	if slot == nil {
		return 0, false
	}
	result, ok := slot.Payload["sentiment"].(models.SentimentResult)
	if !ok {
		return 0, false
	}
	return result.OverallScore, true
}

func summarize(results []*models.AnalysisResult) models.PortfolioSummary {
	summary := models.PortfolioSummary{
		TotalStocks:     len(results),
		Recommendations: make(map[models.Recommendation]int),
		RiskLevels:      make(map[models.RiskLevel]int),
	}
	total := 0.0
	for _, r := range results {
		summary.Recommendations[r.Recommendation]++
		summary.RiskLevels[r.RiskLevel]++
		total += r.ConfidenceLevel
	}
	if len(results) > 0 {
		summary.AverageConfidence = total / float64(len(results))
	}
	return summary
}
