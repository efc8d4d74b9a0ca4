package risk

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/dualstock/adviser/internal/config"
	"github.com/dualstock/adviser/pkg/models"
)

// Market-tier constants used when no usable price history exists, and
// placeholder beta/correlation values in absence of benchmark-index data.
const (
	defaultSharpeRatio = 0.8
	defaultMaxDrawdown = 0.15

	betaDomestic = 0.9
	betaForeign  = 1.2
)

// Analyzer computes risk metrics for a single security and aggregate risk
// for weighted holdings. Computation failures degrade to documented
// fallback constants; they are logged, never returned.
type Analyzer struct {
	config config.RiskConfig
	log    *zap.Logger
}

// NewAnalyzer creates a new risk analyzer.
func NewAnalyzer(cfg config.RiskConfig, log *zap.Logger) *Analyzer {
	return &Analyzer{config: cfg, log: log}
}

// Metrics derives risk metrics from the price series, falling back to
// market-tier defaults when fewer than two prices are available.
func (a *Analyzer) Metrics(symbol string, market models.Market, bars []models.PriceBar) models.RiskMetrics {
	m := models.RiskMetrics{
		Symbol:      symbol,
		SharpeRatio: defaultSharpeRatio,
		MaxDrawdown: defaultMaxDrawdown,
	}

	if market == models.MarketDomestic {
		m.CorrelationDomestic = 0.7
		m.CorrelationForeign = 0.3
	} else {
		m.CorrelationDomestic = 0.2
		m.CorrelationForeign = 0.6
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close.InexactFloat64()
	}

	if len(closes) < 2 {
		// Fixed market-tier defaults, not estimates.
		if market == models.MarketDomestic {
			m.Volatility, m.VaR95, m.VaR99, m.Beta = 0.25, 0.04, 0.07, 0.9
		} else {
			m.Volatility, m.VaR95, m.VaR99, m.Beta = 0.30, 0.05, 0.08, 1.1
		}
		a.log.Debug("risk metrics from tier defaults",
			zap.String("symbol", symbol),
			zap.Int("prices", len(closes)))
		return m
	}

	returns := returnSeries(closes)
	if len(returns) == 0 {
		m.Volatility, m.VaR95, m.VaR99, m.Beta = 0.3, 0.05, 0.08, 1.0
		a.log.Warn("empty return series, using fallback constants", zap.String("symbol", symbol))
		return m
	}

	annualize := math.Sqrt(float64(a.config.TradingDays))
	std := sampleStdDev(returns)
	m.Volatility = std * annualize
	m.VaR95 = -percentile(returns, 5)
	m.VaR99 = -percentile(returns, 1)

	// Beta stays a market-tier placeholder until benchmark-index returns
	// are wired in.
	if market == models.MarketForeign {
		m.Beta = betaForeign
	} else {
		m.Beta = betaDomestic
	}

	if std > 0 {
		m.SharpeRatio = mean(returns) / std * annualize
	}
	m.MaxDrawdown = maxDrawdown(closes)

	return m
}

// Level classifies risk metrics into a discrete level. The score is a
// weighted blend of VaR95 and volatility with strict '<' thresholds; a
// degenerate score degrades to medium as the conservative fallback.
func (a *Analyzer) Level(m models.RiskMetrics) models.RiskLevel {
	score := a.config.VaRWeight*m.VaR95 + a.config.VolatilityWeight*m.Volatility

	if math.IsNaN(score) || math.IsInf(score, 0) {
		a.log.Error("risk score is not finite, falling back to medium",
			zap.String("symbol", m.Symbol),
			zap.Float64("var_95", m.VaR95),
			zap.Float64("volatility", m.Volatility))
		return models.RiskMedium
	}

	switch {
	case score < 0.15:
		return models.RiskLow
	case score < 0.25:
		return models.RiskMedium
	case score < 0.40:
		return models.RiskHigh
	default:
		return models.RiskVeryHigh
	}
}

// PortfolioRisk estimates aggregate risk for weighted holdings under an
// independence assumption (cross-correlations ignored), then applies a
// fixed diversification discount and normal-distribution VaR multipliers.
func (a *Analyzer) PortfolioRisk(holdings []models.Holding) models.PortfolioRisk {
	discount := a.config.DiversificationDiscount

	var totalWeight float64
	for _, h := range holdings {
		totalWeight += h.Weight
	}

	var variance float64
	for _, h := range holdings {
		var weight float64
		if totalWeight > 0 {
			weight = h.Weight / totalWeight
		}
		vol := h.Volatility
		if vol <= 0 {
			vol = 0.25
		}
		variance += weight * weight * vol * vol
	}

	volatility := math.Sqrt(variance) * (1 - discount)

	return models.PortfolioRisk{
		Volatility:           volatility,
		VaR95:                volatility * 1.65,
		VaR99:                volatility * 2.33,
		DiversificationRatio: discount,
	}
}

// Analyze wraps metric computation into a sub-analysis record for the
// orchestrator.
func (a *Analyzer) Analyze(ctx context.Context, symbol, companyName string, market models.Market, bars []models.PriceBar) models.AgentAnalysis {
	metrics := a.Metrics(symbol, market, bars)
	level := a.Level(metrics)

	a.log.Info("risk analysis complete",
		zap.String("symbol", symbol),
		zap.Float64("var_95", metrics.VaR95),
		zap.Float64("volatility", metrics.Volatility),
		zap.String("risk_level", string(level)))

	return models.AgentAnalysis{
		Source:  "Risk Management Specialist",
		Kind:    models.KindRisk,
		Summary: fmt.Sprintf("Risk analysis for %s complete, risk level: %s", companyName, level),
		KeyPoints: []string{
			fmt.Sprintf("VaR(95%%): %.2f%%", metrics.VaR95*100),
			fmt.Sprintf("Beta: %.2f", metrics.Beta),
			fmt.Sprintf("Annualized volatility: %.2f%%", metrics.Volatility*100),
			fmt.Sprintf("Risk level: %s", level),
		},
		Confidence: 0.85,
		Payload: map[string]interface{}{
			"risk_metrics": metrics,
			"risk_level":   level,
		},
	}
}

// returnSeries computes fractional period-over-period returns from closes.
// Steps with a zero preceding close are skipped.
func returnSeries(closes []float64) []float64 {
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	return returns
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev computes the n-1 standard deviation.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// percentile computes the p-th percentile with linear interpolation
// between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// maxDrawdown computes the largest peak-to-trough decline of the series.
func maxDrawdown(closes []float64) float64 {
	if len(closes) == 0 {
		return defaultMaxDrawdown
	}
	peak := closes[0]
	var worst float64
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if peak > 0 {
			dd := (peak - c) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
