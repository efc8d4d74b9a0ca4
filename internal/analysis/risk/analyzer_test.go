package risk

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dualstock/adviser/internal/config"
	"github.com/dualstock/adviser/pkg/models"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(config.Default().Analysis.Risk, zap.NewNop())
}

func barsFromCloses(closes []float64) []models.PriceBar {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = models.PriceBar{
			Close:     decimal.NewFromFloat(c),
			Timestamp: start.AddDate(0, 0, i),
		}
	}
	return bars
}

func TestMetricsTierDefaults(t *testing.T) {
	a := newTestAnalyzer()

	t.Run("domestic with no history", func(t *testing.T) {
		m := a.Metrics("005930", models.MarketDomestic, nil)

		assert.Equal(t, 0.25, m.Volatility)
		assert.Equal(t, 0.04, m.VaR95)
		assert.Equal(t, 0.07, m.VaR99)
		assert.Equal(t, 0.9, m.Beta)
		assert.Equal(t, 0.7, m.CorrelationDomestic)
		assert.Equal(t, 0.3, m.CorrelationForeign)
	})

	t.Run("foreign with a single bar", func(t *testing.T) {
		m := a.Metrics("AAPL", models.MarketForeign, barsFromCloses([]float64{190}))

		assert.Equal(t, 0.30, m.Volatility)
		assert.Equal(t, 0.05, m.VaR95)
		assert.Equal(t, 0.08, m.VaR99)
		assert.Equal(t, 1.1, m.Beta)
		assert.Equal(t, 0.2, m.CorrelationDomestic)
		assert.Equal(t, 0.6, m.CorrelationForeign)
	})

	t.Run("defaults carry sharpe and drawdown placeholders", func(t *testing.T) {
		m := a.Metrics("005930", models.MarketDomestic, nil)

		assert.Equal(t, defaultSharpeRatio, m.SharpeRatio)
		assert.Equal(t, defaultMaxDrawdown, m.MaxDrawdown)
	})
}

func TestMetricsFromSeries(t *testing.T) {
	a := newTestAnalyzer()

	closes := make([]float64, 120)
	for i := range closes {
		// mild oscillation around a drifting level
		closes[i] = 100 + float64(i)*0.1 + float64(i%7)
	}
	m := a.Metrics("AAPL", models.MarketForeign, barsFromCloses(closes))

	assert.Greater(t, m.Volatility, 0.0)
	assert.GreaterOrEqual(t, m.VaR95, 0.0)
	assert.GreaterOrEqual(t, m.VaR99, m.VaR95)
	assert.Equal(t, betaForeign, m.Beta)
	assert.GreaterOrEqual(t, m.MaxDrawdown, 0.0)
	assert.LessOrEqual(t, m.MaxDrawdown, 1.0)
}

func TestLevelThresholds(t *testing.T) {
	a := newTestAnalyzer()

	cases := []struct {
		name  string
		var95 float64
		vol   float64
		want  models.RiskLevel
	}{
		{"well below low boundary", 0.01, 0.05, models.RiskLow},
		{"score exactly 0.15 is medium", 0.25, 0.0, models.RiskMedium},
		{"score exactly 0.25 is high", 0.0, 0.625, models.RiskHigh},
		{"score exactly 0.40 is very high", 0.40, 0.40, models.RiskVeryHigh},
		{"mid band is medium", 0.20, 0.20, models.RiskMedium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			level := a.Level(models.RiskMetrics{VaR95: tc.var95, Volatility: tc.vol})
			assert.Equal(t, tc.want, level)
		})
	}

	t.Run("non-finite score degrades to medium", func(t *testing.T) {
		level := a.Level(models.RiskMetrics{VaR95: math.NaN(), Volatility: 0.2})
		assert.Equal(t, models.RiskMedium, level)
	})
}

func TestPortfolioRisk(t *testing.T) {
	a := newTestAnalyzer()

	t.Run("two holdings with known volatilities", func(t *testing.T) {
		risk := a.PortfolioRisk([]models.Holding{
			{Symbol: "005930", Weight: 0.5, Volatility: 0.2},
			{Symbol: "AAPL", Weight: 0.5, Volatility: 0.3},
		})

		// sqrt(0.25*0.04 + 0.25*0.09) * 0.9
		assert.InDelta(t, 0.16225, risk.Volatility, 0.0001)
		assert.Less(t, risk.Volatility, 0.25)
		assert.InDelta(t, risk.Volatility*1.65, risk.VaR95, 1e-9)
		assert.InDelta(t, risk.Volatility*2.33, risk.VaR99, 1e-9)
	})

	t.Run("missing volatility uses default", func(t *testing.T) {
		risk := a.PortfolioRisk([]models.Holding{
			{Symbol: "005930", Weight: 1.0},
		})

		// single holding, vol default 0.25, discounted
		assert.InDelta(t, 0.25*0.9, risk.Volatility, 1e-9)
	})

	t.Run("weights are normalized", func(t *testing.T) {
		doubled := a.PortfolioRisk([]models.Holding{
			{Symbol: "A", Weight: 1.0, Volatility: 0.2},
			{Symbol: "B", Weight: 1.0, Volatility: 0.3},
		})
		normal := a.PortfolioRisk([]models.Holding{
			{Symbol: "A", Weight: 0.5, Volatility: 0.2},
			{Symbol: "B", Weight: 0.5, Volatility: 0.3},
		})

		assert.InDelta(t, normal.Volatility, doubled.Volatility, 1e-9)
	})
}

func TestAnalyze(t *testing.T) {
	a := newTestAnalyzer()

	analysis := a.Analyze(context.Background(), "005930", "Samsung Electronics", models.MarketDomestic, nil)

	assert.Equal(t, models.KindRisk, analysis.Kind)
	assert.Equal(t, "Risk Management Specialist", analysis.Source)
	assert.NotEmpty(t, analysis.KeyPoints)
	assert.Equal(t, 0.85, analysis.Confidence)

	metrics, ok := analysis.Payload["risk_metrics"].(models.RiskMetrics)
	require.True(t, ok)
	assert.Equal(t, "005930", metrics.Symbol)
}
