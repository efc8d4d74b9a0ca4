package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dualstock/adviser/internal/config"
	"github.com/dualstock/adviser/internal/marketdata"
	"github.com/dualstock/adviser/internal/reasoning"
	"github.com/dualstock/adviser/pkg/models"
)

type fakeSource struct {
	data map[string]*models.StockData
	err  error
}

func (f *fakeSource) Collect(ctx context.Context, symbol string, market models.Market) (*models.StockData, error) {
	if f.err != nil {
		return nil, f.err
	}
	if data, ok := f.data[symbol]; ok {
		return data, nil
	}
	return nil, marketdata.ErrDataUnavailable
}

type fakeSentiment struct {
	panics bool
	score  float64
}

func (f *fakeSentiment) Analyze(ctx context.Context, symbol, companyName string, news []models.NewsItem) models.AgentAnalysis {
	if f.panics {
		panic("sentiment boom")
	}
	return models.AgentAnalysis{
		Source:     "Market Sentiment Analyst",
		Kind:       models.KindSentiment,
		Summary:    "sentiment ok",
		Confidence: 0.7,
		Payload: map[string]interface{}{
			"sentiment": models.SentimentResult{OverallScore: f.score, Confidence: 0.7},
		},
	}
}

type fakeRisk struct {
	panics bool
	level  models.RiskLevel
}

func (f *fakeRisk) Analyze(ctx context.Context, symbol, companyName string, market models.Market, bars []models.PriceBar) models.AgentAnalysis {
	if f.panics {
		panic("risk boom")
	}
	level := f.level
	if level == "" {
		level = models.RiskMedium
	}
	return models.AgentAnalysis{
		Source:     "Risk Management Specialist",
		Kind:       models.KindRisk,
		Summary:    "risk ok",
		KeyPoints:  []string{"volatility moderate"},
		Confidence: 0.85,
		Payload: map[string]interface{}{
			"risk_metrics": models.RiskMetrics{Symbol: symbol, Volatility: 0.2, VaR95: 0.03},
			"risk_level":   level,
		},
	}
}

func (f *fakeRisk) PortfolioRisk(holdings []models.Holding) models.PortfolioRisk {
	return models.PortfolioRisk{Volatility: 0.18, VaR95: 0.3, VaR99: 0.42}
}

type fakeReasoner struct {
	narrative string
	err       error
}

func (f *fakeReasoner) Advise(ctx context.Context, req reasoning.AdviceRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.narrative, nil
}

type fakeJournal struct {
	appended []*models.AnalysisResult
}

func (f *fakeJournal) Append(result *models.AnalysisResult) error {
	f.appended = append(f.appended, result)
	return nil
}

func testStockData(symbol string, price float64) *models.StockData {
	close := decimal.NewFromFloat(price)
	bar := models.PriceBar{
		Open: close, High: close, Low: close, Close: close,
		Timestamp: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}
	return &models.StockData{
		Info: models.CompanyInfo{
			Symbol: symbol, Name: symbol + " Corp",
			Market: models.MarketDomestic, Currency: "KRW",
		},
		CurrentPrice: bar,
		PriceHistory: []models.PriceBar{bar},
		News:         []models.NewsItem{{Title: "headline"}},
	}
}

func newTestAdvisor(source DataSource, sent SentimentAnalyzer, risk RiskAnalyzer, reasoner reasoning.Reasoner, journal Journal) *Advisor {
	return NewAdvisor(config.Default(), source, sent, risk, reasoner, journal, zap.NewNop())
}

func TestAnalyzeStockHappyPath(t *testing.T) {
	journal := &fakeJournal{}
	source := &fakeSource{data: map[string]*models.StockData{"005930": testStockData("005930", 70000)}}
	app := newTestAdvisor(source, &fakeSentiment{score: 0.5}, &fakeRisk{}, &fakeReasoner{narrative: "solid outlook"}, journal)

	result, err := app.AnalyzeStock(context.Background(), "005930", models.MarketDomestic, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "005930", result.Symbol)
	assert.Equal(t, "solid outlook", result.Rationale.Narrative)
	assert.Equal(t, models.RiskMedium, result.RiskLevel)

	price := decimal.NewFromInt(70000)
	assert.True(t, result.PriceTargets.TargetPrice.Equal(price.Mul(decimal.NewFromFloat(1.15))))
	assert.True(t, result.PriceTargets.EntryPrice.Equal(price.Mul(decimal.NewFromFloat(0.98))))
	assert.True(t, result.PriceTargets.StopLoss.Equal(price.Mul(decimal.NewFromFloat(0.90))))
	assert.Equal(t, "medium_term", result.PriceTargets.TimeHorizon)

	require.Len(t, result.SubAnalyses, 3)
	assert.Equal(t, models.KindSentiment, result.SubAnalyses[0].Kind)
	assert.Equal(t, models.KindRisk, result.SubAnalyses[1].Kind)
	assert.Equal(t, models.KindSynthesis, result.SubAnalyses[2].Kind)

	require.Len(t, journal.appended, 1)
	assert.Equal(t, result.ID, journal.appended[0].ID)
}

func TestAnalyzeStockDataUnavailable(t *testing.T) {
	app := newTestAdvisor(&fakeSource{}, &fakeSentiment{}, &fakeRisk{}, &fakeReasoner{narrative: "n"}, &fakeJournal{})

	result, err := app.AnalyzeStock(context.Background(), "UNKNOWN", models.MarketDomestic, nil)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, marketdata.ErrDataUnavailable)
}

func TestAnalyzeStockEngineIsolation(t *testing.T) {
	source := &fakeSource{data: map[string]*models.StockData{"005930": testStockData("005930", 70000)}}

	t.Run("risk panic keeps sentiment", func(t *testing.T) {
		app := newTestAdvisor(source, &fakeSentiment{score: 0.3}, &fakeRisk{panics: true}, &fakeReasoner{narrative: "n"}, &fakeJournal{})

		result, err := app.AnalyzeStock(context.Background(), "005930", models.MarketDomestic, nil)
		require.NoError(t, err)

		kinds := subKinds(result)
		assert.Contains(t, kinds, models.KindSentiment)
		assert.NotContains(t, kinds, models.KindRisk)
		// no usable risk assessment defaults the level to medium
		assert.Equal(t, models.RiskMedium, result.RiskLevel)
	})

	t.Run("sentiment panic keeps risk", func(t *testing.T) {
		app := newTestAdvisor(source, &fakeSentiment{panics: true}, &fakeRisk{}, &fakeReasoner{narrative: "n"}, &fakeJournal{})

		result, err := app.AnalyzeStock(context.Background(), "005930", models.MarketDomestic, nil)
		require.NoError(t, err)

		kinds := subKinds(result)
		assert.Contains(t, kinds, models.KindRisk)
		assert.NotContains(t, kinds, models.KindSentiment)
	})
}

func TestAnalyzeStockSynthesisFailure(t *testing.T) {
	source := &fakeSource{data: map[string]*models.StockData{"005930": testStockData("005930", 70000)}}
	app := newTestAdvisor(source, &fakeSentiment{score: 0.8}, &fakeRisk{}, &fakeReasoner{err: errors.New("api down")}, &fakeJournal{})

	result, err := app.AnalyzeStock(context.Background(), "005930", models.MarketDomestic, nil)
	require.NoError(t, err, "synthesis failure degrades, not fails")

	assert.Equal(t, models.Hold, result.Recommendation)
	assert.Equal(t, 0.1, result.ConfidenceLevel)
	assert.Equal(t, models.RiskHigh, result.RiskLevel)

	price := decimal.NewFromInt(70000)
	assert.True(t, result.PriceTargets.StopLoss.Equal(price.Mul(decimal.NewFromFloat(0.95))))
	assert.Equal(t, "medium_term", result.PriceTargets.TimeHorizon)
	assert.NotEmpty(t, result.Rationale.NegativeFactors)

	// engine outputs are still attached
	kinds := subKinds(result)
	assert.Contains(t, kinds, models.KindSentiment)
	assert.Contains(t, kinds, models.KindRisk)
	assert.NotContains(t, kinds, models.KindSynthesis)
}

func TestAnalyzeStockUsesEngineRiskLevel(t *testing.T) {
	source := &fakeSource{data: map[string]*models.StockData{"005930": testStockData("005930", 70000)}}
	app := newTestAdvisor(source, &fakeSentiment{score: 0.1}, &fakeRisk{level: models.RiskLow}, &fakeReasoner{narrative: "n"}, &fakeJournal{})

	result, err := app.AnalyzeStock(context.Background(), "005930", models.MarketDomestic, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RiskLow, result.RiskLevel)
}

func TestRecommendThresholds(t *testing.T) {
	app := newTestAdvisor(&fakeSource{}, &fakeSentiment{}, &fakeRisk{}, &fakeReasoner{}, &fakeJournal{})

	cases := []struct {
		score float64
		want  models.Recommendation
	}{
		{0.6, models.StrongBuy},
		{0.5, models.StrongBuy},
		{0.3, models.Buy},
		{0.0, models.Hold},
		{-0.3, models.Sell},
		{-0.5, models.StrongSell},
		{-0.7, models.StrongSell},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, app.recommend(tc.score), "score %.2f", tc.score)
	}
}

func TestCompareIsolation(t *testing.T) {
	source := &fakeSource{data: map[string]*models.StockData{
		"005930": testStockData("005930", 70000),
		"000660": testStockData("000660", 180000),
	}}
	app := newTestAdvisor(source, &fakeSentiment{score: 0.2}, &fakeRisk{}, &fakeReasoner{narrative: "n"}, &fakeJournal{})

	results, failures := app.Compare(context.Background(), []string{"005930", "MISSING", "000660"}, models.MarketDomestic)

	assert.Len(t, results, 2)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures["MISSING"], marketdata.ErrDataUnavailable)
}

func TestAnalyzePortfolio(t *testing.T) {
	source := &fakeSource{data: map[string]*models.StockData{
		"005930": testStockData("005930", 70000),
		"AAPL":   testStockData("AAPL", 190),
	}}
	app := newTestAdvisor(source, &fakeSentiment{score: 0.2}, &fakeRisk{}, &fakeReasoner{narrative: "n"}, &fakeJournal{})

	t.Run("empty portfolio is an error", func(t *testing.T) {
		_, err := app.AnalyzePortfolio(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("failed holding shrinks the analyzed set", func(t *testing.T) {
		report, err := app.AnalyzePortfolio(context.Background(), []models.Holding{
			{Symbol: "005930", Market: models.MarketDomestic, Weight: 0.5},
			{Symbol: "MISSING", Market: models.MarketDomestic, Weight: 0.3},
			{Symbol: "AAPL", Market: models.MarketForeign, Weight: 0.2},
		})
		require.NoError(t, err)

		assert.Equal(t, 3, report.TotalHoldings)
		assert.Equal(t, 2, report.AnalyzedCount)
		assert.Equal(t, 2, report.Summary.TotalStocks)
		assert.Greater(t, report.Risk.Volatility, 0.0)
	})
}

func subKinds(result *models.AnalysisResult) []models.AnalysisKind {
	kinds := make([]models.AnalysisKind, 0, len(result.SubAnalyses))
	for _, sub := range result.SubAnalyses {
		kinds = append(kinds, sub.Kind)
	}
	return kinds
}
