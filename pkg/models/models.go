package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market identifies which of the two supported markets a security trades on.
type Market string

const (
	MarketDomestic Market = "domestic"
	MarketForeign  Market = "foreign"
)

// Valid reports whether the market tag is one of the supported values.
func (m Market) Valid() bool {
	return m == MarketDomestic || m == MarketForeign
}

// PriceBar represents one period of OHLCV price data.
// Monetary fields are fixed-precision decimals; statistical work converts
// to float64 at the engine boundary.
type PriceBar struct {
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// CompanyInfo describes the security's issuer.
type CompanyInfo struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Market   Market `json:"market"`
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
	Currency string `json:"currency"`
}

// FinancialMetrics holds optional fundamental ratios. Absent values stay nil.
type FinancialMetrics struct {
	PERatio       *decimal.Decimal `json:"pe_ratio,omitempty"`
	PBRatio       *decimal.Decimal `json:"pb_ratio,omitempty"`
	ROE           *decimal.Decimal `json:"roe,omitempty"`
	DebtRatio     *decimal.Decimal `json:"debt_ratio,omitempty"`
	MarketCap     *decimal.Decimal `json:"market_cap,omitempty"`
	DividendYield *decimal.Decimal `json:"dividend_yield,omitempty"`
}

// NewsItem represents one retrieved news article.
type NewsItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// StockData bundles everything the collector retrieved for one security.
type StockData struct {
	Info         CompanyInfo      `json:"info"`
	CurrentPrice PriceBar         `json:"current_price"`
	PriceHistory []PriceBar       `json:"price_history"`
	Financials   FinancialMetrics `json:"financials"`
	Indicators   IndicatorSet     `json:"indicators"`
	News         []NewsItem       `json:"news"`
}

// IndicatorSet holds technical indicator values. A nil field means the
// price history was too short for that indicator's window; absence is a
// first-class value, never zero.
type IndicatorSet struct {
	RSI             *float64 `json:"rsi,omitempty"`
	SMA20           *float64 `json:"sma_20,omitempty"`
	SMA50           *float64 `json:"sma_50,omitempty"`
	SMA200          *float64 `json:"sma_200,omitempty"`
	BollingerUpper  *float64 `json:"bollinger_upper,omitempty"`
	BollingerMiddle *float64 `json:"bollinger_middle,omitempty"`
	BollingerLower  *float64 `json:"bollinger_lower,omitempty"`
	MACD            *float64 `json:"macd,omitempty"`
	MACDSignal      *float64 `json:"macd_signal,omitempty"`
	MACDHistogram   *float64 `json:"macd_histogram,omitempty"`
	ATR             *float64 `json:"atr_14,omitempty"`
	StochasticK     *float64 `json:"stochastic_k,omitempty"`
	StochasticD     *float64 `json:"stochastic_d,omitempty"`
}

// RiskLevel is a discrete classification derived from RiskMetrics.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// RiskMetrics holds the quantitative risk figures for one security.
// VaR values are positive loss magnitudes.
type RiskMetrics struct {
	Symbol              string  `json:"symbol"`
	VaR95               float64 `json:"var_95"`
	VaR99               float64 `json:"var_99"`
	Beta                float64 `json:"beta"`
	Volatility          float64 `json:"volatility"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	MaxDrawdown         float64 `json:"max_drawdown"`
	CorrelationDomestic float64 `json:"correlation_domestic_index"`
	CorrelationForeign  float64 `json:"correlation_foreign_index"`
}

// PortfolioRisk is the aggregate risk estimate for weighted holdings.
type PortfolioRisk struct {
	Volatility           float64 `json:"portfolio_volatility"`
	VaR95                float64 `json:"var_95"`
	VaR99                float64 `json:"var_99"`
	DiversificationRatio float64 `json:"diversification_ratio"`
}

// Holding is one position in a portfolio request.
type Holding struct {
	Symbol     string  `json:"symbol"`
	Market     Market  `json:"market"`
	Weight     float64 `json:"weight"`
	Volatility float64 `json:"volatility,omitempty"`
}

// SentimentCategory classifies a sentiment score.
type SentimentCategory string

const (
	SentimentPositive SentimentCategory = "positive"
	SentimentNeutral  SentimentCategory = "neutral"
	SentimentNegative SentimentCategory = "negative"
)

// SentimentItem is the per-article breakdown of a sentiment analysis.
type SentimentItem struct {
	Title       string            `json:"title"`
	Score       float64           `json:"sentiment_score"`
	Category    SentimentCategory `json:"sentiment_category"`
	URL         string            `json:"url,omitempty"`
	PublishedAt time.Time         `json:"published_at,omitempty"`
}

// SentimentDistribution counts items per category.
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// SentimentResult is the aggregate output of the sentiment engine.
// OverallScore lies in [-1,1] and Confidence in [0.1,1].
type SentimentResult struct {
	OverallScore float64               `json:"overall_sentiment"`
	Category     SentimentCategory     `json:"overall_category"`
	Confidence   float64               `json:"confidence"`
	NewsCount    int                   `json:"news_count"`
	Distribution SentimentDistribution `json:"sentiment_distribution"`
	Items        []SentimentItem       `json:"analyzed_news"`
	AnalyzedAt   time.Time             `json:"analysis_timestamp"`
}

// AnalysisKind tags which engine produced an AgentAnalysis.
type AnalysisKind string

const (
	KindSentiment AnalysisKind = "sentiment"
	KindRisk      AnalysisKind = "risk"
	KindSynthesis AnalysisKind = "synthesis"
)

// AgentAnalysis is one sub-analysis record merged into the final result.
type AgentAnalysis struct {
	Source     string                 `json:"source_name"`
	Kind       AnalysisKind           `json:"analysis_kind"`
	Summary    string                 `json:"summary"`
	KeyPoints  []string               `json:"key_points"`
	Confidence float64                `json:"confidence_score"`
	Payload    map[string]interface{} `json:"data,omitempty"`
}

// Recommendation is the discrete investment stance.
type Recommendation string

const (
	StrongBuy  Recommendation = "strong_buy"
	Buy        Recommendation = "buy"
	Hold       Recommendation = "hold"
	Sell       Recommendation = "sell"
	StrongSell Recommendation = "strong_sell"
)

// PriceTargets holds the monetary levels attached to a recommendation.
type PriceTargets struct {
	TargetPrice decimal.Decimal `json:"target_price"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	StopLoss    decimal.Decimal `json:"stop_loss"`
	TimeHorizon string          `json:"time_horizon"`
}

// Rationale collects the qualitative grounds behind a recommendation.
// Narrative is the reasoning collaborator's free text, treated as opaque.
type Rationale struct {
	PositiveFactors []string `json:"positive_factors,omitempty"`
	NegativeFactors []string `json:"negative_factors,omitempty"`
	RiskFactors     []string `json:"risk_factors,omitempty"`
	Catalysts       []string `json:"catalysts,omitempty"`
	Narrative       string   `json:"narrative,omitempty"`
}

// PerformanceMetrics holds forward-looking statistical estimates.
type PerformanceMetrics struct {
	ExpectedReturn     float64 `json:"expected_return"`
	ExpectedVolatility float64 `json:"expected_volatility"`
	WinProbability     float64 `json:"win_probability"`
	RiskRewardRatio    float64 `json:"risk_reward_ratio"`
}

// UserProfile carries optional investor preferences into the synthesis.
type UserProfile struct {
	RiskTolerance     string `json:"risk_tolerance,omitempty"`
	InvestmentHorizon string `json:"investment_horizon,omitempty"`
	InvestmentStyle   string `json:"investment_style,omitempty"`
}

// AnalysisResult is the complete record for one analyzed security.
// It is built once by the orchestrator and immutable afterwards.
type AnalysisResult struct {
	ID              string             `json:"id"`
	Symbol          string             `json:"symbol"`
	CompanyName     string             `json:"company_name"`
	Market          Market             `json:"market"`
	CurrentPrice    decimal.Decimal    `json:"current_price"`
	AnalyzedAt      time.Time          `json:"analysis_date"`
	Recommendation  Recommendation     `json:"recommendation"`
	ConfidenceLevel float64            `json:"confidence_level"`
	RiskLevel       RiskLevel          `json:"risk_level"`
	PriceTargets    PriceTargets       `json:"price_targets"`
	Rationale       Rationale          `json:"rationale"`
	Performance     PerformanceMetrics `json:"performance_metrics"`
	SubAnalyses     []AgentAnalysis    `json:"sub_analyses"`
	ProcessingTime  float64            `json:"processing_time"`
}

// PortfolioSummary aggregates a batch of analysis results.
type PortfolioSummary struct {
	TotalStocks       int                    `json:"total_stocks"`
	Recommendations   map[Recommendation]int `json:"recommendation_distribution"`
	RiskLevels        map[RiskLevel]int      `json:"risk_distribution"`
	AverageConfidence float64                `json:"average_confidence"`
}

// PortfolioReport is the output of a portfolio analysis run.
type PortfolioReport struct {
	TotalHoldings int               `json:"total_holdings"`
	AnalyzedCount int               `json:"analyzed_count"`
	Results       []*AnalysisResult `json:"analyses"`
	Risk          PortfolioRisk     `json:"portfolio_risk"`
	Summary       PortfolioSummary  `json:"portfolio_summary"`
	AnalyzedAt    time.Time         `json:"analysis_timestamp"`
}
