package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the full application configuration, loaded once in main and
// passed by reference into component constructors.
type Config struct {
	Markets    MarketsConfig    `yaml:"markets"`
	MarketData MarketDataConfig `yaml:"marketdata"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Reasoning  ReasoningConfig  `yaml:"reasoning"`
	Journal    JournalConfig    `yaml:"journal"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// MarketsConfig holds per-market settings for the two supported markets.
type MarketsConfig struct {
	Domestic MarketConfig `yaml:"domestic"`
	Foreign  MarketConfig `yaml:"foreign"`
}

// MarketConfig describes one market tier.
type MarketConfig struct {
	Currency       string `yaml:"currency"`
	SymbolSuffix   string `yaml:"symbol_suffix"`
	BenchmarkIndex string `yaml:"benchmark_index"`
}

// MarketDataConfig holds settings for the market-data collaborator.
type MarketDataConfig struct {
	ChartURL       string `yaml:"chart_url"`
	QuoteURL       string `yaml:"quote_url"`
	NewsAPIURL     string `yaml:"news_api_url"`
	SerperURL      string `yaml:"serper_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryAttempts  int    `yaml:"retry_attempts"`
	NewsLimit      int    `yaml:"news_limit"`
	LookbackDays   int    `yaml:"lookback_days"`
}

// AnalysisConfig holds settings for the analysis engines.
type AnalysisConfig struct {
	Technical TechnicalConfig  `yaml:"technical"`
	Risk      RiskConfig       `yaml:"risk"`
	Sentiment SentimentConfig  `yaml:"sentiment"`
	Signal    SignalThresholds `yaml:"signal"`
}

// TechnicalConfig holds indicator window sizes.
type TechnicalConfig struct {
	RSIPeriod   int     `yaml:"rsi_period"`
	BBPeriod    int     `yaml:"bb_period"`
	BBStdDev    float64 `yaml:"bb_std_dev"`
	MACDFast    int     `yaml:"macd_fast"`
	MACDSlow    int     `yaml:"macd_slow"`
	MACDSignal  int     `yaml:"macd_signal"`
	ATRPeriod   int     `yaml:"atr_period"`
	StochPeriod int     `yaml:"stoch_period"`
}

// RiskConfig holds risk-engine weights and constants.
type RiskConfig struct {
	VaRWeight               float64 `yaml:"var_weight"`
	VolatilityWeight        float64 `yaml:"volatility_weight"`
	TradingDays             int     `yaml:"trading_days"`
	DiversificationDiscount float64 `yaml:"diversification_discount"`
}

// SentimentConfig holds sentiment-engine tuning values.
type SentimentConfig struct {
	KeywordWeight float64 `yaml:"keyword_weight"`
	ItemBand      float64 `yaml:"item_band"`
	AggregateBand float64 `yaml:"aggregate_band"`
}

// SignalThresholds map the synthesis score to a recommendation.
type SignalThresholds struct {
	StrongBuy  float64 `yaml:"threshold_strong_buy"`
	Buy        float64 `yaml:"threshold_buy"`
	Sell       float64 `yaml:"threshold_sell"`
	StrongSell float64 `yaml:"threshold_strong_sell"`
}

// ReasoningConfig holds settings for the reasoning collaborator.
type ReasoningConfig struct {
	Model          string  `yaml:"model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// JournalConfig holds settings for the append-only result journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	File     string `yaml:"file"`
	JSONFile string `yaml:"json_file"`
	Console  bool   `yaml:"console"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Markets: MarketsConfig{
			Domestic: MarketConfig{Currency: "KRW", SymbolSuffix: ".KS", BenchmarkIndex: "^KS11"},
			Foreign:  MarketConfig{Currency: "USD", BenchmarkIndex: "^GSPC"},
		},
		MarketData: MarketDataConfig{
			ChartURL:       "https://query1.finance.yahoo.com/v8/finance/chart",
			QuoteURL:       "https://query1.finance.yahoo.com/v10/finance/quoteSummary",
			NewsAPIURL:     "https://newsapi.org/v2",
			SerperURL:      "https://google.serper.dev",
			TimeoutSeconds: 30,
			RetryAttempts:  3,
			NewsLimit:      10,
			LookbackDays:   365,
		},
		Analysis: AnalysisConfig{
			Technical: TechnicalConfig{
				RSIPeriod:   14,
				BBPeriod:    20,
				BBStdDev:    2,
				MACDFast:    12,
				MACDSlow:    26,
				MACDSignal:  9,
				ATRPeriod:   14,
				StochPeriod: 14,
			},
			Risk: RiskConfig{
				VaRWeight:               0.6,
				VolatilityWeight:        0.4,
				TradingDays:             252,
				DiversificationDiscount: 0.1,
			},
			Sentiment: SentimentConfig{
				KeywordWeight: 0.1,
				ItemBand:      0.1,
				AggregateBand: 0.2,
			},
			Signal: SignalThresholds{
				StrongBuy:  0.5,
				Buy:        0.15,
				Sell:       -0.15,
				StrongSell: -0.5,
			},
		},
		Reasoning: ReasoningConfig{
			Model:          "claude-sonnet-4-20250514",
			MaxTokens:      2048,
			Temperature:    0.3,
			TimeoutSeconds: 60,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "analyses.jsonl",
		},
		Logging: LoggingConfig{
			Level:    "info",
			File:     "adviser.log",
			JSONFile: "adviser.json.log",
		},
	}
}

// Load reads the YAML configuration at path, layered over defaults so
// partial files stay valid.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Credentials holds API keys loaded from the environment.
type Credentials struct {
	AnthropicKey string
	NewsAPIKey   string
	SerperKey    string
}

// LoadCredentials reads API keys from a .env file (if present) and the
// process environment. Absence of optional keys is not an error.
func LoadCredentials() Credentials {
	// Missing .env is fine; the environment may carry the keys directly.
	_ = godotenv.Load()

	return Credentials{
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		NewsAPIKey:   os.Getenv("NEWS_API_KEY"),
		SerperKey:    os.Getenv("SERPER_API_KEY"),
	}
}

// Validate reports missing required credentials.
func (c Credentials) Validate() error {
	var missing []string
	if c.AnthropicKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Optional lists optional credentials that are not configured.
func (c Credentials) Optional() []string {
	var missing []string
	if c.NewsAPIKey == "" {
		missing = append(missing, "NEWS_API_KEY")
	}
	if c.SerperKey == "" {
		missing = append(missing, "SERPER_API_KEY")
	}
	return missing
}

// Market returns the tier settings for the given market tag.
func (m MarketsConfig) Market(market string) (MarketConfig, error) {
	switch market {
	case "domestic":
		return m.Domestic, nil
	case "foreign":
		return m.Foreign, nil
	default:
		return MarketConfig{}, fmt.Errorf("unsupported market: %s", market)
	}
}
