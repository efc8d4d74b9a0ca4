package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dualstock/adviser/internal/config"
	"github.com/dualstock/adviser/pkg/models"
)

// Client retrieves price history, company data and news over HTTP.
// Transient failures are retried with exponential backoff.
type Client struct {
	httpClient *http.Client
	config     config.MarketDataConfig
	markets    config.MarketsConfig
	creds      config.Credentials
	log        *zap.Logger
}

// NewClient creates a new market-data client.
func NewClient(cfg config.MarketDataConfig, markets config.MarketsConfig, creds config.Credentials, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		config:     cfg,
		markets:    markets,
		creds:      creds,
		log:        log,
	}
}

// chartResponse mirrors the chart endpoint JSON.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// rawValue mirrors the provider's {raw, fmt} number wrapper.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

// quoteSummaryResponse mirrors the quoteSummary endpoint JSON, limited to
// the modules the adviser consumes.
type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price *struct {
				LongName  string `json:"longName"`
				ShortName string `json:"shortName"`
				MarketCap rawValue `json:"marketCap"`
			} `json:"price"`
			AssetProfile *struct {
				Sector   string `json:"sector"`
				Industry string `json:"industry"`
			} `json:"assetProfile"`
			SummaryDetail *struct {
				TrailingPE    rawValue `json:"trailingPE"`
				DividendYield rawValue `json:"dividendYield"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics *struct {
				PriceToBook rawValue `json:"priceToBook"`
			} `json:"defaultKeyStatistics"`
			FinancialData *struct {
				ReturnOnEquity rawValue `json:"returnOnEquity"`
				DebtToEquity   rawValue `json:"debtToEquity"`
			} `json:"financialData"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// PriceHistory fetches daily bars for the configured lookback window.
// The returned sequence is chronological; bars with missing fields are
// skipped.
func (c *Client) PriceHistory(ctx context.Context, symbol string, market models.Market) ([]models.PriceBar, error) {
	url := fmt.Sprintf("%s/%s?range=%dd&interval=1d", c.config.ChartURL, c.providerSymbol(symbol, market), c.config.LookbackDays)

	var resp chartResponse
	if err := c.getJSON(ctx, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching price history: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart endpoint error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]models.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			quote.Close[i] == nil || quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil {
			continue
		}
		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		bars = append(bars, models.PriceBar{
			Open:      decimal.NewFromFloat(*quote.Open[i]),
			High:      decimal.NewFromFloat(*quote.High[i]),
			Low:       decimal.NewFromFloat(*quote.Low[i]),
			Close:     decimal.NewFromFloat(*quote.Close[i]),
			Volume:    volume,
			Timestamp: time.Unix(ts, 0).UTC(),
		})
	}
	return bars, nil
}

// CompanyProfile fetches the issuer descriptor, or nil when the provider
// has no company data for the symbol.
func (c *Client) CompanyProfile(ctx context.Context, symbol string, market models.Market) (*models.CompanyInfo, error) {
	url := fmt.Sprintf("%s/%s?modules=price,assetProfile", c.config.QuoteURL, c.providerSymbol(symbol, market))

	var resp quoteSummaryResponse
	if err := c.getJSON(ctx, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching company profile: %w", err)
	}
	if len(resp.QuoteSummary.Result) == 0 || resp.QuoteSummary.Result[0].Price == nil {
		return nil, nil
	}

	result := resp.QuoteSummary.Result[0]
	name := result.Price.LongName
	if name == "" {
		name = result.Price.ShortName
	}
	if name == "" {
		name = symbol
	}

	tier := c.marketTier(market)
	info := &models.CompanyInfo{
		Symbol:   symbol,
		Name:     name,
		Market:   market,
		Currency: tier.Currency,
	}
	if result.AssetProfile != nil {
		info.Sector = result.AssetProfile.Sector
		info.Industry = result.AssetProfile.Industry
	}
	return info, nil
}

// FinancialRatios fetches optional fundamental ratios. Every field may be
// absent; a missing module yields an empty set, not an error.
func (c *Client) FinancialRatios(ctx context.Context, symbol string, market models.Market) (models.FinancialMetrics, error) {
	var metrics models.FinancialMetrics

	url := fmt.Sprintf("%s/%s?modules=summaryDetail,defaultKeyStatistics,financialData,price",
		c.config.QuoteURL, c.providerSymbol(symbol, market))

	var resp quoteSummaryResponse
	if err := c.getJSON(ctx, url, nil, &resp); err != nil {
		return metrics, fmt.Errorf("fetching financial ratios: %w", err)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return metrics, nil
	}

	result := resp.QuoteSummary.Result[0]
	if result.SummaryDetail != nil {
		metrics.PERatio = toDecimal(result.SummaryDetail.TrailingPE)
		metrics.DividendYield = toDecimal(result.SummaryDetail.DividendYield)
	}
	if result.DefaultKeyStatistics != nil {
		metrics.PBRatio = toDecimal(result.DefaultKeyStatistics.PriceToBook)
	}
	if result.FinancialData != nil {
		metrics.ROE = toDecimal(result.FinancialData.ReturnOnEquity)
		if result.FinancialData.DebtToEquity.Raw != nil {
			// Provider reports debt-to-equity as a percentage.
			v := decimal.NewFromFloat(*result.FinancialData.DebtToEquity.Raw / 100)
			metrics.DebtRatio = &v
		}
	}
	if result.Price != nil {
		metrics.MarketCap = toDecimal(result.Price.MarketCap)
	}
	return metrics, nil
}

// providerSymbol maps a local symbol to the provider's notation; domestic
// symbols carry the configured exchange suffix.
func (c *Client) providerSymbol(symbol string, market models.Market) string {
	tier := c.marketTier(market)
	if tier.SymbolSuffix == "" || hasKnownSuffix(symbol) {
		return symbol
	}
	return symbol + tier.SymbolSuffix
}

func (c *Client) marketTier(market models.Market) config.MarketConfig {
	if market == models.MarketForeign {
		return c.markets.Foreign
	}
	return c.markets.Domestic
}

func hasKnownSuffix(symbol string) bool {
	for _, suffix := range []string{".KS", ".KQ"} {
		if len(symbol) > len(suffix) && symbol[len(symbol)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}

func toDecimal(v rawValue) *decimal.Decimal {
	if v.Raw == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v.Raw)
	return &d
}

// getJSON performs a GET with retries and decodes the JSON body into out.
// Client errors (4xx) fail immediately; transport errors and 429/5xx are
// retried with exponential backoff.
func (c *Client) getJSON(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, url, headers, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, url string, headers map[string]string, body []byte, out interface{}) error {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    8 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	attempts := c.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(b.Duration()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = c.doOnce(ctx, method, url, headers, body, out)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		c.log.Debug("retrying request",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	return lastErr
}

// statusError marks an HTTP status failure for retry classification.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (c *Client) doOnce(ctx context.Context, method, url string, headers map[string]string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	// Transport errors are retried; request-building and decode errors
	// come back wrapped and are not status errors either, but retrying
	// them is harmless and keeps the classification simple.
	return true
}
