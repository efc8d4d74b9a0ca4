package marketdata

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dualstock/adviser/internal/analysis/technical"
	"github.com/dualstock/adviser/pkg/models"
)

// ErrDataUnavailable reports that the provider yielded neither price
// history nor a company descriptor for the symbol.
var ErrDataUnavailable = errors.New("market data unavailable")

// Collector assembles a complete StockData snapshot from the provider
// endpoints and computes the technical indicator set over the result.
type Collector struct {
	client    *Client
	technical *technical.Analyzer
	log       *zap.Logger
}

// NewCollector creates a new collector.
func NewCollector(client *Client, tech *technical.Analyzer, log *zap.Logger) *Collector {
	return &Collector{
		client:    client,
		technical: tech,
		log:       log,
	}
}

// Collect fetches price history, company profile, financial ratios and
// news concurrently. Individual fetch failures degrade to empty slots;
// only the absence of both price data and a company descriptor makes the
// snapshot unusable.
func (c *Collector) Collect(ctx context.Context, symbol string, market models.Market) (*models.StockData, error) {
	var (
		bars       []models.PriceBar
		company    *models.CompanyInfo
		financials models.FinancialMetrics
		news       []models.NewsItem
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fetched, err := c.client.PriceHistory(gctx, symbol, market)
		if err != nil {
			c.log.Warn("price history fetch failed", zap.String("symbol", symbol), zap.Error(err))
			return nil
		}
		bars = fetched
		return nil
	})

	g.Go(func() error {
		fetched, err := c.client.CompanyProfile(gctx, symbol, market)
		if err != nil {
			c.log.Warn("company profile fetch failed", zap.String("symbol", symbol), zap.Error(err))
			return nil
		}
		company = fetched
		return nil
	})

	g.Go(func() error {
		fetched, err := c.client.FinancialRatios(gctx, symbol, market)
		if err != nil {
			c.log.Warn("financial ratios fetch failed", zap.String("symbol", symbol), zap.Error(err))
			return nil
		}
		financials = fetched
		return nil
	})

	g.Go(func() error {
		fetched, err := c.client.News(gctx, symbol, "", market)
		if err != nil {
			c.log.Warn("news fetch failed", zap.String("symbol", symbol), zap.Error(err))
			return nil
		}
		news = fetched
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collecting market data: %w", err)
	}

	if len(bars) == 0 || company == nil {
		return nil, fmt.Errorf("%w: %s", ErrDataUnavailable, symbol)
	}

	data := &models.StockData{
		Info:         *company,
		CurrentPrice: bars[len(bars)-1],
		PriceHistory: bars,
		Financials:   financials,
		News:         news,
		Indicators:   c.technical.Compute(bars),
	}

	c.log.Info("collected market data",
		zap.String("symbol", symbol),
		zap.String("market", string(market)),
		zap.Int("bars", len(bars)),
		zap.Int("news", len(news)))

	return data, nil
}
