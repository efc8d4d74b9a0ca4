package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dualstock/adviser/internal/analysis/technical"
	"github.com/dualstock/adviser/internal/config"
	"github.com/dualstock/adviser/pkg/models"
)

func newTestCollector(serverURL string) *Collector {
	cfg := config.Default()
	cfg.MarketData.ChartURL = serverURL + "/chart"
	cfg.MarketData.QuoteURL = serverURL + "/quote"
	cfg.MarketData.RetryAttempts = 1

	client := NewClient(cfg.MarketData, cfg.Markets, config.Credentials{}, zap.NewNop())
	return NewCollector(client, technical.NewAnalyzer(cfg.Analysis.Technical), zap.NewNop())
}

func TestCollect(t *testing.T) {
	quoteBody := `{
		"quoteSummary": {
			"result": [{
				"price": {"longName": "Apple Inc."},
				"assetProfile": {"sector": "Technology"},
				"summaryDetail": {"trailingPE": {"raw": 29.5}}
			}]
		}
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/chart/"):
			w.Write([]byte(chartBody))
		case strings.HasPrefix(r.URL.Path, "/quote/"):
			w.Write([]byte(quoteBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := newTestCollector(server.URL)

	data, err := c.Collect(context.Background(), "AAPL", models.MarketForeign)
	require.NoError(t, err)

	assert.Equal(t, "Apple Inc.", data.Info.Name)
	assert.Len(t, data.PriceHistory, 2)
	assert.Equal(t, "102", data.CurrentPrice.Close.String())
	require.NotNil(t, data.Financials.PERatio)
	assert.Equal(t, "29.5", data.Financials.PERatio.String())
	// history too short for any indicator window
	assert.Nil(t, data.Indicators.RSI)
	assert.Empty(t, data.News, "no news keys configured")
}

func TestCollectDataUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestCollector(server.URL)

	_, err := c.Collect(context.Background(), "GHOST", models.MarketForeign)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestCollectPriceOnlyIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/chart/") {
			w.Write([]byte(chartBody))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestCollector(server.URL)

	_, err := c.Collect(context.Background(), "AAPL", models.MarketForeign)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}
