package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/dualstock/adviser/pkg/models"
)

// newsAPIResponse mirrors the News API /everything JSON.
type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// serperResponse mirrors the Serper news search JSON.
type serperResponse struct {
	News []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
		Source  string `json:"source"`
		Date    string `json:"date"`
	} `json:"news"`
}

// News fetches recent articles about the symbol. Both providers are
// optional: missing keys narrow the result instead of failing, and the
// combined list is capped at the configured limit.
func (c *Client) News(ctx context.Context, symbol, companyName string, market models.Market) ([]models.NewsItem, error) {
	limit := c.config.NewsLimit
	if limit <= 0 {
		limit = 10
	}

	query := newsQuery(symbol, companyName, market)

	var items []models.NewsItem
	if c.creds.NewsAPIKey != "" {
		fromNewsAPI, err := c.newsAPIArticles(ctx, query, market, limit)
		if err != nil {
			c.log.Warn("news api fetch failed", zap.String("symbol", symbol), zap.Error(err))
		} else {
			items = append(items, fromNewsAPI...)
		}
	}

	if len(items) < limit && c.creds.SerperKey != "" {
		fromSerper, err := c.serperArticles(ctx, query, limit-len(items))
		if err != nil {
			c.log.Warn("serper fetch failed", zap.String("symbol", symbol), zap.Error(err))
		} else {
			items = append(items, fromSerper...)
		}
	}

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// newsQuery builds the search phrase; domestic symbols search in Korean.
func newsQuery(symbol, companyName string, market models.Market) string {
	subject := companyName
	if subject == "" {
		subject = symbol
	}
	if market == models.MarketDomestic {
		return subject + " 주식"
	}
	return subject + " stock"
}

func (c *Client) newsAPIArticles(ctx context.Context, query string, market models.Market, limit int) ([]models.NewsItem, error) {
	language := "en"
	if market == models.MarketDomestic {
		language = "ko"
	}

	endpoint := fmt.Sprintf("%s/everything?q=%s&language=%s&sortBy=publishedAt&pageSize=%d&apiKey=%s",
		c.config.NewsAPIURL, url.QueryEscape(query), language, limit, url.QueryEscape(c.creds.NewsAPIKey))

	var resp newsAPIResponse
	if err := c.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("news api status %q", resp.Status)
	}

	items := make([]models.NewsItem, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.Title == "" {
			continue
		}
		items = append(items, models.NewsItem{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: parsePublished(a.PublishedAt),
		})
	}
	return items, nil
}

func (c *Client) serperArticles(ctx context.Context, query string, limit int) ([]models.NewsItem, error) {
	body, err := json.Marshal(map[string]interface{}{
		"q":   query,
		"num": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding serper query: %w", err)
	}

	headers := map[string]string{
		"X-API-KEY":    c.creds.SerperKey,
		"Content-Type": "application/json",
	}

	var resp serperResponse
	if err := c.doJSON(ctx, "POST", c.config.SerperURL+"/news", headers, body, &resp); err != nil {
		return nil, err
	}

	items := make([]models.NewsItem, 0, len(resp.News))
	for _, n := range resp.News {
		if n.Title == "" {
			continue
		}
		items = append(items, models.NewsItem{
			Title:       n.Title,
			Description: n.Snippet,
			URL:         n.Link,
			Source:      n.Source,
			PublishedAt: parsePublished(n.Date),
		})
	}
	return items, nil
}

// parsePublished parses provider timestamps best-effort; an unparseable
// value yields the zero time rather than an error.
func parsePublished(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
