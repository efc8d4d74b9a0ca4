package sentiment

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/grassmudhorses/vader-go/lexicon"
	"github.com/grassmudhorses/vader-go/sentitext"
	"go.uber.org/zap"

	"github.com/dualstock/adviser/internal/config"
	"github.com/dualstock/adviser/pkg/models"
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]+>`)
	nonWordPattern = regexp.MustCompile(`[^0-9A-Za-z_\s가-힣]`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Bilingual financial keyword lists. The lexical scorer covers English
// polarity; Korean headlines are carried by these lists.
var positiveKeywords = []string{
	"상승", "증가", "성장", "개선", "호조", "강세", "급등", "돌파",
	"수익", "이익", "매출", "실적", "호실적", "흑자", "배당",
	"growth", "profit", "revenue", "earnings", "bullish", "rally",
	"surge", "gain", "rise", "increase", "outperform",
}

var negativeKeywords = []string{
	"하락", "감소", "급락", "폭락", "위험", "손실", "적자", "부진",
	"약세", "하향", "조정", "우려", "불안", "위기", "침체",
	"decline", "fall", "loss", "bearish", "crash", "plunge",
	"drop", "decrease", "risk", "concern", "worry", "crisis",
}

// Analyzer scores news text polarity with a financial keyword adjustment.
type Analyzer struct {
	config config.SentimentConfig
	log    *zap.Logger
}

// NewAnalyzer creates a new sentiment analyzer.
func NewAnalyzer(cfg config.SentimentConfig, log *zap.Logger) *Analyzer {
	return &Analyzer{config: cfg, log: log}
}

// Score analyzes the news items and aggregates per-item polarity into an
// overall sentiment. An empty or unusable item list yields a neutral
// result with the floor confidence of 0.1.
func (a *Analyzer) Score(news []models.NewsItem) models.SentimentResult {
	result := models.SentimentResult{
		Category:   models.SentimentNeutral,
		Confidence: 0.1,
		AnalyzedAt: time.Now(),
	}

	var scores []float64
	for _, item := range news {
		text := strings.TrimSpace(item.Title + " " + item.Description)
		if text == "" {
			continue
		}

		score := a.scoreText(text)
		scores = append(scores, score)

		category := a.categorize(score, a.config.ItemBand)
		switch category {
		case models.SentimentPositive:
			result.Distribution.Positive++
		case models.SentimentNegative:
			result.Distribution.Negative++
		default:
			result.Distribution.Neutral++
		}

		result.Items = append(result.Items, models.SentimentItem{
			Title:       item.Title,
			Score:       score,
			Category:    category,
			URL:         item.URL,
			PublishedAt: item.PublishedAt,
		})
	}

	result.NewsCount = len(result.Items)
	if len(scores) == 0 {
		return result
	}

	var total float64
	for _, s := range scores {
		total += s
	}
	overall := total / float64(len(scores))
	result.OverallScore = overall
	result.Category = a.categorize(overall, a.config.AggregateBand)

	// Dispersion across items and item count both bound confidence;
	// it never drops below the 0.1 floor.
	var variance float64
	for _, s := range scores {
		variance += (s - overall) * (s - overall)
	}
	variance /= float64(len(scores))

	confidence := clamp(1-2*variance, 0.1, 1.0)
	confidence *= math.Min(1, float64(len(scores))/10)
	result.Confidence = clamp(confidence, 0.1, 1.0)

	return result
}

// Analyze wraps scoring into a sub-analysis record for the orchestrator.
func (a *Analyzer) Analyze(ctx context.Context, symbol, companyName string, news []models.NewsItem) models.AgentAnalysis {
	result := a.Score(news)

	a.log.Info("sentiment analysis complete",
		zap.String("symbol", symbol),
		zap.Float64("overall", result.OverallScore),
		zap.String("category", string(result.Category)),
		zap.Int("news_count", result.NewsCount))

	return models.AgentAnalysis{
		Source:  "Market Sentiment Analyst",
		Kind:    models.KindSentiment,
		Summary: fmt.Sprintf("Market sentiment for %s is %s", companyName, result.Category),
		KeyPoints: []string{
			fmt.Sprintf("Overall sentiment: %.2f (%s)", result.OverallScore, result.Category),
			fmt.Sprintf("Articles analyzed: %d", result.NewsCount),
			fmt.Sprintf("Distribution: %d positive / %d negative / %d neutral",
				result.Distribution.Positive, result.Distribution.Negative, result.Distribution.Neutral),
		},
		Confidence: result.Confidence,
		Payload: map[string]interface{}{
			"sentiment": result,
		},
	}
}

// scoreText computes the keyword-adjusted polarity of one text in [-1,1].
func (a *Analyzer) scoreText(text string) float64 {
	cleaned := preprocess(text)

	parsed := sentitext.Parse(cleaned, lexicon.DefaultLexicon)
	base := sentitext.PolarityScore(parsed).Compound

	return a.adjustForKeywords(cleaned, base)
}

// preprocess strips markup and punctuation, keeping alphanumerics and
// Korean script, and collapses whitespace.
func preprocess(text string) string {
	text = tagPattern.ReplaceAllString(text, "")
	text = nonWordPattern.ReplaceAllString(text, " ")
	text = spacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// adjustForKeywords shifts the base polarity by the configured weight per
// net keyword match, clamped to [-1,1].
func (a *Analyzer) adjustForKeywords(text string, base float64) float64 {
	lower := strings.ToLower(text)

	var positive, negative int
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			positive++
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			negative++
		}
	}

	adjusted := base + a.config.KeywordWeight*float64(positive-negative)
	return clamp(adjusted, -1, 1)
}

func (a *Analyzer) categorize(score, band float64) models.SentimentCategory {
	switch {
	case score > band:
		return models.SentimentPositive
	case score < -band:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
