package sentiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dualstock/adviser/internal/config"
	"github.com/dualstock/adviser/pkg/models"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(config.Default().Analysis.Sentiment, zap.NewNop())
}

func TestScoreEmptyNews(t *testing.T) {
	a := newTestAnalyzer()

	t.Run("nil list", func(t *testing.T) {
		result := a.Score(nil)

		assert.Equal(t, 0.0, result.OverallScore)
		assert.Equal(t, models.SentimentNeutral, result.Category)
		assert.Equal(t, 0.1, result.Confidence)
		assert.Equal(t, 0, result.NewsCount)
	})

	t.Run("items without text are skipped", func(t *testing.T) {
		result := a.Score([]models.NewsItem{{Title: "", Description: "  "}})

		assert.Equal(t, 0, result.NewsCount)
		assert.Equal(t, models.SentimentNeutral, result.Category)
	})
}

func TestScoreKoreanHeadlines(t *testing.T) {
	a := newTestAnalyzer()

	news := []models.NewsItem{
		{Title: "삼성전자 주가 급등, 실적 개선 기대감에 강세"},
		{Title: "반도체 매출 증가로 흑자 전환 전망"},
	}
	result := a.Score(news)

	assert.Equal(t, 2, result.NewsCount)
	assert.Greater(t, result.OverallScore, 0.0)
	assert.Equal(t, models.SentimentPositive, result.Category)

	total := result.Distribution.Positive + result.Distribution.Negative + result.Distribution.Neutral
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, result.Distribution.Positive)
}

func TestScoreNegativeHeadlines(t *testing.T) {
	a := newTestAnalyzer()

	news := []models.NewsItem{
		{Title: "주가 폭락 위기, 적자 확대 우려"},
		{Title: "Shares crash as losses mount, bearish outlook deepens"},
	}
	result := a.Score(news)

	assert.Less(t, result.OverallScore, 0.0)
	assert.Equal(t, models.SentimentNegative, result.Category)
}

func TestScoreStaysBounded(t *testing.T) {
	a := newTestAnalyzer()

	// Stacked keywords must not push the score past the bounds.
	news := []models.NewsItem{
		{Title: "상승 급등 돌파 호조 강세 성장 개선 수익 이익 매출 실적 호실적 흑자 배당"},
	}
	result := a.Score(news)

	assert.LessOrEqual(t, result.OverallScore, 1.0)
	assert.GreaterOrEqual(t, result.OverallScore, -1.0)
	assert.Equal(t, models.SentimentPositive, result.Category)
}

func TestConfidenceBounds(t *testing.T) {
	a := newTestAnalyzer()

	t.Run("single article caps confidence low", func(t *testing.T) {
		result := a.Score([]models.NewsItem{{Title: "실적 개선"}})

		assert.GreaterOrEqual(t, result.Confidence, 0.1)
		assert.LessOrEqual(t, result.Confidence, 0.2)
	})

	t.Run("many agreeing articles raise confidence", func(t *testing.T) {
		var news []models.NewsItem
		for i := 0; i < 10; i++ {
			news = append(news, models.NewsItem{Title: "매출 증가와 이익 성장"})
		}
		result := a.Score(news)

		assert.Greater(t, result.Confidence, 0.5)
		assert.LessOrEqual(t, result.Confidence, 1.0)
	})
}

func TestPreprocess(t *testing.T) {
	assert.Equal(t, "급등 news", preprocess("<b>급등</b>!!! news"))
	assert.Equal(t, "a b", preprocess("a    b"))
}

func TestAnalyze(t *testing.T) {
	a := newTestAnalyzer()

	analysis := a.Analyze(context.Background(), "005930", "Samsung Electronics", []models.NewsItem{
		{Title: "실적 호조로 주가 상승"},
	})

	assert.Equal(t, models.KindSentiment, analysis.Kind)
	assert.Equal(t, "Market Sentiment Analyst", analysis.Source)
	assert.NotEmpty(t, analysis.KeyPoints)

	result, ok := analysis.Payload["sentiment"].(models.SentimentResult)
	require.True(t, ok)
	assert.Equal(t, 1, result.NewsCount)
	assert.Equal(t, analysis.Confidence, result.Confidence)
}
