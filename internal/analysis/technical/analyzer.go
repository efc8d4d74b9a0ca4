package technical

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/dualstock/adviser/internal/config"
	"github.com/dualstock/adviser/pkg/models"
)

// Analyzer computes technical indicators from an ordered price series.
// All computations are pure and total: when the history is too short for
// an indicator's window, that field stays nil.
type Analyzer struct {
	config config.TechnicalConfig
}

// NewAnalyzer creates a new technical indicator analyzer.
func NewAnalyzer(cfg config.TechnicalConfig) *Analyzer {
	return &Analyzer{config: cfg}
}

// Compute derives the indicator set from chronological price bars.
func (a *Analyzer) Compute(bars []models.PriceBar) models.IndicatorSet {
	var set models.IndicatorSet
	if len(bars) == 0 {
		return set
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close.InexactFloat64()
		highs[i] = b.High.InexactFloat64()
		lows[i] = b.Low.InexactFloat64()
	}

	set.RSI = rsi(closes, a.config.RSIPeriod)

	set.SMA20 = sma(closes, 20)
	set.SMA50 = sma(closes, 50)
	set.SMA200 = sma(closes, 200)

	set.BollingerUpper, set.BollingerMiddle, set.BollingerLower = bollinger(closes, a.config.BBPeriod, a.config.BBStdDev)

	set.MACD, set.MACDSignal, set.MACDHistogram = macd(closes, a.config.MACDFast, a.config.MACDSlow, a.config.MACDSignal)

	set.ATR = atr(highs, lows, closes, a.config.ATRPeriod)
	set.StochasticK, set.StochasticD = stochastic(highs, lows, closes, a.config.StochPeriod)

	return set
}

// rsi computes the Relative Strength Index over the last period deltas.
// Requires period+1 closes. RSI is exactly 100 when the trailing average
// loss is zero.
func rsi(closes []float64, period int) *float64 {
	if len(closes) < period+1 {
		return nil
	}

	deltas := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		deltas[i-1] = closes[i] - closes[i-1]
	}

	var gainSum, lossSum float64
	for _, d := range deltas[len(deltas)-period:] {
		if d > 0 {
			gainSum += d
		} else {
			lossSum += -d
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	if avgLoss == 0 {
		v := 100.0
		return &v
	}
	v := 100 - 100/(1+avgGain/avgLoss)
	return &v
}

// sma computes the arithmetic mean of the most recent window closes.
func sma(closes []float64, window int) *float64 {
	if len(closes) < window {
		return nil
	}
	var sum float64
	for _, c := range closes[len(closes)-window:] {
		sum += c
	}
	v := sum / float64(window)
	return &v
}

// bollinger computes Bollinger Bands: SMA(period) plus/minus k population
// standard deviations of the last period closes.
func bollinger(closes []float64, period int, k float64) (upper, middle, lower *float64) {
	if len(closes) < period {
		return nil, nil, nil
	}

	recent := closes[len(closes)-period:]
	var sum float64
	for _, c := range recent {
		sum += c
	}
	mid := sum / float64(period)

	var variance float64
	for _, c := range recent {
		variance += (c - mid) * (c - mid)
	}
	sigma := math.Sqrt(variance / float64(period))

	up := mid + k*sigma
	low := mid - k*sigma
	return &up, &mid, &low
}

// macd computes the MACD line from trailing fast/slow exponential moving
// averages. The signal line is the documented 0.9*macd approximation when
// at least slow+signal closes exist, not a true EMA of the MACD series.
func macd(closes []float64, fast, slow, signal int) (line, sig, hist *float64) {
	if len(closes) < slow {
		return nil, nil, nil
	}

	emaFast := ema(closes[len(closes)-fast:])
	emaSlow := ema(closes[len(closes)-slow:])
	macdLine := emaFast - emaSlow

	var signalLine, histogram float64
	if len(closes) >= slow+signal {
		signalLine = macdLine * 0.9
		histogram = macdLine - signalLine
	} else {
		signalLine = macdLine
		histogram = 0
	}
	return &macdLine, &signalLine, &histogram
}

// ema computes an exponential moving average over the full slice, seeded
// with its first value and smoothing 2/(n+1) where n = len(prices).
func ema(prices []float64) float64 {
	multiplier := 2 / float64(len(prices)+1)
	v := prices[0]
	for _, p := range prices[1:] {
		v = (p-v)*multiplier + v
	}
	return v
}

// atr computes the Average True Range via talib. Needs period+1 bars for
// a defined value.
func atr(highs, lows, closes []float64, period int) *float64 {
	if len(closes) < period+1 {
		return nil
	}
	values := talib.Atr(highs, lows, closes, period)
	v := values[len(values)-1]
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// stochastic computes the slow stochastic oscillator (%K, %D) via talib
// with 3-period SMA smoothing on both lines.
func stochastic(highs, lows, closes []float64, period int) (k, d *float64) {
	// fast %K lookback plus two 3-period smoothings
	if len(closes) < period+4 {
		return nil, nil
	}
	slowK, slowD := talib.Stoch(highs, lows, closes, period, 3, talib.SMA, 3, talib.SMA)
	kv := slowK[len(slowK)-1]
	dv := slowD[len(slowD)-1]
	if math.IsNaN(kv) || math.IsNaN(dv) {
		return nil, nil
	}
	return &kv, &dv
}
