package domain

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// SlopeEpsilon replaces a degenerate (NaN or zero) regression slope.
const SlopeEpsilon = 1e-12

// Candidate is a tradable coin considered for a new position.
type Candidate struct {
	Rules        SymbolRules
	QuoteVolume  decimal.Decimal
	CurrentPrice decimal.Decimal // lowest ask at scoring time
	Candles      []Candle        // daily, oldest first

	Slope       float64
	CandleCount int
	TrendLength int // candles after the highest high
	Score       float64
}

// Symbol returns the candidate symbol.
func (c Candidate) Symbol() string { return c.Rules.Symbol }

// DeclineSeries returns the average-OHLC prices of the candles strictly after
// the candle with the highest high.
func DeclineSeries(candles []Candle) []float64 {
	if len(candles) == 0 {
		return nil
	}
	peak := 0
	for i, c := range candles {
		if c.High.GreaterThan(candles[peak].High) {
			peak = i
		}
	}
	series := make([]float64, 0, len(candles)-peak-1)
	for _, c := range candles[peak+1:] {
		series = append(series, c.AvgPrice().InexactFloat64())
	}
	return series
}

// TrendSlope returns the least-squares slope of prices against their index.
// Empty, single-point and flat series yield SlopeEpsilon instead of NaN or zero.
func TrendSlope(prices []float64) float64 {
	if len(prices) < 2 {
		return SlopeEpsilon
	}
	xs := make([]float64, len(prices))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, prices, nil, false)
	if math.IsNaN(beta) || beta == 0 {
		return SlopeEpsilon
	}
	return beta
}

// Scored fills Slope, CandleCount, TrendLength and Score.
func (c Candidate) Scored() Candidate {
	series := DeclineSeries(c.Candles)
	c.CandleCount = len(c.Candles)
	c.TrendLength = len(series)
	c.Slope = TrendSlope(series)
	c.Score = float64(c.CandleCount) / c.Slope
	return c
}

// RankCandidates scores the pool, drops excluded symbols, keeps only negative
// slopes with more than minTrend candles of decline, and sorts by score descending.
func RankCandidates(pool []Candidate, exclude map[string]bool, minTrend int) []Candidate {
	ranked := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if exclude[c.Symbol()] {
			continue
		}
		c = c.Scored()
		if c.Slope >= 0 || c.TrendLength <= minTrend {
			continue
		}
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
