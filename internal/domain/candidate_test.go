package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatCandle(p float64) Candle {
	v := decimal.NewFromFloat(p)
	return Candle{Open: v, High: v, Low: v, Close: v}
}

// risingThenFalling builds rise candles climbing to a peak followed by fall
// candles declining by step each day.
func risingThenFalling(rise, fall int, step float64) []Candle {
	out := make([]Candle, 0, rise+fall)
	for i := 0; i < rise; i++ {
		out = append(out, flatCandle(1+0.01*float64(i)))
	}
	for i := 0; i < fall; i++ {
		out = append(out, flatCandle(1.2-step*float64(i)))
	}
	return out
}

func candidate(sym string, candles []Candle) Candidate {
	return Candidate{Rules: SymbolRules{Symbol: sym, Trading: true}, Candles: candles}
}

func TestDeclineSeries_StartsAfterHighestHigh(t *testing.T) {
	candles := risingThenFalling(50, 40, 0.01)
	series := DeclineSeries(candles)
	require.Len(t, series, 40)
	assert.InDelta(t, 1.2, series[0], 1e-9)
	assert.Nil(t, DeclineSeries(nil))
}

func TestTrendSlope_DegenerateSeries(t *testing.T) {
	assert.Equal(t, SlopeEpsilon, TrendSlope(nil))
	assert.Equal(t, SlopeEpsilon, TrendSlope([]float64{1.5}))
	assert.Equal(t, SlopeEpsilon, TrendSlope([]float64{2, 2, 2, 2}))
	assert.InDelta(t, -0.5, TrendSlope([]float64{3, 2.5, 2, 1.5}), 1e-12)
}

func TestScored_DowntrendAfterPeak(t *testing.T) {
	c := candidate("AAABTC", risingThenFalling(50, 40, 0.01)).Scored()

	assert.Equal(t, 90, c.CandleCount)
	assert.Equal(t, 40, c.TrendLength)
	assert.InDelta(t, -0.01, c.Slope, 1e-9)
	assert.InDelta(t, 90/c.Slope, c.Score, 1e-9)
	assert.False(t, math.IsNaN(c.Score))
}

func TestRankCandidates(t *testing.T) {
	flat := make([]Candle, 90)
	for i := range flat {
		flat[i] = flatCandle(0.5)
	}
	pool := []Candidate{
		candidate("SLOWBTC", risingThenFalling(50, 40, 0.01)),
		candidate("FASTBTC", risingThenFalling(50, 40, 0.02)),
		candidate("FLATBTC", flat),
		candidate("SHORTBTC", risingThenFalling(70, 20, 0.01)),
		candidate("HELDBTC", risingThenFalling(50, 40, 0.015)),
	}

	ranked := RankCandidates(pool, map[string]bool{"HELDBTC": true}, 30)

	require.Len(t, ranked, 2, "flat, short-trend and excluded symbols are dropped")
	assert.Equal(t, "FASTBTC", ranked[0].Symbol())
	assert.Equal(t, "SLOWBTC", ranked[1].Symbol())
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
	for _, c := range ranked {
		assert.Less(t, c.Slope, 0.0)
	}
}

func TestRankCandidates_Empty(t *testing.T) {
	assert.Empty(t, RankCandidates(nil, nil, 30))
}
