package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipside-labs/flipside/internal/config"
	"github.com/flipside-labs/flipside/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Assets: map[string]config.AssetConfig{
			"BTC": {BinanceSymbol: "BTCUSDT", RSIPeriod: 14},
		},
		BBPeriod:            20,
		BBStdDev:            2.0,
		RSIOversold:         30,
		RSIOverbought:       70,
		DivergenceThreshold: 10.0,
		ImpliedSensitivity:  10.0,
		SRLookback:          20,
		SpotChangeLookback:  1,
	}
}

func candlesFromCloses(closes []float64) []models.Candle {
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			OpenTime: int64(i) * 300_000,
			Open:     c,
			High:     c,
			Low:      c,
			Close:    c,
		}
	}
	return candles
}

func TestAnalyzeInsufficientHistory(t *testing.T) {
	e := New("BTC", testConfig())

	// 19 flat bars plus a 10% drop: still below the bbPeriod+5 threshold.
	closes := make([]float64, 0, 20)
	for i := 0; i < 19; i++ {
		closes = append(closes, 100)
	}
	closes = append(closes, 90)

	sig := e.Analyze(candlesFromCloses(closes), 0.5)

	assert.Equal(t, models.DirectionNeutral, sig.Direction)
	assert.Zero(t, sig.Confidence)
	assert.Zero(t, sig.RSI)
	assert.Zero(t, sig.SpotChangePct)
	assert.Zero(t, sig.Divergence)
	assert.Zero(t, sig.Support)
	assert.Zero(t, sig.Resistance)
	assert.False(t, sig.BBReversal)
}

func TestDivergenceBaseline(t *testing.T) {
	e := New("BTC", testConfig())
	assert.InDelta(t, 0.0, e.Divergence(0, 0.5), 1e-9)
	assert.InDelta(t, 53.0, e.ImpliedProbability(0.3), 1e-9)
}

func TestAnalyzeOverboughtDivergenceDown(t *testing.T) {
	e := New("BTC", testConfig())

	// 29 rising bars push RSI above 70, then a sharp -3.5% final bar makes
	// the momentum-implied probability far below the 30% the market quotes.
	closes := make([]float64, 0, 30)
	for i := 0; i < 29; i++ {
		closes = append(closes, 100+float64(i))
	}
	closes = append(closes, 128*0.965)

	sig := e.Analyze(candlesFromCloses(closes), 0.30)

	require.Equal(t, models.DirectionDown, sig.Direction)
	assert.Equal(t, 0.9, sig.Confidence)
	assert.Greater(t, sig.RSI, 70.0)
	assert.Less(t, sig.Divergence, -10.0)
}

func TestAnalyzeOversoldDivergenceUp(t *testing.T) {
	e := New("BTC", testConfig())

	// Steady decline drives RSI to the floor; with the UP contract quoted at
	// 10 cents the divergence is strongly positive.
	closes := make([]float64, 0, 30)
	for i := 0; i < 30; i++ {
		closes = append(closes, 100-float64(i))
	}

	sig := e.Analyze(candlesFromCloses(closes), 0.10)

	require.Equal(t, models.DirectionUp, sig.Direction)
	assert.Equal(t, 0.9, sig.Confidence)
	assert.Less(t, sig.RSI, 30.0)
	assert.Greater(t, sig.Divergence, 10.0)
}

func TestAnalyzeMidRangeRSINeutral(t *testing.T) {
	e := New("BTC", testConfig())

	// Alternating bars keep RSI near 50: no extreme, no signal, but the
	// snapshot fields are still populated.
	closes := make([]float64, 0, 30)
	for i := 0; i < 30; i++ {
		v := 100.0
		if i%2 == 1 {
			v = 101.0
		}
		closes = append(closes, v)
	}

	sig := e.Analyze(candlesFromCloses(closes), 0.5)

	assert.Equal(t, models.DirectionNeutral, sig.Direction)
	assert.Zero(t, sig.Confidence)
	assert.Greater(t, sig.RSI, 30.0)
	assert.Less(t, sig.RSI, 70.0)
	assert.NotZero(t, sig.Support)
	assert.NotZero(t, sig.Resistance)
}
