package strategy

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/internal/calculate"
	"github.com/flipside-labs/flipside/internal/config"
	"github.com/flipside-labs/flipside/models"
)

// Engine generates directional signals for one asset by combining RSI
// extremes, Bollinger reversals, support/resistance proximity and the
// divergence between spot momentum and the market's quoted odds.
type Engine struct {
	asset string

	rsiPeriod           int
	rsiOversold         float64
	rsiOverbought       float64
	bbPeriod            int
	bbStdDev            float64
	divergenceThreshold float64
	impliedSensitivity  float64
	srLookback          int
	spotChangeLookback  int

	logger zerolog.Logger
}

// New creates a strategy engine for an asset, taking the asset-specific RSI
// period from the config's asset table.
func New(asset string, cfg *config.Config) *Engine {
	rsiPeriod := 14
	if ac, ok := cfg.Assets[asset]; ok && ac.RSIPeriod > 0 {
		rsiPeriod = ac.RSIPeriod
	}

	e := &Engine{
		asset:               asset,
		rsiPeriod:           rsiPeriod,
		rsiOversold:         cfg.RSIOversold,
		rsiOverbought:       cfg.RSIOverbought,
		bbPeriod:            cfg.BBPeriod,
		bbStdDev:            cfg.BBStdDev,
		divergenceThreshold: cfg.DivergenceThreshold,
		impliedSensitivity:  cfg.ImpliedSensitivity,
		srLookback:          cfg.SRLookback,
		spotChangeLookback:  cfg.SpotChangeLookback,
		logger:              log.With().Str("component", "strategy").Str("asset", asset).Logger(),
	}

	e.logger.Info().
		Float64("oversold", e.rsiOversold).
		Float64("overbought", e.rsiOverbought).
		Int("rsi_period", e.rsiPeriod).
		Msg("strategy initialized")

	return e
}

// MinHistory is the number of candles required before Analyze produces a
// non-neutral signal.
func (e *Engine) MinHistory() int {
	return e.bbPeriod + 5
}

// ImpliedProbability converts a spot percent change into an implied "UP"
// probability. The linear sensitivity mapping (default 10 probability points
// per 1% move) is a heuristic model, not a calibrated one.
func (e *Engine) ImpliedProbability(spotChangePct float64) float64 {
	return 50.0 + spotChangePct*e.impliedSensitivity
}

// Divergence is the gap between the momentum-implied probability and the
// market's quoted probability, in percentage points. Positive means the
// market underprices the UP outcome.
func (e *Engine) Divergence(spotChangePct, upOdds float64) float64 {
	return e.ImpliedProbability(spotChangePct) - upOdds*100.0
}

// Analyze evaluates the full swing logic against the candle history and the
// market's current UP odds (0..1). With fewer than MinHistory candles it
// returns a NEUTRAL signal with zero-valued fields.
func (e *Engine) Analyze(history []models.Candle, upOdds float64) models.Signal {
	result := models.Signal{Direction: models.DirectionNeutral}

	if len(history) < e.MinHistory() {
		return result
	}

	closes := make([]float64, len(history))
	for i, c := range history {
		closes[i] = c.Close
	}
	currentPrice := closes[len(closes)-1]

	rsi := calculate.LatestRSI(closes, e.rsiPeriod)
	if math.IsNaN(rsi) {
		return result
	}
	result.RSI = rsi

	upperBB, _, lowerBB := calculate.BollingerBands(closes, e.bbPeriod, e.bbStdDev)
	bbBullish := calculate.LowerReversal(closes, lowerBB, 3)
	bbBearish := calculate.UpperReversal(closes, upperBB, 3)
	result.BBReversal = bbBullish || bbBearish

	result.SpotChangePct = calculate.SpotChangePct(closes, e.spotChangeLookback)
	result.Divergence = e.Divergence(result.SpotChangePct, upOdds)

	support, resistance := calculate.SupportResistance(closes, e.srLookback)
	result.Support = support
	result.Resistance = resistance

	// First matching confirmation wins; RSI extreme alone is not enough.
	switch {
	case rsi < e.rsiOversold:
		result.Reasons = append(result.Reasons, fmt.Sprintf("RSI=%.1f<%.0f", rsi, e.rsiOversold))

		switch {
		case result.Divergence > e.divergenceThreshold:
			result.Reasons = append(result.Reasons, fmt.Sprintf("Divergence=%+.1f%%", result.Divergence))
			result.Direction = models.DirectionUp
			result.Confidence = 0.9
		case bbBullish:
			result.Reasons = append(result.Reasons, "BB Lower Reversal")
			result.Direction = models.DirectionUp
			result.Confidence = 0.85
		case math.Abs(currentPrice-support)/currentPrice < 0.005:
			result.Reasons = append(result.Reasons, fmt.Sprintf("Near Support $%.2f", support))
			result.Direction = models.DirectionUp
			result.Confidence = 0.8
		}

	case rsi > e.rsiOverbought:
		result.Reasons = append(result.Reasons, fmt.Sprintf("RSI=%.1f>%.0f", rsi, e.rsiOverbought))

		switch {
		case result.Divergence < -e.divergenceThreshold:
			result.Reasons = append(result.Reasons, fmt.Sprintf("Divergence=%+.1f%%", result.Divergence))
			result.Direction = models.DirectionDown
			result.Confidence = 0.9
		case bbBearish:
			result.Reasons = append(result.Reasons, "BB Upper Reversal")
			result.Direction = models.DirectionDown
			result.Confidence = 0.85
		case math.Abs(currentPrice-resistance)/currentPrice < 0.005:
			result.Reasons = append(result.Reasons, fmt.Sprintf("Near Resistance $%.2f", resistance))
			result.Direction = models.DirectionDown
			result.Confidence = 0.8
		}
	}

	if result.Direction != models.DirectionNeutral {
		e.logger.Info().
			Str("signal", string(result.Direction)).
			Float64("confidence", result.Confidence).
			Strs("reasons", result.Reasons).
			Msg("signal generated")
	} else {
		e.logger.Debug().
			Float64("price", currentPrice).
			Float64("rsi", rsi).
			Float64("divergence", result.Divergence).
			Msg("no signal")
	}

	return result
}
