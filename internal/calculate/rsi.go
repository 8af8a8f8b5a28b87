package calculate

import "math"

// RSI calculates the Relative Strength Index over a simple rolling mean of
// gains and losses. No Wilder smoothing: the plain rolling mean is kept for
// numeric parity with the backtest. Positions before `period` deltas exist
// are NaN. A window with zero average loss yields 100.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	for i := period; i < len(closes); i++ {
		var gains, losses float64
		for j := i - period + 1; j <= i; j++ {
			change := closes[j] - closes[j-1]
			if change > 0 {
				gains += change
			} else {
				losses -= change
			}
		}

		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)

		if avgLoss == 0 {
			out[i] = 100.0
			continue
		}

		rs := avgGain / avgLoss
		out[i] = 100.0 - (100.0 / (1.0 + rs))
	}

	return out
}

// LatestRSI returns the most recent defined RSI value, or NaN if none exists.
func LatestRSI(closes []float64, period int) float64 {
	series := RSI(closes, period)
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			return series[i]
		}
	}
	return math.NaN()
}
