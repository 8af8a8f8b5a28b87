package calculate

import "math"

// BollingerBands calculates rolling mean +/- stdDev standard deviations over
// a window of `period` bars. The three returned series are aligned with the
// input; positions before the window is fully populated are NaN. Sample
// standard deviation (n-1) is used, matching the reference backtest.
func BollingerBands(closes []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	n := len(closes)
	upper = nanSeries(n)
	middle = nanSeries(n)
	lower = nanSeries(n)
	if period < 2 || n < period {
		return upper, middle, lower
	}

	for i := period - 1; i < n; i++ {
		window := closes[i-period+1 : i+1]

		var sum float64
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(period)

		var variance float64
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		sd := math.Sqrt(variance / float64(period-1))

		middle[i] = mean
		upper[i] = mean + sd*stdDev
		lower[i] = mean - sd*stdDev
	}

	return upper, middle, lower
}

func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
