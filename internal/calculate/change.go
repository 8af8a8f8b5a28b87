package calculate

// SpotChangePct calculates the percent change in the spot price over the
// last `lookback` candles. Returns 0 on insufficient history or a zero
// reference price.
func SpotChangePct(closes []float64, lookback int) float64 {
	if lookback <= 0 {
		lookback = 1
	}
	if len(closes) < lookback+1 {
		return 0.0
	}

	previous := closes[len(closes)-1-lookback]
	current := closes[len(closes)-1]

	if previous == 0 {
		return 0.0
	}

	return ((current - previous) / previous) * 100.0
}
