package calculate

// LowerReversal detects a bullish piercing-then-reclaim pattern: any of the
// `lookback` bars before the current one closed strictly below its lower
// band value, and the current bar closed back strictly above the band.
// False when fewer than lookback+1 bars are available. NaN band values never
// match either condition.
func LowerReversal(closes, lowerBand []float64, lookback int) bool {
	if lookback <= 0 {
		lookback = 3
	}
	n := len(closes)
	if n < lookback+1 || len(lowerBand) != n {
		return false
	}

	touched := false
	for i := n - 1 - lookback; i < n-1; i++ {
		if closes[i] < lowerBand[i] {
			touched = true
			break
		}
	}

	return touched && closes[n-1] > lowerBand[n-1]
}

// UpperReversal is the bearish mirror: a recent close pierced above the
// upper band and the current bar closed back strictly below it.
func UpperReversal(closes, upperBand []float64, lookback int) bool {
	if lookback <= 0 {
		lookback = 3
	}
	n := len(closes)
	if n < lookback+1 || len(upperBand) != n {
		return false
	}

	touched := false
	for i := n - 1 - lookback; i < n-1; i++ {
		if closes[i] > upperBand[i] {
			touched = true
			break
		}
	}

	return touched && closes[n-1] < upperBand[n-1]
}
