package calculate

// SupportResistance returns the min and max close over the trailing
// `lookback` bars. With fewer than `lookback` bars it falls back to a band
// of +/-1% around the current close.
func SupportResistance(closes []float64, lookback int) (support, resistance float64) {
	if len(closes) == 0 {
		return 0, 0
	}
	if lookback <= 0 {
		lookback = 20
	}

	last := closes[len(closes)-1]
	if len(closes) < lookback {
		return last * 0.99, last * 1.01
	}

	recent := closes[len(closes)-lookback:]
	support, resistance = recent[0], recent[0]
	for _, v := range recent[1:] {
		if v < support {
			support = v
		}
		if v > resistance {
			resistance = v
		}
	}

	return support, resistance
}
