package calculate

import (
	"math"
	"testing"
)

func TestRSIBounds(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		period int
		check  func(t *testing.T, v float64)
	}{
		{
			name:   "insufficient data is NaN",
			closes: []float64{100, 101, 102},
			period: 14,
			check: func(t *testing.T, v float64) {
				if !math.IsNaN(v) {
					t.Errorf("expected NaN, got %v", v)
				}
			},
		},
		{
			name:   "all gains pins to 100",
			closes: []float64{100, 101, 102, 103, 104, 105, 106},
			period: 5,
			check: func(t *testing.T, v float64) {
				if v != 100.0 {
					t.Errorf("expected 100, got %v", v)
				}
			},
		},
		{
			name:   "flat series defined as 100",
			closes: []float64{100, 100, 100, 100, 100, 100, 100},
			period: 5,
			check: func(t *testing.T, v float64) {
				if v != 100.0 {
					t.Errorf("expected 100 for zero-loss window, got %v", v)
				}
			},
		},
		{
			name:   "all losses pins to 0",
			closes: []float64{106, 105, 104, 103, 102, 101, 100},
			period: 5,
			check: func(t *testing.T, v float64) {
				if v != 0.0 {
					t.Errorf("expected 0, got %v", v)
				}
			},
		},
		{
			name:   "mixed series stays within bounds",
			closes: []float64{100, 103, 99, 104, 98, 105, 97, 106, 96, 107},
			period: 5,
			check: func(t *testing.T, v float64) {
				if v < 0 || v > 100 {
					t.Errorf("RSI out of [0,100]: %v", v)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := RSI(tt.closes, tt.period)
			tt.check(t, series[len(series)-1])
		})
	}
}

func TestRSIAlignment(t *testing.T) {
	closes := []float64{100, 101, 99, 102, 98, 103, 97, 104}
	period := 3
	series := RSI(closes, period)

	if len(series) != len(closes) {
		t.Fatalf("series length %d, want %d", len(series), len(closes))
	}
	for i := 0; i < period; i++ {
		if !math.IsNaN(series[i]) {
			t.Errorf("position %d should be NaN, got %v", i, series[i])
		}
	}
	for i := period; i < len(series); i++ {
		if math.IsNaN(series[i]) {
			t.Errorf("position %d should be defined", i)
		}
	}
}

func TestBollingerOrdering(t *testing.T) {
	closes := []float64{100, 102, 98, 103, 97, 105, 95, 104, 99, 101, 100, 102}
	upper, middle, lower := BollingerBands(closes, 5, 2.0)

	for i := range closes {
		if math.IsNaN(middle[i]) {
			if i >= 4 {
				t.Errorf("position %d should be populated", i)
			}
			continue
		}
		if !(upper[i] >= middle[i] && middle[i] >= lower[i]) {
			t.Errorf("band ordering violated at %d: %v %v %v", i, upper[i], middle[i], lower[i])
		}
	}
}

func TestBollingerZeroStdDev(t *testing.T) {
	closes := []float64{100, 102, 98, 103, 97, 105}
	upper, middle, lower := BollingerBands(closes, 5, 0)
	last := len(closes) - 1
	if upper[last] != middle[last] || lower[last] != middle[last] {
		t.Errorf("stddev=0 should collapse bands: %v %v %v", upper[last], middle[last], lower[last])
	}
}

func TestLowerReversal(t *testing.T) {
	// Band fixed at 100; bar -2 pierced below, current closed back above.
	closes := []float64{101, 102, 101, 99, 101}
	band := []float64{100, 100, 100, 100, 100}

	if !LowerReversal(closes, band, 3) {
		t.Error("expected lower reversal")
	}

	// No pierce in the lookback window.
	flat := []float64{101, 102, 101, 103, 101}
	if LowerReversal(flat, band, 3) {
		t.Error("reversal without a pierce")
	}

	// Current bar still below the band: no reclaim.
	stillBelow := []float64{101, 102, 99, 98, 99.5}
	if LowerReversal(stillBelow, band, 3) {
		t.Error("reversal without a reclaim")
	}

	// Fewer than lookback+1 bars.
	if LowerReversal([]float64{99, 101}, []float64{100, 100}, 3) {
		t.Error("reversal with insufficient data")
	}
}

func TestUpperReversal(t *testing.T) {
	closes := []float64{99, 98, 101, 99, 99.5}
	band := []float64{100, 100, 100, 100, 100}

	if !UpperReversal(closes, band, 3) {
		t.Error("expected upper reversal")
	}
	if UpperReversal([]float64{101, 99}, []float64{100, 100}, 3) {
		t.Error("reversal with insufficient data")
	}
}

func TestSpotChangePct(t *testing.T) {
	tests := []struct {
		name     string
		closes   []float64
		lookback int
		want     float64
	}{
		{"one bar drop", []float64{100, 90}, 1, -10},
		{"one bar gain", []float64{100, 103}, 1, 3},
		{"insufficient history", []float64{100}, 1, 0},
		{"zero reference", []float64{0, 50}, 1, 0},
		{"multi bar", []float64{100, 105, 110}, 2, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SpotChangePct(tt.closes, tt.lookback)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SpotChangePct() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSupportResistance(t *testing.T) {
	closes := []float64{100, 95, 105, 102, 98}
	s, r := SupportResistance(closes, 5)
	if s != 95 || r != 105 {
		t.Errorf("got %v/%v, want 95/105", s, r)
	}

	// Fallback band when fewer bars than lookback.
	s, r = SupportResistance([]float64{200}, 20)
	if s != 198 || r != 202 {
		t.Errorf("fallback got %v/%v, want 198/202", s, r)
	}
}
