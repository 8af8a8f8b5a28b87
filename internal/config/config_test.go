package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The window knobs are minutes elapsed in the cycle; the gate compares
// against minutes remaining. With defaults 2-12 on a 15-minute market the
// earliest allowed entry has 13 minutes left and the latest has 3.
func TestEntryWindowRemaining(t *testing.T) {
	cfg := &Config{
		MarketWindowMinutes: 15,
		EntryWindowStartMin: 2,
		EntryWindowEndMin:   12,
	}

	lo, hi := cfg.EntryWindowRemaining()
	assert.Equal(t, 3.0, lo)
	assert.Equal(t, 13.0, hi)

	tests := []struct {
		minutesLeft float64
		allowed     bool
	}{
		{14, false}, // opening minute
		{13, true},  // earliest valid entry
		{7.5, true},
		{3, true},  // latest valid entry
		{2, false}, // too close to expiry
		{0.5, false},
	}
	for _, tt := range tests {
		got := tt.minutesLeft >= lo && tt.minutesLeft <= hi
		assert.Equal(t, tt.allowed, got, "minutes left %.1f", tt.minutesLeft)
	}
}
