package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipside-labs/flipside/internal/api/gamma"
	"github.com/flipside-labs/flipside/internal/config"
	"github.com/flipside-labs/flipside/models"
)

type fakeSource struct {
	events []gamma.Event
}

func (f *fakeSource) Events(_ context.Context, _ string, _, offset int) ([]gamma.Event, error) {
	if offset > 0 {
		return nil, nil
	}
	return f.events, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Assets: map[string]config.AssetConfig{
			"BTC": {
				BinanceSymbol: "BTCUSDT",
				Keywords:      []string{"bitcoin", "btc"},
			},
		},
	}
}

func upDownEvent(title string, end time.Time) gamma.Event {
	return gamma.Event{
		ID:      "ev-1",
		Title:   title,
		EndDate: end,
		Markets: []gamma.Market{
			{
				ID:          "m-1",
				Question:    title,
				ConditionID: "0xcond",
				TokenIDs:    []string{"tok-up", "tok-down"},
				Outcomes:    []string{"Up", "Down"},
			},
		},
	}
}

func TestMarketsForAssetFilters(t *testing.T) {
	soon := time.Now().UTC().Add(12 * time.Minute)
	tests := []struct {
		name  string
		event gamma.Event
		want  int
	}{
		{
			name:  "matching 15-minute market",
			event: upDownEvent("Bitcoin Up or Down - 1:45PM-2:00PM", soon),
			want:  1,
		},
		{
			name:  "24h time format accepted",
			event: upDownEvent("BTC up or down 14:45-15:00", soon),
			want:  1,
		},
		{
			name:  "wrong asset",
			event: upDownEvent("Solana Up or Down - 1:45PM-2:00PM", soon),
			want:  0,
		},
		{
			name:  "not an up/down market",
			event: upDownEvent("Bitcoin above $100k by 2:00PM? 1:45PM-2:00PM", soon),
			want:  0,
		},
		{
			name:  "no 15-minute interval marker",
			event: upDownEvent("Bitcoin Up or Down today", soon),
			want:  0,
		},
		{
			name:  "outside scan window",
			event: upDownEvent("Bitcoin Up or Down - 1:45PM-2:00PM", time.Now().UTC().Add(2*time.Hour)),
			want:  0,
		},
		{
			name:  "already expired",
			event: upDownEvent("Bitcoin Up or Down - 1:45PM-2:00PM", time.Now().UTC().Add(-5*time.Minute)),
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeSource{events: []gamma.Event{tt.event}}, testConfig())
			markets, err := s.MarketsForAsset(context.Background(), "BTC")
			require.NoError(t, err)
			assert.Len(t, markets, tt.want)
		})
	}
}

func TestMarketsForAssetTokenMapping(t *testing.T) {
	ev := upDownEvent("Bitcoin Up or Down - 1:45PM-2:00PM", time.Now().UTC().Add(10*time.Minute))
	s := New(&fakeSource{events: []gamma.Event{ev}}, testConfig())

	markets, err := s.MarketsForAsset(context.Background(), "BTC")
	require.NoError(t, err)
	require.Len(t, markets, 1)

	m := markets[0]
	assert.Equal(t, "tok-up", m.UpTokenID())
	assert.Equal(t, "tok-up", m.TokenFor(models.DirectionUp))
	assert.Equal(t, "tok-down", m.TokenFor(models.DirectionDown))
	assert.Equal(t, "0xcond", m.ConditionID)
}

func TestAskLiquidity(t *testing.T) {
	book := models.OrderBook{
		Asks: []models.BookLevel{
			{Price: 0.50, Size: 100}, // 50
			{Price: 0.55, Size: 200}, // 110
			{Price: 0.60, Size: 100}, // 60
		},
	}

	assert.InDelta(t, 220.0, AskLiquidity(book, 5), 1e-9)
	assert.InDelta(t, 160.0, AskLiquidity(book, 2), 1e-9)
	assert.True(t, HasLiquidity(book, 200))
	assert.False(t, HasLiquidity(book, 500))
	assert.False(t, HasLiquidity(models.OrderBook{}, 1))
}
