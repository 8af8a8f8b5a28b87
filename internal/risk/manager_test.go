package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipside-labs/flipside/internal/config"
	"github.com/flipside-labs/flipside/models"
)

func testConfig() *config.Config {
	return &config.Config{
		InitialCapital: 100,
		MaxPositions:   2,
		StopLossPct:    0.20,
		TakeProfitPct:  0.30,
		MaxExposurePct: 0.50,
		Sizing:         config.SizingStepped,
		StakeDivisor:   20,
		MinStake:       5,
		MaxStake:       50,
		ExpiryGrace:    5 * time.Minute,
	}
}

type fakeBooks struct {
	bids map[string]float64
	err  error
}

func (f *fakeBooks) BestBid(_ context.Context, tokenID string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.bids[tokenID], nil
}

type fakeSpots struct {
	prices map[string]float64
	err    error
}

func (f *fakeSpots) SpotPrice(_ context.Context, symbol string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.prices[symbol], nil
}

type fakeExecutor struct {
	bid      float64
	bidErr   error
	sellRes  models.OrderResult
	sellErr  error
	soldSize float64
}

func (f *fakeExecutor) BestBid(_ context.Context, _ string) (float64, error) {
	return f.bid, f.bidErr
}

func (f *fakeExecutor) Sell(_ context.Context, _ string, _ float64, shares float64) (models.OrderResult, error) {
	f.soldSize = shares
	return f.sellRes, f.sellErr
}

func openPosition(asset string, side models.Direction, size float64) models.Position {
	return models.Position{
		Asset:      asset,
		Side:       side,
		Size:       size,
		EntryPrice: 0.40,
		TokenID:    "tok-" + asset,
		OrderID:    "ord-" + asset,
		Expiry:     time.Now().Add(10 * time.Minute),
		SpotSymbol: asset + "USDT",
	}
}

func TestPositionSizeStepped(t *testing.T) {
	m := New(testConfig())
	assert.Equal(t, 5.0, m.PositionSize()) // floor(100/20)=5

	m.SyncCapital(1200)
	assert.Equal(t, 50.0, m.PositionSize()) // floor(60) clamped to max 50

	m.SyncCapital(40)
	assert.Equal(t, 5.0, m.PositionSize()) // floor(2) floored at min 5
}

func TestPositionSizeFraction(t *testing.T) {
	cfg := testConfig()
	cfg.Sizing = config.SizingFraction
	cfg.PositionSizePct = 0.10
	m := New(cfg)
	assert.Equal(t, 10.0, m.PositionSize())

	m.SyncCapital(20) // 10% = 2, floored at min stake
	assert.Equal(t, 5.0, m.PositionSize())
}

func TestCanOpenMaxPositions(t *testing.T) {
	m := New(testConfig())
	m.Record(openPosition("BTC", models.DirectionUp, 5))
	m.Record(openPosition("ETH", models.DirectionDown, 5))

	assert.False(t, m.CanOpen(5, "SOL"))
	assert.False(t, m.CanOpen(5, "BTC"))
}

func TestCanOpenExposureLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxExposurePct = 0.10
	m := New(cfg)
	m.Record(openPosition("BTC", models.DirectionUp, 8))

	assert.False(t, m.CanOpen(3, "ETH")) // 8+3=11 > 10
	assert.True(t, m.CanOpen(2, "ETH"))  // 8+2=10 <= 10
}

func TestCanOpenDuplicateAsset(t *testing.T) {
	m := New(testConfig())
	m.Record(openPosition("BTC", models.DirectionUp, 5))

	assert.False(t, m.CanOpen(5, "BTC"))
	assert.True(t, m.CanOpen(5, "ETH"))
}

func TestRecordDefaults(t *testing.T) {
	m := New(testConfig())
	m.Record(models.Position{
		Asset:      "BTC",
		Side:       models.DirectionUp,
		Size:       10,
		EntryPrice: 0.40,
		OrderID:    "ord-1",
	})

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.InDelta(t, 25.0, snap[0].Shares, 1e-9) // 10/0.40
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), snap[0].Expiry, 5*time.Second)
}

func TestCleanupExpiry(t *testing.T) {
	m := New(testConfig())

	expired := openPosition("BTC", models.DirectionUp, 5)
	expired.Expiry = time.Now().Add(-400 * time.Second)
	m.Record(expired)

	recent := openPosition("ETH", models.DirectionDown, 5)
	recent.Expiry = time.Now().Add(-100 * time.Second)
	m.Record(recent)

	removed := m.Cleanup()
	require.Len(t, removed, 1)
	assert.Equal(t, "BTC", removed[0].Asset)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestMonitorTakeProfit(t *testing.T) {
	m := New(testConfig())
	pos := openPosition("BTC", models.DirectionUp, 10)
	pos.EntryPrice = 0.40
	m.Record(pos)

	books := &fakeBooks{bids: map[string]float64{"tok-BTC": 0.55}} // +37.5%
	flagged := m.MonitorAll(context.Background(), books, &fakeSpots{})

	require.Len(t, flagged, 1)
	assert.Equal(t, models.ExitTakeProfit, flagged[0].ExitReason)
}

func TestMonitorTakeProfitBelowThreshold(t *testing.T) {
	m := New(testConfig())
	m.Record(openPosition("BTC", models.DirectionUp, 10))

	books := &fakeBooks{bids: map[string]float64{"tok-BTC": 0.45}} // +12.5%
	flagged := m.MonitorAll(context.Background(), books, &fakeSpots{})
	assert.Empty(t, flagged)
}

func TestMonitorSupportBreak(t *testing.T) {
	m := New(testConfig())
	pos := openPosition("BTC", models.DirectionUp, 10)
	pos.SupportLevel = 100000
	m.Record(pos)

	spots := &fakeSpots{prices: map[string]float64{"BTCUSDT": 99500}}
	flagged := m.MonitorAll(context.Background(), &fakeBooks{}, spots)

	require.Len(t, flagged, 1)
	assert.Equal(t, models.ExitSupportBreak, flagged[0].ExitReason)
}

func TestMonitorResistanceBreak(t *testing.T) {
	m := New(testConfig())
	pos := openPosition("ETH", models.DirectionDown, 10)
	pos.ResistanceLevel = 4000
	m.Record(pos)

	spots := &fakeSpots{prices: map[string]float64{"ETHUSDT": 4050}}
	flagged := m.MonitorAll(context.Background(), &fakeBooks{}, spots)

	require.Len(t, flagged, 1)
	assert.Equal(t, models.ExitResistanceBreak, flagged[0].ExitReason)
}

func TestMonitorDeduplicates(t *testing.T) {
	m := New(testConfig())
	pos := openPosition("BTC", models.DirectionUp, 10)
	pos.SupportLevel = 100000
	m.Record(pos)

	// Both take-profit and support break fire for the same position.
	books := &fakeBooks{bids: map[string]float64{"tok-BTC": 0.60}}
	spots := &fakeSpots{prices: map[string]float64{"BTCUSDT": 99000}}
	flagged := m.MonitorAll(context.Background(), books, spots)

	assert.Len(t, flagged, 1)
}

func TestMonitorToleratesQuoteErrors(t *testing.T) {
	m := New(testConfig())
	pos := openPosition("BTC", models.DirectionUp, 10)
	pos.SupportLevel = 100000
	m.Record(pos)

	books := &fakeBooks{err: errors.New("timeout")}
	spots := &fakeSpots{err: errors.New("timeout")}
	flagged := m.MonitorAll(context.Background(), books, spots)

	assert.Empty(t, flagged)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestMonitorIgnoresZeroSpotQuote(t *testing.T) {
	m := New(testConfig())
	pos := openPosition("BTC", models.DirectionUp, 10)
	pos.SupportLevel = 100000
	m.Record(pos)

	// A zero quote with a nil error must not read as a support break.
	spots := &fakeSpots{prices: map[string]float64{"BTCUSDT": 0}}
	flagged := m.MonitorAll(context.Background(), &fakeBooks{}, spots)

	assert.Empty(t, flagged)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestExecuteExit(t *testing.T) {
	m := New(testConfig())
	pos := openPosition("BTC", models.DirectionUp, 10)
	pos.EntryPrice = 0.40
	m.Record(pos)

	snap := m.Snapshot()
	require.Len(t, snap, 1)

	ex := &fakeExecutor{bid: 0.55, sellRes: models.OrderResult{Success: true, OrderID: "sell-1"}}
	target := &snap[0]
	res := m.ExecuteExit(context.Background(), ex, target)

	require.True(t, res.Success)
	assert.InDelta(t, (0.55-0.40)*25.0, res.PnL, 1e-9)
	assert.Equal(t, 0.55, res.ExitPrice)
	assert.Equal(t, 0, m.ActiveCount())
	assert.InDelta(t, 25.0, ex.soldSize, 1e-9)

	// Accounting is a separate step.
	m.UpdateCapital(res.PnL)
	assert.InDelta(t, 100+res.PnL, m.CurrentCapital(), 1e-9)
}

func TestExecuteExitFailureKeepsPosition(t *testing.T) {
	m := New(testConfig())
	m.Record(openPosition("BTC", models.DirectionUp, 10))

	snap := m.Snapshot()
	ex := &fakeExecutor{bid: 0.55, sellRes: models.OrderResult{Success: false, Error: "rejected"}}
	res := m.ExecuteExit(context.Background(), ex, &snap[0])

	assert.False(t, res.Success)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestCheckStopLoss(t *testing.T) {
	m := New(testConfig())
	assert.False(t, m.CheckStopLoss(85)) // 15% down
	assert.True(t, m.CheckStopLoss(80))  // exactly 20% down
	assert.True(t, m.CheckStopLoss(60))
}

func TestSyncCapitalOverwrites(t *testing.T) {
	m := New(testConfig())
	m.UpdateCapital(50)
	m.SyncCapital(42)
	assert.Equal(t, 42.0, m.CurrentCapital())
}

func TestTotalPnLAccumulates(t *testing.T) {
	m := New(testConfig())
	m.UpdateCapital(12)
	m.UpdateCapital(-5)
	assert.Equal(t, 7.0, m.TotalPnL())

	// External balance sync rewrites capital but not realized PnL.
	m.SyncCapital(500)
	assert.Equal(t, 7.0, m.TotalPnL())
	assert.Equal(t, 500.0, m.CurrentCapital())
}
