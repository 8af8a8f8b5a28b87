package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/internal/config"
	"github.com/flipside-labs/flipside/models"
)

// BookQuoter supplies the best counter-price for a contract token. The
// CLOB adapter implements it.
type BookQuoter interface {
	BestBid(ctx context.Context, tokenID string) (float64, error)
}

// SpotQuoter supplies the current spot price of an underlying symbol. The
// market-data adapter implements it.
type SpotQuoter interface {
	SpotPrice(ctx context.Context, symbol string) (float64, error)
}

// ExitExecutor closes positions on the order book.
type ExitExecutor interface {
	BestBid(ctx context.Context, tokenID string) (float64, error)
	Sell(ctx context.Context, tokenID string, price, shares float64) (models.OrderResult, error)
}

// Manager tracks portfolio capital and the active-position set, and
// enforces the capital protection rules. Admission checks and recording
// share one mutex so concurrent trade attempts cannot break the
// one-position-per-asset or exposure invariants.
type Manager struct {
	mu sync.Mutex

	initialCapital float64
	currentCapital float64
	totalPnL       float64

	maxPositions   int
	stopLossPct    float64
	takeProfitPct  float64
	maxExposurePct float64
	expiryGrace    time.Duration

	sizing          config.SizingPolicy
	stakeDivisor    float64
	minStake        float64
	maxStake        float64
	positionSizePct float64

	positions []*models.Position

	logger zerolog.Logger
}

// New creates a risk manager initialized from configuration.
func New(cfg *config.Config) *Manager {
	m := &Manager{
		initialCapital:  cfg.InitialCapital,
		currentCapital:  cfg.InitialCapital,
		maxPositions:    cfg.MaxPositions,
		stopLossPct:     cfg.StopLossPct,
		takeProfitPct:   cfg.TakeProfitPct,
		maxExposurePct:  cfg.MaxExposurePct,
		expiryGrace:     cfg.ExpiryGrace,
		sizing:          cfg.Sizing,
		stakeDivisor:    cfg.StakeDivisor,
		minStake:        cfg.MinStake,
		maxStake:        cfg.MaxStake,
		positionSizePct: cfg.PositionSizePct,
		logger:          log.With().Str("component", "risk").Logger(),
	}

	m.logger.Info().
		Float64("capital", m.currentCapital).
		Int("max_positions", m.maxPositions).
		Str("sizing", string(m.sizing)).
		Msg("risk manager initialized")

	return m
}

// PositionSize returns the USD stake for the next trade under the
// configured sizing policy.
func (m *Manager) PositionSize() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionSizeLocked()
}

func (m *Manager) positionSizeLocked() float64 {
	switch m.sizing {
	case config.SizingFraction:
		size := m.currentCapital * m.positionSizePct
		return math.Max(size, m.minStake)
	default: // stepped divisor
		stake := math.Floor(m.currentCapital / m.stakeDivisor)
		return math.Max(m.minStake, math.Min(stake, m.maxStake))
	}
}

// CurrentExposure is the total USD currently committed to open positions.
func (m *Manager) CurrentExposure() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exposureLocked()
}

func (m *Manager) exposureLocked() float64 {
	var total float64
	for _, p := range m.positions {
		total += p.Size
	}
	return total
}

// CanOpen reports whether a new position of the given size may be opened
// for the asset. A negative answer is a normal outcome, not an error.
func (m *Manager) CanOpen(amount float64, asset string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.positions) >= m.maxPositions {
		m.logger.Warn().Int("max", m.maxPositions).Msg("max positions reached, cannot open")
		return false
	}

	exposure := m.exposureLocked()
	maxExposure := m.currentCapital * m.maxExposurePct
	if exposure+amount > maxExposure {
		m.logger.Warn().
			Float64("exposure", exposure).
			Float64("adding", amount).
			Float64("limit", maxExposure).
			Msg("exposure limit would be exceeded")
		return false
	}

	for _, p := range m.positions {
		if p.Asset == asset {
			m.logger.Warn().Str("asset", asset).Msg("already holding position, no pyramiding")
			return false
		}
	}

	return true
}

// Record appends a fully populated position to the active set. A zero
// expiry defaults to 15 minutes from now; zero shares default to
// size/entry price.
func (m *Manager) Record(pos models.Position) {
	if pos.Expiry.IsZero() {
		pos.Expiry = time.Now().Add(15 * time.Minute)
	}
	if pos.Shares == 0 && pos.EntryPrice > 0 {
		pos.Shares = pos.Size / pos.EntryPrice
	}
	if pos.EntryTime.IsZero() {
		pos.EntryTime = time.Now()
	}

	m.mu.Lock()
	m.positions = append(m.positions, &pos)
	m.mu.Unlock()

	m.logger.Info().
		Str("asset", pos.Asset).
		Str("side", string(pos.Side)).
		Float64("size", pos.Size).
		Float64("entry", pos.EntryPrice).
		Time("expiry", pos.Expiry).
		Msg("position recorded")
}

// MonitorAll evaluates every active position for take-profit and technical
// stop-loss conditions. A position flagged by both appears once, keyed by
// its order ID. Collaborator errors are logged and treated as "no data for
// this position this cycle".
func (m *Manager) MonitorAll(ctx context.Context, books BookQuoter, spots SpotQuoter) []*models.Position {
	m.mu.Lock()
	active := make([]*models.Position, len(m.positions))
	copy(active, m.positions)
	m.mu.Unlock()

	var flagged []*models.Position
	seen := make(map[string]bool)

	flag := func(p *models.Position, reason models.ExitReason) {
		if seen[p.OrderID] {
			return
		}
		seen[p.OrderID] = true
		p.ExitReason = reason
		flagged = append(flagged, p)
	}

	for _, p := range active {
		// Take-profit: current best bid vs entry.
		if books != nil {
			bid, err := books.BestBid(ctx, p.TokenID)
			if err != nil {
				m.logger.Debug().Err(err).Str("asset", p.Asset).Msg("take-profit check skipped")
			} else if bid > 0 && p.EntryPrice > 0 {
				profitPct := (bid - p.EntryPrice) / p.EntryPrice
				if profitPct >= m.takeProfitPct {
					m.logger.Info().
						Str("asset", p.Asset).
						Float64("profit_pct", profitPct*100).
						Msg("take profit triggered")
					flag(p, models.ExitTakeProfit)
				}
			}
		}

		// Technical stop-loss: the underlying breached the invalidation level.
		if spots != nil && p.SpotSymbol != "" {
			spot, err := spots.SpotPrice(ctx, p.SpotSymbol)
			if err != nil || spot <= 0 {
				m.logger.Debug().Err(err).Str("asset", p.Asset).Msg("technical stop check skipped")
				continue
			}
			switch {
			case p.Side == models.DirectionUp && p.SupportLevel > 0 && spot < p.SupportLevel:
				m.logger.Info().
					Str("asset", p.Asset).
					Float64("spot", spot).
					Float64("support", p.SupportLevel).
					Msg("support broken, thesis invalidated")
				flag(p, models.ExitSupportBreak)
			case p.Side == models.DirectionDown && p.ResistanceLevel > 0 && spot > p.ResistanceLevel:
				m.logger.Info().
					Str("asset", p.Asset).
					Float64("spot", spot).
					Float64("resistance", p.ResistanceLevel).
					Msg("resistance broken, thesis invalidated")
				flag(p, models.ExitResistanceBreak)
			}
		}
	}

	return flagged
}

// ExecuteExit closes the full share count at the best available bid and
// removes the position from the active set on success. The realized PnL is
// returned but not applied to capital; callers apply it via UpdateCapital
// so trade execution and portfolio accounting stay separate steps.
func (m *Manager) ExecuteExit(ctx context.Context, ex ExitExecutor, pos *models.Position) models.ExitResult {
	bid, err := ex.BestBid(ctx, pos.TokenID)
	if err != nil {
		return models.ExitResult{Error: fmt.Sprintf("no exit price: %v", err)}
	}
	if bid <= 0 {
		return models.ExitResult{Error: "no bids available"}
	}

	res, err := ex.Sell(ctx, pos.TokenID, bid, pos.Shares)
	if err != nil {
		return models.ExitResult{Error: fmt.Sprintf("sell failed: %v", err)}
	}
	if !res.Success {
		return models.ExitResult{Error: res.Error}
	}

	pnl := (bid - pos.EntryPrice) * pos.Shares
	pos.ExitPrice = bid

	m.remove(pos.OrderID)

	m.logger.Info().
		Str("asset", pos.Asset).
		Str("reason", string(pos.ExitReason)).
		Float64("exit_price", bid).
		Float64("pnl", pnl).
		Msg("position exited")

	return models.ExitResult{Success: true, PnL: pnl, ExitPrice: bid}
}

func (m *Manager) remove(orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.positions[:0]
	for _, p := range m.positions {
		if p.OrderID != orderID {
			kept = append(kept, p)
		}
	}
	m.positions = kept
}

// UpdateCapital applies a realized PnL to the tracked capital. Pure
// bookkeeping; it succeeds regardless of how execution reporting went.
func (m *Manager) UpdateCapital(pnl float64) {
	m.mu.Lock()
	m.currentCapital += pnl
	m.totalPnL += pnl
	capital := m.currentCapital
	m.mu.Unlock()

	m.logger.Info().Float64("capital", capital).Float64("pnl", pnl).Msg("capital updated")
}

// Cleanup removes positions whose expiry is more than the grace buffer in
// the past, regardless of settlement outcome. The removed positions are
// returned so the caller can attempt opportunistic redemption.
func (m *Manager) Cleanup() []*models.Position {
	cutoff := time.Now().Add(-m.expiryGrace)

	m.mu.Lock()
	var removed []*models.Position
	kept := m.positions[:0]
	for _, p := range m.positions {
		if p.Expiry.Before(cutoff) {
			removed = append(removed, p)
		} else {
			kept = append(kept, p)
		}
	}
	m.positions = kept
	m.mu.Unlock()

	if len(removed) > 0 {
		m.logger.Info().Int("count", len(removed)).Msg("expired positions cleaned up")
	}
	return removed
}

// SyncCapital overwrites tracked capital with an externally queried
// balance. Ground truth wins over internally tracked PnL, which can drift
// due to fees or unaccounted failures.
func (m *Manager) SyncCapital(balance float64) {
	m.mu.Lock()
	m.currentCapital = balance
	m.mu.Unlock()
	m.logger.Info().Float64("capital", balance).Msg("capital synced to external balance")
}

// CheckStopLoss reports whether cumulative loss from initial capital has
// reached the configured kill-switch fraction. The caller halts new
// entries; the manager itself keeps monitoring open positions.
func (m *Manager) CheckStopLoss(currentBalance float64) bool {
	loss := m.initialCapital - currentBalance
	maxLoss := m.initialCapital * m.stopLossPct
	if loss >= maxLoss {
		m.logger.Error().
			Float64("loss", loss).
			Float64("max_loss", maxLoss).
			Msg("STOP LOSS TRIGGERED, halting new entries")
		return true
	}
	return false
}

// CurrentCapital returns the tracked capital figure.
func (m *Manager) CurrentCapital() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentCapital
}

// TotalPnL returns cumulative realized PnL since startup. Unlike
// CurrentCapital it is unaffected by SyncCapital, so it reflects only
// closed trades.
func (m *Manager) TotalPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalPnL
}

// ActiveCount returns the number of open positions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions)
}

// Snapshot returns a copy of the active positions for logging and journals.
func (m *Manager) Snapshot() []models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}
