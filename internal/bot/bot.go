package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/internal/api/binance"
	"github.com/flipside-labs/flipside/internal/api/ctf"
	"github.com/flipside-labs/flipside/internal/config"
	"github.com/flipside-labs/flipside/internal/database"
	"github.com/flipside-labs/flipside/internal/execution"
	"github.com/flipside-labs/flipside/internal/notify"
	"github.com/flipside-labs/flipside/internal/risk"
	"github.com/flipside-labs/flipside/internal/scanner"
	"github.com/flipside-labs/flipside/internal/strategy"
	"github.com/flipside-labs/flipside/models"
)

// Bot wires the pipeline together and drives the trading cycle.
type Bot struct {
	cfg      *config.Config
	feed     *binance.Client
	scanner  *scanner.Scanner
	exec     *execution.Engine
	resolver *ctf.Resolver
	risk     *risk.Manager
	engines  map[string]*strategy.Engine
	db       *database.DB
	notifier *notify.Notifier
	cron     *cron.Cron
	halted   bool
	logger   zerolog.Logger
}

// Deps carries the collaborators the bot orchestrates.
type Deps struct {
	Feed     *binance.Client
	Scanner  *scanner.Scanner
	Exec     *execution.Engine
	Resolver *ctf.Resolver
	Risk     *risk.Manager
	DB       *database.DB
	Notifier *notify.Notifier
}

func New(cfg *config.Config, d Deps) *Bot {
	engines := make(map[string]*strategy.Engine, len(cfg.Assets))
	for asset := range cfg.Assets {
		engines[asset] = strategy.New(asset, cfg)
	}

	return &Bot{
		cfg:      cfg,
		feed:     d.Feed,
		scanner:  d.Scanner,
		exec:     d.Exec,
		resolver: d.Resolver,
		risk:     d.Risk,
		engines:  engines,
		db:       d.DB,
		notifier: d.Notifier,
		cron:     cron.New(),
		logger:   log.With().Str("component", "bot").Logger(),
	}
}

// Run drives trading cycles until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	// Nightly maintenance: exchange API credentials expire, so re-derive
	// them at a quiet hour.
	b.cron.AddFunc("0 4 * * *", func() {
		refreshCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
		defer cancel()
		b.exec.RefreshCredentials(refreshCtx)
	})
	b.cron.Start()
	defer b.cron.Stop()

	b.logger.Info().
		Bool("signal_only", b.exec.Degraded()).
		Float64("capital", b.risk.CurrentCapital()).
		Msg("starting trading loop")
	b.notifier.Info(fmt.Sprintf("🤖 Bot started, capital $%.2f", b.risk.CurrentCapital()))

	for {
		opened := b.cycle(ctx)

		sleep := b.cfg.IdleCycleSleep
		if b.risk.ActiveCount() > 0 || opened {
			sleep = b.cfg.ActiveCycleSleep
		}

		select {
		case <-ctx.Done():
			b.logger.Info().Float64("total_pnl", b.risk.TotalPnL()).Msg("shutting down")
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// cycle runs one full pass: housekeeping, exits, then entries. Any
// collaborator failure skips the affected step rather than killing the
// loop. Returns whether a new position was opened.
func (b *Bot) cycle(ctx context.Context) bool {
	b.syncCapital(ctx)
	b.cleanupExpired(ctx)
	b.monitorExits(ctx)

	if b.halted {
		return false
	}
	return b.scanAndEnter(ctx)
}

func (b *Bot) syncCapital(ctx context.Context) {
	if b.exec.Degraded() {
		return
	}
	balance, err := b.exec.CollateralBalance(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("balance sync failed, keeping internal accounting")
		return
	}
	b.risk.SyncCapital(balance)

	if !b.halted && b.risk.CheckStopLoss(balance) {
		b.halted = true
		threshold := b.cfg.InitialCapital * (1 - b.cfg.StopLossPct)
		b.logger.Error().Float64("balance", balance).Msg("kill switch tripped, no new entries")
		b.notifier.KillSwitch(balance, threshold)
	}
}

// cleanupExpired drops positions past expiry plus grace and, when the
// market has resolved our way, cashes them out.
func (b *Bot) cleanupExpired(ctx context.Context) {
	for _, pos := range b.risk.Cleanup() {
		if b.exec.Degraded() {
			continue
		}

		resolved, err := b.resolver.IsResolved(ctx, pos.ConditionID)
		if err != nil {
			b.logger.Warn().Err(err).Str("asset", pos.Asset).Msg("resolution check failed")
			continue
		}
		if !resolved {
			// Expired but not yet settled on-chain: salvage whatever the
			// book still pays rather than holding dead shares. The next
			// balance sync reconciles the proceeds.
			if _, err := b.exec.LiquidateToken(ctx, pos.TokenID); err != nil {
				b.logger.Warn().Err(err).Str("asset", pos.Asset).Msg("expiry liquidation failed")
			}
			continue
		}

		payout, err := b.exec.RedeemWinning(ctx, pos.TokenID)
		if err != nil {
			b.logger.Warn().Err(err).Str("asset", pos.Asset).Msg("redemption failed")
			continue
		}
		if payout > 0 {
			pnl := payout - pos.Size
			b.risk.UpdateCapital(pnl)
			b.db.RecordExit(pos.OrderID, 0.99, pnl, "RESOLVED")
			b.notifier.Redeemed(pos.Asset, payout)
		}
	}
}

func (b *Bot) monitorExits(ctx context.Context) {
	for _, pos := range b.risk.MonitorAll(ctx, b.exec, b.feed) {
		res := b.risk.ExecuteExit(ctx, b.exec, pos)
		if !res.Success {
			b.logger.Warn().Str("asset", pos.Asset).Str("error", res.Error).Msg("exit failed, will retry next cycle")
			continue
		}
		b.risk.UpdateCapital(res.PnL)
		b.db.RecordExit(pos.OrderID, res.ExitPrice, res.PnL, string(pos.ExitReason))
		b.notifier.Exit(pos, res.ExitPrice, res.PnL, string(pos.ExitReason))
	}
}

func (b *Bot) scanAndEnter(ctx context.Context) bool {
	opened := false
	for asset, markets := range b.scanner.AllAssetMarkets(ctx) {
		for _, market := range markets {
			if b.tryEnter(ctx, asset, market) {
				opened = true
				break // one position per asset per cycle
			}
		}
	}
	return opened
}

// tryEnter evaluates a single market and opens a position when every
// gate passes.
func (b *Bot) tryEnter(ctx context.Context, asset string, market models.Market) bool {
	minutesLeft := time.Until(market.EndDate).Minutes()
	lo, hi := b.cfg.EntryWindowRemaining()
	if minutesLeft < lo || minutesLeft > hi {
		return false
	}

	ac := b.cfg.Assets[asset]
	eng := b.engines[asset]

	candles, err := b.feed.Candles(ctx, ac.BinanceSymbol, b.cfg.Interval, b.cfg.CandleCount)
	if err != nil {
		b.logger.Warn().Err(err).Str("asset", asset).Msg("candle fetch failed")
		return false
	}

	upToken := market.UpTokenID()
	if upToken == "" {
		return false
	}
	upBook, err := b.exec.OrderBook(ctx, upToken)
	if err != nil {
		b.logger.Warn().Err(err).Str("asset", asset).Msg("order book fetch failed")
		return false
	}
	upOdds := upBook.BestAsk()
	if upOdds <= 0 || upOdds >= 1 {
		return false
	}

	sig := eng.Analyze(candles, upOdds)
	if sig.Direction == models.DirectionNeutral {
		return false
	}

	b.logger.Info().
		Str("asset", asset).
		Str("direction", string(sig.Direction)).
		Float64("confidence", sig.Confidence).
		Float64("rsi", sig.RSI).
		Float64("divergence", sig.Divergence).
		Strs("reasons", sig.Reasons).
		Msg("signal")

	if b.exec.Degraded() {
		return false
	}

	size := b.risk.PositionSize()
	if !b.risk.CanOpen(size, asset) {
		return false
	}

	token := market.TokenFor(sig.Direction)
	book := upBook
	if token != upToken {
		book, err = b.exec.OrderBook(ctx, token)
		if err != nil {
			b.logger.Warn().Err(err).Str("asset", asset).Msg("order book fetch failed")
			return false
		}
	}
	if !scanner.HasLiquidity(book, ac.MinLiquidityUSD) {
		b.logger.Debug().Str("asset", asset).Msg("insufficient liquidity, skipping")
		return false
	}

	price := book.BestAsk()
	if price <= 0 || price >= 1 {
		return false
	}
	shares := size / price

	result, err := b.exec.Buy(ctx, token, price, shares)
	if err != nil || !result.Success {
		b.logger.Warn().Err(err).Str("asset", asset).Str("reason", result.Error).Msg("order placement failed")
		return false
	}

	pos := models.Position{
		Asset:       asset,
		Side:        sig.Direction,
		Size:        size,
		Shares:      shares,
		EntryPrice:  price,
		EntryTime:   time.Now(),
		Expiry:      market.EndDate,
		ConditionID: market.ConditionID,
		TokenID:     token,
		OrderID:     result.OrderID,
		SpotAtEntry: candles[len(candles)-1].Close,
		SpotSymbol:  ac.BinanceSymbol,
	}
	// Invalidation on the underlying: an UP bet dies when spot loses the
	// support it was leaning on, a DOWN bet when resistance gives way.
	if sig.Direction == models.DirectionUp {
		pos.SupportLevel = sig.Support
	} else {
		pos.ResistanceLevel = sig.Resistance
	}

	b.risk.Record(pos)
	b.db.RecordEntry(&pos)
	b.notifier.Entry(&pos, sig.Confidence)

	b.logger.Info().
		Str("asset", asset).
		Str("order_id", result.OrderID).
		Float64("price", price).
		Float64("size", size).
		Msg("position opened")
	return true
}
