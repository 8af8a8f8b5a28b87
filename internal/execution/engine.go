package execution

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/internal/api/clob"
	"github.com/flipside-labs/flipside/internal/config"
	platformhttp "github.com/flipside-labs/flipside/internal/platform/http"
	"github.com/flipside-labs/flipside/models"
)

// Engine is the execution facade over the CLOB. With incomplete
// credentials it comes up in degraded signal-only mode instead of failing:
// order books still work, order placement and balances do not.
type Engine struct {
	client   *clob.Client
	degraded bool
	logger   zerolog.Logger
}

// New builds the engine from configuration.
func New(cfg *config.Config, httpClient *platformhttp.Client) *Engine {
	creds := clob.Creds{
		APIKey:     cfg.APIKey,
		Secret:     cfg.APISecret,
		Passphrase: cfg.APIPassphrase,
	}

	e := &Engine{
		client:   clob.NewClient(cfg.ClobHost, cfg.FunderAddress, creds, httpClient),
		degraded: creds.Empty(),
		logger:   log.With().Str("component", "execution").Logger(),
	}

	if e.degraded {
		e.logger.Warn().Msg("missing credentials, running in signal-only mode")
	}
	return e
}

// Degraded reports whether the engine can only observe, not trade.
func (e *Engine) Degraded() bool {
	return e.degraded
}

// OrderBook passes through to the CLOB adapter.
func (e *Engine) OrderBook(ctx context.Context, tokenID string) (models.OrderBook, error) {
	return e.client.OrderBook(ctx, tokenID)
}

// BestBid returns the best bid for a token.
func (e *Engine) BestBid(ctx context.Context, tokenID string) (float64, error) {
	return e.client.BestBid(ctx, tokenID)
}

// BestAsk returns the best ask for a token.
func (e *Engine) BestAsk(ctx context.Context, tokenID string) (float64, error) {
	return e.client.BestAsk(ctx, tokenID)
}

// Buy places a limit buy. Each order carries a fresh client order ID so
// retries remain distinguishable upstream.
func (e *Engine) Buy(ctx context.Context, tokenID string, price, size float64) (models.OrderResult, error) {
	return e.place(ctx, tokenID, "BUY", price, size)
}

// Sell places a limit sell for the given share count.
func (e *Engine) Sell(ctx context.Context, tokenID string, price, shares float64) (models.OrderResult, error) {
	return e.place(ctx, tokenID, "SELL", price, shares)
}

func (e *Engine) place(ctx context.Context, tokenID, side string, price, size float64) (models.OrderResult, error) {
	if e.degraded {
		return models.OrderResult{Error: "signal-only mode"}, fmt.Errorf("execution unavailable in signal-only mode")
	}
	return e.client.PlaceOrder(ctx, tokenID, side, price, size, uuid.NewString())
}

// CancelAll cancels all resting orders.
func (e *Engine) CancelAll(ctx context.Context) error {
	if e.degraded {
		return fmt.Errorf("execution unavailable in signal-only mode")
	}
	return e.client.CancelAll(ctx)
}

// CollateralBalance returns the account's USDC balance in USD.
func (e *Engine) CollateralBalance(ctx context.Context) (float64, error) {
	if e.degraded {
		return 0, fmt.Errorf("execution unavailable in signal-only mode")
	}
	return e.client.CollateralBalance(ctx)
}

// TokenBalance returns the share balance held for a token.
func (e *Engine) TokenBalance(ctx context.Context, tokenID string) (float64, error) {
	if e.degraded {
		return 0, fmt.Errorf("execution unavailable in signal-only mode")
	}
	return e.client.TokenBalance(ctx, tokenID)
}

// LiquidateToken sells the full held balance of a token at the best bid.
func (e *Engine) LiquidateToken(ctx context.Context, tokenID string) (models.OrderResult, error) {
	balance, err := e.TokenBalance(ctx, tokenID)
	if err != nil {
		return models.OrderResult{}, err
	}
	if balance <= 0 {
		return models.OrderResult{Success: true}, nil
	}

	bid, err := e.BestBid(ctx, tokenID)
	if err != nil {
		return models.OrderResult{}, err
	}
	if bid <= 0 {
		return models.OrderResult{Error: "no bids"}, fmt.Errorf("no bids for token")
	}

	e.logger.Info().Float64("shares", balance).Float64("price", bid).Msg("liquidating position")
	return e.Sell(ctx, tokenID, bid, balance)
}

// RedeemWinning cashes out a resolved winning position by selling at 0.99.
// Winning shares are worth $1; selling just below that nets ~99% of value
// without touching on-chain redemption.
func (e *Engine) RedeemWinning(ctx context.Context, tokenID string) (float64, error) {
	balance, err := e.TokenBalance(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	if balance <= 0 {
		return 0, nil
	}

	res, err := e.Sell(ctx, tokenID, 0.99, balance)
	if err != nil {
		return 0, err
	}
	if !res.Success {
		return 0, fmt.Errorf("redeem order failed: %s", res.Error)
	}

	payout := balance * 0.99
	e.logger.Info().Float64("shares", balance).Float64("payout", payout).Msg("redeemed winning position")
	return payout, nil
}

// RefreshCredentials derives fresh API credentials and swaps them in.
// Success also clears degraded mode.
func (e *Engine) RefreshCredentials(ctx context.Context) bool {
	creds, err := e.client.DeriveAPIKey(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("credential refresh failed")
		return false
	}
	e.client.SetCreds(creds)
	e.degraded = false
	e.logger.Info().Msg("credentials refreshed")
	return true
}
