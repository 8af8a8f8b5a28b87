package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/models"
)

// Client is the market-data feed adapter over Binance spot klines.
type Client struct {
	api    *gobinance.Client
	logger zerolog.Logger
}

// NewClient creates a public (unauthenticated) market-data client. Calls
// carry a short timeout; a timed-out cycle is skipped, never fatal.
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	api := gobinance.NewClient("", "")
	api.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:    api,
		logger: log.With().Str("component", "binance").Logger(),
	}
}

// Candles fetches the most recent `limit` candles for a symbol.
func (c *Client) Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	return c.candles(ctx, symbol, interval, limit, 0)
}

// HistoricalCandles paginates backward from now until roughly `days` of
// history is collected (Binance caps a single page at 1000 candles).
func (c *Client) HistoricalCandles(ctx context.Context, symbol, interval string, days int) ([]models.Candle, error) {
	var pages [][]models.Candle
	var endTime int64
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()

	for page := 0; page < 10; page++ {
		candles, err := c.candles(ctx, symbol, interval, 1000, endTime)
		if err != nil {
			if len(pages) > 0 {
				break // keep what we have
			}
			return nil, err
		}
		if len(candles) == 0 {
			break
		}
		pages = append(pages, candles)

		oldest := candles[0].OpenTime
		endTime = oldest - 1
		if oldest <= cutoff {
			break
		}
	}

	// Pages arrive newest-first; stitch them oldest-first and drop overlaps.
	var all []models.Candle
	for i := len(pages) - 1; i >= 0; i-- {
		for _, cd := range pages[i] {
			if len(all) > 0 && cd.OpenTime <= all[len(all)-1].OpenTime {
				continue
			}
			all = append(all, cd)
		}
	}

	c.logger.Debug().Str("symbol", symbol).Int("count", len(all)).Msg("fetched historical candles")
	return all, nil
}

func (c *Client) candles(ctx context.Context, symbol, interval string, limit int, endTime int64) ([]models.Candle, error) {
	svc := c.api.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit)
	if endTime > 0 {
		svc = svc.EndTime(endTime)
	}

	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching klines for %s: %w", symbol, err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, models.Candle{
			OpenTime: k.OpenTime,
			Open:     parseFloat(k.Open),
			High:     parseFloat(k.High),
			Low:      parseFloat(k.Low),
			Close:    parseFloat(k.Close),
			Volume:   parseFloat(k.Volume),
		})
	}
	return candles, nil
}

// SpotPrice returns the latest traded price for a symbol. Used by the risk
// manager's technical stop-loss checks.
func (c *Client) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := c.api.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching price for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price returned for %s", symbol)
	}
	return parseFloat(prices[0].Price), nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
