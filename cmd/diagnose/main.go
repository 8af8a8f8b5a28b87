package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/internal/api/binance"
	"github.com/flipside-labs/flipside/internal/api/gamma"
	"github.com/flipside-labs/flipside/internal/config"
	"github.com/flipside-labs/flipside/internal/execution"
	platformhttp "github.com/flipside-labs/flipside/internal/platform/http"
	"github.com/flipside-labs/flipside/internal/scanner"
	"github.com/flipside-labs/flipside/internal/strategy"
	"github.com/flipside-labs/flipside/models"
)

// One-shot diagnostic: for each asset, show the tradable markets found,
// whether each sits in the entry window, and what the strategy says right
// now. Useful when the bot is running but not trading.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

	httpClient := platformhttp.NewClient(platformhttp.ClientOptions{Timeout: cfg.RequestTimeout})
	feed := binance.NewClient(cfg.RequestTimeout)
	scan := scanner.New(gamma.NewClient(cfg.GammaHost, httpClient), cfg)
	exec := execution.New(cfg, httpClient)

	ctx := context.Background()

	for asset, ac := range cfg.Assets {
		fmt.Printf("\n=== %s ===\n", asset)

		markets, err := scan.MarketsForAsset(ctx, asset)
		if err != nil {
			fmt.Printf("  market scan failed: %v\n", err)
			continue
		}
		fmt.Printf("  markets found: %d\n", len(markets))

		candles, err := feed.Candles(ctx, ac.BinanceSymbol, cfg.Interval, cfg.CandleCount)
		if err != nil {
			fmt.Printf("  candle fetch failed: %v\n", err)
			continue
		}
		spot := candles[len(candles)-1].Close
		fmt.Printf("  spot %s: %.2f (%d candles)\n", ac.BinanceSymbol, spot, len(candles))

		eng := strategy.New(asset, cfg)

		windowLo, windowHi := cfg.EntryWindowRemaining()
		for _, m := range markets {
			minutesLeft := time.Until(m.EndDate).Minutes()
			inWindow := minutesLeft >= windowLo && minutesLeft <= windowHi
			fmt.Printf("\n  %s\n", m.Question)
			fmt.Printf("    expires in %.1f min, in entry window: %v\n", minutesLeft, inWindow)

			upToken := m.UpTokenID()
			if upToken == "" {
				fmt.Println("    no outcome tokens")
				continue
			}
			book, err := exec.OrderBook(ctx, upToken)
			if err != nil {
				fmt.Printf("    order book failed: %v\n", err)
				continue
			}
			upOdds := book.BestAsk()
			fmt.Printf("    up odds: %.3f (bid %.3f), ask liquidity $%.0f\n",
				upOdds, book.BestBid(), scanner.AskLiquidity(book, 5))

			if upOdds <= 0 || upOdds >= 1 {
				continue
			}
			sig := eng.Analyze(candles, upOdds)
			fmt.Printf("    signal: %s", sig.Direction)
			if sig.Direction != models.DirectionNeutral {
				fmt.Printf(" (confidence %.2f)", sig.Confidence)
			}
			fmt.Printf("\n    rsi %.1f, spot change %+.2f%%, divergence %+.1f, bb reversal %v\n",
				sig.RSI, sig.SpotChangePct, sig.Divergence, sig.BBReversal)
			for _, r := range sig.Reasons {
				fmt.Printf("      - %s\n", r)
			}
		}
	}
	fmt.Println()
}
