package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/internal/api/binance"
	"github.com/flipside-labs/flipside/internal/backtest"
	"github.com/flipside-labs/flipside/internal/config"
)

func main() {
	asset := flag.String("asset", "BTC", "asset to backtest (BTC or ETH)")
	days := flag.Int("days", 0, "days of history, overrides BACKTEST_DAYS")
	verbose := flag.Bool("v", false, "print every simulated trade")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	if *days <= 0 {
		*days = cfg.BacktestDays
	}

	engine := backtest.New(cfg, binance.NewClient(cfg.RequestTimeout))
	report, err := engine.Run(context.Background(), *asset, *days)
	if err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	fmt.Printf("\n=== Backtest: %s, %d days ===\n", *asset, *days)
	fmt.Printf("Trades:    %d (%d wins, %d losses)\n", report.Trades, report.Wins, report.Losses)
	fmt.Printf("Win rate:  %.1f%%\n", report.WinRate)
	fmt.Printf("Capital:   $%.2f -> $%.2f\n", report.StartingCapital, report.FinalCapital)
	fmt.Printf("Return:    %+.1f%%\n", report.ReturnPct)

	if *verbose {
		fmt.Println()
		for _, t := range report.Detailed {
			outcome := "LOSS"
			if t.Won {
				outcome = "WIN"
			}
			fmt.Printf("%s  %-4s %-7s %s  stake $%.0f  pnl $%+.2f\n",
				t.Timestamp.Format("2006-01-02 15:04"), outcome, t.Side, t.Asset, t.Stake, t.PnL)
		}
	}
}
