package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/internal/config"
	"github.com/flipside-labs/flipside/internal/execution"
	platformhttp "github.com/flipside-labs/flipside/internal/platform/http"
)

func main() {
	token := flag.String("token", "", "outcome token ID to check share balance for")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

	httpClient := platformhttp.NewClient(platformhttp.ClientOptions{Timeout: cfg.RequestTimeout})
	exec := execution.New(cfg, httpClient)
	if exec.Degraded() {
		log.Fatal().Msg("credentials missing, cannot query balances")
	}

	ctx := context.Background()

	usdc, err := exec.CollateralBalance(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("collateral balance query failed")
	}
	fmt.Printf("USDC balance: $%.2f\n", usdc)

	if *token != "" {
		shares, err := exec.TokenBalance(ctx, *token)
		if err != nil {
			log.Fatal().Err(err).Msg("token balance query failed")
		}
		fmt.Printf("Token %s: %.4f shares\n", *token, shares)
	}
}
