package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/internal/api/binance"
	"github.com/flipside-labs/flipside/internal/api/ctf"
	"github.com/flipside-labs/flipside/internal/api/gamma"
	"github.com/flipside-labs/flipside/internal/bot"
	"github.com/flipside-labs/flipside/internal/config"
	"github.com/flipside-labs/flipside/internal/database"
	"github.com/flipside-labs/flipside/internal/execution"
	"github.com/flipside-labs/flipside/internal/notify"
	platformhttp "github.com/flipside-labs/flipside/internal/platform/http"
	"github.com/flipside-labs/flipside/internal/risk"
	"github.com/flipside-labs/flipside/internal/scanner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	httpClient := platformhttp.NewClient(platformhttp.ClientOptions{Timeout: cfg.RequestTimeout})

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	riskManager := risk.New(cfg)
	botInstance := bot.New(cfg, bot.Deps{
		Feed:     binance.NewClient(cfg.RequestTimeout),
		Scanner:  scanner.New(gamma.NewClient(cfg.GammaHost, httpClient), cfg),
		Exec:     execution.New(cfg, httpClient),
		Resolver: ctf.NewResolver(cfg.PolygonRPCURLs, httpClient),
		Risk:     riskManager,
		DB:       db,
		Notifier: notify.New(cfg.TelegramToken, cfg.TelegramChatID),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := botInstance.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("trading loop stopped")
	}
}
