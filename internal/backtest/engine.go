package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/internal/config"
	"github.com/flipside-labs/flipside/internal/strategy"
	"github.com/flipside-labs/flipside/models"
)

// holdBars is how many bars a simulated position is held before being
// scored against the price at exit.
const holdBars = 3

// winPayout is the net return multiple on a winning binary contract
// bought near the money, after fees and spread.
const winPayout = 0.8

// CandleSource provides historical candles for the replay.
type CandleSource interface {
	HistoricalCandles(ctx context.Context, symbol, interval string, days int) ([]models.Candle, error)
}

type simSignal struct {
	index  int
	signal models.Signal
}

// Engine replays the strategy over historical candles with stakes sized
// from the running simulated portfolio.
type Engine struct {
	cfg    *config.Config
	source CandleSource
	logger zerolog.Logger
}

func New(cfg *config.Config, source CandleSource) *Engine {
	return &Engine{
		cfg:    cfg,
		source: source,
		logger: log.With().Str("component", "backtest").Logger(),
	}
}

// Run backtests one asset over the configured number of days and returns
// the simulation report.
func (e *Engine) Run(ctx context.Context, asset string, days int) (models.BacktestReport, error) {
	ac, ok := e.cfg.Assets[asset]
	if !ok {
		return models.BacktestReport{}, fmt.Errorf("unknown asset %q", asset)
	}

	candles, err := e.source.HistoricalCandles(ctx, ac.BinanceSymbol, e.cfg.Interval, days)
	if err != nil {
		return models.BacktestReport{}, fmt.Errorf("loading candles: %w", err)
	}

	eng := strategy.New(asset, e.cfg)
	if len(candles) < eng.MinHistory()+holdBars {
		return models.BacktestReport{}, fmt.Errorf("not enough history: %d candles", len(candles))
	}

	e.logger.Info().Str("asset", asset).Int("candles", len(candles)).Int("days", days).Msg("replaying strategy")

	// First pass: collect signals bar by bar. Live odds are not available
	// historically, so the market is assumed efficient at 0.50 and only
	// the technical legs of the strategy can fire.
	var signals []simSignal
	for i := eng.MinHistory(); i < len(candles)-holdBars; i++ {
		sig := eng.Analyze(candles[:i+1], 0.50)
		if sig.Direction == models.DirectionNeutral {
			continue
		}
		signals = append(signals, simSignal{index: i, signal: sig})
	}

	// Second pass: chronological simulation with dynamic stakes, so each
	// trade is sized off the portfolio as it stood at that point.
	report := models.BacktestReport{StartingCapital: e.cfg.InitialCapital}
	capital := e.cfg.InitialCapital

	for _, s := range signals {
		stake := e.stake(capital)
		if stake > capital {
			e.logger.Warn().Float64("capital", capital).Msg("portfolio exhausted, stopping simulation")
			break
		}

		entry := candles[s.index].Close
		exit := candles[s.index+holdBars].Close

		won := (s.signal.Direction == models.DirectionUp && exit > entry) ||
			(s.signal.Direction == models.DirectionDown && exit < entry)

		pnl := -stake
		if won {
			pnl = stake * winPayout
			report.Wins++
		} else {
			report.Losses++
		}
		capital += pnl
		report.Trades++

		report.Detailed = append(report.Detailed, models.BacktestTrade{
			Timestamp:  time.UnixMilli(candles[s.index].OpenTime),
			Asset:      asset,
			Side:       s.signal.Direction,
			Won:        won,
			EntryPrice: entry,
			ExitPrice:  exit,
			Stake:      stake,
			PnL:        pnl,
		})
	}

	report.FinalCapital = capital
	if report.Trades > 0 {
		report.WinRate = float64(report.Wins) / float64(report.Trades) * 100
	}
	if report.StartingCapital > 0 {
		report.ReturnPct = (capital - report.StartingCapital) / report.StartingCapital * 100
	}
	return report, nil
}

func (e *Engine) stake(capital float64) float64 {
	stake := math.Floor(capital / e.cfg.StakeDivisor)
	if stake < e.cfg.MinStake {
		stake = e.cfg.MinStake
	}
	if stake > e.cfg.MaxStake {
		stake = e.cfg.MaxStake
	}
	return stake
}
