package scanner

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/internal/api/gamma"
	"github.com/flipside-labs/flipside/internal/config"
	"github.com/flipside-labs/flipside/models"
)

// timePattern matches the interval markers in 15-minute market titles,
// e.g. "1:45PM-2:00PM" or "14:45-15:00".
var timePattern = regexp.MustCompile(`\d{1,2}:\d{2}(?:[APM]{2})?-\d{1,2}:\d{2}(?:[APM]{2})?`)

// EventSource lists candidate events; the gamma client implements it.
type EventSource interface {
	Events(ctx context.Context, query string, limit, offset int) ([]gamma.Event, error)
}

// Scanner filters the discovery feed down to active 15-minute up/down
// markets per asset.
type Scanner struct {
	source EventSource
	assets map[string]config.AssetConfig
	window time.Duration

	logger zerolog.Logger
}

// New creates a scanner over the configured asset table.
func New(source EventSource, cfg *config.Config) *Scanner {
	return &Scanner{
		source: source,
		assets: cfg.Assets,
		window: 60 * time.Minute,
		logger: log.With().Str("component", "scanner").Logger(),
	}
}

// MarketsForAsset finds 15-minute up/down markets for one asset expiring
// within the scan window, soonest first. Returns at most the first match
// page; the orchestrator only trades the nearest market anyway.
func (s *Scanner) MarketsForAsset(ctx context.Context, asset string) ([]models.Market, error) {
	ac, ok := s.assets[asset]
	if !ok {
		s.logger.Warn().Str("asset", asset).Msg("unknown asset")
		return nil, nil
	}

	query := ""
	if len(ac.Keywords) > 0 {
		query = ac.Keywords[0]
	}

	now := time.Now().UTC()
	windowEnd := now.Add(s.window)

	var found []models.Market
	offset := 0
	const pageSize = 100
	const maxPages = 15

	for page := 0; page < maxPages; page++ {
		events, err := s.source.Events(ctx, query, pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			break
		}

		// Skip whole pages that are already in the past.
		if last := events[len(events)-1]; last.EndDate.Before(now) {
			offset += pageSize
			continue
		}

		for _, ev := range events {
			if !s.matches(ev, ac.Keywords) {
				continue
			}
			if ev.EndDate.Before(now) || ev.EndDate.After(windowEnd) {
				continue
			}
			for _, m := range ev.Markets {
				if len(m.TokenIDs) == 0 {
					continue
				}
				found = append(found, models.Market{
					Asset:       asset,
					ID:          m.ID,
					Question:    m.Question,
					EndDate:     ev.EndDate,
					EventID:     ev.ID,
					Slug:        ev.Slug,
					ConditionID: m.ConditionID,
					TokenIDs:    m.TokenIDs,
					Outcomes:    m.Outcomes,
				})
			}
		}

		if len(found) > 0 {
			break
		}
		offset += pageSize
	}

	return found, nil
}

// matches applies the title filters: asset keyword, an "up ... down"
// question, and a strict 15-minute time-interval marker.
func (s *Scanner) matches(ev gamma.Event, keywords []string) bool {
	title := strings.ToLower(ev.Title)

	matched := false
	for _, kw := range keywords {
		if strings.Contains(title, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	if !strings.Contains(title, "up") || !strings.Contains(title, "down") {
		return false
	}

	return timePattern.MatchString(ev.Title)
}

// AllAssetMarkets scans every configured asset. Per-asset scan failures
// are logged and yield an empty slice for that asset.
func (s *Scanner) AllAssetMarkets(ctx context.Context) map[string][]models.Market {
	all := make(map[string][]models.Market, len(s.assets))
	for asset := range s.assets {
		markets, err := s.MarketsForAsset(ctx, asset)
		if err != nil {
			s.logger.Error().Err(err).Str("asset", asset).Msg("market scan failed")
			all[asset] = nil
			continue
		}
		all[asset] = markets
		if len(markets) > 0 {
			s.logger.Info().Str("asset", asset).Int("count", len(markets)).Msg("markets found")
		}
	}
	return all
}

// AskLiquidity sums price*size over the top `levels` ask levels.
func AskLiquidity(book models.OrderBook, levels int) float64 {
	var total float64
	for i, lvl := range book.Asks {
		if i >= levels {
			break
		}
		total += lvl.Price * lvl.Size
	}
	return total
}

// HasLiquidity reports whether the top five ask levels carry at least
// minUSD of depth.
func HasLiquidity(book models.OrderBook, minUSD float64) bool {
	return AskLiquidity(book, 5) >= minUSD
}
