package gamma

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	platformhttp "github.com/flipside-labs/flipside/internal/platform/http"
)

// Event is one prediction-market event with its markets, decoded into a
// single normalized shape regardless of how the upstream encodes fields.
type Event struct {
	ID      string
	Title   string
	Slug    string
	EndDate time.Time
	Markets []Market
}

// Market is one tradable market inside an event.
type Market struct {
	ID          string
	Question    string
	ConditionID string
	TokenIDs    []string
	Outcomes    []string
}

type rawEvent struct {
	ID      json.Number `json:"id"`
	Title   string      `json:"title"`
	Slug    string      `json:"slug"`
	EndDate string      `json:"endDate"`
	Markets []rawMarket `json:"markets"`
}

type rawMarket struct {
	ID          json.Number     `json:"id"`
	Question    string          `json:"question"`
	ConditionID string          `json:"conditionId"`
	TokenIDs    json.RawMessage `json:"clobTokenIds"`
	Outcomes    json.RawMessage `json:"outcomes"`
}

// Client queries the Gamma events API for market discovery.
type Client struct {
	host   string
	http   *platformhttp.Client
	logger zerolog.Logger
}

// NewClient creates a discovery client for the given Gamma host.
func NewClient(host string, httpClient *platformhttp.Client) *Client {
	return &Client{
		host:   host,
		http:   httpClient,
		logger: log.With().Str("component", "gamma").Logger(),
	}
}

// Events fetches one page of active events ordered by end date, optionally
// narrowed by a search query.
func (c *Client) Events(ctx context.Context, query string, limit, offset int) ([]Event, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("order", "endDate")
	params.Set("ascending", "true")
	params.Set("offset", strconv.Itoa(offset))
	if query != "" {
		params.Set("q", query)
	}

	var raw []rawEvent
	if err := c.http.GetJSON(ctx, c.host, "/events", params, &raw); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(raw))
	for _, re := range raw {
		ev := Event{
			ID:    re.ID.String(),
			Title: re.Title,
			Slug:  re.Slug,
		}
		if ts, err := parseEndDate(re.EndDate); err == nil {
			ev.EndDate = ts
		} else {
			c.logger.Debug().Str("end_date", re.EndDate).Msg("unparseable end date, skipping event")
			continue
		}
		for _, rm := range re.Markets {
			m := Market{
				ID:          rm.ID.String(),
				Question:    rm.Question,
				ConditionID: rm.ConditionID,
				TokenIDs:    decodeStringList(rm.TokenIDs),
				Outcomes:    decodeStringList(rm.Outcomes),
			}
			ev.Markets = append(ev.Markets, m)
		}
		events = append(events, ev)
	}

	return events, nil
}

func parseEndDate(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}

// decodeStringList accepts either a JSON array of strings or a JSON string
// containing an encoded array; the upstream uses both.
func decodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var direct []string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}
	var wrapped string
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		var inner []string
		if err := json.Unmarshal([]byte(wrapped), &inner); err == nil {
			return inner
		}
	}
	return nil
}
