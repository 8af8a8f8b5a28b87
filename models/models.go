package models

import (
	"time"
)

// Candle represents a single spot price candle
type Candle struct {
	OpenTime int64   `json:"open_time"` // milliseconds since epoch
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume,omitempty"`
}

// Direction is the side of a binary up/down contract
type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionNeutral Direction = "NEUTRAL"
)

// Signal is the strategy output for one evaluation. Indicator fields are
// populated even when the direction is NEUTRAL so callers can log why no
// trade fired.
type Signal struct {
	Direction     Direction `json:"signal"`
	Confidence    float64   `json:"confidence"`
	RSI           float64   `json:"rsi"`
	SpotChangePct float64   `json:"spot_change_pct"`
	Divergence    float64   `json:"divergence"`
	BBReversal    bool      `json:"bb_reversal"`
	Support       float64   `json:"support"`
	Resistance    float64   `json:"resistance"`
	Reasons       []string  `json:"reasons,omitempty"`
}

// BookLevel is one normalized order-book level. Prices on binary contracts
// are probabilities in (0, 1).
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook holds normalized levels, best price first on both sides
// (bids descending, asks ascending). Adapters are responsible for
// translating whatever shape the upstream returns into this one.
type OrderBook struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// BestBid returns the highest bid price, or 0 if the book is empty.
func (b OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 if the book is empty.
func (b OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// Market describes one 15-minute up/down prediction market.
type Market struct {
	Asset       string    `json:"asset"`
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	EndDate     time.Time `json:"end_date"`
	EventID     string    `json:"event_id"`
	Slug        string    `json:"slug"`
	ConditionID string    `json:"condition_id"`
	TokenIDs    []string  `json:"clob_token_ids"` // index 0 is the Up outcome
	Outcomes    []string  `json:"outcomes"`
}

// UpTokenID returns the token for the Up outcome, "" when unknown.
func (m Market) UpTokenID() string {
	if len(m.TokenIDs) == 0 {
		return ""
	}
	return m.TokenIDs[0]
}

// TokenFor maps a signal direction to the outcome token to buy.
func (m Market) TokenFor(d Direction) string {
	idx := 0
	if d == DirectionDown {
		idx = 1
	}
	if len(m.TokenIDs) <= idx {
		return ""
	}
	return m.TokenIDs[idx]
}

// ExitReason explains why a position was flagged for exit.
type ExitReason string

const (
	ExitTakeProfit      ExitReason = "TAKE_PROFIT"
	ExitSupportBreak    ExitReason = "TECH_SL_SUPPORT_BREAK"
	ExitResistanceBreak ExitReason = "TECH_SL_RESISTANCE_BREAK"
)

// Position is a record of an open bet. Owned exclusively by the risk
// manager's active set.
type Position struct {
	Asset       string    `json:"asset"`
	Side        Direction `json:"side"`
	Size        float64   `json:"size"` // USD committed
	Shares      float64   `json:"shares"`
	EntryPrice  float64   `json:"entry_price"` // contract price, 0..1
	EntryTime   time.Time `json:"entry_time"`
	Expiry      time.Time `json:"expiry"`
	ConditionID string    `json:"condition_id"`
	TokenID     string    `json:"token_id"`
	OrderID     string    `json:"order_id"`

	// Invalidation levels on the underlying: support for UP bets,
	// resistance for DOWN bets. Zero means not set.
	SupportLevel    float64 `json:"support_level,omitempty"`
	ResistanceLevel float64 `json:"resistance_level,omitempty"`

	SpotAtEntry float64 `json:"spot_price_at_entry"`
	SpotSymbol  string  `json:"spot_symbol"` // e.g. BTCUSDT, monitored for the technical stop

	ExitReason ExitReason `json:"exit_reason,omitempty"`
	ExitPrice  float64    `json:"exit_price,omitempty"`
}

// OrderResult is the structured outcome of an order placement.
type OrderResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExitResult is the structured outcome of closing a position.
type ExitResult struct {
	Success   bool    `json:"success"`
	PnL       float64 `json:"pnl"`
	ExitPrice float64 `json:"exit_price"`
	Error     string  `json:"error,omitempty"`
}

// BacktestTrade is one simulated round trip.
type BacktestTrade struct {
	Timestamp  time.Time `json:"timestamp"`
	Asset      string    `json:"asset"`
	Side       Direction `json:"side"`
	Won        bool      `json:"won"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Stake      float64   `json:"stake"`
	PnL        float64   `json:"pnl"`
}

// BacktestReport summarizes a backtest run.
type BacktestReport struct {
	StartingCapital float64         `json:"starting_capital"`
	FinalCapital    float64         `json:"final_capital"`
	Trades          int             `json:"trades"`
	Wins            int             `json:"wins"`
	Losses          int             `json:"losses"`
	WinRate         float64         `json:"win_rate"`    // percent
	ReturnPct       float64         `json:"return_pct"`  // percent
	Detailed        []BacktestTrade `json:"detailed,omitempty"`
}
