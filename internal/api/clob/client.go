package clob

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	platformhttp "github.com/flipside-labs/flipside/internal/platform/http"
	"github.com/flipside-labs/flipside/models"
)

// Creds are the L2 API credentials for the CLOB.
type Creds struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Empty reports whether any credential component is missing.
func (c Creds) Empty() bool {
	return c.APIKey == "" || c.Secret == "" || c.Passphrase == ""
}

// Client talks to the prediction-market CLOB REST API.
type Client struct {
	host    string
	address string
	creds   Creds
	http    *platformhttp.Client
	logger  zerolog.Logger
}

// NewClient creates a CLOB client. Credentials may be empty for read-only
// endpoints (order books).
func NewClient(host, address string, creds Creds, httpClient *platformhttp.Client) *Client {
	return &Client{
		host:    host,
		address: address,
		creds:   creds,
		http:    httpClient,
		logger:  log.With().Str("component", "clob").Logger(),
	}
}

// SetCreds swaps the active credentials after a refresh.
func (c *Client) SetCreds(creds Creds) {
	c.creds = creds
}

type rawLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type rawBook struct {
	Bids []rawLevel `json:"bids"`
	Asks []rawLevel `json:"asks"`
}

// OrderBook fetches and normalizes a token's order book: bids sorted best
// (highest) first, asks best (lowest) first, regardless of upstream order.
func (c *Client) OrderBook(ctx context.Context, tokenID string) (models.OrderBook, error) {
	var raw rawBook
	u := fmt.Sprintf("%s/book?token_id=%s", c.host, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.OrderBook{}, err
	}
	if err := c.doJSON(req, &raw); err != nil {
		return models.OrderBook{}, fmt.Errorf("fetching book for token %s: %w", shortToken(tokenID), err)
	}

	book := models.OrderBook{
		Bids: normalizeLevels(raw.Bids),
		Asks: normalizeLevels(raw.Asks),
	}
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	return book, nil
}

// BestBid returns the best bid price for a token, 0 when the book is empty.
func (c *Client) BestBid(ctx context.Context, tokenID string) (float64, error) {
	book, err := c.OrderBook(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	return book.BestBid(), nil
}

// BestAsk returns the best ask price for a token, 0 when the book is empty.
func (c *Client) BestAsk(ctx context.Context, tokenID string) (float64, error) {
	book, err := c.OrderBook(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	return book.BestAsk(), nil
}

type orderRequest struct {
	TokenID       string  `json:"token_id"`
	Side          string  `json:"side"`
	Price         float64 `json:"price"`
	Size          float64 `json:"size"`
	ClientOrderID string  `json:"client_order_id,omitempty"`
	OrderType     string  `json:"order_type"`
}

type orderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderID"`
	Error   string `json:"errorMsg"`
}

// PlaceOrder posts a GTC limit order. An order is treated as atomically
// filled or not; partial fills are not modeled.
func (c *Client) PlaceOrder(ctx context.Context, tokenID, side string, price, size float64, clientOrderID string) (models.OrderResult, error) {
	if c.creds.Empty() {
		return models.OrderResult{}, fmt.Errorf("no API credentials")
	}

	body, err := json.Marshal(orderRequest{
		TokenID:       tokenID,
		Side:          side,
		Price:         price,
		Size:          size,
		ClientOrderID: clientOrderID,
		OrderType:     "GTC",
	})
	if err != nil {
		return models.OrderResult{}, err
	}

	req, err := c.signedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return models.OrderResult{}, err
	}

	var resp orderResponse
	if err := c.doJSON(req, &resp); err != nil {
		return models.OrderResult{}, fmt.Errorf("posting order: %w", err)
	}

	result := models.OrderResult{Success: resp.Success, OrderID: resp.OrderID, Error: resp.Error}
	c.logger.Info().
		Bool("success", result.Success).
		Str("order_id", result.OrderID).
		Str("side", side).
		Float64("price", price).
		Float64("size", size).
		Msg("order posted")
	return result, nil
}

// CancelAll cancels every open order for the authenticated account.
func (c *Client) CancelAll(ctx context.Context) error {
	if c.creds.Empty() {
		return fmt.Errorf("no API credentials")
	}
	req, err := c.signedRequest(ctx, http.MethodDelete, "/cancel-all", nil)
	if err != nil {
		return err
	}
	var out json.RawMessage
	return c.doJSON(req, &out)
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

// CollateralBalance returns the USDC collateral balance in USD (raw units
// carry six decimals).
func (c *Client) CollateralBalance(ctx context.Context) (float64, error) {
	return c.balance(ctx, "/balance-allowance?asset_type=COLLATERAL")
}

// TokenBalance returns the share balance for a conditional token.
func (c *Client) TokenBalance(ctx context.Context, tokenID string) (float64, error) {
	return c.balance(ctx, "/balance-allowance?asset_type=CONDITIONAL&token_id="+tokenID)
}

func (c *Client) balance(ctx context.Context, path string) (float64, error) {
	if c.creds.Empty() {
		return 0, fmt.Errorf("no API credentials")
	}
	req, err := c.signedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	var resp balanceResponse
	if err := c.doJSON(req, &resp); err != nil {
		return 0, err
	}
	raw, err := strconv.ParseFloat(resp.Balance, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing balance %q: %w", resp.Balance, err)
	}
	return raw / 1_000_000.0, nil
}

// DeriveAPIKey asks the CLOB to derive fresh API credentials for the
// configured account. How the upstream authenticates the derivation is its
// business; we only carry the request/response contract.
func (c *Client) DeriveAPIKey(ctx context.Context) (Creds, error) {
	req, err := c.signedRequest(ctx, http.MethodGet, "/auth/derive-api-key", nil)
	if err != nil {
		return Creds{}, err
	}
	var creds Creds
	if err := c.doJSON(req, &creds); err != nil {
		return Creds{}, fmt.Errorf("deriving api key: %w", err)
	}
	if creds.Empty() {
		return Creds{}, fmt.Errorf("derivation returned incomplete credentials")
	}
	return creds, nil
}

// signedRequest builds a request with the L2 auth headers: an HMAC-SHA256
// of timestamp+method+path+body keyed by the base64url-decoded secret.
func (c *Client) signedRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return nil, err
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := sign(c.creds.Secret, ts+method+path+string(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("POLY_ADDRESS", c.address)
	req.Header.Set("POLY_API_KEY", c.creds.APIKey)
	req.Header.Set("POLY_PASSPHRASE", c.creds.Passphrase)
	req.Header.Set("POLY_TIMESTAMP", ts)
	req.Header.Set("POLY_SIGNATURE", sig)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func sign(secret, message string) (string, error) {
	key, err := base64.URLEncoding.DecodeString(secret)
	if err != nil {
		// Some deployments hand out unpadded secrets.
		key, err = base64.RawURLEncoding.DecodeString(secret)
		if err != nil {
			return "", fmt.Errorf("decoding api secret: %w", err)
		}
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.DoRequest(req.Context(), req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}
	return nil
}

func normalizeLevels(raw []rawLevel) []models.BookLevel {
	levels := make([]models.BookLevel, 0, len(raw))
	for _, r := range raw {
		price, err1 := strconv.ParseFloat(r.Price, 64)
		size, err2 := strconv.ParseFloat(r.Size, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		levels = append(levels, models.BookLevel{Price: price, Size: size})
	}
	return levels
}

func shortToken(tokenID string) string {
	if len(tokenID) <= 15 {
		return tokenID
	}
	return tokenID[:15] + "..."
}
