package ctf

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/sha3"

	platformhttp "github.com/flipside-labs/flipside/internal/platform/http"
)

// Conditional Tokens Framework contract on Polygon.
const ctfAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"

// Resolver answers "has this condition resolved yet" by reading the CTF
// contract's payout denominator over JSON-RPC. It is read-only: the cash-out
// itself goes through the order book (see execution.RedeemWinning), since
// transaction construction belongs to external services.
type Resolver struct {
	rpcURLs  []string
	http     *platformhttp.Client
	selector []byte
	logger   zerolog.Logger
}

// NewResolver creates a resolver that tries the given RPC endpoints in
// order until one answers.
func NewResolver(rpcURLs []string, httpClient *platformhttp.Client) *Resolver {
	return &Resolver{
		rpcURLs:  rpcURLs,
		http:     httpClient,
		selector: methodSelector("payoutDenominator(bytes32)"),
		logger:   log.With().Str("component", "ctf").Logger(),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// IsResolved reports whether the condition's payout denominator is set,
// i.e. the oracle has reported. Errors are returned for the caller to log
// and retry on a later cycle.
func (r *Resolver) IsResolved(ctx context.Context, conditionID string) (bool, error) {
	data, err := r.callData(conditionID)
	if err != nil {
		return false, err
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_call",
		Params: []any{
			map[string]string{"to": ctfAddress, "data": data},
			"latest",
		},
		ID: 1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return false, err
	}

	var lastErr error
	for _, rpcURL := range r.rpcURLs {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := r.http.DoRequest(ctx, httpReq)
		if err != nil {
			lastErr = err
			continue
		}

		var out rpcResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if out.Error != nil {
			lastErr = fmt.Errorf("rpc error %d: %s", out.Error.Code, out.Error.Message)
			continue
		}

		denom, ok := new(big.Int).SetString(strings.TrimPrefix(out.Result, "0x"), 16)
		if !ok {
			lastErr = fmt.Errorf("unparseable eth_call result %q", out.Result)
			continue
		}
		return denom.Sign() > 0, nil
	}

	return false, fmt.Errorf("all RPC endpoints failed: %w", lastErr)
}

// callData encodes payoutDenominator(conditionId).
func (r *Resolver) callData(conditionID string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(conditionID, "0x"))
	if err != nil {
		return "", fmt.Errorf("decoding condition id: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("condition id must be 32 bytes, got %d", len(raw))
	}
	return "0x" + hex.EncodeToString(r.selector) + hex.EncodeToString(raw), nil
}

// methodSelector is the first four bytes of the keccak-256 hash of the
// canonical method signature.
func methodSelector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}
