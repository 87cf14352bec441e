// Package oracle queries the external chain node that holds the authoritative
// balance for linked wallets.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/nordgate/tipbot/internal/errors"
)

// BalanceOracle supplies the authoritative native-unit balance for a wallet.
type BalanceOracle interface {
	FetchBalance(ctx context.Context, walletRef string) (*big.Int, error)
}

// Client speaks JSON-RPC 2.0 over HTTP to the chain node. Calls are guarded by
// a circuit breaker so a dead endpoint does not stall every reconciliation.
type Client struct {
	endpoint   string
	httpClient *http.Client
	breaker    *apperrors.CircuitBreaker
	nextID     atomic.Uint64
}

var _ BalanceOracle = (*Client)(nil)

// NewClient creates an oracle client for the given JSON-RPC endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: apperrors.NewCircuitBreaker(5, 30*time.Second),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FetchBalance returns the wallet's balance in the chain's native unit.
func (c *Client) FetchBalance(ctx context.Context, walletRef string) (*big.Int, error) {
	var raw string

	err := c.breaker.Call(func() error {
		return c.call(ctx, "wallet_getBalance", []any{walletRef}, &raw)
	})
	if err != nil {
		return nil, apperrors.NewOracleError(err)
	}

	balance, err := parseNativeAmount(raw)
	if err != nil {
		return nil, apperrors.NewOracleError(err)
	}

	return balance, nil
}

// HealthCheck probes the endpoint so the oracle shows up in /healthz.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.breaker.Open() {
		return apperrors.ErrCircuitOpen
	}

	var version string
	if err := c.call(ctx, "node_version", nil, &version); err != nil {
		return err
	}

	return nil
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}

	req := &rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return fmt.Errorf("jsonrpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// parseNativeAmount accepts decimal strings and 0x-prefixed hex strings.
func parseNativeAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)

	base := 10
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		raw = raw[2:]
		base = 16
	}

	amount, ok := new(big.Int).SetString(raw, base)
	if !ok {
		return nil, fmt.Errorf("malformed native amount %q", raw)
	}

	return amount, nil
}
