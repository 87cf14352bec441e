package oracle

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nordgate/tipbot/internal/errors"
)

func rpcServer(t *testing.T, handler func(method string, params []any) (any, *rpcError)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)

		result, rpcErr := handler(req.Method, req.Params)

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestClient_FetchBalance(t *testing.T) {
	testCases := []struct {
		name     string
		result   string
		expected *big.Int
	}{
		{name: "decimal", result: "900000000000", expected: big.NewInt(900000000000)},
		{name: "hex", result: "0xDE0B6B3A7640000", expected: big.NewInt(1000000000000000000)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := rpcServer(t, func(method string, params []any) (any, *rpcError) {
				assert.Equal(t, "wallet_getBalance", method)
				require.Len(t, params, 1)
				assert.Equal(t, "wlt-abc", params[0])
				return tc.result, nil
			})

			client := NewClient(srv.URL, time.Second)
			balance, err := client.FetchBalance(context.Background(), "wlt-abc")
			require.NoError(t, err)
			assert.Equal(t, 0, tc.expected.Cmp(balance))
		})
	}
}

func TestClient_FetchBalance_RPCError(t *testing.T) {
	srv := rpcServer(t, func(string, []any) (any, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "wallet not found"}
	})

	client := NewClient(srv.URL, time.Second)
	_, err := client.FetchBalance(context.Background(), "wlt-missing")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "E300", appErr.Code)
	assert.True(t, appErr.Retryable)
}

func TestClient_FetchBalance_MalformedAmount(t *testing.T) {
	srv := rpcServer(t, func(string, []any) (any, *rpcError) {
		return "not-a-number", nil
	})

	client := NewClient(srv.URL, time.Second)
	_, err := client.FetchBalance(context.Background(), "wlt-abc")
	assert.Error(t, err)
}

func TestClient_CircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := rpcServer(t, func(string, []any) (any, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "node down"}
	})

	client := NewClient(srv.URL, time.Second)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.FetchBalance(ctx, "wlt-abc")
		require.Error(t, err)
	}

	// The breaker is open now; the next call fails fast.
	_, err := client.FetchBalance(ctx, "wlt-abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCircuitOpen)
	assert.Error(t, client.HealthCheck(ctx))
}

func TestClient_HealthCheck(t *testing.T) {
	srv := rpcServer(t, func(method string, _ []any) (any, *rpcError) {
		assert.Equal(t, "node_version", method)
		return "1.4.2", nil
	})

	client := NewClient(srv.URL, time.Second)
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestParseNativeAmount(t *testing.T) {
	testCases := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{input: "0", expected: 0},
		{input: "42", expected: 42},
		{input: " 42 ", expected: 42},
		{input: "0x2a", expected: 42},
		{input: "0X2A", expected: 42},
		{input: "", wantErr: true},
		{input: "0x", wantErr: true},
		{input: "12.5", wantErr: true},
	}

	for _, tc := range testCases {
		amount, err := parseNativeAmount(tc.input)

		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.input)
			continue
		}

		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.expected, amount.Int64(), "input %q", tc.input)
	}
}
