package reconcile

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nordgate/tipbot/internal/errors"
	"github.com/nordgate/tipbot/internal/ledger"
	"github.com/nordgate/tipbot/internal/store"
	"github.com/nordgate/tipbot/internal/usercache"
)

type fakeOracle struct {
	balances map[string]*big.Int
	err      error
	calls    int
}

func (f *fakeOracle) FetchBalance(_ context.Context, walletRef string) (*big.Int, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	balance, ok := f.balances[walletRef]
	if !ok {
		return nil, apperrors.NewOracleError(nil)
	}

	return balance, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(o *fakeOracle, nativeDecimals int) (*Worker, *ledger.Engine, *store.MemoryStore) {
	st := store.NewMemoryStore(9000)
	engine := ledger.NewEngine(st, testLogger())
	w := NewWorker(engine, o, nativeDecimals, nil, testLogger())
	w.retry = apperrors.Policy{MaxAttempts: 2, InitialBackoff: 1, MaxBackoff: 1}
	return w, engine, st
}

func TestWorker_Reconcile_OverwritesDriftedBalance(t *testing.T) {
	ctx := context.Background()

	// Native unit has 8 fraction digits; 123.45 native units.
	o := &fakeOracle{balances: map[string]*big.Int{
		"wlt-a": big.NewInt(12345000000),
	}}
	w, engine, _ := newTestWorker(o, 8)

	_, err := engine.RegisterAccount(ctx, 1, "alice", "wlt-a")
	require.NoError(t, err)

	require.NoError(t, w.Reconcile(ctx, 1))

	balance, err := engine.QueryBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), balance)
}

func TestWorker_Reconcile_SkipsWithoutTouchingBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("unregistered account", func(t *testing.T) {
		o := &fakeOracle{}
		w, _, _ := newTestWorker(o, 8)

		assert.NoError(t, w.Reconcile(ctx, 404))
		assert.Zero(t, o.calls)
	})

	t.Run("no wallet linked", func(t *testing.T) {
		o := &fakeOracle{}
		w, engine, _ := newTestWorker(o, 8)

		_, err := engine.RegisterAccount(ctx, 1, "alice", "")
		require.NoError(t, err)

		assert.NoError(t, w.Reconcile(ctx, 1))
		assert.Zero(t, o.calls)

		balance, err := engine.QueryBalance(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(9000), balance)
	})
}

func TestWorker_Reconcile_UnchangedBalanceIsNotRewritten(t *testing.T) {
	ctx := context.Background()

	// Oracle agrees with the stored 90.00.
	o := &fakeOracle{balances: map[string]*big.Int{
		"wlt-a": big.NewInt(9000000000),
	}}
	w, engine, _ := newTestWorker(o, 8)

	_, err := engine.RegisterAccount(ctx, 1, "alice", "wlt-a")
	require.NoError(t, err)

	require.NoError(t, w.Reconcile(ctx, 1))

	balance, err := engine.QueryBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), balance)
}

func TestWorker_Reconcile_EvictsCachedAccount(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	cache := usercache.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	// Oracle reports 123.45 against a stored 90.00.
	o := &fakeOracle{balances: map[string]*big.Int{
		"wlt-a": big.NewInt(12345000000),
	}}
	st := store.NewMemoryStore(9000)
	engine := ledger.NewEngine(st, testLogger())
	w := NewWorker(engine, o, 8, cache, testLogger())
	w.retry = apperrors.Policy{MaxAttempts: 2, InitialBackoff: 1, MaxBackoff: 1}

	acc, err := engine.RegisterAccount(ctx, 1, "alice", "wlt-a")
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, acc, usercache.DefaultTTL))

	require.NoError(t, w.Reconcile(ctx, 1))

	// A balance lookup after reconciliation must not see the pre-override
	// cached row.
	cached, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestWorker_Reconcile_OracleFailureRetriesThenFails(t *testing.T) {
	ctx := context.Background()

	o := &fakeOracle{err: apperrors.NewOracleError(nil)}
	w, engine, _ := newTestWorker(o, 8)

	_, err := engine.RegisterAccount(ctx, 1, "alice", "wlt-a")
	require.NoError(t, err)

	err = w.Reconcile(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, 2, o.calls)

	// The stored balance is untouched on oracle failure.
	balance, qerr := engine.QueryBalance(ctx, 1)
	require.NoError(t, qerr)
	assert.Equal(t, int64(9000), balance)
}

func TestWorker_ReconcileAll(t *testing.T) {
	ctx := context.Background()

	o := &fakeOracle{balances: map[string]*big.Int{
		"wlt-a": big.NewInt(100000000),
		"wlt-b": big.NewInt(200000000),
	}}
	w, engine, _ := newTestWorker(o, 8)

	_, err := engine.RegisterAccount(ctx, 1, "alice", "wlt-a")
	require.NoError(t, err)
	_, err = engine.RegisterAccount(ctx, 2, "bob", "wlt-b")
	require.NoError(t, err)
	_, err = engine.RegisterAccount(ctx, 3, "carol", "")
	require.NoError(t, err)

	failures, err := w.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, failures)

	aliceBalance, _ := engine.QueryBalance(ctx, 1)
	bobBalance, _ := engine.QueryBalance(ctx, 2)
	carolBalance, _ := engine.QueryBalance(ctx, 3)
	assert.Equal(t, int64(100), aliceBalance)
	assert.Equal(t, int64(200), bobBalance)
	assert.Equal(t, int64(9000), carolBalance)
}

func TestWorker_ReconcileAll_ReportsPerAccountFailures(t *testing.T) {
	ctx := context.Background()

	// Only alice's wallet is known to the oracle.
	o := &fakeOracle{balances: map[string]*big.Int{
		"wlt-a": big.NewInt(100000000),
	}}
	w, engine, _ := newTestWorker(o, 8)

	_, err := engine.RegisterAccount(ctx, 1, "alice", "wlt-a")
	require.NoError(t, err)
	_, err = engine.RegisterAccount(ctx, 2, "bob", "wlt-unknown")
	require.NoError(t, err)

	failures, err := w.ReconcileAll(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, failures)

	aliceBalance, _ := engine.QueryBalance(ctx, 1)
	assert.Equal(t, int64(100), aliceBalance)
}

func TestNativeToLedger(t *testing.T) {
	huge, ok := new(big.Int).SetString("92233720368547758080000000", 10)
	require.True(t, ok)

	testCases := []struct {
		name           string
		native         *big.Int
		nativeDecimals int
		expected       int64
		wantErr        bool
	}{
		{name: "more native decimals truncate", native: big.NewInt(12345678), nativeDecimals: 4, expected: 123456},
		{name: "same decimals", native: big.NewInt(9000), nativeDecimals: 2, expected: 9000},
		{name: "fewer native decimals scale up", native: big.NewInt(90), nativeDecimals: 0, expected: 9000},
		{name: "zero", native: big.NewInt(0), nativeDecimals: 8, expected: 0},
		{name: "negative", native: big.NewInt(-150), nativeDecimals: 2, expected: -150},
		{name: "nil amount", native: nil, wantErr: true},
		{name: "negative decimals", native: big.NewInt(1), nativeDecimals: -1, wantErr: true},
		{name: "overflow", native: huge, nativeDecimals: 8, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := NativeToLedger(tc.native, tc.nativeDecimals)

			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, amount)
		})
	}
}
