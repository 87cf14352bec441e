// Package reconcile synchronizes stored balances with the external balance oracle.
package reconcile

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"math/big"

	apperrors "github.com/nordgate/tipbot/internal/errors"

	"github.com/nordgate/tipbot/internal/ledger"
	"github.com/nordgate/tipbot/internal/oracle"
	"github.com/nordgate/tipbot/internal/store"
	"github.com/nordgate/tipbot/internal/usercache"
	"github.com/nordgate/tipbot/pkg/metrics"
)

// Ledger fraction digits; balances are stored with two decimal places.
const ledgerDecimals = 2

// Worker overwrites stored balances with oracle-derived values. The oracle is
// always queried before any database write, so no row lock is ever held
// across network I/O; the overwrite itself is one atomic row update that
// serializes against in-flight transfers at the database.
type Worker struct {
	engine         *ledger.Engine
	oracle         oracle.BalanceOracle
	cache          *usercache.Cache
	log            *slog.Logger
	nativeDecimals int
	retry          apperrors.Policy
}

// NewWorker constructs a reconciliation worker. nativeDecimals is the number
// of fraction digits of the oracle's native unit. cache may be nil when
// account caching is disabled.
func NewWorker(engine *ledger.Engine, bo oracle.BalanceOracle, nativeDecimals int, cache *usercache.Cache, log *slog.Logger) *Worker {
	return &Worker{
		engine:         engine,
		oracle:         bo,
		cache:          cache,
		log:            log,
		nativeDecimals: nativeDecimals,
		retry:          apperrors.DefaultPolicy,
	}
}

// Reconcile fetches the oracle balance for the user's wallet and overwrites
// the stored balance when they differ. Accounts without a wallet reference
// are skipped silently.
func (w *Worker) Reconcile(ctx context.Context, userID int64) error {
	acc, err := w.engine.Account(ctx, userID)
	if err != nil {
		if stdErrors.Is(err, store.ErrAccountNotFound) {
			w.logSkip(userID, "account not registered")
			metrics.RecordReconciliation("skipped", 0)
			return nil
		}

		metrics.RecordReconciliation("error", 0)
		return err
	}

	if acc.WalletRef == "" {
		w.logSkip(userID, "no wallet linked")
		metrics.RecordReconciliation("skipped", 0)
		return nil
	}

	var native *big.Int
	err = w.retry.WithRetry(ctx, func() error {
		var fetchErr error
		native, fetchErr = w.oracle.FetchBalance(ctx, acc.WalletRef)
		return fetchErr
	})
	if err != nil {
		metrics.RecordReconciliation("oracle_error", 0)
		return err
	}

	target, err := NativeToLedger(native, w.nativeDecimals)
	if err != nil {
		metrics.RecordReconciliation("conversion_error", 0)
		return apperrors.NewOracleError(err)
	}

	// Re-read right before the write to keep the skip window small; the
	// overwrite stays correct either way because it is a single row update.
	current, err := w.engine.QueryBalance(ctx, userID)
	if err != nil {
		metrics.RecordReconciliation("error", 0)
		return err
	}

	if current == target {
		metrics.RecordReconciliation("unchanged", 0)
		return nil
	}

	changed, err := w.engine.OverrideBalance(ctx, userID, target)
	if err != nil {
		metrics.RecordReconciliation("error", 0)
		return err
	}
	if !changed {
		w.logSkip(userID, "no balance row to update")
		metrics.RecordReconciliation("skipped", 0)
		return nil
	}

	// The overwrite is a balance mutation, so any cached copy of the
	// account is now stale and must not outlive it.
	if err := w.cache.Invalidate(ctx, userID); err != nil && w.log != nil {
		w.log.Warn("account cache invalidation failed",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
	}

	metrics.RecordReconciliation("updated", target-current)

	if w.log != nil {
		w.log.Info("balance reconciled",
			slog.Int64("user_id", userID),
			slog.Int64("stored", current),
			slog.Int64("oracle", target),
		)
	}

	return nil
}

// ReconcileAll sweeps every account with a linked wallet. Per-account failures
// are logged and counted but do not stop the sweep.
func (w *Worker) ReconcileAll(ctx context.Context) (int, error) {
	accounts, err := w.engine.WalletAccounts(ctx)
	if err != nil {
		return 0, err
	}

	failures := 0
	for _, acc := range accounts {
		if ctx.Err() != nil {
			return failures, ctx.Err()
		}

		if err := w.Reconcile(ctx, acc.UserID); err != nil {
			failures++
			if w.log != nil {
				w.log.Error("reconciliation failed",
					slog.Int64("user_id", acc.UserID),
					slog.Any("error", err),
				)
			}
		}
	}

	if failures > 0 {
		return failures, fmt.Errorf("reconciliation sweep: %d of %d accounts failed", failures, len(accounts))
	}

	return 0, nil
}

func (w *Worker) logSkip(userID int64, reason string) {
	if w.log == nil {
		return
	}

	w.log.Info("reconciliation skipped",
		slog.Int64("user_id", userID),
		slog.String("reason", reason),
	)
}

// NativeToLedger converts a native-unit amount to ledger minor units,
// truncating precision beyond the ledger's two fraction digits.
func NativeToLedger(native *big.Int, nativeDecimals int) (int64, error) {
	if native == nil {
		return 0, fmt.Errorf("nil native amount")
	}
	if nativeDecimals < 0 {
		return 0, fmt.Errorf("invalid native decimals %d", nativeDecimals)
	}

	scaled := new(big.Int).Set(native)
	switch {
	case nativeDecimals > ledgerDecimals:
		divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(nativeDecimals-ledgerDecimals)), nil)
		scaled.Quo(scaled, divisor)
	case nativeDecimals < ledgerDecimals:
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(ledgerDecimals-nativeDecimals)), nil)
		scaled.Mul(scaled, factor)
	}

	if !scaled.IsInt64() {
		return 0, fmt.Errorf("native amount %s overflows ledger range", native)
	}

	return scaled.Int64(), nil
}
