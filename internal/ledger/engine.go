// Package ledger implements the balance ledger engine: the single entry point
// for account registration, balance queries and transfers.
package ledger

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strconv"
	"strings"

	apperrors "github.com/nordgate/tipbot/internal/errors"

	"github.com/nordgate/tipbot/internal/domain"
	"github.com/nordgate/tipbot/internal/store"
	"github.com/nordgate/tipbot/pkg/metrics"
)

// Engine orchestrates all balance-touching operations on top of the store.
// Balances are never written outside Transfer and OverrideBalance.
type Engine struct {
	store store.Store
	log   *slog.Logger
}

// NewEngine constructs the ledger engine.
func NewEngine(st store.Store, log *slog.Logger) *Engine {
	return &Engine{store: st, log: log}
}

// RegisterAccount creates the account at first contact or refreshes its
// username. Balance and join time survive repeated registration.
func (e *Engine) RegisterAccount(ctx context.Context, userID int64, username, walletRef string) (*domain.Account, error) {
	acc, err := e.store.CreateOrTouch(ctx, userID, username, walletRef)
	if err != nil {
		e.logError("register_account", userID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	return acc, nil
}

// QueryBalance returns the stored balance; unregistered users read as zero.
func (e *Engine) QueryBalance(ctx context.Context, userID int64) (int64, error) {
	balance, err := e.store.Balance(ctx, userID)
	if err != nil {
		e.logError("query_balance", userID, err)
		return 0, apperrors.NewDatabaseError(err)
	}

	return balance, nil
}

// Transfer moves amount from sender to recipient and records it in the
// transfer log, all as one atomic unit. Validation failures leave no trace.
func (e *Engine) Transfer(ctx context.Context, senderID, recipientID, amount int64) (*domain.TransferRecord, error) {
	if amount <= 0 {
		metrics.RecordTransfer("invalid_amount", 0)
		return nil, apperrors.NewValidationError("the amount must be greater than zero")
	}
	if senderID == recipientID {
		metrics.RecordTransfer("self_transfer", 0)
		return nil, apperrors.NewSelfTransferError()
	}

	record, err := e.store.Transfer(ctx, senderID, recipientID, amount)
	if err != nil {
		switch {
		case stdErrors.Is(err, store.ErrAccountNotFound):
			metrics.RecordTransfer("recipient_not_registered", 0)
			return nil, apperrors.NewRecipientNotRegisteredError(strconv.FormatInt(recipientID, 10))
		case stdErrors.Is(err, store.ErrInsufficientBalance):
			metrics.RecordTransfer("insufficient_balance", 0)
			return nil, apperrors.NewInsufficientBalanceError()
		case stdErrors.Is(err, store.ErrLogAppendFailed):
			e.logError("transfer.log_append", senderID, err)
			metrics.RecordTransfer("log_write_failed", 0)
			return nil, apperrors.NewLogWriteError(err)
		default:
			e.logError("transfer", senderID, err)
			metrics.RecordTransfer("store_error", 0)
			return nil, apperrors.NewDatabaseError(err)
		}
	}

	metrics.RecordTransfer("ok", amount)

	if e.log != nil {
		e.log.Info("transfer committed",
			slog.Int64("transfer_id", record.ID),
			slog.Int64("sender_id", senderID),
			slog.Int64("recipient_id", recipientID),
			slog.Int64("amount", amount),
		)
	}

	return record, nil
}

// LookupRecipient resolves a numeric identifier or username to a user id.
// Numeric identifiers pass through unchecked; existence is verified by the
// subsequent account lookup on the transfer path.
func (e *Engine) LookupRecipient(ctx context.Context, identifier string) (int64, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(identifier), "@")
	if trimmed == "" {
		return 0, apperrors.NewValidationError("recipient identifier is empty")
	}

	if userID, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return userID, nil
	}

	acc, err := e.store.FindByUsername(ctx, trimmed)
	if err != nil {
		if stdErrors.Is(err, store.ErrAccountNotFound) {
			return 0, apperrors.NewRecipientNotRegisteredError("@" + trimmed)
		}

		e.logError("lookup_recipient", 0, err)
		return 0, apperrors.NewDatabaseError(err)
	}

	return acc.UserID, nil
}

// Account returns the full account row for userID.
func (e *Engine) Account(ctx context.Context, userID int64) (*domain.Account, error) {
	acc, err := e.store.Find(ctx, userID)
	if err != nil {
		if stdErrors.Is(err, store.ErrAccountNotFound) {
			return nil, err
		}

		e.logError("account", userID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	return acc, nil
}

// History lists the newest transfers the user took part in.
func (e *Engine) History(ctx context.Context, userID int64, limit int) ([]domain.TransferRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	records, err := e.store.RecentTransfers(ctx, userID, limit)
	if err != nil {
		e.logError("history", userID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	return records, nil
}

// WalletAccounts lists every account with a linked wallet reference.
func (e *Engine) WalletAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := e.store.WalletAccounts(ctx)
	if err != nil {
		e.logError("wallet_accounts", 0, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	return accounts, nil
}

// OverrideBalance unconditionally replaces the stored balance. Reconciliation
// is its only caller; ordinary transfers never go through here.
func (e *Engine) OverrideBalance(ctx context.Context, userID int64, amount int64) (bool, error) {
	changed, err := e.store.SetBalance(ctx, userID, amount)
	if err != nil {
		e.logError("override_balance", userID, err)
		return false, apperrors.NewDatabaseError(err)
	}

	if changed && e.log != nil {
		e.log.Info("balance overridden",
			slog.Int64("user_id", userID),
			slog.Int64("amount", amount),
		)
	}

	return changed, nil
}

func (e *Engine) logError(operation string, userID int64, err error) {
	if e.log == nil || err == nil {
		return
	}

	e.log.Error("ledger operation failed",
		slog.String("operation", operation),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}
