// Package store persists accounts, balances and the append-only transfer log.
package store

import (
	"context"
	"errors"

	"github.com/nordgate/tipbot/internal/domain"
)

var (
	// ErrAccountNotFound indicates the requested account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientBalance indicates the sender cannot cover the requested amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrLogAppendFailed indicates the transfer log record could not be written.
	// The enclosing transfer transaction is rolled back, so balances stay intact,
	// but the condition is treated as operator-visible.
	ErrLogAppendFailed = errors.New("transfer log append failed")
)

// Store defines persistence operations for the balance ledger. Transfer is the
// only compound mutation: it debits, credits and appends the log record as one
// atomic unit.
type Store interface {
	// CreateOrTouch creates the account on first contact, crediting the store's
	// starting balance and linking walletRef. Repeated calls only refresh the
	// username; balance, wallet reference and join time are never reset.
	CreateOrTouch(ctx context.Context, userID int64, username, walletRef string) (*domain.Account, error)

	// Find returns the account for userID, or ErrAccountNotFound.
	Find(ctx context.Context, userID int64) (*domain.Account, error)

	// FindByUsername returns one account matching the display name. Display
	// names are not unique upstream; the match with the lowest user id wins.
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)

	// Balance returns the stored balance. A missing account reads as zero,
	// not as an error; the bot relies on this for unregistered users.
	Balance(ctx context.Context, userID int64) (int64, error)

	// SetBalance unconditionally overwrites the balance and reports whether a
	// row existed to update. Used by reconciliation only.
	SetBalance(ctx context.Context, userID int64, amount int64) (bool, error)

	// Transfer atomically moves amount from sender to recipient and appends one
	// transfer record. Either all three writes are visible or none are.
	// Callers must pass a positive amount; the engine validates it upstream.
	Transfer(ctx context.Context, senderID, recipientID, amount int64) (*domain.TransferRecord, error)

	// RecentTransfers lists the newest transfers the user took part in.
	RecentTransfers(ctx context.Context, userID int64, limit int) ([]domain.TransferRecord, error)

	// WalletAccounts lists every account with a linked wallet reference, for
	// the scheduled reconciliation sweep.
	WalletAccounts(ctx context.Context) ([]domain.Account, error)
}
