package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nordgate/tipbot/internal/domain"
)

// PostgresStore is the SQL-backed Store implementation. Transfers run in a
// single transaction with both balance rows locked in ascending user-id order,
// so two transfers targeting each other cannot deadlock.
type PostgresStore struct {
	db              *sql.DB
	log             *slog.Logger
	startingBalance int64
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a Store backed by the provided database handle.
// startingBalance is credited once per account at first contact.
func NewPostgresStore(db *sql.DB, log *slog.Logger, startingBalance int64) *PostgresStore {
	return &PostgresStore{
		db:              db,
		log:             log,
		startingBalance: startingBalance,
	}
}

// CreateOrTouch upserts the account row and seeds the balance row on first contact.
func (s *PostgresStore) CreateOrTouch(ctx context.Context, userID int64, username, walletRef string) (*domain.Account, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create-or-touch: %w", err)
	}
	defer rollback(tx, s.log)

	const upsertAccount = `
		INSERT INTO accounts (user_id, username, wallet_ref, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			username   = EXCLUDED.username,
			wallet_ref = COALESCE(NULLIF(accounts.wallet_ref, ''), EXCLUDED.wallet_ref)
	`
	if _, err := tx.ExecContext(ctx, upsertAccount, userID, username, walletRef, now); err != nil {
		s.logError("create_or_touch.account", userID, err)
		return nil, fmt.Errorf("upsert account: %w", err)
	}

	const seedBalance = `
		INSERT INTO balances (user_id, balance, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, seedBalance, userID, s.startingBalance, now); err != nil {
		s.logError("create_or_touch.balance", userID, err)
		return nil, fmt.Errorf("seed balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create-or-touch: %w", err)
	}

	return s.Find(ctx, userID)
}

const selectAccount = `
	SELECT a.user_id, a.username, a.wallet_ref, a.joined_at,
	       COALESCE(b.balance, 0), COALESCE(b.last_updated, a.joined_at)
	FROM accounts a
	LEFT JOIN balances b ON b.user_id = a.user_id
`

// Find retrieves one account by its Telegram identifier.
func (s *PostgresStore) Find(ctx context.Context, userID int64) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx, selectAccount+` WHERE a.user_id = $1`, userID)
	return s.scanAccount(row, userID)
}

// FindByUsername retrieves one account by display name, lowest user id first.
func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		selectAccount+` WHERE a.username = $1 ORDER BY a.user_id ASC LIMIT 1`, username)
	return s.scanAccount(row, 0)
}

func (s *PostgresStore) scanAccount(row *sql.Row, userID int64) (*domain.Account, error) {
	var acc domain.Account
	if err := row.Scan(
		&acc.UserID,
		&acc.Username,
		&acc.WalletRef,
		&acc.JoinedAt,
		&acc.Balance,
		&acc.LastUpdated,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}

		s.logError("find", userID, err)
		return nil, fmt.Errorf("select account: %w", err)
	}

	return &acc, nil
}

// Balance returns the stored balance, zero when no row exists.
func (s *PostgresStore) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		s.logError("balance", userID, err)
		return 0, fmt.Errorf("select balance: %w", err)
	}

	return balance, nil
}

// SetBalance overwrites the stored balance and reports whether a row existed.
func (s *PostgresStore) SetBalance(ctx context.Context, userID int64, amount int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE balances SET balance = $2, last_updated = $3 WHERE user_id = $1`,
		userID, amount, time.Now().UTC())
	if err != nil {
		s.logError("set_balance", userID, err)
		return false, fmt.Errorf("update balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set balance rows affected: %w", err)
	}

	return affected > 0, nil
}

// Transfer debits the sender, credits the recipient and appends the log record
// within one transaction. A failure at any step leaves balances unchanged.
func (s *PostgresStore) Transfer(ctx context.Context, senderID, recipientID, amount int64) (*domain.TransferRecord, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transfer: %w", err)
	}
	defer rollback(tx, s.log)

	// Lock both rows in ascending id order.
	first, second := senderID, recipientID
	if first > second {
		first, second = second, first
	}

	locked := make(map[int64]int64, 2)
	for _, id := range []int64{first, second} {
		var balance int64
		err := tx.QueryRowContext(ctx,
			`SELECT balance FROM balances WHERE user_id = $1 FOR UPDATE`, id).Scan(&balance)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// Missing row reads as zero; existence is enforced below.
		case err != nil:
			s.logError("transfer.lock", id, err)
			return nil, fmt.Errorf("lock balance row: %w", err)
		default:
			locked[id] = balance
		}
	}

	if _, ok := locked[recipientID]; !ok {
		return nil, ErrAccountNotFound
	}
	if locked[senderID] < amount {
		return nil, ErrInsufficientBalance
	}

	const applyDelta = `
		UPDATE balances SET balance = balance + $2, last_updated = $3 WHERE user_id = $1
	`
	if _, err := tx.ExecContext(ctx, applyDelta, senderID, -amount, now); err != nil {
		s.logError("transfer.debit", senderID, err)
		return nil, fmt.Errorf("debit sender: %w", err)
	}
	if _, err := tx.ExecContext(ctx, applyDelta, recipientID, amount, now); err != nil {
		s.logError("transfer.credit", recipientID, err)
		return nil, fmt.Errorf("credit recipient: %w", err)
	}

	record := &domain.TransferRecord{
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		OccurredAt:  now,
	}

	const appendLog = `
		INSERT INTO transfers (sender_id, recipient_id, amount, occurred_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, appendLog, senderID, recipientID, amount, now).Scan(&record.ID); err != nil {
		s.logError("transfer.log", senderID, err)
		return nil, fmt.Errorf("%w: %v", ErrLogAppendFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transfer: %w", err)
	}

	return record, nil
}

// RecentTransfers lists transfers involving userID, newest first.
func (s *PostgresStore) RecentTransfers(ctx context.Context, userID int64, limit int) ([]domain.TransferRecord, error) {
	const query = `
		SELECT id, sender_id, recipient_id, amount, occurred_at
		FROM transfers
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		s.logError("recent_transfers", userID, err)
		return nil, fmt.Errorf("select transfers: %w", err)
	}
	defer rows.Close()

	var records []domain.TransferRecord
	for rows.Next() {
		var rec domain.TransferRecord
		if err := rows.Scan(&rec.ID, &rec.SenderID, &rec.RecipientID, &rec.Amount, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}

	return records, nil
}

// WalletAccounts lists accounts with a linked wallet reference.
func (s *PostgresStore) WalletAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		selectAccount+` WHERE a.wallet_ref <> '' ORDER BY a.user_id ASC`)
	if err != nil {
		s.logError("wallet_accounts", 0, err)
		return nil, fmt.Errorf("select wallet accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var acc domain.Account
		if err := rows.Scan(
			&acc.UserID,
			&acc.Username,
			&acc.WalletRef,
			&acc.JoinedAt,
			&acc.Balance,
			&acc.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan wallet account: %w", err)
		}
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet accounts: %w", err)
	}

	return accounts, nil
}

func (s *PostgresStore) logError(operation string, userID int64, err error) {
	if s.log == nil || err == nil {
		return
	}

	s.log.Error("store operation failed",
		slog.String("operation", operation),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}

func rollback(tx *sql.Tx, log *slog.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) && log != nil {
		log.Error("transaction rollback failed", slog.Any("error", err))
	}
}
