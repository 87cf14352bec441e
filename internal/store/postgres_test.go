package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	lockBalanceQuery   = `SELECT balance FROM balances WHERE user_id = $1 FOR UPDATE`
	applyDeltaQuery    = `UPDATE balances SET balance = balance + $2, last_updated = $3 WHERE user_id = $1`
	appendLogQuery     = `INSERT INTO transfers (sender_id, recipient_id, amount, occurred_at) VALUES ($1, $2, $3, $4) RETURNING id`
	selectBalanceQuery = `SELECT balance FROM balances WHERE user_id = $1`
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresStore(db, testLogger(), 9000), mock
}

func TestPostgresStore_Transfer_Commits(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockBalanceQuery)).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(9000)))
	mock.ExpectQuery(regexp.QuoteMeta(lockBalanceQuery)).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(500)))
	mock.ExpectExec(regexp.QuoteMeta(applyDeltaQuery)).
		WithArgs(int64(1), int64(-3000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(applyDeltaQuery)).
		WithArgs(int64(2), int64(3000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(appendLogQuery)).
		WithArgs(int64(1), int64(2), int64(3000), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	record, err := s.Transfer(context.Background(), 1, 2, 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(7), record.ID)
	assert.Equal(t, int64(1), record.SenderID)
	assert.Equal(t, int64(2), record.RecipientID)
	assert.Equal(t, int64(3000), record.Amount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Transfer_LocksInAscendingOrder(t *testing.T) {
	s, mock := newMockStore(t)

	// Sender id is higher than recipient id; the recipient row must still be
	// locked first.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockBalanceQuery)).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(500)))
	mock.ExpectQuery(regexp.QuoteMeta(lockBalanceQuery)).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(9000)))
	mock.ExpectExec(regexp.QuoteMeta(applyDeltaQuery)).
		WithArgs(int64(9), int64(-100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(applyDeltaQuery)).
		WithArgs(int64(2), int64(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(appendLogQuery)).
		WithArgs(int64(9), int64(2), int64(100), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	_, err := s.Transfer(context.Background(), 9, 2, 100)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Transfer_MissingRecipientRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockBalanceQuery)).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(9000)))
	mock.ExpectQuery(regexp.QuoteMeta(lockBalanceQuery)).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	mock.ExpectRollback()

	_, err := s.Transfer(context.Background(), 1, 2, 100)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Transfer_InsufficientBalanceRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockBalanceQuery)).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(50)))
	mock.ExpectQuery(regexp.QuoteMeta(lockBalanceQuery)).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(0)))
	mock.ExpectRollback()

	_, err := s.Transfer(context.Background(), 1, 2, 100)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Transfer_LogAppendFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockBalanceQuery)).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(9000)))
	mock.ExpectQuery(regexp.QuoteMeta(lockBalanceQuery)).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(0)))
	mock.ExpectExec(regexp.QuoteMeta(applyDeltaQuery)).
		WithArgs(int64(1), int64(-100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(applyDeltaQuery)).
		WithArgs(int64(2), int64(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(appendLogQuery)).
		WithArgs(int64(1), int64(2), int64(100), sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.Transfer(context.Background(), 1, 2, 100)
	assert.ErrorIs(t, err, ErrLogAppendFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Balance(t *testing.T) {
	t.Run("existing row", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectQuery(regexp.QuoteMeta(selectBalanceQuery)).WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(4200)))

		balance, err := s.Balance(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(4200), balance)
	})

	t.Run("missing row reads as zero", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectQuery(regexp.QuoteMeta(selectBalanceQuery)).WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))

		balance, err := s.Balance(context.Background(), 404)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	})
}

func TestPostgresStore_SetBalance(t *testing.T) {
	updateQuery := `UPDATE balances SET balance = $2, last_updated = $3 WHERE user_id = $1`

	t.Run("row updated", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectExec(regexp.QuoteMeta(updateQuery)).
			WithArgs(int64(1), int64(500), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := s.SetBalance(context.Background(), 1, 500)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("no row", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectExec(regexp.QuoteMeta(updateQuery)).
			WithArgs(int64(404), int64(500), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		changed, err := s.SetBalance(context.Background(), 404, 500)
		require.NoError(t, err)
		assert.False(t, changed)
	})
}

func TestPostgresStore_Find_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT a.user_id").WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "username", "wallet_ref", "joined_at", "balance", "last_updated",
		}))

	_, err := s.Find(context.Background(), 404)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPostgresStore_RecentTransfers(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, sender_id, recipient_id").WithArgs(int64(1), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "recipient_id", "amount", "occurred_at"}).
			AddRow(int64(5), int64(1), int64(2), int64(300), now).
			AddRow(int64(4), int64(2), int64(1), int64(100), now))

	records, err := s.RecentTransfers(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(5), records[0].ID)
	assert.Equal(t, int64(4), records[1].ID)
}
