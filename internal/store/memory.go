package store

import (
	"context"
	"sync"
	"time"

	"github.com/nordgate/tipbot/internal/domain"
)

// MemoryStore is a concurrency-safe in-memory Store used in tests and local
// development. One mutex guards all state, which trivially gives transfers
// the same all-or-nothing visibility the Postgres transaction provides.
type MemoryStore struct {
	mu              sync.RWMutex
	accounts        map[int64]*domain.Account
	transfers       []domain.TransferRecord
	nextTransferID  int64
	startingBalance int64

	// failLogAppend makes the next Transfer fail at the log-append step,
	// exercising the rollback path in tests.
	failLogAppend bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(startingBalance int64) *MemoryStore {
	return &MemoryStore{
		accounts:        make(map[int64]*domain.Account),
		nextTransferID:  1,
		startingBalance: startingBalance,
	}
}

// FailNextLogAppend arms a one-shot failure of the transfer-log append.
func (s *MemoryStore) FailNextLogAppend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogAppend = true
}

func (s *MemoryStore) CreateOrTouch(_ context.Context, userID int64, username, walletRef string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	acc, ok := s.accounts[userID]
	if !ok {
		acc = &domain.Account{
			UserID:      userID,
			Username:    username,
			WalletRef:   walletRef,
			Balance:     s.startingBalance,
			JoinedAt:    now,
			LastUpdated: now,
		}
		s.accounts[userID] = acc
	} else {
		acc.Username = username
		if acc.WalletRef == "" {
			acc.WalletRef = walletRef
		}
	}

	copied := *acc
	return &copied, nil
}

func (s *MemoryStore) Find(_ context.Context, userID int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return nil, ErrAccountNotFound
	}

	copied := *acc
	return &copied, nil
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var match *domain.Account
	for _, acc := range s.accounts {
		if acc.Username != username {
			continue
		}
		if match == nil || acc.UserID < match.UserID {
			match = acc
		}
	}

	if match == nil {
		return nil, ErrAccountNotFound
	}

	copied := *match
	return &copied, nil
}

func (s *MemoryStore) Balance(_ context.Context, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if acc, ok := s.accounts[userID]; ok {
		return acc.Balance, nil
	}

	return 0, nil
}

func (s *MemoryStore) SetBalance(_ context.Context, userID int64, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return false, nil
	}

	acc.Balance = amount
	acc.LastUpdated = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) Transfer(_ context.Context, senderID, recipientID, amount int64) (*domain.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipient, ok := s.accounts[recipientID]
	if !ok {
		return nil, ErrAccountNotFound
	}

	sender := s.accounts[senderID]
	if sender == nil || sender.Balance < amount {
		return nil, ErrInsufficientBalance
	}

	if s.failLogAppend {
		s.failLogAppend = false
		return nil, ErrLogAppendFailed
	}

	now := time.Now().UTC()
	sender.Balance -= amount
	sender.LastUpdated = now
	recipient.Balance += amount
	recipient.LastUpdated = now

	record := domain.TransferRecord{
		ID:          s.nextTransferID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		OccurredAt:  now,
	}
	s.nextTransferID++
	s.transfers = append(s.transfers, record)

	copied := record
	return &copied, nil
}

func (s *MemoryStore) WalletAccounts(_ context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []domain.Account
	for _, acc := range s.accounts {
		if acc.WalletRef != "" {
			accounts = append(accounts, *acc)
		}
	}

	return accounts, nil
}

func (s *MemoryStore) RecentTransfers(_ context.Context, userID int64, limit int) ([]domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []domain.TransferRecord
	for i := len(s.transfers) - 1; i >= 0 && len(records) < limit; i-- {
		rec := s.transfers[i]
		if rec.SenderID == userID || rec.RecipientID == userID {
			records = append(records, rec)
		}
	}

	return records, nil
}
