package domain

import "time"

// Account is the ledger's record of one community member: their Telegram
// identity, display name, optional on-chain wallet reference and balance.
type Account struct {
	UserID      int64
	Username    string
	WalletRef   string
	Balance     int64
	JoinedAt    time.Time
	LastUpdated time.Time
}

// TransferRecord is one immutable entry of the transfer log.
type TransferRecord struct {
	ID          int64
	SenderID    int64
	RecipientID int64
	Amount      int64
	OccurredAt  time.Time
}
