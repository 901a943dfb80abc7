package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal  TransactionType = "WITHDRAWAL"
	TransactionTypeTransferOut TransactionType = "TRANSFER_OUT"
	TransactionTypeTransferIn  TransactionType = "TRANSFER_IN"
)

// Transaction is an immutable ledger entry for a single balance-affecting
// event. Entries are append-only: no update or delete exists anywhere in
// the repository contract.
type Transaction struct {
	ID       uuid.UUID       `json:"id"`
	WalletID uuid.UUID       `json:"wallet_id"`
	Amount   int64           `json:"amount"` // Positive magnitude, minor units
	Type     TransactionType `json:"type"`

	// RelatedUserID is the counterparty user for transfer entries.
	// Nil for deposits and withdrawals.
	RelatedUserID *uuid.UUID `json:"related_user_id,omitempty"`

	// RelatedUserEmail is filled on reads by joining the counterparty user.
	// Never persisted on the transactions row itself.
	RelatedUserEmail *string `json:"related_user_email,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsTransfer returns true for entries produced by a two-wallet transfer.
func (t *Transaction) IsTransfer() bool {
	return t.Type == TransactionTypeTransferOut || t.Type == TransactionTypeTransferIn
}
