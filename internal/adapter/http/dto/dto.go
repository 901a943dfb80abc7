package dto

import (
	"time"

	"wallet-ledger/internal/core/domain"
)

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID   string `json:"user_id"`
	WalletID string `json:"wallet_id"`
	Email    string `json:"email"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// AmountRequest is the request body for deposits and withdrawals on the
// caller's own wallet.
type AmountRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// DebinRequest is the request body for an external debit-request deposit.
// Email defaults to the authenticated caller's when omitted.
type DebinRequest struct {
	Email  string `json:"email" binding:"omitempty,email"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	RecipientEmail string `json:"recipient_email" binding:"required,email"`
	Amount         int64  `json:"amount" binding:"required,gt=0"`
}

// WalletResponse is the response body for mutating wallet operations.
type WalletResponse struct {
	WalletID string `json:"wallet_id"`
	Balance  int64  `json:"balance"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// TransactionResponse is the response body for a single ledger entry.
type TransactionResponse struct {
	ID               string  `json:"id"`
	WalletID         string  `json:"wallet_id"`
	Amount           int64   `json:"amount"`
	Type             string  `json:"type"`
	RelatedUserEmail *string `json:"related_user_email,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// TransactionListResponse wraps a wallet's history.
type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
	Total int                   `json:"total"`
}

// FromTransaction maps a domain entry onto the wire representation.
func FromTransaction(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:               t.ID.String(),
		WalletID:         t.WalletID.String(),
		Amount:           t.Amount,
		Type:             string(t.Type),
		RelatedUserEmail: t.RelatedUserEmail,
		CreatedAt:        t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// FromTransactions maps a history slice newest-first, preserving order.
func FromTransactions(entries []domain.Transaction) TransactionListResponse {
	items := make([]TransactionResponse, 0, len(entries))
	for i := range entries {
		items = append(items, FromTransaction(&entries[i]))
	}
	return TransactionListResponse{Items: items, Total: len(items)}
}
