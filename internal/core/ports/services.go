package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// LedgerService is the only component permitted to combine wallet and
// transaction-log mutations. Each operation is a single atomic unit:
// it commits fully or leaves no observable effect.
type LedgerService interface {
	Deposit(ctx context.Context, walletID uuid.UUID, amount int64) (*domain.Wallet, error)
	Withdraw(ctx context.Context, walletID uuid.UUID, amount int64) (*domain.Wallet, error)
	// Transfer moves amount from the sender's wallet to the wallet owned by
	// recipientEmail, producing a TRANSFER_OUT/TRANSFER_IN entry pair. The
	// TRANSFER_OUT entry is the caller-facing confirmation.
	Transfer(ctx context.Context, senderOwnerID uuid.UUID, recipientEmail string, amount int64) (*domain.Transaction, error)
	// RequestExternalDeposit asks the debit gateway to pull funds and, only
	// on gateway success, credits the wallet resolved by email.
	RequestExternalDeposit(ctx context.Context, email string, amount int64) (*domain.Wallet, error)

	GetBalance(ctx context.Context, ownerID uuid.UUID) (int64, error)
	ListTransactions(ctx context.Context, ownerID uuid.UUID) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, ownerID, transactionID uuid.UUID) (*domain.Transaction, error)
}

// DebitResult is the gateway's verdict on a debit request. Message is
// opaque diagnostic text.
type DebitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// DebitGateway is the outbound boundary to the external debit provider.
// A transport failure is returned as an error; an explicit decline comes
// back as Success=false with no error.
type DebitGateway interface {
	RequestDebit(ctx context.Context, email string, amount int64) (*DebitResult, error)
}

// BalanceCache is a read-through cache for wallet balances keyed by owner.
// A miss is (0, false, nil); cache failures degrade to the database.
type BalanceCache interface {
	Get(ctx context.Context, ownerID uuid.UUID) (int64, bool, error)
	Set(ctx context.Context, ownerID uuid.UUID, balance int64, ttl time.Duration) error
	Invalidate(ctx context.Context, ownerIDs ...uuid.UUID) error
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
}

// AuthService defines identity business logic. Registration creates the
// user and its wallet in one atomic unit; a wallet never exists without
// its owner.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*RegisterResult, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
	Deactivate(ctx context.Context, userID uuid.UUID) error
}

// RegisterResult holds the newly created identity.
type RegisterResult struct {
	UserID   uuid.UUID
	WalletID uuid.UUID
	Email    string
}
