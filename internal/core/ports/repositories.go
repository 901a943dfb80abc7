package ports

import (
	"context"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for users.
// Create and Deactivate run inside transaction blocks because a user and
// its wallet change together or not at all.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Deactivate(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks; all lookups
// resolve active wallets only.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByOwnerEmail(ctx context.Context, email string) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	// AdjustBalance applies a signed delta as a single conditional statement.
	// Returns nil, nil when the wallet is missing, inactive, or the adjusted
	// balance would go negative; the caller decides which it was from the
	// row it already locked.
	AdjustBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta int64) (*domain.Wallet, error)
	Deactivate(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// TransactionRepository is the append-only ledger log. There is no update
// or delete in this contract.
type TransactionRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.Transaction) error
	// ListByWallet returns the wallet's full history newest-first, with
	// counterparty emails resolved for transfer entries.
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)
	// FindByWalletAndID fetches a single entry scoped to its owning wallet.
	// Entries belonging to another wallet are indistinguishable from
	// nonexistent ones. Returns nil, nil when not found.
	FindByWalletAndID(ctx context.Context, walletID, id uuid.UUID) (*domain.Transaction, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
