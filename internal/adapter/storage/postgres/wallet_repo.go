package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

const walletColumns = `id, owner_id, balance, active, created_at, updated_at`

// Create inserts a new wallet within a database transaction.
// Only called from user registration: a wallet is never created on its own.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, owner_id, balance, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.OwnerID, w.Balance, w.Active, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID fetches an active wallet by its UUID (non-locking read).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 AND active`

	return scanWallet(r.pool.QueryRow(ctx, query, id), "get wallet by id")
}

// GetByOwner fetches the active wallet owned by the given user.
func (r *WalletRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1 AND active`

	return scanWallet(r.pool.QueryRow(ctx, query, ownerID), "get wallet by owner")
}

// GetByOwnerEmail fetches the active wallet owned by the user with the
// given email. Inactive owners resolve to nothing.
func (r *WalletRepo) GetByOwnerEmail(ctx context.Context, email string) (*domain.Wallet, error) {
	query := `SELECT w.id, w.owner_id, w.balance, w.active, w.created_at, w.updated_at
		FROM wallets w
		JOIN users u ON u.id = w.owner_id
		WHERE u.email = $1 AND u.active AND w.active`

	return scanWallet(r.pool.QueryRow(ctx, query, email), "get wallet by owner email")
}

// GetByIDForUpdate fetches an active wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 AND active FOR UPDATE`

	return scanWallet(tx.QueryRow(ctx, query, id), "get wallet for update")
}

// AdjustBalance applies a signed delta in one conditional statement.
// The WHERE clause re-validates non-negativity inside the atomic unit, so a
// stale pre-check can never drive a balance below zero. Returns nil, nil
// when no row qualified (missing, inactive, or insufficient balance).
func (r *WalletRepo) AdjustBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta int64) (*domain.Wallet, error) {
	query := `UPDATE wallets
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1 AND active AND balance + $2 >= 0
		RETURNING ` + walletColumns

	return scanWallet(tx.QueryRow(ctx, query, walletID, delta), "adjust wallet balance")
}

// Deactivate soft-deletes a wallet within a database transaction. The row
// stays behind because transaction history still references it.
func (r *WalletRepo) Deactivate(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE wallets SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", id)
	}
	return nil
}

func scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.OwnerID, &w.Balance, &w.Active, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}
