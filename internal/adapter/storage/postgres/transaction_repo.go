package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository. The transactions
// table is append-only: this repo exposes no update or delete.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Append inserts one ledger entry within a database transaction.
func (r *TransactionRepo) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, wallet_id, amount, type, related_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.Amount, t.Type, t.RelatedUserID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// ListByWallet fetches a wallet's full history newest-first, with the
// counterparty email joined in for transfer entries. The id tiebreak keeps
// the order stable when entries share a timestamp.
func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT t.id, t.wallet_id, t.amount, t.type, t.related_user_id, u.email, t.created_at
		FROM transactions t
		LEFT JOIN users u ON u.id = t.related_user_id
		WHERE t.wallet_id = $1
		ORDER BY t.created_at DESC, t.id DESC`

	rows, err := r.pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var entries []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.WalletID, &t.Amount, &t.Type,
			&t.RelatedUserID, &t.RelatedUserEmail, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		entries = append(entries, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return entries, nil
}

// FindByWalletAndID fetches a single entry scoped to its owning wallet.
// An entry belonging to another wallet comes back as nil, nil, the same
// as a nonexistent one.
func (r *TransactionRepo) FindByWalletAndID(ctx context.Context, walletID, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT t.id, t.wallet_id, t.amount, t.type, t.related_user_id, u.email, t.created_at
		FROM transactions t
		LEFT JOIN users u ON u.id = t.related_user_id
		WHERE t.id = $1 AND t.wallet_id = $2`

	t := &domain.Transaction{}
	err := r.pool.QueryRow(ctx, query, id, walletID).Scan(
		&t.ID, &t.WalletID, &t.Amount, &t.Type,
		&t.RelatedUserID, &t.RelatedUserEmail, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return t, nil
}
