package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const (
	// maxCommitAttempts bounds the internal retry on serialization and
	// deadlock failures. Retrying is safe: a failed attempt left no effect.
	maxCommitAttempts = 3

	balanceCacheTTL = 5 * time.Minute
)

// LedgerServiceImpl implements ports.LedgerService. It is the only
// component that combines wallet mutations with transaction-log appends,
// always inside a single database transaction.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	gateway    ports.DebitGateway
	cache      ports.BalanceCache
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	gateway ports.DebitGateway,
	cache ports.BalanceCache,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		gateway:    gateway,
		cache:      cache,
		log:        log,
	}
}

// Deposit credits a wallet and appends one DEPOSIT entry atomically.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, walletID uuid.UUID, amount int64) (*domain.Wallet, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	var updated *domain.Wallet
	err := s.runAtomic(ctx, func(tx pgx.Tx) error {
		locked, err := s.walletRepo.GetByIDForUpdate(ctx, tx, walletID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
		}
		if locked == nil {
			return apperror.ErrWalletNotFound()
		}

		updated, err = s.walletRepo.AdjustBalance(ctx, tx, walletID, amount)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
		}
		if updated == nil {
			return apperror.ErrWalletNotFound()
		}

		entry := newEntry(walletID, amount, domain.TransactionTypeDeposit, nil)
		if err := s.txRepo.Append(ctx, tx, entry); err != nil {
			return apperror.InternalError(fmt.Errorf("append deposit entry: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBalances(ctx, updated.OwnerID)
	s.log.Info().
		Str("wallet_id", walletID.String()).
		Int64("amount", amount).
		Int64("balance", updated.Balance).
		Msg("deposit committed")
	return updated, nil
}

// Withdraw debits a wallet and appends one WITHDRAWAL entry atomically.
// The balance check is enforced twice: against the locked row, and again
// by the conditional AdjustBalance statement inside the same transaction.
func (s *LedgerServiceImpl) Withdraw(ctx context.Context, walletID uuid.UUID, amount int64) (*domain.Wallet, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	var updated *domain.Wallet
	err := s.runAtomic(ctx, func(tx pgx.Tx) error {
		locked, err := s.walletRepo.GetByIDForUpdate(ctx, tx, walletID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
		}
		if locked == nil {
			return apperror.ErrWalletNotFound()
		}
		if locked.Balance < amount {
			return apperror.ErrInsufficientBalance()
		}

		updated, err = s.walletRepo.AdjustBalance(ctx, tx, walletID, -amount)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("debit wallet: %w", err))
		}
		if updated == nil {
			return apperror.ErrInsufficientBalance()
		}

		entry := newEntry(walletID, amount, domain.TransactionTypeWithdrawal, nil)
		if err := s.txRepo.Append(ctx, tx, entry); err != nil {
			return apperror.InternalError(fmt.Errorf("append withdrawal entry: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBalances(ctx, updated.OwnerID)
	s.log.Info().
		Str("wallet_id", walletID.String()).
		Int64("amount", amount).
		Int64("balance", updated.Balance).
		Msg("withdrawal committed")
	return updated, nil
}

// Transfer moves amount between two wallets, producing exactly two entries
// and two balance mutations that commit together or not at all. Both rows
// are locked in canonical UUID order so opposing concurrent transfers
// cannot deadlock.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, senderOwnerID uuid.UUID, recipientEmail string, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	sender, err := s.walletRepo.GetByOwner(ctx, senderOwnerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve sender wallet: %w", err))
	}
	if sender == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	recipient, err := s.walletRepo.GetByOwnerEmail(ctx, recipientEmail)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve recipient wallet: %w", err))
	}
	if recipient == nil {
		return nil, apperror.ErrRecipientNotFound()
	}

	if sender.ID == recipient.ID {
		return nil, apperror.ErrSelfTransfer()
	}
	if sender.Balance < amount {
		// Fast fail on a stale read; re-validated under lock below.
		return nil, apperror.ErrInsufficientBalance()
	}

	var out *domain.Transaction
	err = s.runAtomic(ctx, func(tx pgx.Tx) error {
		if err := s.lockPair(ctx, tx, sender.ID, recipient.ID); err != nil {
			return err
		}

		debited, err := s.walletRepo.AdjustBalance(ctx, tx, sender.ID, -amount)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("debit sender: %w", err))
		}
		if debited == nil {
			return apperror.ErrInsufficientBalance()
		}

		credited, err := s.walletRepo.AdjustBalance(ctx, tx, recipient.ID, amount)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("credit recipient: %w", err))
		}
		if credited == nil {
			return apperror.ErrRecipientNotFound()
		}

		out = newEntry(sender.ID, amount, domain.TransactionTypeTransferOut, &recipient.OwnerID)
		if err := s.txRepo.Append(ctx, tx, out); err != nil {
			return apperror.InternalError(fmt.Errorf("append transfer-out entry: %w", err))
		}

		in := newEntry(recipient.ID, amount, domain.TransactionTypeTransferIn, &sender.OwnerID)
		in.CreatedAt = out.CreatedAt
		if err := s.txRepo.Append(ctx, tx, in); err != nil {
			return apperror.InternalError(fmt.Errorf("append transfer-in entry: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBalances(ctx, sender.OwnerID, recipient.OwnerID)
	s.log.Info().
		Str("sender_wallet", sender.ID.String()).
		Str("recipient_wallet", recipient.ID.String()).
		Int64("amount", amount).
		Msg("transfer committed")
	return out, nil
}

// RequestExternalDeposit asks the debit gateway to pull funds and, only on
// an explicit success verdict, performs a regular deposit. The gateway
// call runs outside any database transaction: a wallet is never credited
// before external confirmation, and a gateway failure leaves no effect.
func (s *LedgerServiceImpl) RequestExternalDeposit(ctx context.Context, email string, amount int64) (*domain.Wallet, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.walletRepo.GetByOwnerEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve wallet by email: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	result, err := s.gateway.RequestDebit(ctx, email, amount)
	if err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("debit gateway unavailable")
		return nil, apperror.ErrExternalDebitUnavailable(err)
	}
	if !result.Success {
		return nil, apperror.ErrExternalDebitRejected(result.Message)
	}

	return s.Deposit(ctx, wallet.ID, amount)
}

// GetBalance resolves the caller's wallet and returns its balance,
// read-through cached per owner.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	if balance, ok, err := s.cache.Get(ctx, ownerID); err != nil {
		s.log.Warn().Err(err).Msg("balance cache read failed, falling through to DB")
	} else if ok {
		return balance, nil
	}

	wallet, err := s.walletRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("resolve wallet: %w", err))
	}
	if wallet == nil {
		return 0, apperror.ErrWalletNotFound()
	}

	if err := s.cache.Set(ctx, ownerID, wallet.Balance, balanceCacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("balance cache write failed")
	}
	return wallet.Balance, nil
}

// ListTransactions returns the caller's full history newest-first.
func (s *LedgerServiceImpl) ListTransactions(ctx context.Context, ownerID uuid.UUID) ([]domain.Transaction, error) {
	wallet, err := s.walletRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	entries, err := s.txRepo.ListByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return entries, nil
}

// GetTransaction fetches one entry scoped to the caller's wallet. Entries
// on other wallets are reported as not found, never as forbidden.
func (s *LedgerServiceImpl) GetTransaction(ctx context.Context, ownerID, transactionID uuid.UUID) (*domain.Transaction, error) {
	wallet, err := s.walletRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	entry, err := s.txRepo.FindByWalletAndID(ctx, wallet.ID, transactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find transaction: %w", err))
	}
	if entry == nil {
		return nil, apperror.ErrTransactionNotFound(transactionID.String())
	}
	return entry, nil
}

// lockPair acquires FOR UPDATE locks on both wallets in canonical UUID
// order, regardless of transfer direction.
func (s *LedgerServiceImpl) lockPair(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) error {
	first, second := a, b
	if bytes.Compare(b[:], a[:]) < 0 {
		first, second = b, a
	}

	for _, id := range []uuid.UUID{first, second} {
		locked, err := s.walletRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock wallet %s: %w", id, err))
		}
		if locked == nil {
			if id == a {
				return apperror.ErrWalletNotFound()
			}
			return apperror.ErrRecipientNotFound()
		}
	}
	return nil
}

// runAtomic executes fn inside one database transaction. Serialization and
// deadlock failures are retried a bounded number of times; each failed
// attempt rolled back, so retrying observes no partial state.
func (s *LedgerServiceImpl) runAtomic(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		err := s.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt).Msg("atomic unit conflicted, retrying")
	}
	return apperror.ErrStorageConflict(lastErr)
}

func (s *LedgerServiceImpl) attempt(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return err
		}
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// invalidateBalances is best-effort: a stale cache entry expires on its
// own TTL, so a failed invalidation only delays freshness.
func (s *LedgerServiceImpl) invalidateBalances(ctx context.Context, ownerIDs ...uuid.UUID) {
	if err := s.cache.Invalidate(ctx, ownerIDs...); err != nil {
		s.log.Warn().Err(err).Msg("balance cache invalidation failed")
	}
}

func newEntry(walletID uuid.UUID, amount int64, t domain.TransactionType, relatedUserID *uuid.UUID) *domain.Transaction {
	return &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      walletID,
		Amount:        amount,
		Type:          t,
		RelatedUserID: relatedUserID,
		CreatedAt:     time.Now().UTC(),
	}
}

// isSerializationFailure reports Postgres serialization (40001) and
// deadlock (40P01) aborts, the two transient commit failures worth an
// internal retry.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
