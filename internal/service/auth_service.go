package service

import (
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

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo   ports.UserRepository
	walletRepo ports.WalletRepository
	transactor ports.DBTransactor
	hashSvc    ports.HashService
	tokenSvc   ports.TokenService
	cache      ports.BalanceCache
	log        zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	cache ports.BalanceCache,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		transactor: transactor,
		hashSvc:    hashSvc,
		tokenSvc:   tokenSvc,
		cache:      cache,
		log:        log,
	}
}

// Register creates a user and its wallet in one database transaction.
// A wallet never exists without its owner, and a registered user is never
// left without a wallet.
func (s *AuthServiceImpl) Register(ctx context.Context, email, password string) (*ports.RegisterResult, error) {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	passwordHash, err := s.hashSvc.Hash(password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	wallet := &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   user.ID,
		Balance:   0,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := s.walletRepo.Create(ctx, tx, wallet); err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		// Two racing registrations can both pass the email pre-check;
		// the unique index decides the loser.
		if isUniqueViolation(err) {
			return nil, apperror.ErrEmailExists()
		}
		return nil, apperror.InternalError(err)
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Msg("user registered")

	return &ports.RegisterResult{
		UserID:   user.ID,
		WalletID: wallet.ID,
		Email:    user.Email,
	}, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokenSvc.Generate(user.ID, user.Email)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return token, expiresAt, nil
}

// Deactivate soft-deletes a user and its wallet together. History stays
// readable; the wallet just stops resolving for new operations. The cached
// balance is dropped so reads see the wallet gone immediately.
func (s *AuthServiceImpl) Deactivate(ctx context.Context, userID uuid.UUID) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return apperror.ErrUserNotFound()
	}

	wallet, err := s.walletRepo.GetByOwner(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("find wallet: %w", err))
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.userRepo.Deactivate(ctx, tx, userID); err != nil {
			return fmt.Errorf("deactivate user: %w", err)
		}
		if wallet != nil {
			if err := s.walletRepo.Deactivate(ctx, tx, wallet.ID); err != nil {
				return fmt.Errorf("deactivate wallet: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return apperror.InternalError(err)
	}

	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("balance cache invalidation failed")
	}

	s.log.Info().Str("user_id", userID.String()).Msg("user deactivated")
	return nil
}

func (s *AuthServiceImpl) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// isUniqueViolation reports the Postgres unique-constraint violation
// (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
