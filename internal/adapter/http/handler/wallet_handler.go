package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles balance and deposit/withdraw endpoints. Mutations
// always target the authenticated caller's own wallet.
type WalletHandler struct {
	ledgerSvc  ports.LedgerService
	walletRepo ports.WalletRepository
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService, walletRepo ports.WalletRepository) *WalletHandler {
	return &WalletHandler{
		ledgerSvc:  ledgerSvc,
		walletRepo: walletRepo,
	}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.ledgerSvc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance})
}

// Deposit handles POST /api/v1/wallet/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	h.mutate(c, func(wallet *domain.Wallet, amount int64) (*domain.Wallet, error) {
		return h.ledgerSvc.Deposit(c.Request.Context(), wallet.ID, amount)
	})
}

// Withdraw handles POST /api/v1/wallet/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	h.mutate(c, func(wallet *domain.Wallet, amount int64) (*domain.Wallet, error) {
		return h.ledgerSvc.Withdraw(c.Request.Context(), wallet.ID, amount)
	})
}

// Debin handles POST /api/v1/wallet/debin: deposit via the external
// debit-request provider. The target email defaults to the caller's own.
func (h *WalletHandler) Debin(c *gin.Context) {
	var req dto.DebinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	email := req.Email
	if email == "" {
		email = callerEmail(c)
	}
	if email == "" {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallet, err := h.ledgerSvc.RequestExternalDeposit(c.Request.Context(), email, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.WalletResponse{
		WalletID: wallet.ID.String(),
		Balance:  wallet.Balance,
	})
}

// mutate binds an amount request, resolves the caller's wallet and applies
// the given ledger operation to it.
func (h *WalletHandler) mutate(c *gin.Context, op func(*domain.Wallet, int64) (*domain.Wallet, error)) {
	userID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wallet, err := h.walletRepo.GetByOwner(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if wallet == nil {
		response.Error(c, apperror.ErrWalletNotFound())
		return
	}

	updated, err := op(wallet, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.WalletResponse{
		WalletID: updated.ID.String(),
		Balance:  updated.Balance,
	})
}
