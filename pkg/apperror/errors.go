package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Wallet & Ledger Business Logic (WAL) ----

func ErrInvalidAmount() *AppError {
	return New("WAL_001", "Amount must be a positive value", http.StatusBadRequest)
}

func ErrWalletNotFound() *AppError {
	return New("WAL_002", "Wallet not found for this user", http.StatusNotFound)
}

func ErrRecipientNotFound() *AppError {
	return New("WAL_003", "Recipient not found", http.StatusNotFound)
}

func ErrInsufficientBalance() *AppError {
	return New("WAL_004", "Insufficient balance", http.StatusBadRequest)
}

func ErrSelfTransfer() *AppError {
	return New("WAL_005", "Cannot transfer to yourself", http.StatusBadRequest)
}

func ErrTransactionNotFound(id string) *AppError {
	return New("WAL_006", fmt.Sprintf("Transaction with ID %s not found", id), http.StatusNotFound)
}

// ---- External Debit Gateway (EXT) ----

// ErrExternalDebitRejected carries the gateway's diagnostic message verbatim.
// The message is opaque text, never a machine-readable code.
func ErrExternalDebitRejected(message string) *AppError {
	if message == "" {
		message = "External debit request rejected"
	}
	return New("EXT_001", message, http.StatusUnprocessableEntity)
}

func ErrExternalDebitUnavailable(err error) *AppError {
	return Wrap("EXT_002", "External debit provider unavailable", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New("AUTH_002", "Email already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrUserNotFound() *AppError {
	return New("AUTH_004", "User not found", http.StatusNotFound)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// ErrStorageConflict reports an atomic unit that could not commit after
// bounded retries due to concurrent serialization or deadlock failures.
func ErrStorageConflict(err error) *AppError {
	return Wrap("SYS_002", "Storage conflict, please retry", http.StatusConflict, err)
}

// Validation returns a WAL_001-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("WAL_001", message, http.StatusBadRequest)
}
