package apperror

import (
	"errors"
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

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ---- Request validation (VAL) ----

// Validation returns a malformed-request error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ---- Webhook signature (SIG) ----

func ErrInvalidSignature(err error) *AppError {
	return Wrap("SIG_001", "Invalid webhook signature", http.StatusBadRequest, err)
}

// ---- Wallet pool & bindings (POOL / BIND) ----

func ErrPoolExhausted() *AppError {
	return New("POOL_001", "No custodial wallet available", http.StatusServiceUnavailable)
}

func ErrAlreadyBound() *AppError {
	return New("BIND_001", "Account or wallet already bound", http.StatusConflict)
}

func ErrBindingNotFound() *AppError {
	return New("BIND_002", "Binding not found", http.StatusNotFound)
}

// ---- Chain (CHAIN) ----

func ErrChainSubmission(err error) *AppError {
	return Wrap("CHAIN_001", "Chain transaction rejected or reverted", http.StatusBadGateway, err)
}

func ErrChainTimeout(err error) *AppError {
	return Wrap("CHAIN_002", "Chain transaction not confirmed in time", http.StatusGatewayTimeout, err)
}

func ErrEventNotFound(event string) *AppError {
	return New("CHAIN_003", fmt.Sprintf("%s event not found in receipt", event), http.StatusBadGateway)
}

// ---- Payment provider (PAY) ----

func ErrPaymentProvider(err error) *AppError {
	return Wrap("PAY_001", "Payment provider request failed", http.StatusBadGateway, err)
}

// ---- Settlement (SET / RECON) ----

func ErrSettlementInProgress() *AppError {
	return New("SET_001", "Settlement already in progress for this key", http.StatusConflict)
}

func ErrSettlementFailed() *AppError {
	return New("SET_002", "Settlement for this key has already failed", http.StatusConflict)
}

func ErrInvalidSettlementState(message string) *AppError {
	return New("SET_003", message, http.StatusConflict)
}

func ErrSettlementNotFound() *AppError {
	return New("SET_404", "Settlement record not found", http.StatusNotFound)
}

// ErrReconciliationRequired marks a confirmed burn whose payout did not complete.
func ErrReconciliationRequired(err error) *AppError {
	return Wrap("RECON_001", "Burn confirmed but payout failed; reconciliation required", http.StatusBadGateway, err)
}

// ---- Custody (KEY) ----

func ErrSignerNotFound(err error) *AppError {
	return Wrap("KEY_001", "No signer for wallet", http.StatusInternalServerError, err)
}

// ---- Operator authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
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
