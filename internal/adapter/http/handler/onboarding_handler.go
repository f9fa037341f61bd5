package handler

import (
	"errors"
	"net/http"

	"fiat-token-bridge/internal/adapter/http/dto"
	"fiat-token-bridge/internal/adapter/http/middleware"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/pkg/apperror"
	"fiat-token-bridge/pkg/response"

	"github.com/gin-gonic/gin"
)

// OnboardingHandler serves connected-account onboarding and deposit checkout.
type OnboardingHandler struct {
	svc ports.OnboardingService
}

// NewOnboardingHandler creates a new OnboardingHandler.
func NewOnboardingHandler(svc ports.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{svc: svc}
}

// Start handles POST /onboarding/start.
func (h *OnboardingHandler) Start(c *gin.Context) {
	var req dto.OnboardingStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	out, err := h.svc.Start(c.Request.Context(), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, out.ConnectedAccountID)
	response.OK(c, dto.OnboardingStartResponse{
		ConnectedAccountID: out.ConnectedAccountID,
		OnboardingURL:      out.OnboardingURL,
	})
}

// Complete handles GET /onboarding/complete, the provider's return URL.
func (h *OnboardingHandler) Complete(c *gin.Context) {
	accountID := c.Query("accountId")
	if !dto.IsSafeID(accountID) {
		response.HTML(c, http.StatusBadRequest, "Onboarding failed", "Missing or malformed account id.")
		return
	}

	binding, err := h.svc.Complete(c.Request.Context(), accountID)
	if err != nil {
		status := http.StatusInternalServerError
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			status = appErr.HTTPStatus
		}
		response.HTML(c, status, "Onboarding failed", "We could not assign a wallet to this account.", "Please try again later.")
		return
	}

	c.Set(middleware.CtxAuditResourceID, accountID)
	response.HTML(c, http.StatusOK, "Onboarding complete",
		"Account: "+binding.ConnectedAccountID,
		"Wallet: "+binding.WalletAddress,
	)
}

// Refresh handles GET /onboarding/refresh by redirecting to a fresh link.
func (h *OnboardingHandler) Refresh(c *gin.Context) {
	accountID := c.Query("accountId")
	if !dto.IsSafeID(accountID) {
		response.Error(c, apperror.Validation("accountId is required"))
		return
	}

	link, err := h.svc.RefreshLink(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Redirect(http.StatusFound, link)
}

// Checkout handles POST /checkout/session.
func (h *OnboardingHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	session, err := h.svc.CreateCheckout(c.Request.Context(), req.ConnectedAccountID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, session.ID)
	response.OK(c, dto.CheckoutResponse{CheckoutURL: session.URL, SessionID: session.ID})
}

// Session handles GET /checkout/session/:id.
func (h *OnboardingHandler) Session(c *gin.Context) {
	id := c.Param("id")
	if !dto.IsSafeID(id) {
		response.Error(c, apperror.Validation("malformed session id"))
		return
	}

	session, err := h.svc.CheckoutSession(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CheckoutSessionResponse{
		SessionID:     session.ID,
		CheckoutURL:   session.URL,
		Status:        session.Status,
		PaymentStatus: session.PaymentStatus,
	})
}

// Balance handles GET /accounts/:id/balance.
func (h *OnboardingHandler) Balance(c *gin.Context) {
	id := c.Param("id")
	if !dto.IsSafeID(id) {
		response.Error(c, apperror.Validation("malformed account id"))
		return
	}

	bal, err := h.svc.AccountBalance(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.AccountBalanceResponse{
		ConnectedAccountID: bal.AccountID,
		Available:          fundsAmounts(bal.Available),
		Pending:            fundsAmounts(bal.Pending),
	})
}

func fundsAmounts(in []ports.FundsAmount) []dto.FundsAmount {
	out := make([]dto.FundsAmount, 0, len(in))
	for _, a := range in {
		out = append(out, dto.FundsAmount{Amount: a.AmountMinor, Currency: a.Currency})
	}
	return out
}

// Success handles GET /success.
func Success(c *gin.Context) {
	response.HTML(c, http.StatusOK, "Payment received",
		"Your tokens will be minted to your wallet once the payment settles.")
}

// Cancel handles GET /cancel.
func Cancel(c *gin.Context) {
	response.HTML(c, http.StatusOK, "Payment cancelled", "No funds were taken.")
}
