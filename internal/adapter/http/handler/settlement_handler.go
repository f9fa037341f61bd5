package handler

import (
	"io"
	"net/http"

	"fiat-token-bridge/internal/adapter/http/dto"
	"fiat-token-bridge/internal/adapter/http/middleware"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/pkg/apperror"
	"fiat-token-bridge/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	HeaderStripeSignature = "Stripe-Signature"
	HeaderSignature       = "Signature"
	HeaderIdempotencyKey  = "Idempotency-Key"
)

// SettlementHandler serves the mint webhook, redemptions and chain reads.
type SettlementHandler struct {
	svc ports.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(svc ports.SettlementService) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

// Webhook handles POST /webhook. The body is read raw because the
// signature covers the exact bytes sent.
func (h *SettlementHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			response.Error(c, apperror.New("VAL_002", "Request body too large", http.StatusRequestEntityTooLarge))
			return
		}
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	sig := c.GetHeader(HeaderStripeSignature)
	if sig == "" {
		sig = c.GetHeader(HeaderSignature)
	}

	out, err := h.svc.HandleWebhook(c.Request.Context(), body, sig)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.WebhookAck{Received: true, Stage: string(out.Stage)})
}

// Redeem handles POST /redeem.
func (h *SettlementHandler) Redeem(c *gin.Context) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if !dto.IsSafeID(key) {
		response.Error(c, apperror.Validation("Idempotency-Key header is required"))
		return
	}

	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if req.Amount.Int == nil {
		response.Error(c, apperror.Validation("amount is required"))
		return
	}

	c.Set(middleware.CtxAuditResourceID, key)
	rec, err := h.svc.Redeem(c.Request.Context(), ports.RedeemRequest{
		IdempotencyKey: key,
		WalletAddress:  req.WalletAddress,
		TokenAmount:    req.Amount.Int,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RedeemResponse{TxHash: rec.ChainTxHash, TransferID: rec.CounterpartyTransferID})
}

// Balance handles GET /balance/:address.
func (h *SettlementHandler) Balance(c *gin.Context) {
	addr := c.Param("address")
	bal, err := h.svc.BalanceOf(c.Request.Context(), addr)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BalanceResponse{Address: addr, Balance: bal.String()})
}

// TotalSupply handles GET /total-supply.
func (h *SettlementHandler) TotalSupply(c *gin.Context) {
	supply, err := h.svc.TotalSupply(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.TotalSupplyResponse{TotalSupply: supply.String()})
}
