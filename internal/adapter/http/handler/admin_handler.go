package handler

import (
	"strconv"

	"fiat-token-bridge/internal/adapter/http/dto"
	"fiat-token-bridge/internal/adapter/http/middleware"
	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/pkg/apperror"
	"fiat-token-bridge/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the JWT-protected operator surface.
type AdminHandler struct {
	auth      ports.AuthService
	settle    ports.SettlementService
	reconcile ports.ReconcileService
	reporting ports.ReportingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	auth ports.AuthService,
	settle ports.SettlementService,
	reconcile ports.ReconcileService,
	reporting ports.ReportingService,
) *AdminHandler {
	return &AdminHandler{auth: auth, settle: settle, reconcile: reconcile, reporting: reporting}
}

// Login handles POST /admin/login.
func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	out, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxOperator, req.Username)
	response.OK(c, dto.LoginResponse{Token: out.Token, Expiry: out.ExpiresAt.Unix()})
}

// ListSettlements handles GET /admin/settlements.
func (h *AdminHandler) ListSettlements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	filter := domain.SettlementFilter{
		Status: domain.SettlementStatus(c.Query("status")),
		Kind:   domain.SettlementKind(c.Query("kind")),
		Limit:  limit,
		Offset: offset,
	}

	items, total, err := h.settle.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []domain.SettlementRecord{}
	}

	response.OK(c, dto.SettlementListResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

// GetSettlement handles GET /admin/settlements/:key.
func (h *AdminHandler) GetSettlement(c *gin.Context) {
	rec, err := h.settle.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

// RetryPayout handles POST /admin/settlements/:key/retry-payout.
func (h *AdminHandler) RetryPayout(c *gin.Context) {
	rec, err := h.settle.RetryPayout(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

// RetryMint handles POST /admin/settlements/:key/retry-mint.
func (h *AdminHandler) RetryMint(c *gin.Context) {
	rec, err := h.settle.RetryMint(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

// Resolve handles POST /admin/settlements/:key/resolve. The optional note
// ends up in the audit trail only.
func (h *AdminHandler) Resolve(c *gin.Context) {
	var req dto.ResolveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		dto.SanitizeStruct(&req)
	}

	rec, err := h.settle.Resolve(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if req.Note != "" {
		c.Set(middleware.CtxAuditDetails, map[string]string{"note": req.Note})
	}
	response.OK(c, rec)
}

// Reconcile handles POST /admin/reconcile by running one sweep inline.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	summary, err := h.reconcile.SweepOnce(c.Request.Context())
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	response.OK(c, summary)
}

// Stats handles GET /admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.reporting.GetStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
