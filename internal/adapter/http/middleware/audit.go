package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys handlers may set to enrich the audit entry.
const (
	CtxAuditResourceID = "audit_resource_id"
	CtxAuditDetails    = "audit_details"
)

// AuditLog records successful write operations on the user and operator surface.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		details := map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": status,
		}
		if extra, ok := c.Get(CtxAuditDetails); ok {
			if m, ok := extra.(map[string]string); ok {
				for k, v := range m {
					details[k] = v
				}
			}
		}
		raw, _ := json.Marshal(details)

		resourceID := c.GetString(CtxAuditResourceID)
		if resourceID == "" {
			resourceID = c.Param("key")
		}

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Actor:        c.GetString(CtxOperator),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(raw),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

// mapRouteToAction works on gin route patterns, not raw paths.
func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/onboarding/start" && method == http.MethodPost:
		return domain.AuditActionOnboardStart, "connected_account"
	case route == "/onboarding/complete" && method == http.MethodGet:
		return domain.AuditActionOnboardComplete, "binding"
	case route == "/checkout/session" && method == http.MethodPost:
		return domain.AuditActionCheckout, "checkout_session"
	case route == "/redeem" && method == http.MethodPost:
		return domain.AuditActionRedeem, "settlement"
	case route == "/admin/login" && method == http.MethodPost:
		return domain.AuditActionOperatorLogin, "session"
	case route == "/admin/settlements/:key/retry-payout" && method == http.MethodPost:
		return domain.AuditActionRetryPayout, "settlement"
	case route == "/admin/settlements/:key/retry-mint" && method == http.MethodPost:
		return domain.AuditActionRetryMint, "settlement"
	case route == "/admin/settlements/:key/resolve" && method == http.MethodPost:
		return domain.AuditActionResolve, "settlement"
	case route == "/admin/reconcile" && method == http.MethodPost:
		return domain.AuditActionReconcile, "settlement"
	}
	return "", ""
}
