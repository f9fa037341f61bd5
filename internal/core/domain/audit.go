package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionOnboardStart    AuditAction = "ONBOARD_START"
	AuditActionOnboardComplete AuditAction = "ONBOARD_COMPLETE"
	AuditActionCheckout        AuditAction = "CHECKOUT"
	AuditActionRedeem          AuditAction = "REDEEM"
	AuditActionOperatorLogin   AuditAction = "OPERATOR_LOGIN"
	AuditActionRetryPayout     AuditAction = "RETRY_PAYOUT"
	AuditActionRetryMint       AuditAction = "RETRY_MINT"
	AuditActionResolve         AuditAction = "RESOLVE"
	AuditActionReconcile       AuditAction = "RECONCILE"
)

// AuditLog records a single user or operator action.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Actor        string      `json:"actor,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
