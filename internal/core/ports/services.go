package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"math/big"
	"time"

	"fiat-token-bridge/internal/core/domain"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles operator JWTs.
type TokenService interface {
	Generate(username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Username string
}

// OutcomeCache is the Redis fast path in front of the settlement store.
// Only terminal records are cached.
type OutcomeCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// --- Service Ports (Business Logic) ---

// SettlementService drives mints from payment webhooks and burns from
// redemption requests.
type SettlementService interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) (*MintOutcome, error)
	Redeem(ctx context.Context, req RedeemRequest) (*domain.SettlementRecord, error)
	Resume(ctx context.Context, record *domain.SettlementRecord) (*domain.SettlementRecord, error)
	RetryPayout(ctx context.Context, idempotencyKey string) (*domain.SettlementRecord, error)
	RetryMint(ctx context.Context, idempotencyKey string) (*domain.SettlementRecord, error)
	Resolve(ctx context.Context, idempotencyKey string) (*domain.SettlementRecord, error)
	Get(ctx context.Context, idempotencyKey string) (*domain.SettlementRecord, error)
	List(ctx context.Context, filter domain.SettlementFilter) ([]domain.SettlementRecord, int64, error)
	BalanceOf(ctx context.Context, address string) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
}

// MintOutcome reports how far a webhook got. The HTTP layer acknowledges
// every outcome; only signature failures are rejected.
type MintOutcome struct {
	EventID string
	Stage   domain.MintStage
	Record  *domain.SettlementRecord
}

// RedeemRequest holds validated input for a redemption.
type RedeemRequest struct {
	IdempotencyKey string
	WalletAddress  string
	TokenAmount    *big.Int
}

// OnboardingService creates connected accounts and binds pool wallets to them.
type OnboardingService interface {
	Start(ctx context.Context, email string) (*OnboardingStart, error)
	Complete(ctx context.Context, accountID string) (*domain.Binding, error)
	RefreshLink(ctx context.Context, accountID string) (string, error)
	CreateCheckout(ctx context.Context, accountID string, amountMinor int64) (*CheckoutSession, error)
	CheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	AccountBalance(ctx context.Context, accountID string) (*AccountBalance, error)
}

// OnboardingStart is returned when a connected account is created.
type OnboardingStart struct {
	ConnectedAccountID string
	OnboardingURL      string
}

// ReconcileService owns PENDING records left behind by timeouts and crashes.
type ReconcileService interface {
	SweepOnce(ctx context.Context) (*ReconcileSummary, error)
}

// ReconcileSummary counts what one sweep did.
type ReconcileSummary struct {
	Scanned      int `json:"scanned"`
	Confirmed    int `json:"confirmed"`
	Failed       int `json:"failed"`
	Escalated    int `json:"escalated"`
	StillPending int `json:"still_pending"`
}

// AuthService authenticates operators.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResponse, error)
}

// LoginResponse holds the issued operator token.
type LoginResponse struct {
	Token     string
	ExpiresAt time.Time
}

// ReportingService aggregates settlement data for operators.
type ReportingService interface {
	GetStats(ctx context.Context) (*domain.SettlementStats, error)
}

// AlertService surfaces conditions that need an operator.
type AlertService interface {
	Notify(ctx context.Context, alert Alert)
}

// Alert is an out-of-band operator notification.
type Alert struct {
	Kind           string `json:"kind"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Reason         string `json:"reason"`
	Detail         string `json:"detail,omitempty"`
}

// AuditService records user and operator activity.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// SweepLock keeps replicas from reconciling the same records concurrently.
type SweepLock interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}
