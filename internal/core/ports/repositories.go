package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"fiat-token-bridge/internal/core/domain"
)

// ErrAlreadyExists is returned when a unique key is already taken.
var ErrAlreadyExists = errors.New("already exists")

// ErrStateConflict is returned when a conditional status transition finds
// the record in a different state than expected.
var ErrStateConflict = errors.New("settlement state conflict")

// WalletPoolRepository stores unallocated custodial wallets.
// Allocate must be atomic: concurrent callers never receive the same wallet.
type WalletPoolRepository interface {
	// Allocate removes one wallet from the available set. Returns nil, nil when empty.
	Allocate(ctx context.Context) (*domain.PoolWallet, error)
	Release(ctx context.Context, address string) error
	Add(ctx context.Context, wallets []domain.PoolWallet) (int, error)
	CountAvailable(ctx context.Context) (int64, error)
}

// BindingRepository persists account-to-wallet bindings.
// Create returns ErrAlreadyExists if either side is already bound.
type BindingRepository interface {
	Create(ctx context.Context, binding *domain.Binding) error
	GetByAccount(ctx context.Context, connectedAccountID string) (*domain.Binding, error)
	GetByWallet(ctx context.Context, walletAddress string) (*domain.Binding, error)
}

// SettlementRepository is the append-only audit store of mint and burn
// attempts. Insert is a compare-and-insert on the idempotency key and is the
// mutual-exclusion point for duplicate deliveries.
type SettlementRepository interface {
	Insert(ctx context.Context, record *domain.SettlementRecord) error
	Get(ctx context.Context, idempotencyKey string) (*domain.SettlementRecord, error)
	RecordSubmission(ctx context.Context, idempotencyKey, txHash, rawTx string) error
	// ReleaseSubmission clears a recorded transaction the node refused, so a
	// fresh one can be recorded. It applies only while the record is PENDING
	// and still holds txHash.
	ReleaseSubmission(ctx context.Context, idempotencyKey, txHash string) error
	Transition(ctx context.Context, idempotencyKey string, update SettlementUpdate) error
	IncrementAttempts(ctx context.Context, idempotencyKey string) (int, error)
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.SettlementRecord, error)
	List(ctx context.Context, filter domain.SettlementFilter) ([]domain.SettlementRecord, int64, error)
	Stats(ctx context.Context) (*domain.SettlementStats, error)
}

// SettlementUpdate is a conditional status change. The update applies only
// while the record is in From; empty optional fields are left unchanged.
type SettlementUpdate struct {
	From                   domain.SettlementStatus
	To                     domain.SettlementStatus
	TokenAmount            string
	ChainTxHash            string
	CounterpartyTransferID string
	FailureReason          domain.FailureReason
	// Reopen clears the recorded transaction and the attempt counter so the
	// record is signed afresh.
	Reopen bool
}

// AuditRepository persists user and operator activity.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}
