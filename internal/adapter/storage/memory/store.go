// Package memory holds mutex-guarded repositories for local runs and tests.
// Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
)

// --- Wallet pool ---

type WalletPoolRepo struct {
	mu      sync.Mutex
	wallets map[string]*domain.PoolWallet
}

func NewWalletPoolRepo() *WalletPoolRepo {
	return &WalletPoolRepo{wallets: make(map[string]*domain.PoolWallet)}
}

func (r *WalletPoolRepo) Allocate(ctx context.Context) (*domain.PoolWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pick *domain.PoolWallet
	for _, w := range r.wallets {
		if !w.IsAvailable() {
			continue
		}
		if pick == nil || w.CreatedAt.Before(pick.CreatedAt) ||
			(w.CreatedAt.Equal(pick.CreatedAt) && w.Address < pick.Address) {
			pick = w
		}
	}
	if pick == nil {
		return nil, nil
	}
	now := time.Now().UTC()
	pick.Allocated = true
	pick.AllocatedAt = &now
	cp := *pick
	return &cp, nil
}

func (r *WalletPoolRepo) Release(ctx context.Context, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[address]
	if !ok || !w.Allocated {
		return fmt.Errorf("pool wallet not allocated: %s", address)
	}
	w.Allocated = false
	w.AllocatedAt = nil
	return nil
}

func (r *WalletPoolRepo) Add(ctx context.Context, wallets []domain.PoolWallet) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	added := 0
	for _, w := range wallets {
		if _, ok := r.wallets[w.Address]; ok {
			continue
		}
		cp := w
		cp.Allocated = false
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		r.wallets[w.Address] = &cp
		added++
	}
	return added, nil
}

func (r *WalletPoolRepo) CountAvailable(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, w := range r.wallets {
		if w.IsAvailable() {
			n++
		}
	}
	return n, nil
}

// --- Bindings ---

type BindingRepo struct {
	mu        sync.RWMutex
	byAccount map[string]*domain.Binding
	byWallet  map[string]*domain.Binding
}

func NewBindingRepo() *BindingRepo {
	return &BindingRepo{
		byAccount: make(map[string]*domain.Binding),
		byWallet:  make(map[string]*domain.Binding),
	}
}

func (r *BindingRepo) Create(ctx context.Context, b *domain.Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byAccount[b.ConnectedAccountID]; ok {
		return ports.ErrAlreadyExists
	}
	if _, ok := r.byWallet[b.WalletAddress]; ok {
		return ports.ErrAlreadyExists
	}
	cp := *b
	r.byAccount[b.ConnectedAccountID] = &cp
	r.byWallet[b.WalletAddress] = &cp
	return nil
}

func (r *BindingRepo) GetByAccount(ctx context.Context, connectedAccountID string) (*domain.Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.byAccount[connectedAccountID]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (r *BindingRepo) GetByWallet(ctx context.Context, walletAddress string) (*domain.Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.byWallet[walletAddress]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

// --- Settlements ---

type SettlementRepo struct {
	mu      sync.RWMutex
	records map[string]*domain.SettlementRecord
}

func NewSettlementRepo() *SettlementRepo {
	return &SettlementRepo{records: make(map[string]*domain.SettlementRecord)}
}

func (r *SettlementRepo) Insert(ctx context.Context, s *domain.SettlementRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[s.IdempotencyKey]; ok {
		return ports.ErrAlreadyExists
	}
	cp := *s
	r.records[s.IdempotencyKey] = &cp
	return nil
}

func (r *SettlementRepo) Get(ctx context.Context, idempotencyKey string) (*domain.SettlementRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.records[idempotencyKey]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *SettlementRepo) RecordSubmission(ctx context.Context, idempotencyKey, txHash, rawTx string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.records[idempotencyKey]
	if !ok || s.Status != domain.SettlementStatusPending || s.ChainTxHash != "" {
		return ports.ErrStateConflict
	}
	s.ChainTxHash = txHash
	s.RawTx = rawTx
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *SettlementRepo) ReleaseSubmission(ctx context.Context, idempotencyKey, txHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.records[idempotencyKey]
	if !ok || s.Status != domain.SettlementStatusPending || s.ChainTxHash != txHash {
		return ports.ErrStateConflict
	}
	s.ChainTxHash = ""
	s.RawTx = ""
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *SettlementRepo) Transition(ctx context.Context, idempotencyKey string, u ports.SettlementUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.records[idempotencyKey]
	if !ok || s.Status != u.From {
		return ports.ErrStateConflict
	}
	s.Status = u.To
	if u.TokenAmount != "" {
		s.TokenAmount = u.TokenAmount
	}
	if u.ChainTxHash != "" {
		s.ChainTxHash = u.ChainTxHash
	}
	if u.CounterpartyTransferID != "" {
		s.CounterpartyTransferID = u.CounterpartyTransferID
	}
	if u.Reopen {
		s.ChainTxHash = ""
		s.RawTx = ""
		s.Attempts = 0
	}
	s.FailureReason = u.FailureReason
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *SettlementRepo) IncrementAttempts(ctx context.Context, idempotencyKey string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.records[idempotencyKey]
	if !ok {
		return 0, fmt.Errorf("settlement not found: %s", idempotencyKey)
	}
	s.Attempts++
	s.UpdatedAt = time.Now().UTC()
	return s.Attempts, nil
}

func (r *SettlementRepo) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.SettlementRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.SettlementRecord
	for _, s := range r.records {
		if s.Status == domain.SettlementStatusPending && s.UpdatedAt.Before(olderThan) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SettlementRepo) List(ctx context.Context, filter domain.SettlementFilter) ([]domain.SettlementRecord, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []domain.SettlementRecord
	for _, s := range r.records {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && s.Kind != filter.Kind {
			continue
		}
		matched = append(matched, *s)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset >= len(matched) {
		return []domain.SettlementRecord{}, total, nil
	}
	end := filter.Offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], total, nil
}

func (r *SettlementRepo) Stats(ctx context.Context) (*domain.SettlementStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &domain.SettlementStats{
		ByStatus: map[domain.SettlementStatus]int64{},
		ByKind:   map[domain.SettlementKind]int64{},
	}
	minted, burned := new(big.Int), new(big.Int)
	for _, s := range r.records {
		stats.ByStatus[s.Status]++
		stats.ByKind[s.Kind]++
		if s.Status != domain.SettlementStatusConfirmed {
			continue
		}
		amount, ok := s.ConfirmedTokens()
		if !ok {
			continue
		}
		if s.Kind == domain.SettlementKindMint {
			minted.Add(minted, amount)
		} else {
			burned.Add(burned, amount)
		}
	}
	stats.MintedTokens = minted.String()
	stats.BurnedTokens = burned.String()
	return stats, nil
}

// --- Audit ---

type AuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func NewAuditRepo() *AuditRepo {
	return &AuditRepo{}
}

func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// Entries returns a copy of everything logged so far.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuditLog(nil), r.entries...)
}
