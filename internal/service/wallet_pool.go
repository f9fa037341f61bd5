package service

import (
	"context"
	"fmt"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/pkg/apperror"
	"fiat-token-bridge/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// WalletPool hands out custodial wallets to newly onboarded accounts.
type WalletPool struct {
	repo    ports.WalletPoolRepository
	metrics *metrics.Recorder
	log     zerolog.Logger
}

// NewWalletPool creates a WalletPool over the given repository.
func NewWalletPool(repo ports.WalletPoolRepository, m *metrics.Recorder, log zerolog.Logger) *WalletPool {
	return &WalletPool{repo: repo, metrics: m, log: log}
}

// Allocate takes one wallet out of the pool. An empty pool is POOL_001.
func (p *WalletPool) Allocate(ctx context.Context) (*domain.PoolWallet, error) {
	w, err := p.repo.Allocate(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("allocate wallet: %w", err))
	}
	if w == nil {
		p.log.Warn().Msg("wallet pool exhausted")
		p.metrics.SetPoolAvailable(0)
		return nil, apperror.ErrPoolExhausted()
	}
	p.refreshGauge(ctx)
	return w, nil
}

// Release puts an allocated wallet back. Only used to undo a failed bind.
func (p *WalletPool) Release(ctx context.Context, address string) error {
	if err := p.repo.Release(ctx, address); err != nil {
		return fmt.Errorf("release wallet %s: %w", address, err)
	}
	p.refreshGauge(ctx)
	return nil
}

// Provision adds wallets to the pool. Addresses are checksummed; wallets
// already present are skipped. Returns how many were inserted.
func (p *WalletPool) Provision(ctx context.Context, wallets []domain.PoolWallet) (int, error) {
	now := time.Now().UTC()
	clean := make([]domain.PoolWallet, 0, len(wallets))
	for _, w := range wallets {
		if !common.IsHexAddress(w.Address) {
			return 0, apperror.Validation(fmt.Sprintf("invalid wallet address %q", w.Address))
		}
		w.Address = common.HexToAddress(w.Address).Hex()
		w.Allocated = false
		w.AllocatedAt = nil
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		clean = append(clean, w)
	}

	n, err := p.repo.Add(ctx, clean)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("add wallets: %w", err))
	}
	p.log.Info().Int("requested", len(clean)).Int("inserted", n).Msg("wallet pool provisioned")
	p.refreshGauge(ctx)
	return n, nil
}

// Available returns the number of unallocated wallets.
func (p *WalletPool) Available(ctx context.Context) (int64, error) {
	n, err := p.repo.CountAvailable(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("count pool: %w", err))
	}
	p.metrics.SetPoolAvailable(n)
	return n, nil
}

func (p *WalletPool) refreshGauge(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	n, err := p.repo.CountAvailable(ctx)
	if err != nil {
		p.log.Debug().Err(err).Msg("pool gauge refresh failed")
		return
	}
	p.metrics.SetPoolAvailable(n)
}
