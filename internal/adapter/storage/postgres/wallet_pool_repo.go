package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fiat-token-bridge/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// WalletPoolRepo implements ports.WalletPoolRepository.
type WalletPoolRepo struct {
	pool Pool
}

// NewWalletPoolRepo creates a new WalletPoolRepo.
func NewWalletPoolRepo(pool Pool) *WalletPoolRepo {
	return &WalletPoolRepo{pool: pool}
}

// Allocate claims the oldest available wallet. SKIP LOCKED lets concurrent
// allocations pick different rows instead of blocking on the same one.
func (r *WalletPoolRepo) Allocate(ctx context.Context) (*domain.PoolWallet, error) {
	query := `UPDATE pool_wallets SET allocated = TRUE, allocated_at = $1
		WHERE address = (
			SELECT address FROM pool_wallets WHERE allocated = FALSE
			ORDER BY created_at LIMIT 1 FOR UPDATE SKIP LOCKED
		)
		RETURNING address, allocated, derivation_index, created_at, allocated_at`

	var (
		w     domain.PoolWallet
		index *int64
	)
	err := r.pool.QueryRow(ctx, query, time.Now().UTC()).Scan(
		&w.Address, &w.Allocated, &index, &w.CreatedAt, &w.AllocatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("allocate pool wallet: %w", err)
	}
	if index != nil {
		i := uint32(*index)
		w.DerivationIndex = &i
	}
	return &w, nil
}

// Release returns an allocated wallet to the pool.
func (r *WalletPoolRepo) Release(ctx context.Context, address string) error {
	query := `UPDATE pool_wallets SET allocated = FALSE, allocated_at = NULL
		WHERE address = $1 AND allocated = TRUE`

	tag, err := r.pool.Exec(ctx, query, address)
	if err != nil {
		return fmt.Errorf("release pool wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pool wallet not allocated: %s", address)
	}
	return nil
}

// Add inserts wallets, skipping addresses already present. Returns how many were new.
func (r *WalletPoolRepo) Add(ctx context.Context, wallets []domain.PoolWallet) (int, error) {
	query := `INSERT INTO pool_wallets (address, allocated, derivation_index, created_at)
		VALUES ($1, FALSE, $2, $3) ON CONFLICT (address) DO NOTHING`

	added := 0
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, w := range wallets {
			var index *int64
			if w.DerivationIndex != nil {
				i := int64(*w.DerivationIndex)
				index = &i
			}
			createdAt := w.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			tag, err := tx.Exec(ctx, query, w.Address, index, createdAt)
			if err != nil {
				return fmt.Errorf("insert pool wallet %s: %w", w.Address, err)
			}
			added += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// CountAvailable returns the number of unallocated wallets.
func (r *WalletPoolRepo) CountAvailable(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pool_wallets WHERE allocated = FALSE`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pool wallets: %w", err)
	}
	return n, nil
}
