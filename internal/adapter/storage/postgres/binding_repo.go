package postgres

import (
	"context"
	"errors"
	"fmt"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// BindingRepo implements ports.BindingRepository.
type BindingRepo struct {
	pool Pool
}

// NewBindingRepo creates a new BindingRepo.
func NewBindingRepo(pool Pool) *BindingRepo {
	return &BindingRepo{pool: pool}
}

// Create inserts a binding. A conflict on either the account or the wallet
// leaves the table unchanged and returns ports.ErrAlreadyExists.
func (r *BindingRepo) Create(ctx context.Context, b *domain.Binding) error {
	query := `INSERT INTO bindings (connected_account_id, wallet_address, email, created_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, b.ConnectedAccountID, b.WalletAddress, b.Email, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert binding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrAlreadyExists
	}
	return nil
}

// GetByAccount fetches the binding for a connected account.
func (r *BindingRepo) GetByAccount(ctx context.Context, connectedAccountID string) (*domain.Binding, error) {
	query := `SELECT connected_account_id, wallet_address, email, created_at
		FROM bindings WHERE connected_account_id = $1`
	return r.scan(r.pool.QueryRow(ctx, query, connectedAccountID))
}

// GetByWallet fetches the binding for a custodial wallet.
func (r *BindingRepo) GetByWallet(ctx context.Context, walletAddress string) (*domain.Binding, error) {
	query := `SELECT connected_account_id, wallet_address, email, created_at
		FROM bindings WHERE wallet_address = $1`
	return r.scan(r.pool.QueryRow(ctx, query, walletAddress))
}

func (r *BindingRepo) scan(row pgx.Row) (*domain.Binding, error) {
	b := &domain.Binding{}
	if err := row.Scan(&b.ConnectedAccountID, &b.WalletAddress, &b.Email, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan binding: %w", err)
	}
	return b, nil
}
