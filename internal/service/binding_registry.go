package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
)

// BindingRegistry owns the one-to-one account/wallet mapping.
type BindingRegistry struct {
	repo ports.BindingRepository
}

func NewBindingRegistry(repo ports.BindingRepository) *BindingRegistry {
	return &BindingRegistry{repo: repo}
}

// Bind records a new binding. Either side already bound is BIND_001.
func (r *BindingRegistry) Bind(ctx context.Context, accountID, walletAddress, email string) (*domain.Binding, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, apperror.Validation("connected account id is required")
	}
	if !common.IsHexAddress(walletAddress) {
		return nil, apperror.Validation("invalid wallet address")
	}

	b := &domain.Binding{
		ConnectedAccountID: accountID,
		WalletAddress:      common.HexToAddress(walletAddress).Hex(),
		Email:              email,
		CreatedAt:          time.Now().UTC(),
	}
	if err := r.repo.Create(ctx, b); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			return nil, apperror.ErrAlreadyBound()
		}
		return nil, apperror.InternalError(fmt.Errorf("create binding: %w", err))
	}
	return b, nil
}

func (r *BindingRegistry) ByAccount(ctx context.Context, accountID string) (*domain.Binding, error) {
	b, err := r.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("binding by account: %w", err))
	}
	if b == nil {
		return nil, apperror.ErrBindingNotFound()
	}
	return b, nil
}

func (r *BindingRegistry) ByWallet(ctx context.Context, walletAddress string) (*domain.Binding, error) {
	if !common.IsHexAddress(walletAddress) {
		return nil, apperror.Validation("invalid wallet address")
	}
	b, err := r.repo.GetByWallet(ctx, common.HexToAddress(walletAddress).Hex())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("binding by wallet: %w", err))
	}
	if b == nil {
		return nil, apperror.ErrBindingNotFound()
	}
	return b, nil
}
