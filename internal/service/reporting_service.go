package service

import (
	"context"
	"fmt"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/pkg/apperror"
	"fiat-token-bridge/pkg/metrics"
)

type reportingService struct {
	settlements ports.SettlementRepository
	pool        ports.WalletPoolRepository
	metrics     *metrics.Recorder
}

// NewReportingService creates the operator stats service.
func NewReportingService(
	settlements ports.SettlementRepository,
	pool ports.WalletPoolRepository,
	m *metrics.Recorder,
) ports.ReportingService {
	return &reportingService{settlements: settlements, pool: pool, metrics: m}
}

// GetStats aggregates settlement counts and volumes plus the free pool size.
// It also refreshes the pool gauge.
func (s *reportingService) GetStats(ctx context.Context) (*domain.SettlementStats, error) {
	stats, err := s.settlements.Stats(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("settlement stats: %w", err))
	}

	available, err := s.pool.CountAvailable(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count pool: %w", err))
	}
	stats.PoolAvailable = available
	s.metrics.SetPoolAvailable(available)

	return stats, nil
}
