// Package storage selects a persistence driver from configuration.
package storage

import (
	"context"
	"fmt"
	"time"

	"fiat-token-bridge/config"
	"fiat-token-bridge/internal/adapter/storage/memory"
	mongoStorage "fiat-token-bridge/internal/adapter/storage/mongo"
	pgStorage "fiat-token-bridge/internal/adapter/storage/postgres"
	"fiat-token-bridge/internal/core/ports"

	"github.com/rs/zerolog"
)

// Stores bundles the repositories of one driver.
type Stores struct {
	Pool        ports.WalletPoolRepository
	Bindings    ports.BindingRepository
	Settlements ports.SettlementRepository
	Audit       ports.AuditRepository
	Health      ports.HealthChecker // nil for memory
	close       func()
}

// Close releases the underlying connection.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to the configured driver and prepares its schema:
// migrations on postgres, indexes on mongo.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Stores, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return &Stores{
			Pool:        pgStorage.NewWalletPoolRepo(pool),
			Bindings:    pgStorage.NewBindingRepo(pool),
			Settlements: pgStorage.NewSettlementRepo(pool),
			Audit:       pgStorage.NewAuditRepo(pool),
			Health:      pgStorage.NewHealthCheck(pool),
			close:       pool.Close,
		}, nil

	case "mongo":
		client, db, err := mongoStorage.Connect(ctx, cfg.Mongo, log)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		disconnect := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}
		if err := mongoStorage.EnsureIndexes(ctx, db); err != nil {
			disconnect()
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return &Stores{
			Pool:        mongoStorage.NewWalletPoolRepo(db),
			Bindings:    mongoStorage.NewBindingRepo(db),
			Settlements: mongoStorage.NewSettlementRepo(db),
			Audit:       mongoStorage.NewAuditRepo(db),
			Health:      mongoStorage.NewHealthCheck(client),
			close:       disconnect,
		}, nil

	case "memory":
		log.Warn().Msg("Using in-memory storage; state is lost on restart")
		return &Stores{
			Pool:        memory.NewWalletPoolRepo(),
			Bindings:    memory.NewBindingRepo(),
			Settlements: memory.NewSettlementRepo(),
			Audit:       memory.NewAuditRepo(),
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
