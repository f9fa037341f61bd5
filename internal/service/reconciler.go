package service

import (
	"context"
	"fmt"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"github.com/rs/zerolog"
)

const sweepLockName = "reconcile"

// ReconcilerConfig controls sweep cadence and batch size.
type ReconcilerConfig struct {
	Interval time.Duration
	// MinAge keeps the sweep away from records still owned by a live request.
	MinAge time.Duration
	Batch  int
}

// Reconciler drives PENDING settlement records to a terminal state.
type Reconciler struct {
	records ports.SettlementRepository
	engine  ports.SettlementService
	lock    ports.SweepLock
	cfg     ReconcilerConfig
	log     zerolog.Logger
	now     func() time.Time
}

// NewReconciler creates a reconciler. lock may be nil for a single replica.
func NewReconciler(
	records ports.SettlementRepository,
	engine ports.SettlementService,
	lock ports.SweepLock,
	cfg ReconcilerConfig,
	log zerolog.Logger,
) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	return &Reconciler{
		records: records,
		engine:  engine,
		lock:    lock,
		cfg:     cfg,
		log:     log.With().Str("component", "reconciler").Logger(),
		now:     time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.cfg.Interval).Msg("reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.SweepOnce(ctx); err != nil {
				r.log.Error().Err(err).Msg("reconcile sweep failed")
			}
		}
	}
}

// SweepOnce resumes one batch of stale PENDING records. When another replica
// holds the sweep lock it returns an empty summary.
func (r *Reconciler) SweepOnce(ctx context.Context) (*ports.ReconcileSummary, error) {
	summary := &ports.ReconcileSummary{}

	if r.lock != nil {
		ok, err := r.lock.TryAcquire(ctx, sweepLockName, r.lockTTL())
		if err != nil {
			return nil, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			r.log.Debug().Msg("sweep lock held elsewhere")
			return summary, nil
		}
		defer func() {
			if err := r.lock.Release(context.WithoutCancel(ctx), sweepLockName); err != nil {
				r.log.Warn().Err(err).Msg("failed to release sweep lock")
			}
		}()
	}

	pending, err := r.records.ListPending(ctx, r.now().Add(-r.cfg.MinAge), r.cfg.Batch)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		rec := &pending[i]
		summary.Scanned++

		updated, err := r.engine.Resume(ctx, rec)
		if err != nil {
			r.log.Warn().Err(err).Str("key", rec.IdempotencyKey).Msg("resume failed")
		}
		if updated == nil {
			updated = rec
		}

		switch updated.Status {
		case domain.SettlementStatusConfirmed:
			summary.Confirmed++
		case domain.SettlementStatusFailed:
			summary.Failed++
		case domain.SettlementStatusReconciliationRequired:
			summary.Escalated++
		default:
			summary.StillPending++
		}
	}

	if summary.Scanned > 0 {
		r.log.Info().
			Int("scanned", summary.Scanned).
			Int("confirmed", summary.Confirmed).
			Int("failed", summary.Failed).
			Int("escalated", summary.Escalated).
			Int("still_pending", summary.StillPending).
			Msg("reconcile sweep finished")
	}
	return summary, nil
}

// lockTTL outlives a sweep but frees the lock if the holder dies.
func (r *Reconciler) lockTTL() time.Duration {
	return 2 * r.cfg.Interval
}
