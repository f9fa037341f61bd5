package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const settlementColumns = `idempotency_key, kind, connected_account_id, wallet_address,
	fiat_amount_minor, currency, requested_token_amount, token_amount,
	counterparty_transfer_id, chain_tx_hash, raw_tx, status, failure_reason,
	attempts, created_at, updated_at`

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

// Insert reserves the idempotency key. Exactly one concurrent caller wins;
// the others get ports.ErrAlreadyExists.
func (r *SettlementRepo) Insert(ctx context.Context, s *domain.SettlementRecord) error {
	query := `INSERT INTO settlements (` + settlementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (idempotency_key) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		s.IdempotencyKey, string(s.Kind), s.ConnectedAccountID, s.WalletAddress,
		s.FiatAmountMinor, s.Currency, s.RequestedTokenAmount, s.TokenAmount,
		s.CounterpartyTransferID, s.ChainTxHash, s.RawTx, string(s.Status), string(s.FailureReason),
		s.Attempts, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrAlreadyExists
	}
	return nil
}

// Get fetches a settlement by idempotency key.
func (r *SettlementRepo) Get(ctx context.Context, idempotencyKey string) (*domain.SettlementRecord, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE idempotency_key = $1`
	return r.scanSettlement(r.pool.QueryRow(ctx, query, idempotencyKey))
}

// RecordSubmission stores the signed transaction before it is broadcast.
// It only succeeds once per record.
func (r *SettlementRepo) RecordSubmission(ctx context.Context, idempotencyKey, txHash, rawTx string) error {
	query := `UPDATE settlements SET chain_tx_hash = $2, raw_tx = $3, updated_at = NOW()
		WHERE idempotency_key = $1 AND status = 'PENDING' AND chain_tx_hash = ''`

	tag, err := r.pool.Exec(ctx, query, idempotencyKey, txHash, rawTx)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStateConflict
	}
	return nil
}

// ReleaseSubmission clears a refused transaction so another can be recorded.
func (r *SettlementRepo) ReleaseSubmission(ctx context.Context, idempotencyKey, txHash string) error {
	query := `UPDATE settlements SET chain_tx_hash = '', raw_tx = '', updated_at = NOW()
		WHERE idempotency_key = $1 AND status = 'PENDING' AND chain_tx_hash = $2`

	tag, err := r.pool.Exec(ctx, query, idempotencyKey, txHash)
	if err != nil {
		return fmt.Errorf("release submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStateConflict
	}
	return nil
}

// Transition moves a record from u.From to u.To.
func (r *SettlementRepo) Transition(ctx context.Context, idempotencyKey string, u ports.SettlementUpdate) error {
	query := `UPDATE settlements SET
			status = $3,
			token_amount = COALESCE(NULLIF($4, ''), token_amount),
			chain_tx_hash = CASE WHEN $8 THEN '' ELSE COALESCE(NULLIF($5, ''), chain_tx_hash) END,
			raw_tx = CASE WHEN $8 THEN '' ELSE raw_tx END,
			attempts = CASE WHEN $8 THEN 0 ELSE attempts END,
			counterparty_transfer_id = COALESCE(NULLIF($6, ''), counterparty_transfer_id),
			failure_reason = $7,
			updated_at = NOW()
		WHERE idempotency_key = $1 AND status = $2`

	tag, err := r.pool.Exec(ctx, query,
		idempotencyKey, string(u.From), string(u.To),
		u.TokenAmount, u.ChainTxHash, u.CounterpartyTransferID, string(u.FailureReason),
		u.Reopen,
	)
	if err != nil {
		return fmt.Errorf("transition settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStateConflict
	}
	return nil
}

// IncrementAttempts bumps the reconciliation attempt counter.
func (r *SettlementRepo) IncrementAttempts(ctx context.Context, idempotencyKey string) (int, error) {
	query := `UPDATE settlements SET attempts = attempts + 1, updated_at = NOW()
		WHERE idempotency_key = $1 RETURNING attempts`

	var attempts int
	if err := r.pool.QueryRow(ctx, query, idempotencyKey).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("settlement not found: %s", idempotencyKey)
		}
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

// ListPending returns PENDING records untouched since olderThan, oldest first.
func (r *SettlementRepo) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.SettlementRecord, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements
		WHERE status = 'PENDING' AND updated_at < $1 ORDER BY updated_at LIMIT $2`

	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending settlements: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// List fetches settlements with filtering and pagination.
func (r *SettlementRepo) List(ctx context.Context, filter domain.SettlementFilter) ([]domain.SettlementRecord, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, string(filter.Kind))
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM settlements %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count settlements: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	dataQuery := fmt.Sprintf(`SELECT %s FROM settlements %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		settlementColumns, where, argIdx, argIdx+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	records, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Stats aggregates settlement counts and confirmed token volume.
// PoolAvailable is left for the caller to fill from the wallet pool.
func (r *SettlementRepo) Stats(ctx context.Context) (*domain.SettlementStats, error) {
	stats := &domain.SettlementStats{
		ByStatus: map[domain.SettlementStatus]int64{},
		ByKind:   map[domain.SettlementKind]int64{},
	}

	rows, err := r.pool.Query(ctx, `SELECT status, kind, COUNT(*) FROM settlements GROUP BY status, kind`)
	if err != nil {
		return nil, fmt.Errorf("settlement counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status, kind string
		var n int64
		if err := rows.Scan(&status, &kind, &n); err != nil {
			return nil, fmt.Errorf("scan settlement counts: %w", err)
		}
		stats.ByStatus[domain.SettlementStatus(status)] += n
		stats.ByKind[domain.SettlementKind(kind)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement counts: %w", err)
	}

	query := `SELECT
		COALESCE(SUM(token_amount::numeric) FILTER (WHERE kind = 'MINT'), 0)::text AS minted,
		COALESCE(SUM(token_amount::numeric) FILTER (WHERE kind = 'BURN'), 0)::text AS burned
		FROM settlements WHERE status = 'CONFIRMED' AND token_amount <> ''`

	var minted, burned string
	if err := r.pool.QueryRow(ctx, query).Scan(&minted, &burned); err != nil {
		return nil, fmt.Errorf("settlement volume: %w", err)
	}
	stats.MintedTokens = normaliseInt(minted)
	stats.BurnedTokens = normaliseInt(burned)
	return stats, nil
}

func (r *SettlementRepo) collect(rows pgx.Rows) ([]domain.SettlementRecord, error) {
	var records []domain.SettlementRecord
	for rows.Next() {
		s, err := r.scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement rows: %w", err)
	}
	return records, nil
}

func (r *SettlementRepo) scanSettlement(row pgx.Row) (*domain.SettlementRecord, error) {
	var kind, status, reason string
	s := &domain.SettlementRecord{}
	err := row.Scan(
		&s.IdempotencyKey, &kind, &s.ConnectedAccountID, &s.WalletAddress,
		&s.FiatAmountMinor, &s.Currency, &s.RequestedTokenAmount, &s.TokenAmount,
		&s.CounterpartyTransferID, &s.ChainTxHash, &s.RawTx, &status, &reason,
		&s.Attempts, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan settlement: %w", err)
	}
	s.Kind = domain.SettlementKind(kind)
	s.Status = domain.SettlementStatus(status)
	s.FailureReason = domain.FailureReason(reason)
	return s, nil
}

// normaliseInt strips a numeric scale suffix such as "150.0" down to "150".
func normaliseInt(v string) string {
	n, ok := new(big.Int).SetString(strings.SplitN(v, ".", 2)[0], 10)
	if !ok {
		return "0"
	}
	return n.String()
}
