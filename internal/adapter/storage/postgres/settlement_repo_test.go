package postgres

import (
	"context"
	"testing"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSettlement() *domain.SettlementRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.SettlementRecord{
		IdempotencyKey:       "evt_123",
		Kind:                 domain.SettlementKindMint,
		ConnectedAccountID:   "acct_1",
		WalletAddress:        "0xabc",
		FiatAmountMinor:      5000,
		Currency:             "gbp",
		RequestedTokenAmount: "5000",
		Status:               domain.SettlementStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func settlementCols() []string {
	return []string{
		"idempotency_key", "kind", "connected_account_id", "wallet_address",
		"fiat_amount_minor", "currency", "requested_token_amount", "token_amount",
		"counterparty_transfer_id", "chain_tx_hash", "raw_tx", "status", "failure_reason",
		"attempts", "created_at", "updated_at",
	}
}

func settlementRow(rows *pgxmock.Rows, s *domain.SettlementRecord) *pgxmock.Rows {
	return rows.AddRow(
		s.IdempotencyKey, string(s.Kind), s.ConnectedAccountID, s.WalletAddress,
		s.FiatAmountMinor, s.Currency, s.RequestedTokenAmount, s.TokenAmount,
		s.CounterpartyTransferID, s.ChainTxHash, s.RawTx, string(s.Status), string(s.FailureReason),
		s.Attempts, s.CreatedAt, s.UpdatedAt,
	)
}

func TestSettlementRepo_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	s := newTestSettlement()

	mock.ExpectExec("INSERT INTO settlements").
		WithArgs(s.IdempotencyKey, "MINT", s.ConnectedAccountID, s.WalletAddress,
			s.FiatAmountMinor, s.Currency, s.RequestedTokenAmount, "",
			"", "", "", "PENDING", "", 0, s.CreatedAt, s.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Insert(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_Insert_DuplicateKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	mock.ExpectExec("INSERT INTO settlements").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err = repo.Insert(context.Background(), newTestSettlement())
	assert.ErrorIs(t, err, ports.ErrAlreadyExists)
}

func TestSettlementRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	s := newTestSettlement()
	s.Status = domain.SettlementStatusConfirmed
	s.TokenAmount = "5000"
	s.ChainTxHash = "0xdead"

	mock.ExpectQuery("SELECT .+ FROM settlements WHERE idempotency_key").
		WithArgs(s.IdempotencyKey).
		WillReturnRows(settlementRow(pgxmock.NewRows(settlementCols()), s))

	got, err := repo.Get(context.Background(), s.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.SettlementStatusConfirmed, got.Status)
	assert.Equal(t, domain.SettlementKindMint, got.Kind)
	assert.Equal(t, "0xdead", got.ChainTxHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	mock.ExpectQuery("SELECT .+ FROM settlements").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.Get(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSettlementRepo_RecordSubmission(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)

	mock.ExpectExec("UPDATE settlements SET chain_tx_hash").
		WithArgs("evt_123", "0xhash", "0xf86b").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE settlements SET chain_tx_hash").
		WithArgs("evt_123", "0xother", "0xf86c").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, repo.RecordSubmission(context.Background(), "evt_123", "0xhash", "0xf86b"))
	assert.ErrorIs(t, repo.RecordSubmission(context.Background(), "evt_123", "0xother", "0xf86c"), ports.ErrStateConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_Transition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	update := ports.SettlementUpdate{
		From:        domain.SettlementStatusPending,
		To:          domain.SettlementStatusConfirmed,
		TokenAmount: "5000",
		ChainTxHash: "0xhash",
	}

	mock.ExpectExec("UPDATE settlements SET").
		WithArgs("evt_123", "PENDING", "CONFIRMED", "5000", "0xhash", "", "", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.Transition(context.Background(), "evt_123", update))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_Transition_Reopen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	mock.ExpectExec("raw_tx = CASE WHEN \\$8").
		WithArgs("evt_123", "FAILED", "PENDING", "", "", "", "", true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.Transition(context.Background(), "evt_123", ports.SettlementUpdate{
		From:   domain.SettlementStatusFailed,
		To:     domain.SettlementStatusPending,
		Reopen: true,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_ReleaseSubmission(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	mock.ExpectExec("UPDATE settlements SET chain_tx_hash = ''").
		WithArgs("evt_123", "0xhash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE settlements SET chain_tx_hash = ''").
		WithArgs("evt_123", "0xstale").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, repo.ReleaseSubmission(context.Background(), "evt_123", "0xhash"))
	assert.ErrorIs(t, repo.ReleaseSubmission(context.Background(), "evt_123", "0xstale"), ports.ErrStateConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_Transition_WrongState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	mock.ExpectExec("UPDATE settlements SET").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Transition(context.Background(), "evt_123", ports.SettlementUpdate{
		From: domain.SettlementStatusPending,
		To:   domain.SettlementStatusFailed,
	})
	assert.ErrorIs(t, err, ports.ErrStateConflict)
}

func TestSettlementRepo_IncrementAttempts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	mock.ExpectQuery("UPDATE settlements SET attempts = attempts \\+ 1").
		WithArgs("evt_123").
		WillReturnRows(pgxmock.NewRows([]string{"attempts"}).AddRow(3))

	n, err := repo.IncrementAttempts(context.Background(), "evt_123")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSettlementRepo_ListPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	cutoff := time.Now().UTC().Add(-2 * time.Minute)
	a, b := newTestSettlement(), newTestSettlement()
	b.IdempotencyKey = "redeem-1"
	b.Kind = domain.SettlementKindBurn

	rows := pgxmock.NewRows(settlementCols())
	settlementRow(rows, a)
	settlementRow(rows, b)
	mock.ExpectQuery("WHERE status = 'PENDING' AND updated_at < \\$1").
		WithArgs(cutoff, 25).
		WillReturnRows(rows)

	got, err := repo.ListPending(context.Background(), cutoff, 25)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.SettlementKindBurn, got[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_List_WithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	s := newTestSettlement()
	s.Status = domain.SettlementStatusReconciliationRequired

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM settlements WHERE status = \\$1 AND kind = \\$2").
		WithArgs("RECONCILIATION_REQUIRED", "BURN").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("RECONCILIATION_REQUIRED", "BURN", 50, 0).
		WillReturnRows(settlementRow(pgxmock.NewRows(settlementCols()), s))

	records, total, err := repo.List(context.Background(), domain.SettlementFilter{
		Status: domain.SettlementStatusReconciliationRequired,
		Kind:   domain.SettlementKindBurn,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, records, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_Stats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	mock.ExpectQuery("GROUP BY status, kind").
		WillReturnRows(pgxmock.NewRows([]string{"status", "kind", "count"}).
			AddRow("CONFIRMED", "MINT", int64(4)).
			AddRow("CONFIRMED", "BURN", int64(1)).
			AddRow("PENDING", "MINT", int64(2)))
	mock.ExpectQuery("SUM\\(token_amount::numeric\\)").
		WillReturnRows(pgxmock.NewRows([]string{"minted", "burned"}).AddRow("20000", "1500"))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.ByStatus[domain.SettlementStatusConfirmed])
	assert.Equal(t, int64(6), stats.ByKind[domain.SettlementKindMint])
	assert.Equal(t, "20000", stats.MintedTokens)
	assert.Equal(t, "1500", stats.BurnedTokens)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormaliseInt(t *testing.T) {
	assert.Equal(t, "150", normaliseInt("150.0"))
	assert.Equal(t, "0", normaliseInt("garbage"))
}
