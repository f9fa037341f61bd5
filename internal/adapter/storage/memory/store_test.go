package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletPoolRepo_ConcurrentAllocateIsDisjoint(t *testing.T) {
	repo := NewWalletPoolRepo()
	ctx := context.Background()

	var wallets []domain.PoolWallet
	for i := 0; i < 20; i++ {
		wallets = append(wallets, domain.PoolWallet{Address: fmt.Sprintf("0x%02d", i)})
	}
	added, err := repo.Add(ctx, wallets)
	require.NoError(t, err)
	require.Equal(t, 20, added)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
		nils int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := repo.Allocate(ctx)
			require.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if w == nil {
				nils++
				return
			}
			seen[w.Address]++
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
	for addr, n := range seen {
		assert.Equal(t, 1, n, addr)
	}
	assert.Equal(t, 10, nils)

	n, _ := repo.CountAvailable(ctx)
	assert.Zero(t, n)
}

func TestWalletPoolRepo_ReleaseAndAddIdempotent(t *testing.T) {
	repo := NewWalletPoolRepo()
	ctx := context.Background()

	added, _ := repo.Add(ctx, []domain.PoolWallet{{Address: "0xa"}})
	assert.Equal(t, 1, added)
	added, _ = repo.Add(ctx, []domain.PoolWallet{{Address: "0xa"}})
	assert.Zero(t, added)

	w, err := repo.Allocate(ctx)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.NoError(t, repo.Release(ctx, w.Address))
	assert.Error(t, repo.Release(ctx, w.Address))

	n, _ := repo.CountAvailable(ctx)
	assert.Equal(t, int64(1), n)
}

func TestBindingRepo_UniqueOnBothSides(t *testing.T) {
	repo := NewBindingRepo()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Binding{ConnectedAccountID: "acct_1", WalletAddress: "0xa"}))
	assert.ErrorIs(t, repo.Create(ctx, &domain.Binding{ConnectedAccountID: "acct_1", WalletAddress: "0xb"}), ports.ErrAlreadyExists)
	assert.ErrorIs(t, repo.Create(ctx, &domain.Binding{ConnectedAccountID: "acct_2", WalletAddress: "0xa"}), ports.ErrAlreadyExists)

	b, _ := repo.GetByWallet(ctx, "0xa")
	require.NotNil(t, b)
	assert.Equal(t, "acct_1", b.ConnectedAccountID)

	b, _ = repo.GetByAccount(ctx, "acct_2")
	assert.Nil(t, b)
}

func TestSettlementRepo_InsertIsCompareAndSet(t *testing.T) {
	repo := NewSettlementRepo()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Insert(ctx, &domain.SettlementRecord{
				IdempotencyKey: "evt_1",
				Kind:           domain.SettlementKindMint,
				Status:         domain.SettlementStatusPending,
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ports.ErrAlreadyExists)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestSettlementRepo_Lifecycle(t *testing.T) {
	repo := NewSettlementRepo()
	ctx := context.Background()
	old := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, repo.Insert(ctx, &domain.SettlementRecord{
		IdempotencyKey: "evt_1",
		Kind:           domain.SettlementKindMint,
		Status:         domain.SettlementStatusPending,
		CreatedAt:      old,
		UpdatedAt:      old,
	}))

	pending, err := repo.ListPending(ctx, time.Now().UTC().Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, repo.RecordSubmission(ctx, "evt_1", "0xhash", "0xraw"))
	assert.ErrorIs(t, repo.RecordSubmission(ctx, "evt_1", "0xother", "0xraw2"), ports.ErrStateConflict)

	n, err := repo.IncrementAttempts(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = repo.Transition(ctx, "evt_1", ports.SettlementUpdate{
		From:        domain.SettlementStatusPending,
		To:          domain.SettlementStatusConfirmed,
		TokenAmount: "5000",
	})
	require.NoError(t, err)

	err = repo.Transition(ctx, "evt_1", ports.SettlementUpdate{
		From: domain.SettlementStatusPending,
		To:   domain.SettlementStatusFailed,
	})
	assert.ErrorIs(t, err, ports.ErrStateConflict)

	got, _ := repo.Get(ctx, "evt_1")
	assert.Equal(t, domain.SettlementStatusConfirmed, got.Status)
	assert.Equal(t, "0xhash", got.ChainTxHash)
	assert.Equal(t, "0xraw", got.RawTx)

	stats, _ := repo.Stats(ctx)
	assert.Equal(t, "5000", stats.MintedTokens)
	assert.Equal(t, "0", stats.BurnedTokens)
	assert.Equal(t, int64(1), stats.ByStatus[domain.SettlementStatusConfirmed])
}

func TestSettlementRepo_ReleaseAndReopen(t *testing.T) {
	repo := NewSettlementRepo()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &domain.SettlementRecord{
		IdempotencyKey: "evt_2",
		Kind:           domain.SettlementKindMint,
		Status:         domain.SettlementStatusPending,
	}))

	require.NoError(t, repo.RecordSubmission(ctx, "evt_2", "0xrefused", "0xraw"))
	assert.ErrorIs(t, repo.ReleaseSubmission(ctx, "evt_2", "0xother"), ports.ErrStateConflict)
	require.NoError(t, repo.ReleaseSubmission(ctx, "evt_2", "0xrefused"))
	require.NoError(t, repo.RecordSubmission(ctx, "evt_2", "0xfresh", "0xraw2"))

	_, err := repo.IncrementAttempts(ctx, "evt_2")
	require.NoError(t, err)
	require.NoError(t, repo.Transition(ctx, "evt_2", ports.SettlementUpdate{
		From:          domain.SettlementStatusPending,
		To:            domain.SettlementStatusFailed,
		FailureReason: domain.FailureMintFailed,
	}))
	assert.ErrorIs(t, repo.ReleaseSubmission(ctx, "evt_2", "0xfresh"), ports.ErrStateConflict, "only while pending")

	require.NoError(t, repo.Transition(ctx, "evt_2", ports.SettlementUpdate{
		From:   domain.SettlementStatusFailed,
		To:     domain.SettlementStatusPending,
		Reopen: true,
	}))
	got, _ := repo.Get(ctx, "evt_2")
	assert.Equal(t, domain.SettlementStatusPending, got.Status)
	assert.Empty(t, got.ChainTxHash)
	assert.Empty(t, got.RawTx)
	assert.Empty(t, got.FailureReason)
	assert.Zero(t, got.Attempts)
}

func TestSettlementRepo_ListPagination(t *testing.T) {
	repo := NewSettlementRepo()
	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, &domain.SettlementRecord{
			IdempotencyKey: fmt.Sprintf("k%d", i),
			Kind:           domain.SettlementKindBurn,
			Status:         domain.SettlementStatusFailed,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	page, total, err := repo.List(ctx, domain.SettlementFilter{Kind: domain.SettlementKindBurn, Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, "k3", page[0].IdempotencyKey)

	page, _, _ = repo.List(ctx, domain.SettlementFilter{Offset: 10})
	assert.Empty(t, page)
}
