package handler

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"fiat-token-bridge/internal/adapter/http/middleware"
	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/internal/core/ports/mocks"
	"fiat-token-bridge/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type adminMocks struct {
	auth      *mocks.MockAuthService
	settle    *mocks.MockSettlementService
	reconcile *mocks.MockReconcileService
	reporting *mocks.MockReportingService
}

func newTestAdmin(t *testing.T) (*AdminHandler, *adminMocks) {
	ctrl := gomock.NewController(t)
	m := &adminMocks{
		auth:      mocks.NewMockAuthService(ctrl),
		settle:    mocks.NewMockSettlementService(ctrl),
		reconcile: mocks.NewMockReconcileService(ctrl),
		reporting: mocks.NewMockReportingService(ctrl),
	}
	return NewAdminHandler(m.auth, m.settle, m.reconcile, m.reporting), m
}

func TestAdminLogin_Success(t *testing.T) {
	h, m := newTestAdmin(t)
	expiry := time.Now().Add(time.Hour)
	m.auth.EXPECT().Login(gomock.Any(), "ops", "correct horse").
		Return(&ports.LoginResponse{Token: "jwt-token", ExpiresAt: expiry}, nil)

	c, w := newContext(http.MethodPost, "/admin/login", map[string]string{"username": "ops", "password": "correct horse"})
	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "jwt-token", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
	assert.Equal(t, "ops", c.GetString(middleware.CtxOperator))
}

func TestAdminLogin_InvalidCredentials(t *testing.T) {
	h, m := newTestAdmin(t)
	m.auth.EXPECT().Login(gomock.Any(), "ops", "wrong").Return(nil, apperror.ErrInvalidCredentials())

	c, w := newContext(http.MethodPost, "/admin/login", map[string]string{"username": "ops", "password": "wrong"})
	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", decodeErrorCode(t, w))
}

func TestAdminLogin_ValidationError(t *testing.T) {
	h, _ := newTestAdmin(t)

	c, w := newContext(http.MethodPost, "/admin/login", "{}")
	h.Login(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSettlements_PassesFilter(t *testing.T) {
	h, m := newTestAdmin(t)
	m.settle.EXPECT().List(gomock.Any(), domain.SettlementFilter{
		Status: domain.SettlementStatusReconciliationRequired,
		Kind:   domain.SettlementKindBurn,
		Limit:  10,
		Offset: 20,
	}).Return([]domain.SettlementRecord{{IdempotencyKey: "redeem:r1"}}, int64(21), nil)

	c, w := newContext(http.MethodGet, "/admin/settlements?status=RECONCILIATION_REQUIRED&kind=BURN&limit=10&offset=20", nil)
	h.ListSettlements(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Len(t, data["items"], 1)
	assert.Equal(t, float64(21), data["total"])
}

func TestListSettlements_EmptyIsArray(t *testing.T) {
	h, m := newTestAdmin(t)
	m.settle.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, int64(0), nil)

	c, w := newContext(http.MethodGet, "/admin/settlements", nil)
	h.ListSettlements(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)
}

func TestListSettlements_BadFilter(t *testing.T) {
	h, m := newTestAdmin(t)
	m.settle.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, int64(0), apperror.Validation("unknown status"))

	c, w := newContext(http.MethodGet, "/admin/settlements?status=DONE", nil)
	h.ListSettlements(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSettlement_NotFound(t *testing.T) {
	h, m := newTestAdmin(t)
	m.settle.EXPECT().Get(gomock.Any(), "evt_404").Return(nil, apperror.ErrSettlementNotFound())

	c, w := newContext(http.MethodGet, "/admin/settlements/evt_404", nil)
	c.Params = gin.Params{{Key: "key", Value: "evt_404"}}
	h.GetSettlement(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SET_404", decodeErrorCode(t, w))
}

func TestRetryPayout(t *testing.T) {
	h, m := newTestAdmin(t)
	m.settle.EXPECT().RetryPayout(gomock.Any(), "redeem:r1").Return(&domain.SettlementRecord{
		IdempotencyKey:         "redeem:r1",
		Status:                 domain.SettlementStatusConfirmed,
		CounterpartyTransferID: "tr_9",
	}, nil)

	c, w := newContext(http.MethodPost, "/admin/settlements/redeem:r1/retry-payout", nil)
	c.Params = gin.Params{{Key: "key", Value: "redeem:r1"}}
	h.RetryPayout(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "CONFIRMED", data["status"])
	assert.Equal(t, "tr_9", data["counterparty_transfer_id"])
	assert.NotContains(t, w.Body.String(), "raw_tx")
}

func TestRetryPayout_WrongState(t *testing.T) {
	h, m := newTestAdmin(t)
	m.settle.EXPECT().RetryPayout(gomock.Any(), "evt_1").
		Return(nil, apperror.ErrInvalidSettlementState("payout retry requires a confirmed burn awaiting reconciliation"))

	c, w := newContext(http.MethodPost, "/admin/settlements/evt_1/retry-payout", nil)
	c.Params = gin.Params{{Key: "key", Value: "evt_1"}}
	h.RetryPayout(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRetryMint(t *testing.T) {
	h, m := newTestAdmin(t)
	m.settle.EXPECT().RetryMint(gomock.Any(), "evt_1").Return(&domain.SettlementRecord{
		IdempotencyKey: "evt_1",
		Kind:           domain.SettlementKindMint,
		Status:         domain.SettlementStatusConfirmed,
		ChainTxHash:    "0xnew",
	}, nil)

	c, w := newContext(http.MethodPost, "/admin/settlements/evt_1/retry-mint", nil)
	c.Params = gin.Params{{Key: "key", Value: "evt_1"}}
	h.RetryMint(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "CONFIRMED", data["status"])
	assert.Equal(t, "0xnew", data["chain_tx_hash"])
}

func TestRetryMint_WrongState(t *testing.T) {
	h, m := newTestAdmin(t)
	m.settle.EXPECT().RetryMint(gomock.Any(), "evt_1").
		Return(nil, apperror.ErrInvalidSettlementState("mint retry requires a mint that failed on chain"))

	c, w := newContext(http.MethodPost, "/admin/settlements/evt_1/retry-mint", nil)
	c.Params = gin.Params{{Key: "key", Value: "evt_1"}}
	h.RetryMint(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SET_003", decodeErrorCode(t, w))
}

func TestResolve_RecordsNote(t *testing.T) {
	h, m := newTestAdmin(t)
	m.settle.EXPECT().Resolve(gomock.Any(), "redeem:r1").Return(&domain.SettlementRecord{
		IdempotencyKey: "redeem:r1",
		Status:         domain.SettlementStatusFailed,
		FailureReason:  domain.FailureResolvedByOperator,
	}, nil)

	c, w := newContext(http.MethodPost, "/admin/settlements/redeem:r1/resolve", map[string]string{"note": " paid by bank transfer "})
	c.Params = gin.Params{{Key: "key", Value: "redeem:r1"}}
	h.Resolve(c)

	assert.Equal(t, http.StatusOK, w.Code)
	details, ok := c.Get(middleware.CtxAuditDetails)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"note": "paid by bank transfer"}, details)
}

func TestResolve_WithoutBody(t *testing.T) {
	h, m := newTestAdmin(t)
	m.settle.EXPECT().Resolve(gomock.Any(), "evt_1").Return(&domain.SettlementRecord{IdempotencyKey: "evt_1"}, nil)

	c, w := newContext(http.MethodPost, "/admin/settlements/evt_1/resolve", nil)
	c.Params = gin.Params{{Key: "key", Value: "evt_1"}}
	h.Resolve(c)

	assert.Equal(t, http.StatusOK, w.Code)
	_, ok := c.Get(middleware.CtxAuditDetails)
	assert.False(t, ok)
}

func TestReconcile(t *testing.T) {
	h, m := newTestAdmin(t)
	m.reconcile.EXPECT().SweepOnce(gomock.Any()).Return(&ports.ReconcileSummary{Scanned: 3, Confirmed: 2, StillPending: 1}, nil)

	c, w := newContext(http.MethodPost, "/admin/reconcile", nil)
	h.Reconcile(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(3), data["scanned"])
	assert.Equal(t, float64(1), data["still_pending"])
}

func TestReconcile_Error(t *testing.T) {
	h, m := newTestAdmin(t)
	m.reconcile.EXPECT().SweepOnce(gomock.Any()).Return(nil, errors.New("db down"))

	c, w := newContext(http.MethodPost, "/admin/reconcile", nil)
	h.Reconcile(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStats(t *testing.T) {
	h, m := newTestAdmin(t)
	m.reporting.EXPECT().GetStats(gomock.Any()).Return(&domain.SettlementStats{
		ByStatus:      map[domain.SettlementStatus]int64{domain.SettlementStatusConfirmed: 4},
		ByKind:        map[domain.SettlementKind]int64{domain.SettlementKindMint: 3, domain.SettlementKindBurn: 1},
		MintedTokens:  "30000",
		BurnedTokens:  "5000",
		PoolAvailable: 7,
	}, nil)

	c, w := newContext(http.MethodGet, "/admin/stats", nil)
	h.Stats(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "30000", data["minted_tokens"])
	assert.Equal(t, float64(7), data["pool_available"])
}
