package handler

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"testing"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/internal/core/ports/mocks"
	"fiat-token-bridge/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const webhookBody = `{"id":"evt_1","type":"checkout.session.completed"}`

func TestWebhook_AcknowledgesWithStage(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(svc)

	svc.EXPECT().HandleWebhook(gomock.Any(), []byte(webhookBody), "t=1,v1=abc").
		Return(&ports.MintOutcome{EventID: "evt_1", Stage: domain.StageLogged}, nil)

	c, w := newContext(http.MethodPost, "/webhook", webhookBody)
	c.Request.Header.Set(HeaderStripeSignature, "t=1,v1=abc")
	h.Webhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true,"stage":"LOGGED"}`, w.Body.String())
}

func TestWebhook_FallsBackToSignatureHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(svc)

	svc.EXPECT().HandleWebhook(gomock.Any(), gomock.Any(), "t=2,v1=def").
		Return(&ports.MintOutcome{Stage: domain.StageDuplicate}, nil)

	c, w := newContext(http.MethodPost, "/webhook", webhookBody)
	c.Request.Header.Set(HeaderSignature, "t=2,v1=def")
	h.Webhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "DUPLICATE")
}

// Business failures are still acknowledged so the provider stops redelivering.
func TestWebhook_NoBindingIsAcknowledged(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(svc)

	svc.EXPECT().HandleWebhook(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&ports.MintOutcome{Stage: domain.StageNoBinding}, nil)

	c, w := newContext(http.MethodPost, "/webhook", webhookBody)
	h.Webhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "NO_BINDING")
}

func TestWebhook_BadSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(svc)

	svc.EXPECT().HandleWebhook(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&ports.MintOutcome{Stage: domain.StageBadSignature}, apperror.ErrInvalidSignature(errors.New("mismatch")))

	c, w := newContext(http.MethodPost, "/webhook", webhookBody)
	h.Webhook(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SIG_001", decodeErrorCode(t, w))
}

func TestWebhook_StoreDownAsksForRedelivery(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(svc)

	svc.EXPECT().HandleWebhook(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&ports.MintOutcome{Stage: domain.StageSignatureVerified}, apperror.InternalError(errors.New("db down")))

	c, w := newContext(http.MethodPost, "/webhook", webhookBody)
	h.Webhook(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRedeem_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(svc)

	svc.EXPECT().Redeem(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.RedeemRequest) (*domain.SettlementRecord, error) {
			assert.Equal(t, "r1", req.IdempotencyKey)
			assert.Equal(t, testWallet, req.WalletAddress)
			assert.Equal(t, 0, req.TokenAmount.Cmp(big.NewInt(5000)))
			return &domain.SettlementRecord{
				IdempotencyKey:         "redeem:r1",
				Status:                 domain.SettlementStatusConfirmed,
				ChainTxHash:            testTxHash,
				CounterpartyTransferID: "tr_1",
			}, nil
		})

	c, w := newContext(http.MethodPost, "/redeem", `{"walletAddress":"`+testWallet+`","amount":"5000"}`)
	c.Request.Header.Set(HeaderIdempotencyKey, "r1")
	h.Redeem(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeData(t, w)
	assert.Equal(t, testTxHash, data["txHash"])
	assert.Equal(t, "tr_1", data["transferId"])
}

func TestRedeem_RequiresIdempotencyKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewSettlementHandler(mocks.NewMockSettlementService(ctrl))

	c, w := newContext(http.MethodPost, "/redeem", `{"walletAddress":"`+testWallet+`","amount":5000}`)
	h.Redeem(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_001", decodeErrorCode(t, w))
}

func TestRedeem_ValidatesBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewSettlementHandler(mocks.NewMockSettlementService(ctrl))

	bodies := []string{
		`{"walletAddress":"0x123","amount":5000}`,
		`{"walletAddress":"` + testWallet + `"}`,
		`{"walletAddress":"` + testWallet + `","amount":"1e3"}`,
		`not json`,
	}
	for _, body := range bodies {
		c, w := newContext(http.MethodPost, "/redeem", body)
		c.Request.Header.Set(HeaderIdempotencyKey, "r1")
		h.Redeem(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestRedeem_MapsSettlementErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.ErrSettlementInProgress(), http.StatusConflict, "SET_001"},
		{apperror.ErrChainSubmission(errors.New("reverted")), http.StatusBadGateway, "CHAIN_001"},
		{apperror.ErrChainTimeout(errors.New("deadline")), http.StatusGatewayTimeout, "CHAIN_002"},
		{apperror.ErrReconciliationRequired(errors.New("payout")), http.StatusBadGateway, "RECON_001"},
		{apperror.ErrBindingNotFound(), http.StatusNotFound, "BIND_002"},
	}
	for _, tc := range cases {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockSettlementService(ctrl)
		h := NewSettlementHandler(svc)
		svc.EXPECT().Redeem(gomock.Any(), gomock.Any()).Return(nil, tc.err)

		c, w := newContext(http.MethodPost, "/redeem", `{"walletAddress":"`+testWallet+`","amount":5000}`)
		c.Request.Header.Set(HeaderIdempotencyKey, "r1")
		h.Redeem(c)

		assert.Equal(t, tc.status, w.Code, tc.code)
		assert.Equal(t, tc.code, decodeErrorCode(t, w))
	}
}

func TestBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(svc)

	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	svc.EXPECT().BalanceOf(gomock.Any(), testWallet).Return(huge, nil)

	c, w := newContext(http.MethodGet, "/balance/"+testWallet, nil)
	c.Params = gin.Params{{Key: "address", Value: testWallet}}
	h.Balance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "123456789012345678901234567890", data["balance"])
	assert.Equal(t, testWallet, data["address"])
}

func TestBalance_InvalidAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(svc)

	svc.EXPECT().BalanceOf(gomock.Any(), "nope").Return(nil, apperror.Validation("invalid wallet address"))

	c, w := newContext(http.MethodGet, "/balance/nope", nil)
	c.Params = gin.Params{{Key: "address", Value: "nope"}}
	h.Balance(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTotalSupply(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(svc)

	svc.EXPECT().TotalSupply(gomock.Any()).Return(big.NewInt(42000), nil)

	c, w := newContext(http.MethodGet, "/total-supply", nil)
	h.TotalSupply(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42000", decodeData(t, w)["totalSupply"])
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewSettlementHandler(mocks.NewMockSettlementService(ctrl))

	c, w := newContext(http.MethodPost, "/webhook", strings.Repeat("x", 64))
	c.Request.Body = http.MaxBytesReader(w, c.Request.Body, 16)
	h.Webhook(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
