package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fiat-token-bridge/internal/adapter/chain"
	"fiat-token-bridge/internal/adapter/custody"
	httpHandler "fiat-token-bridge/internal/adapter/http/handler"
	"fiat-token-bridge/internal/adapter/payment"
	"fiat-token-bridge/internal/adapter/storage/memory"
	redisStorage "fiat-token-bridge/internal/adapter/storage/redis"
	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/internal/service"
	"fiat-token-bridge/pkg/logger"
	"fiat-token-bridge/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic      = "test test test test test test test test test test test junk"
	testContract      = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testWebhookSecret = "whsec_integration"
	testOperator      = "ops"
	testPassword      = "correct-horse-battery"
)

// testApp is the full stack behind a real HTTP server: memory storage,
// miniredis for caching, locks and rate limits, and the in-process chain
// and payment provider.
type testApp struct {
	server      *httptest.Server
	redis       *miniredis.Miniredis
	chain       *chain.FakeClient
	payments    *payment.FakeClient
	settlements *memory.SettlementRepo
	audit       *memory.AuditRepo
	wallets     []string
}

type appOptions struct {
	poolSize            uint32
	confirmationTimeout time.Duration
}

func newTestApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()
	if opts.poolSize == 0 {
		opts.poolSize = 3
	}
	if opts.confirmationTimeout == 0 {
		opts.confirmationTimeout = 2 * time.Second
	}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	log := logger.New("error", false)
	m := metrics.New()
	sigSvc := service.NewHMACSignatureService()

	keys, err := custody.NewHDKeyStore(testMnemonic, "", opts.poolSize)
	require.NoError(t, err)
	seed, err := keys.Wallets(0, opts.poolSize)
	require.NoError(t, err)

	fakeChain, err := chain.NewFakeClient(testContract, 31337, log)
	require.NoError(t, err)
	payments := payment.NewFakeClient(sigSvc, "http://bridge.test")

	poolRepo := memory.NewWalletPoolRepo()
	settlements := memory.NewSettlementRepo()
	audit := memory.NewAuditRepo()

	pool := service.NewWalletPool(poolRepo, m, log)
	_, err = pool.Provision(context.Background(), seed)
	require.NoError(t, err)
	bindings := service.NewBindingRegistry(memory.NewBindingRepo())
	alerts := service.NewAlertService("", "", sigSvc, nil, nil, m, log)

	conv := domain.Conversion{FiatDecimals: 2, TokenDecimals: 2, TokenSymbol: "TGBP"}
	engine := service.NewSettlementEngine(payments, fakeChain, keys, bindings, settlements,
		redisStorage.NewOutcomeCache(rdb), alerts, conv, service.SettlementConfig{
			WebhookSecret:       testWebhookSecret,
			Currency:            "gbp",
			ConfirmationTimeout: opts.confirmationTimeout,
			OutcomeCacheTTL:     time.Hour,
			MaxAttempts:         5,
		}, m, log)
	onboarding := service.NewOnboardingService(payments, pool, bindings, alerts, service.OnboardingConfig{
		PublicBaseURL: "http://bridge.test",
		Currency:      "gbp",
		TokenSymbol:   "TGBP",
	}, log)
	reconciler := service.NewReconciler(settlements, engine, redisStorage.NewSweepLock(rdb),
		service.ReconcilerConfig{Batch: 50}, log)

	hashSvc := service.NewArgon2HashService()
	hash, err := hashSvc.Hash(testPassword)
	require.NoError(t, err)
	tokens := service.NewJWTTokenService("integration-jwt-secret-32-bytes!!", time.Hour, "fiat-token-bridge")
	auth := service.NewAuthService([]domain.Operator{{Username: testOperator, PasswordHash: hash}}, hashSvc, tokens, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Settlement:     engine,
		Onboarding:     onboarding,
		Reconcile:      reconciler,
		Auth:           auth,
		Reporting:      service.NewReportingService(settlements, poolRepo, m),
		TokenSvc:       tokens,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		AuditSvc:       service.NewAuditService(audit, log),
		Metrics:        m.Handler(),
		HealthCheckers: []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		Logger:         log,
	})

	app := &testApp{
		server:      httptest.NewServer(router),
		redis:       mr,
		chain:       fakeChain,
		payments:    payments,
		settlements: settlements,
		audit:       audit,
	}
	for _, w := range seed {
		app.wallets = append(app.wallets, w.Address)
	}
	t.Cleanup(func() {
		app.server.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return app
}

type apiResponse struct {
	Status    int
	JSON      map[string]interface{}
	Data      map[string]interface{}
	ErrorCode string
	Body      string
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, headers map[string]string) apiResponse {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, r)
	require.NoError(t, err)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := apiResponse{Status: resp.StatusCode, Body: string(raw)}
	if json.Unmarshal(raw, &out.JSON) == nil {
		out.Data, _ = out.JSON["data"].(map[string]interface{})
		out.ErrorCode, _ = out.JSON["error_code"].(string)
	}
	return out
}

// onboard runs start then complete and returns the bound wallet.
func (a *testApp) onboard(t *testing.T, email string) (account, wallet string) {
	t.Helper()
	start := a.do(t, http.MethodPost, "/onboarding/start", map[string]string{"email": email}, nil)
	require.Equal(t, http.StatusOK, start.Status, start.Body)
	account = start.Data["connectedAccountId"].(string)

	complete := a.do(t, http.MethodGet, "/onboarding/complete?accountId="+account, nil, nil)
	require.Equal(t, http.StatusOK, complete.Status, complete.Body)

	for _, w := range a.wallets {
		if bytes.Contains([]byte(complete.Body), []byte(w)) {
			return account, w
		}
	}
	t.Fatalf("no pool wallet in onboarding page: %s", complete.Body)
	return "", ""
}

func (a *testApp) deliver(t *testing.T, eventID, account string, amountMinor int64) apiResponse {
	t.Helper()
	return a.deliverBody(t, payment.CheckoutCompletedEvent(eventID, account, amountMinor, "gbp", time.Now()))
}

func (a *testApp) deliverBody(t *testing.T, body []byte) apiResponse {
	t.Helper()
	return a.do(t, http.MethodPost, "/webhook", body, map[string]string{
		httpHandler.HeaderStripeSignature: a.payments.SignatureHeader(body, testWebhookSecret, time.Now()),
	})
}

func (a *testApp) redeem(t *testing.T, key, wallet string, amount int64) apiResponse {
	t.Helper()
	return a.do(t, http.MethodPost, "/redeem",
		map[string]interface{}{"walletAddress": wallet, "amount": amount},
		map[string]string{httpHandler.HeaderIdempotencyKey: key})
}

func (a *testApp) balance(t *testing.T, wallet string) string {
	t.Helper()
	resp := a.do(t, http.MethodGet, "/balance/"+wallet, nil, nil)
	require.Equal(t, http.StatusOK, resp.Status, resp.Body)
	return resp.Data["balance"].(string)
}

func (a *testApp) login(t *testing.T) map[string]string {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/admin/login",
		map[string]string{"username": testOperator, "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, resp.Status, resp.Body)
	return map[string]string{"Authorization": "Bearer " + resp.Data["token"].(string)}
}
