package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test"

// ---- Stripe ----

type capturedRequest struct {
	method, path, idempotencyKey, account string
	form, query                           map[string]string
}

func newStripeTestClient(t *testing.T, respond func(path string) string) (*StripeClient, *[]capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form := make(map[string]string)
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		query := make(map[string]string)
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		mu.Lock()
		reqs = append(reqs, capturedRequest{
			method:         r.Method,
			path:           r.URL.Path,
			idempotencyKey: r.Header.Get("Idempotency-Key"),
			account:        r.Header.Get("Stripe-Account"),
			form:           form,
			query:          query,
		})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respond(r.URL.Path)))
	}))
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	c := NewStripeClient("sk_test_123", "GB", &stripe.Backends{API: backend, Connect: backend, Uploads: backend}, zerolog.Nop())
	return c, &reqs
}

func TestStripeClient_VerifyWebhookSignature(t *testing.T) {
	c := NewStripeClient("sk_test_123", "GB", nil, zerolog.Nop())
	body := CheckoutCompletedEvent("evt_1", "acct_A", 10000, "GBP", time.Unix(1700000000, 0))

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: testSecret})

	evt, err := c.VerifyWebhookSignature(body, signed.Header, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.True(t, evt.IsMintable())
	assert.Equal(t, "acct_A", evt.ConnectedAccountID)
	assert.Equal(t, int64(10000), evt.AmountMinor)
	assert.Equal(t, "gbp", evt.Currency)
	assert.Equal(t, int64(1700000000), evt.CreatedAt.Unix())
	assert.Equal(t, domain.PaymentStatusPaid, evt.PaymentStatus)
	assert.Equal(t, "cs_evt_1", evt.SessionID)
}

func TestStripeClient_VerifyWebhookSignature_PaymentStatus(t *testing.T) {
	c := NewStripeClient("sk_test_123", "GB", nil, zerolog.Nop())
	created := time.Unix(1700000000, 0)

	tests := []struct {
		name      string
		eventType string
		status    string
		mintable  bool
		failure   bool
	}{
		{"completed before delayed payment settles", domain.PaymentEventCheckoutCompleted, "unpaid", false, false},
		{"delayed payment settled", domain.PaymentEventAsyncSucceeded, domain.PaymentStatusPaid, true, false},
		{"delayed payment failed", domain.PaymentEventAsyncFailed, "unpaid", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := CheckoutEvent(tt.eventType, "evt_1", "acct_A", 10000, "gbp", tt.status, created)
			signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: testSecret})

			evt, err := c.VerifyWebhookSignature(body, signed.Header, testSecret)
			require.NoError(t, err)
			assert.Equal(t, tt.mintable, evt.IsMintable())
			assert.Equal(t, tt.failure, evt.IsPaymentFailure())
			assert.Equal(t, tt.status, evt.PaymentStatus)
			assert.Equal(t, "acct_A", evt.ConnectedAccountID)
		})
	}
}

func TestStripeClient_VerifyWebhookSignature_Tampered(t *testing.T) {
	c := NewStripeClient("sk_test_123", "GB", nil, zerolog.Nop())
	body := CheckoutCompletedEvent("evt_1", "acct_A", 10000, "gbp", time.Now())
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: testSecret})

	tampered := []byte(strings.Replace(string(body), "10000", "99999", 1))
	_, err := c.VerifyWebhookSignature(tampered, signed.Header, testSecret)
	assert.ErrorIs(t, err, ports.ErrInvalidSignature)

	_, err = c.VerifyWebhookSignature(body, signed.Header, "whsec_other")
	assert.ErrorIs(t, err, ports.ErrInvalidSignature)
}

func TestStripeClient_CreateTransfer(t *testing.T) {
	c, reqs := newStripeTestClient(t, func(string) string {
		return `{"id":"tr_123","object":"transfer"}`
	})

	h, err := c.CreateTransfer(context.Background(), ports.TransferRequest{
		Destination:    "acct_A",
		AmountMinor:    2500,
		Currency:       "gbp",
		Description:    "Redemption of 25.00 TGBP",
		IdempotencyKey: "payout:r1",
		TransferGroup:  "r1",
	})
	require.NoError(t, err)
	assert.Equal(t, "tr_123", h.ID)

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, "/v1/transfers", got.path)
	assert.Equal(t, "payout:r1", got.idempotencyKey)
	assert.Equal(t, "2500", got.form["amount"])
	assert.Equal(t, "acct_A", got.form["destination"])
	assert.Equal(t, "r1", got.form["transfer_group"])
}

func TestStripeClient_FindTransfer(t *testing.T) {
	c, reqs := newStripeTestClient(t, func(string) string {
		return `{"object":"list","url":"/v1/transfers","has_more":false,"data":[` +
			`{"id":"tr_reversed","object":"transfer","reversed":true},` +
			`{"id":"tr_live","object":"transfer","reversed":false}]}`
	})

	h, err := c.FindTransfer(context.Background(), "redeem:0xabc")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "tr_live", h.ID)

	got := (*reqs)[0]
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/v1/transfers", got.path)
	assert.Equal(t, "redeem:0xabc", got.query["transfer_group"])
}

func TestStripeClient_FindTransfer_None(t *testing.T) {
	c, _ := newStripeTestClient(t, func(string) string {
		return `{"object":"list","url":"/v1/transfers","has_more":false,"data":[]}`
	})

	h, err := c.FindTransfer(context.Background(), "redeem:0xabc")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestStripeClient_RetrieveAccountBalance(t *testing.T) {
	c, reqs := newStripeTestClient(t, func(string) string {
		return `{"object":"balance","livemode":false,` +
			`"available":[{"amount":1200,"currency":"gbp"}],` +
			`"pending":[{"amount":300,"currency":"gbp"}]}`
	})

	bal, err := c.RetrieveAccountBalance(context.Background(), "acct_A")
	require.NoError(t, err)
	assert.Equal(t, "acct_A", bal.AccountID)
	assert.Equal(t, []ports.FundsAmount{{AmountMinor: 1200, Currency: "gbp"}}, bal.Available)
	assert.Equal(t, []ports.FundsAmount{{AmountMinor: 300, Currency: "gbp"}}, bal.Pending)

	got := (*reqs)[0]
	assert.Equal(t, "/v1/balance", got.path)
	assert.Equal(t, "acct_A", got.account)
}

func TestStripeClient_RetrieveCheckoutSession(t *testing.T) {
	c, reqs := newStripeTestClient(t, func(string) string {
		return `{"id":"cs_1","object":"checkout.session","url":"https://checkout.example/cs_1",` +
			`"status":"open","payment_status":"unpaid"}`
	})

	sess, err := c.RetrieveCheckoutSession(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/cs_1", sess.URL)
	assert.Equal(t, "open", sess.Status)
	assert.Equal(t, "unpaid", sess.PaymentStatus)
	assert.Equal(t, "/v1/checkout/sessions/cs_1", (*reqs)[0].path)
}

func TestStripeClient_CreateCheckoutSession(t *testing.T) {
	c, reqs := newStripeTestClient(t, func(string) string {
		return `{"id":"cs_1","object":"checkout.session","url":"https://checkout.example/cs_1"}`
	})

	sess, err := c.CreateCheckoutSession(context.Background(), ports.CheckoutSessionRequest{
		ConnectedAccountID: "acct_A",
		AmountMinor:        1000,
		Currency:           "gbp",
		ProductName:        "TGBP",
		SuccessURL:         "https://bridge/success",
		CancelURL:          "https://bridge/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", sess.ID)
	assert.Equal(t, "https://checkout.example/cs_1", sess.URL)

	form := (*reqs)[0].form
	assert.Equal(t, "acct_A", form["metadata[connected_account_id]"])
	assert.Equal(t, "acct_A", form["payment_intent_data[transfer_data][destination]"])
	assert.Equal(t, "acct_A", form["payment_intent_data[on_behalf_of]"])
	assert.Equal(t, "card", form["payment_method_types[0]"])
}

func TestStripeClient_Onboarding(t *testing.T) {
	c, reqs := newStripeTestClient(t, func(path string) string {
		switch path {
		case "/v1/accounts":
			return `{"id":"acct_new","object":"account"}`
		case "/v1/account_links":
			return `{"object":"account_link","url":"https://connect.example/onboard"}`
		default:
			return `{"id":"acct_new","object":"account","email":"a@example.com"}`
		}
	})
	ctx := context.Background()

	id, err := c.CreateConnectedAccount(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "acct_new", id)

	link, err := c.CreateOnboardingLink(ctx, id, "https://bridge/refresh", "https://bridge/complete")
	require.NoError(t, err)
	assert.Equal(t, "https://connect.example/onboard", link)

	email, err := c.RetrieveAccountEmail(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", email)

	assert.Equal(t, "express", (*reqs)[0].form["type"])
	assert.Equal(t, "account_onboarding", (*reqs)[1].form["type"])
}

func TestStripeClient_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"insufficient funds"}}`))
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	c := NewStripeClient("sk_test_123", "GB", &stripe.Backends{API: backend, Connect: backend, Uploads: backend}, zerolog.Nop())

	_, err := c.CreateTransfer(context.Background(), ports.TransferRequest{Destination: "acct_A", AmountMinor: 1, Currency: "gbp"})
	require.Error(t, err)

	var stripeErr *stripe.Error
	assert.True(t, errors.As(err, &stripeErr))
}

// ---- Fake ----

func newFakePayment() *FakeClient {
	return NewFakeClient(service.NewHMACSignatureService(), "http://localhost:8080/")
}

func TestFakeClient_WebhookRoundTrip(t *testing.T) {
	f := newFakePayment()
	now := time.Now()
	body := CheckoutCompletedEvent("evt_1", "acct_A", 10000, "gbp", now)

	evt, err := f.VerifyWebhookSignature(body, f.SignatureHeader(body, testSecret, now), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, "acct_A", evt.ConnectedAccountID)
	assert.Equal(t, int64(10000), evt.AmountMinor)
}

func TestFakeClient_WebhookRejections(t *testing.T) {
	f := newFakePayment()
	now := time.Now()
	body := CheckoutCompletedEvent("evt_1", "acct_A", 10000, "gbp", now)

	tests := []struct {
		name   string
		body   []byte
		header string
	}{
		{"wrong secret", body, f.SignatureHeader(body, "other", now)},
		{"tampered body", append([]byte(" "), body...), f.SignatureHeader(body, testSecret, now)},
		{"stale", body, f.SignatureHeader(body, testSecret, now.Add(-10*time.Minute))},
		{"empty header", body, ""},
		{"no v1", body, "t=123"},
		{"bad timestamp", body, "t=abc,v1=00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.VerifyWebhookSignature(tt.body, tt.header, testSecret)
			assert.ErrorIs(t, err, ports.ErrInvalidSignature)
		})
	}
}

func TestFakeClient_NonPaymentEvent(t *testing.T) {
	f := newFakePayment()
	now := time.Now()
	body := []byte(`{"id":"evt_2","type":"account.updated","created":1700000000,"data":{"object":{}}}`)

	evt, err := f.VerifyWebhookSignature(body, f.SignatureHeader(body, testSecret, now), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "account.updated", evt.Type)
	assert.False(t, evt.IsMintable())
	assert.Empty(t, evt.ConnectedAccountID)
}

func TestFakeClient_AccountsAndCheckout(t *testing.T) {
	f := newFakePayment()
	ctx := context.Background()

	id, err := f.CreateConnectedAccount(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "acct_"))

	email, err := f.RetrieveAccountEmail(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", email)

	link, err := f.CreateOnboardingLink(ctx, id, "r", "http://localhost:8080/onboarding/complete?accountId="+id)
	require.NoError(t, err)
	assert.Contains(t, link, id)

	sess, err := f.CreateCheckoutSession(ctx, ports.CheckoutSessionRequest{ConnectedAccountID: id, AmountMinor: 100})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.URL, "http://localhost:8080/checkout/fake/cs_test_"))

	_, err = f.CreateCheckoutSession(ctx, ports.CheckoutSessionRequest{ConnectedAccountID: "acct_missing"})
	assert.Error(t, err)
}

func TestFakeClient_TransferIdempotency(t *testing.T) {
	f := newFakePayment()
	f.AddAccount("acct_A", "a@example.com")
	ctx := context.Background()
	req := ports.TransferRequest{Destination: "acct_A", AmountMinor: 500, Currency: "gbp", IdempotencyKey: "payout:r1"}

	first, err := f.CreateTransfer(ctx, req)
	require.NoError(t, err)
	second, err := f.CreateTransfer(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.Transfers(), 1)
}

func TestFakeClient_FindTransferAfterKeysExpire(t *testing.T) {
	f := newFakePayment()
	f.AddAccount("acct_A", "")
	ctx := context.Background()
	req := ports.TransferRequest{Destination: "acct_A", AmountMinor: 500, Currency: "gbp",
		IdempotencyKey: "payout:r1", TransferGroup: "r1"}

	found, err := f.FindTransfer(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, found)

	first, err := f.CreateTransfer(ctx, req)
	require.NoError(t, err)
	f.ExpireIdempotencyKeys()

	found, err = f.FindTransfer(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	_, err = f.CreateTransfer(ctx, req)
	require.NoError(t, err)
	assert.Len(t, f.Transfers(), 2, "an expired key no longer deduplicates")
}

func TestFakeClient_BalanceAndSession(t *testing.T) {
	f := newFakePayment()
	f.AddAccount("acct_A", "")
	ctx := context.Background()

	f.SetBalance("acct_A", "GBP", 1000)
	_, err := f.CreateTransfer(ctx, ports.TransferRequest{Destination: "acct_A", AmountMinor: 250, Currency: "gbp"})
	require.NoError(t, err)

	bal, err := f.RetrieveAccountBalance(ctx, "acct_A")
	require.NoError(t, err)
	assert.Equal(t, []ports.FundsAmount{{AmountMinor: 1250, Currency: "gbp"}}, bal.Available)

	_, err = f.RetrieveAccountBalance(ctx, "acct_missing")
	assert.Error(t, err)

	sess, err := f.CreateCheckoutSession(ctx, ports.CheckoutSessionRequest{ConnectedAccountID: "acct_A", AmountMinor: 100})
	require.NoError(t, err)
	got, err := f.RetrieveCheckoutSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "unpaid", got.PaymentStatus)

	f.CompleteSession(sess.ID)
	got, err = f.RetrieveCheckoutSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)

	_, err = f.RetrieveCheckoutSession(ctx, "cs_missing")
	assert.Error(t, err)
}

func TestFakeClient_FailTransfers(t *testing.T) {
	f := newFakePayment()
	f.AddAccount("acct_A", "")
	boom := errors.New("stripe down")
	f.FailTransfers(boom)

	_, err := f.CreateTransfer(context.Background(), ports.TransferRequest{Destination: "acct_A", AmountMinor: 1})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.Transfers())

	f.FailTransfers(nil)
	_, err = f.CreateTransfer(context.Background(), ports.TransferRequest{Destination: "acct_A", AmountMinor: 1})
	assert.NoError(t, err)
}

func TestNormalise_RequiresID(t *testing.T) {
	_, err := normalise("", domain.PaymentEventCheckoutCompleted, 0, nil)
	assert.Error(t, err)
}
