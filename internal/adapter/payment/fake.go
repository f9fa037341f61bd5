package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"github.com/google/uuid"
)

// FakeTolerance is how old a fake webhook signature may be.
const FakeTolerance = 5 * time.Minute

// Transfer is a payout recorded by FakeClient.
type Transfer struct {
	ID             string
	Destination    string
	AmountMinor    int64
	Currency       string
	Description    string
	IdempotencyKey string
	TransferGroup  string
}

// FakeClient is an in-process payment provider for local runs and tests.
// Webhooks are signed with HMAC-SHA256 over "<unix>.<body>" and carried in a
// "t=<unix>,v1=<hex>" header, the same scheme the real provider uses.
type FakeClient struct {
	mu          sync.Mutex
	sig         ports.SignatureService
	baseURL     string
	accounts    map[string]string
	balances    map[string]map[string]int64
	sessions    map[string]ports.CheckoutSession
	transfers   []Transfer
	byKey       map[string]string
	transferErr error
	now         func() time.Time
}

func NewFakeClient(sig ports.SignatureService, baseURL string) *FakeClient {
	return &FakeClient{
		sig:      sig,
		baseURL:  strings.TrimRight(baseURL, "/"),
		accounts: make(map[string]string),
		balances: make(map[string]map[string]int64),
		sessions: make(map[string]ports.CheckoutSession),
		byKey:    make(map[string]string),
		now:      time.Now,
	}
}

// AddAccount registers a connected account without onboarding.
func (f *FakeClient) AddAccount(id, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[id] = email
}

// FailTransfers makes CreateTransfer return err until called with nil.
func (f *FakeClient) FailTransfers(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferErr = err
}

// ExpireIdempotencyKeys forgets every idempotency key, the way the provider
// does once its retention window has passed.
func (f *FakeClient) ExpireIdempotencyKeys() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byKey = make(map[string]string)
}

// SetBalance sets an account's available funds in one currency.
func (f *FakeClient) SetBalance(accountID, currency string, amountMinor int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creditLocked(accountID, currency, amountMinor-f.balances[accountID][strings.ToLower(currency)])
}

// CompleteSession marks a checkout session paid.
func (f *FakeClient) CompleteSession(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sess, ok := f.sessions[sessionID]; ok {
		sess.Status = "complete"
		sess.PaymentStatus = domain.PaymentStatusPaid
		f.sessions[sessionID] = sess
	}
}

// Transfers returns every distinct payout made so far.
func (f *FakeClient) Transfers() []Transfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Transfer(nil), f.transfers...)
}

// SignatureHeader signs body as of ts.
func (f *FakeClient) SignatureHeader(body []byte, secret string, ts time.Time) string {
	unix := ts.Unix()
	return fmt.Sprintf("t=%d,v1=%s", unix, f.sig.Sign(secret, signedPayload(unix, body)))
}

// CheckoutCompletedEvent builds a webhook body like the provider's
// checkout.session.completed for a card payment that was captured.
func CheckoutCompletedEvent(eventID, accountID string, amountMinor int64, currency string, created time.Time) []byte {
	return CheckoutEvent(domain.PaymentEventCheckoutCompleted, eventID, accountID, amountMinor, currency,
		domain.PaymentStatusPaid, created)
}

// CheckoutEvent builds a checkout.session.* webhook body.
func CheckoutEvent(eventType, eventID, accountID string, amountMinor int64, currency, paymentStatus string, created time.Time) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":      eventID,
		"object":  "event",
		"type":    eventType,
		"created": created.Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_" + eventID,
				"object":         "checkout.session",
				"payment_status": paymentStatus,
				"amount_total":   amountMinor,
				"currency":       currency,
				"metadata":       map[string]string{MetadataConnectedAccount: accountID},
			},
		},
	})
	return body
}

func signedPayload(unix int64, body []byte) string {
	return strconv.FormatInt(unix, 10) + "." + string(body)
}

func (f *FakeClient) VerifyWebhookSignature(rawBody []byte, signatureHeader, secret string) (*domain.PaymentEvent, error) {
	var (
		ts   int64
		sigs []string
	)
	for _, part := range strings.Split(signatureHeader, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad timestamp", ports.ErrInvalidSignature)
			}
			ts = n
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return nil, fmt.Errorf("%w: malformed header", ports.ErrInvalidSignature)
	}
	if age := f.now().Sub(time.Unix(ts, 0)); age > FakeTolerance || age < -FakeTolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ports.ErrInvalidSignature)
	}

	payload := signedPayload(ts, rawBody)
	valid := false
	for _, s := range sigs {
		if f.sig.Verify(secret, payload, s) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("%w: no matching signature", ports.ErrInvalidSignature)
	}

	var evt rawEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	return normalise(evt.ID, evt.Type, evt.Created, evt.Data.Object)
}

func (f *FakeClient) CreateConnectedAccount(_ context.Context, email string) (string, error) {
	id := "acct_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	f.mu.Lock()
	f.accounts[id] = email
	f.mu.Unlock()
	return id, nil
}

func (f *FakeClient) CreateOnboardingLink(_ context.Context, accountID, _, returnURL string) (string, error) {
	if !f.hasAccount(accountID) {
		return "", fmt.Errorf("no such account: %s", accountID)
	}
	return returnURL, nil
}

func (f *FakeClient) CreateCheckoutSession(_ context.Context, req ports.CheckoutSessionRequest) (*ports.CheckoutSession, error) {
	if !f.hasAccount(req.ConnectedAccountID) {
		return nil, fmt.Errorf("no such account: %s", req.ConnectedAccountID)
	}
	id := "cs_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	sess := ports.CheckoutSession{ID: id, URL: f.baseURL + "/checkout/fake/" + id, Status: "open", PaymentStatus: "unpaid"}
	f.mu.Lock()
	f.sessions[id] = sess
	f.mu.Unlock()
	return &sess, nil
}

func (f *FakeClient) RetrieveCheckoutSession(_ context.Context, sessionID string) (*ports.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("no such checkout session: %s", sessionID)
	}
	return &sess, nil
}

// CreateTransfer honours idempotency keys: a repeated key returns the
// original transfer without paying again.
func (f *FakeClient) CreateTransfer(_ context.Context, req ports.TransferRequest) (*ports.TransferHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.transferErr != nil {
		return nil, f.transferErr
	}
	if req.IdempotencyKey != "" {
		if id, ok := f.byKey[req.IdempotencyKey]; ok {
			return &ports.TransferHandle{ID: id}, nil
		}
	}
	if _, ok := f.accounts[req.Destination]; !ok {
		return nil, fmt.Errorf("no such destination: %s", req.Destination)
	}

	id := "tr_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	f.transfers = append(f.transfers, Transfer{
		ID:             id,
		Destination:    req.Destination,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		TransferGroup:  req.TransferGroup,
	})
	if req.IdempotencyKey != "" {
		f.byKey[req.IdempotencyKey] = id
	}
	f.creditLocked(req.Destination, req.Currency, req.AmountMinor)
	return &ports.TransferHandle{ID: id}, nil
}

func (f *FakeClient) FindTransfer(_ context.Context, transferGroup string) (*ports.TransferHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	for _, t := range f.transfers {
		if transferGroup != "" && t.TransferGroup == transferGroup {
			return &ports.TransferHandle{ID: t.ID}, nil
		}
	}
	return nil, nil
}

func (f *FakeClient) RetrieveAccountBalance(_ context.Context, accountID string) (*ports.AccountBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[accountID]; !ok {
		return nil, fmt.Errorf("no such account: %s", accountID)
	}
	bal := &ports.AccountBalance{AccountID: accountID}
	for cur, amt := range f.balances[accountID] {
		bal.Available = append(bal.Available, ports.FundsAmount{AmountMinor: amt, Currency: cur})
	}
	sort.Slice(bal.Available, func(i, j int) bool { return bal.Available[i].Currency < bal.Available[j].Currency })
	return bal, nil
}

func (f *FakeClient) creditLocked(accountID, currency string, amountMinor int64) {
	if f.balances[accountID] == nil {
		f.balances[accountID] = make(map[string]int64)
	}
	f.balances[accountID][strings.ToLower(currency)] += amountMinor
}

func (f *FakeClient) RetrieveAccountEmail(_ context.Context, accountID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.accounts[accountID]
	if !ok {
		return "", fmt.Errorf("no such account: %s", accountID)
	}
	return email, nil
}

func (f *FakeClient) hasAccount(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.accounts[id]
	return ok
}
