package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeClient implements ports.PaymentClient with Stripe Connect express
// accounts. All calls go through its own client.API; the package-level
// stripe.Key is never set.
type StripeClient struct {
	api     *client.API
	country string
	log     zerolog.Logger
}

// NewStripeClient builds a client. backends may be nil for the live API.
func NewStripeClient(apiKey, country string, backends *stripe.Backends, log zerolog.Logger) *StripeClient {
	return &StripeClient{
		api:     client.New(apiKey, backends),
		country: country,
		log:     log,
	}
}

func (c *StripeClient) VerifyWebhookSignature(rawBody []byte, signatureHeader, secret string) (*domain.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(rawBody, signatureHeader, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidSignature, err)
	}

	var object json.RawMessage
	if event.Data != nil {
		object = event.Data.Raw
	}
	return normalise(event.ID, string(event.Type), event.Created, object)
}

func (c *StripeClient) CreateConnectedAccount(ctx context.Context, email string) (string, error) {
	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(c.country),
		Email:   stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx

	acct, err := c.api.Accounts.New(params)
	if err != nil {
		return "", fmt.Errorf("create connected account: %w", err)
	}
	c.log.Info().Str("account_id", acct.ID).Msg("Connected account created")
	return acct.ID, nil
}

func (c *StripeClient) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx

	link, err := c.api.AccountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("create onboarding link: %w", err)
	}
	return link.URL, nil
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req ports.CheckoutSessionRequest) (*ports.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: []*string{stripe.String("card")},
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.ProductName),
				},
				UnitAmount: stripe.Int64(req.AmountMinor),
			},
			Quantity: stripe.Int64(1),
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			OnBehalfOf: stripe.String(req.ConnectedAccountID),
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(req.ConnectedAccountID),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.AddMetadata(MetadataConnectedAccount, req.ConnectedAccountID)
	params.Context = ctx

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &ports.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (c *StripeClient) CreateTransfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferHandle, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.Destination),
		Description: stripe.String(req.Description),
	}
	if req.TransferGroup != "" {
		params.TransferGroup = stripe.String(req.TransferGroup)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	tr, err := c.api.Transfers.New(params)
	if err != nil {
		return nil, fmt.Errorf("create transfer: %w", err)
	}
	c.log.Info().
		Str("transfer_id", tr.ID).
		Str("destination", req.Destination).
		Int64("amount_minor", req.AmountMinor).
		Msg("Transfer created")
	return &ports.TransferHandle{ID: tr.ID}, nil
}

func (c *StripeClient) RetrieveAccountEmail(ctx context.Context, accountID string) (string, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := c.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return "", fmt.Errorf("retrieve account: %w", err)
	}
	return acct.Email, nil
}

// FindTransfer lists the transfers in a group and returns the first one that
// has not been reversed.
func (c *StripeClient) FindTransfer(ctx context.Context, transferGroup string) (*ports.TransferHandle, error) {
	params := &stripe.TransferListParams{TransferGroup: stripe.String(transferGroup)}
	params.Context = ctx

	iter := c.api.Transfers.List(params)
	for iter.Next() {
		tr := iter.Transfer()
		if tr.Reversed {
			continue
		}
		return &ports.TransferHandle{ID: tr.ID}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return nil, nil
}

// RetrieveAccountBalance reads the balance of a connected account by acting
// as that account.
func (c *StripeClient) RetrieveAccountBalance(ctx context.Context, accountID string) (*ports.AccountBalance, error) {
	params := &stripe.BalanceParams{}
	params.SetStripeAccount(accountID)
	params.Context = ctx

	bal, err := c.api.Balance.Get(params)
	if err != nil {
		return nil, fmt.Errorf("retrieve balance: %w", err)
	}
	return &ports.AccountBalance{
		AccountID: accountID,
		Available: fundsAmounts(bal.Available),
		Pending:   fundsAmounts(bal.Pending),
	}, nil
}

func (c *StripeClient) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*ports.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	return &ports.CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
	}, nil
}

func fundsAmounts(in []*stripe.Amount) []ports.FundsAmount {
	out := make([]ports.FundsAmount, 0, len(in))
	for _, a := range in {
		out = append(out, ports.FundsAmount{AmountMinor: a.Amount, Currency: string(a.Currency)})
	}
	return out
}
