package ports

//go:generate mockgen -source=payment.go -destination=mocks/mock_payment.go -package=mocks

import (
	"context"
	"errors"

	"fiat-token-bridge/internal/core/domain"
)

// ErrInvalidSignature means a webhook failed signature verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// PaymentClient is the payment-provider adapter.
type PaymentClient interface {
	// VerifyWebhookSignature checks the signature over the exact raw bytes.
	VerifyWebhookSignature(rawBody []byte, signatureHeader, secret string) (*domain.PaymentEvent, error)
	CreateConnectedAccount(ctx context.Context, email string) (string, error)
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (*TransferHandle, error)
	RetrieveAccountEmail(ctx context.Context, accountID string) (string, error)
	RetrieveAccountBalance(ctx context.Context, accountID string) (*AccountBalance, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	// FindTransfer returns a live transfer in the group, or nil when there is none.
	FindTransfer(ctx context.Context, transferGroup string) (*TransferHandle, error)
}

// CheckoutSessionRequest describes a card payment routed to a connected account.
type CheckoutSessionRequest struct {
	ConnectedAccountID string
	AmountMinor        int64
	Currency           string
	ProductName        string
	SuccessURL         string
	CancelURL          string
}

// CheckoutSession is the hosted payment page created for the user.
type CheckoutSession struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
}

// TransferRequest is a fiat payout to a connected account.
type TransferRequest struct {
	Destination    string
	AmountMinor    int64
	Currency       string
	Description    string
	IdempotencyKey string
	// TransferGroup ties the transfer to the settlement that caused it so it
	// can be found after the idempotency window has passed.
	TransferGroup string
}

// TransferHandle identifies a created transfer.
type TransferHandle struct {
	ID string
}

// AccountBalance is a connected account's funds per currency.
type AccountBalance struct {
	AccountID string
	Available []FundsAmount
	Pending   []FundsAmount
}

// FundsAmount is an amount in currency minor units.
type FundsAmount struct {
	AmountMinor int64
	Currency    string
}
