package domain

import (
	"strings"
	"time"
)

// Provider events the bridge acts on. A checkout completes either with the
// funds captured or, for delayed methods, before they settle; the async
// events report the outcome of the latter.
const (
	PaymentEventCheckoutCompleted = "checkout.session.completed"
	PaymentEventAsyncSucceeded    = "checkout.session.async_payment_succeeded"
	PaymentEventAsyncFailed       = "checkout.session.async_payment_failed"

	PaymentStatusPaid = "paid"
)

// PaymentEvent is a verified payment-provider webhook, normalised.
type PaymentEvent struct {
	ID                 string
	Type               string
	ConnectedAccountID string
	SessionID          string
	PaymentStatus      string
	AmountMinor        int64
	Currency           string
	CreatedAt          time.Time
}

// IsCheckout reports whether the event carries a checkout session.
func (e *PaymentEvent) IsCheckout() bool {
	return strings.HasPrefix(e.Type, "checkout.session.")
}

// IsMintable reports whether the event represents captured funds.
func (e *PaymentEvent) IsMintable() bool {
	switch e.Type {
	case PaymentEventCheckoutCompleted, PaymentEventAsyncSucceeded:
		return e.PaymentStatus == PaymentStatusPaid
	}
	return false
}

// IsPaymentFailure reports a checkout whose delayed payment never settled.
func (e *PaymentEvent) IsPaymentFailure() bool {
	return e.Type == PaymentEventAsyncFailed
}
