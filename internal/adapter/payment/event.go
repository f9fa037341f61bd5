package payment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fiat-token-bridge/internal/core/domain"
)

// MetadataConnectedAccount is the checkout metadata key naming the payee.
const MetadataConnectedAccount = "connected_account_id"

// rawEvent is the provider's webhook envelope. Only the fields the bridge
// reads are declared.
type rawEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type rawCheckoutSession struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// normalise turns a verified webhook envelope into a PaymentEvent. Event
// types other than checkout sessions keep only ID, Type and CreatedAt.
func normalise(id, eventType string, created int64, object json.RawMessage) (*domain.PaymentEvent, error) {
	if id == "" {
		return nil, fmt.Errorf("webhook event has no id")
	}
	evt := &domain.PaymentEvent{
		ID:        id,
		Type:      eventType,
		CreatedAt: time.Unix(created, 0).UTC(),
	}
	if !evt.IsCheckout() {
		return evt, nil
	}

	var session rawCheckoutSession
	if err := json.Unmarshal(object, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	evt.ConnectedAccountID = session.Metadata[MetadataConnectedAccount]
	evt.SessionID = session.ID
	evt.PaymentStatus = session.PaymentStatus
	evt.AmountMinor = session.AmountTotal
	evt.Currency = strings.ToLower(session.Currency)
	return evt, nil
}
