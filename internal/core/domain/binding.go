package domain

import "time"

// Binding associates a payment-provider connected account with the
// custodial wallet allocated to it. Bindings are never updated or removed.
type Binding struct {
	ConnectedAccountID string    `json:"connected_account_id" bson:"connected_account_id"`
	WalletAddress      string    `json:"wallet_address" bson:"wallet_address"`
	Email              string    `json:"email,omitempty" bson:"email,omitempty"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
}
