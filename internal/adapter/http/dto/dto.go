package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
)

// OnboardingStartRequest is the body of POST /onboarding/start.
type OnboardingStartRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
}

// OnboardingStartResponse carries the hosted onboarding link.
type OnboardingStartResponse struct {
	ConnectedAccountID string `json:"connectedAccountId"`
	OnboardingURL      string `json:"onboardingUrl"`
}

// CheckoutRequest is the body of POST /checkout/session.
// Amount is in fiat minor units.
type CheckoutRequest struct {
	ConnectedAccountID string `json:"connectedAccountId" binding:"required,safe_id,max=255"`
	Amount             int64  `json:"amount" binding:"required,gt=0"`
}

// CheckoutResponse points the user at the hosted checkout page.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	SessionID   string `json:"sessionId"`
}

// CheckoutSessionResponse is returned by GET /checkout/session/:id.
type CheckoutSessionResponse struct {
	SessionID     string `json:"sessionId"`
	CheckoutURL   string `json:"checkoutUrl"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
}

// AccountBalanceResponse is returned by GET /accounts/:id/balance.
type AccountBalanceResponse struct {
	ConnectedAccountID string        `json:"connectedAccountId"`
	Available          []FundsAmount `json:"available"`
	Pending            []FundsAmount `json:"pending"`
}

// FundsAmount is an amount in fiat minor units.
type FundsAmount struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// WebhookAck acknowledges every verified delivery.
type WebhookAck struct {
	Received bool   `json:"received"`
	Stage    string `json:"stage"`
}

// RedeemRequest is the body of POST /redeem. Amount is in token minor units.
type RedeemRequest struct {
	WalletAddress string      `json:"walletAddress" binding:"required,eth_addr"`
	Amount        TokenAmount `json:"amount"`
}

// RedeemResponse reports the burn and the payout that followed it.
type RedeemResponse struct {
	TxHash     string `json:"txHash"`
	TransferID string `json:"transferId,omitempty"`
}

// BalanceResponse is returned by GET /balance/:address.
type BalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// TotalSupplyResponse is returned by GET /total-supply.
type TotalSupplyResponse struct {
	TotalSupply string `json:"totalSupply"`
}

// LoginRequest is the body of POST /admin/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

// LoginResponse is the body for a successful operator login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// ResolveRequest is the optional body of POST /admin/settlements/:key/resolve.
type ResolveRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// SettlementListResponse wraps a page of settlement records.
type SettlementListResponse struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// TokenAmount accepts either a JSON number or a decimal string, so amounts
// beyond 2^53 survive JavaScript clients.
type TokenAmount struct {
	*big.Int
}

var errBadAmount = errors.New("amount must be a base-10 integer")

// UnmarshalJSON implements json.Unmarshaler.
func (a *TokenAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		a.Int = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	n, ok := new(big.Int).SetString(string(b), 10)
	if !ok {
		return errBadAmount
	}
	a.Int = n
	return nil
}

// MarshalJSON encodes the amount as a decimal string.
func (a TokenAmount) MarshalJSON() ([]byte, error) {
	if a.Int == nil {
		return []byte("null"), nil
	}
	return json.Marshal(a.Int.String())
}
