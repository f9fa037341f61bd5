package domain

import (
	"math/big"
	"time"
)

// SettlementKind distinguishes the two chain-side effects.
type SettlementKind string

const (
	SettlementKindMint SettlementKind = "MINT"
	SettlementKindBurn SettlementKind = "BURN"
)

// SettlementStatus represents the lifecycle state of a settlement record.
type SettlementStatus string

const (
	SettlementStatusPending                SettlementStatus = "PENDING"
	SettlementStatusConfirmed              SettlementStatus = "CONFIRMED"
	SettlementStatusFailed                 SettlementStatus = "FAILED"
	SettlementStatusReconciliationRequired SettlementStatus = "RECONCILIATION_REQUIRED"
)

// IsValid reports whether s is a known status.
func (s SettlementStatus) IsValid() bool {
	switch s {
	case SettlementStatusPending, SettlementStatusConfirmed,
		SettlementStatusFailed, SettlementStatusReconciliationRequired:
		return true
	}
	return false
}

// FailureReason explains a FAILED or RECONCILIATION_REQUIRED record.
type FailureReason string

const (
	FailureNoBinding          FailureReason = "NO_BINDING"
	FailureMintFailed         FailureReason = "MINT_FAILED"
	FailureBurnFailed         FailureReason = "BURN_FAILED"
	FailureEventNotFound      FailureReason = "EVENT_NOT_FOUND"
	FailurePayoutFailed       FailureReason = "PAYOUT_FAILED"
	FailureSubmissionUnknown  FailureReason = "SUBMISSION_UNKNOWN"
	FailureResolvedByOperator FailureReason = "RESOLVED_BY_OPERATOR"
)

// SettlementRecord is the append-only audit entry for one mint or burn,
// keyed by the idempotency key of the event that caused it.
// Token amounts are base-10 integers in token minor units.
type SettlementRecord struct {
	IdempotencyKey         string           `json:"idempotency_key" bson:"_id"`
	Kind                   SettlementKind   `json:"kind" bson:"kind"`
	ConnectedAccountID     string           `json:"connected_account_id" bson:"connected_account_id"`
	WalletAddress          string           `json:"wallet_address" bson:"wallet_address"`
	FiatAmountMinor        int64            `json:"fiat_amount_minor" bson:"fiat_amount_minor"`
	Currency               string           `json:"currency" bson:"currency"`
	RequestedTokenAmount   string           `json:"requested_token_amount" bson:"requested_token_amount"`
	TokenAmount            string           `json:"token_amount,omitempty" bson:"token_amount,omitempty"`
	CounterpartyTransferID string           `json:"counterparty_transfer_id,omitempty" bson:"counterparty_transfer_id,omitempty"`
	ChainTxHash            string           `json:"chain_tx_hash,omitempty" bson:"chain_tx_hash,omitempty"`
	RawTx                  string           `json:"-" bson:"raw_tx,omitempty"`
	Status                 SettlementStatus `json:"status" bson:"status"`
	FailureReason          FailureReason    `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	Attempts               int              `json:"attempts" bson:"attempts"`
	CreatedAt              time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at" bson:"updated_at"`
}

// IsTerminal returns true once the record will not be advanced automatically.
func (r *SettlementRecord) IsTerminal() bool {
	return r.Status == SettlementStatusConfirmed ||
		r.Status == SettlementStatusFailed ||
		r.Status == SettlementStatusReconciliationRequired
}

// IsSubmitted reports whether a signed transaction was recorded before broadcast.
func (r *SettlementRecord) IsSubmitted() bool {
	return r.ChainTxHash != ""
}

// CanRetryPayout is true for burns that reached the chain but not the payment provider.
func (r *SettlementRecord) CanRetryPayout() bool {
	return r.Kind == SettlementKindBurn &&
		r.Status == SettlementStatusReconciliationRequired &&
		r.FailureReason == FailurePayoutFailed &&
		r.TokenAmount != ""
}

// CanRetryMint is true for mints whose transaction failed on chain and can
// be broadcast again.
func (r *SettlementRecord) CanRetryMint() bool {
	return r.Kind == SettlementKindMint &&
		r.Status == SettlementStatusFailed &&
		r.FailureReason == FailureMintFailed &&
		r.WalletAddress != ""
}

// RequestedTokens parses RequestedTokenAmount.
func (r *SettlementRecord) RequestedTokens() (*big.Int, bool) {
	return new(big.Int).SetString(r.RequestedTokenAmount, 10)
}

// ConfirmedTokens parses TokenAmount, the amount decoded from the chain event.
func (r *SettlementRecord) ConfirmedTokens() (*big.Int, bool) {
	return new(big.Int).SetString(r.TokenAmount, 10)
}

// SettlementFilter narrows admin listings.
type SettlementFilter struct {
	Status SettlementStatus
	Kind   SettlementKind
	Limit  int
	Offset int
}

// SettlementStats aggregates records for the operator dashboard.
type SettlementStats struct {
	ByStatus      map[SettlementStatus]int64 `json:"by_status"`
	ByKind        map[SettlementKind]int64   `json:"by_kind"`
	MintedTokens  string                     `json:"minted_tokens"`
	BurnedTokens  string                     `json:"burned_tokens"`
	PoolAvailable int64                      `json:"pool_available"`
}

// MintStage is the furthest state a webhook reached in the mint path.
type MintStage string

const (
	StageReceived               MintStage = "RECEIVED"
	StageSignatureVerified      MintStage = "SIGNATURE_VERIFIED"
	StageBoundLookedUp          MintStage = "BOUND_LOOKED_UP"
	StageMintSubmitted          MintStage = "MINT_SUBMITTED"
	StageMintConfirmed          MintStage = "MINT_CONFIRMED"
	StageLogged                 MintStage = "LOGGED"
	StageBadSignature           MintStage = "BAD_SIGNATURE"
	StageNoBinding              MintStage = "NO_BINDING"
	StageMintFailed             MintStage = "MINT_FAILED"
	StageDuplicate              MintStage = "DUPLICATE"
	StageIgnored                MintStage = "IGNORED"
	StageAwaitingReconciliation MintStage = "AWAITING_RECONCILIATION"
)
