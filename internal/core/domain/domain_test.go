package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementRecord_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status SettlementStatus
		want   bool
	}{
		{"pending", SettlementStatusPending, false},
		{"confirmed", SettlementStatusConfirmed, true},
		{"failed", SettlementStatusFailed, true},
		{"reconciliation required", SettlementStatusReconciliationRequired, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &SettlementRecord{Status: tt.status}
			assert.Equal(t, tt.want, r.IsTerminal())
		})
	}
}

func TestSettlementStatus_IsValid(t *testing.T) {
	assert.True(t, SettlementStatusPending.IsValid())
	assert.True(t, SettlementStatusReconciliationRequired.IsValid())
	assert.False(t, SettlementStatus("DONE").IsValid())
	assert.False(t, SettlementStatus("").IsValid())
}

func TestSettlementRecord_CanRetryPayout(t *testing.T) {
	tests := []struct {
		name string
		rec  SettlementRecord
		want bool
	}{
		{
			name: "burned but unpaid",
			rec: SettlementRecord{Kind: SettlementKindBurn, Status: SettlementStatusReconciliationRequired,
				FailureReason: FailurePayoutFailed, TokenAmount: "5000"},
			want: true,
		},
		{
			name: "mint is never paid out",
			rec: SettlementRecord{Kind: SettlementKindMint, Status: SettlementStatusReconciliationRequired,
				FailureReason: FailurePayoutFailed, TokenAmount: "5000"},
			want: false,
		},
		{
			name: "burn event never decoded",
			rec: SettlementRecord{Kind: SettlementKindBurn, Status: SettlementStatusReconciliationRequired,
				FailureReason: FailureEventNotFound},
			want: false,
		},
		{
			name: "confirmed burn",
			rec:  SettlementRecord{Kind: SettlementKindBurn, Status: SettlementStatusConfirmed, TokenAmount: "5000"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.CanRetryPayout())
		})
	}
}

func TestSettlementRecord_TokenParsing(t *testing.T) {
	r := &SettlementRecord{RequestedTokenAmount: "10000", TokenAmount: "9999"}

	req, ok := r.RequestedTokens()
	require.True(t, ok)
	assert.Equal(t, int64(10000), req.Int64())

	got, ok := r.ConfirmedTokens()
	require.True(t, ok)
	assert.Equal(t, int64(9999), got.Int64())

	_, ok = (&SettlementRecord{}).ConfirmedTokens()
	assert.False(t, ok)
}

func TestPaymentEvent_IsMintable(t *testing.T) {
	tests := []struct {
		name    string
		evt     PaymentEvent
		mint    bool
		failure bool
	}{
		{"completed and paid", PaymentEvent{Type: PaymentEventCheckoutCompleted, PaymentStatus: PaymentStatusPaid}, true, false},
		{"completed but unpaid", PaymentEvent{Type: PaymentEventCheckoutCompleted, PaymentStatus: "unpaid"}, false, false},
		{"async succeeded", PaymentEvent{Type: PaymentEventAsyncSucceeded, PaymentStatus: PaymentStatusPaid}, true, false},
		{"async failed", PaymentEvent{Type: PaymentEventAsyncFailed, PaymentStatus: "unpaid"}, false, true},
		{"other event", PaymentEvent{Type: "payment_intent.created", PaymentStatus: PaymentStatusPaid}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.mint, tt.evt.IsMintable())
			assert.Equal(t, tt.failure, tt.evt.IsPaymentFailure())
		})
	}
	assert.True(t, (&PaymentEvent{Type: PaymentEventAsyncFailed}).IsCheckout())
	assert.False(t, (&PaymentEvent{Type: "payment_intent.created"}).IsCheckout())
}

func TestSettlementRecord_CanRetryMint(t *testing.T) {
	failed := SettlementRecord{Kind: SettlementKindMint, Status: SettlementStatusFailed,
		FailureReason: FailureMintFailed, WalletAddress: "0xabc"}
	assert.True(t, failed.CanRetryMint())

	noBinding := failed
	noBinding.FailureReason = FailureNoBinding
	noBinding.WalletAddress = ""
	assert.False(t, noBinding.CanRetryMint())

	confirmed := failed
	confirmed.Status = SettlementStatusConfirmed
	assert.False(t, confirmed.CanRetryMint())

	burn := failed
	burn.Kind = SettlementKindBurn
	burn.FailureReason = FailureBurnFailed
	assert.False(t, burn.CanRetryMint())
}

func TestConversion_OneToOne(t *testing.T) {
	c := Conversion{FiatDecimals: 2, TokenDecimals: 2, TokenSymbol: "TGBP"}

	assert.Equal(t, "10000", c.ToToken(10000).String())

	fiat, err := c.ToFiat(big.NewInt(5000))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), fiat)

	assert.Equal(t, "50.00 TGBP", c.Format(big.NewInt(5000)))
}

func TestConversion_EighteenDecimalToken(t *testing.T) {
	c := Conversion{FiatDecimals: 2, TokenDecimals: 18}

	tokens := c.ToToken(150)
	assert.Equal(t, "1500000000000000000", tokens.String())

	fiat, err := c.ToFiat(tokens)
	require.NoError(t, err)
	assert.Equal(t, int64(150), fiat)
}

func TestConversion_ToFiatRoundsDown(t *testing.T) {
	c := Conversion{FiatDecimals: 2, TokenDecimals: 4}

	fiat, err := c.ToFiat(big.NewInt(12399))
	require.NoError(t, err)
	assert.Equal(t, int64(123), fiat)
}

func TestConversion_ToFiatOverflow(t *testing.T) {
	c := Conversion{FiatDecimals: 2, TokenDecimals: 2}
	huge, _ := new(big.Int).SetString("100000000000000000000000", 10)

	_, err := c.ToFiat(huge)
	assert.Error(t, err)
}

func TestPoolWallet_IsAvailable(t *testing.T) {
	assert.True(t, (&PoolWallet{}).IsAvailable())
	assert.False(t, (&PoolWallet{Allocated: true}).IsAvailable())
}
