package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Conversion maps fiat minor units to token minor units by decimal shift.
// With equal decimals the rate is 1 minor fiat unit : 1 token minor unit.
type Conversion struct {
	FiatDecimals  int32
	TokenDecimals int32
	TokenSymbol   string
}

// ToToken converts a fiat amount to tokens. Any sub-unit remainder is dropped.
func (c Conversion) ToToken(fiatMinor int64) *big.Int {
	return decimal.New(fiatMinor, c.TokenDecimals-c.FiatDecimals).BigInt()
}

// ToFiat converts a token amount to fiat minor units, rounding down so a
// payout never exceeds what was burned.
func (c Conversion) ToFiat(tokens *big.Int) (int64, error) {
	d := decimal.NewFromBigInt(tokens, c.FiatDecimals-c.TokenDecimals).Floor()
	if !d.BigInt().IsInt64() {
		return 0, fmt.Errorf("token amount %s overflows fiat minor units", tokens)
	}
	return d.IntPart(), nil
}

// Format renders a token amount in whole units, e.g. "50.00 TGBP".
func (c Conversion) Format(tokens *big.Int) string {
	s := decimal.NewFromBigInt(tokens, -c.TokenDecimals).StringFixed(c.TokenDecimals)
	if c.TokenSymbol == "" {
		return s
	}
	return s + " " + c.TokenSymbol
}
