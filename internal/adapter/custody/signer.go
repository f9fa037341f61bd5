// Package custody holds the custodial signing keys. Stores hand out
// ports.Signer values; raw private keys never leave the package.
package custody

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"fiat-token-bridge/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// keySource produces the private key at signing time.
type keySource func() (*ecdsa.PrivateKey, error)

type signer struct {
	address common.Address
	key     keySource
}

func (s *signer) Address() common.Address {
	return s.address
}

func (s *signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	key, err := s.key()
	if err != nil {
		return nil, fmt.Errorf("loading key for %s: %w", s.address.Hex(), err)
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
}

// NewKeySigner wraps an in-memory key. Used for the operator key and in tests.
func NewKeySigner(key *ecdsa.PrivateKey) ports.Signer {
	return &signer{
		address: pubkeyAddress(key),
		key:     func() (*ecdsa.PrivateKey, error) { return key, nil },
	}
}
