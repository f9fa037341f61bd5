package custody

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	bip39 "github.com/tyler-smith/go-bip39"
)

// HDKeyStore derives custodial keys from a BIP-39 mnemonic along
// m/44'/60'/0'/0/i.
type HDKeyStore struct {
	external *hdkeychain.ExtendedKey
	index    map[common.Address]uint32
}

// NewHDKeyStore indexes the first scanLimit addresses so SignerFor can map an
// address back to its derivation index.
func NewHDKeyStore(mnemonic, passphrase string, scanLimit uint32) (*HDKeyStore, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)

	// hdkeychain's network params only affect serialization, not derivation.
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}

	key := master
	for _, idx := range []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + 0,
		0,
	} {
		if key, err = key.Derive(idx); err != nil {
			return nil, fmt.Errorf("derive account path: %w", err)
		}
	}

	ks := &HDKeyStore{external: key, index: make(map[common.Address]uint32, scanLimit)}
	for i := uint32(0); i < scanLimit; i++ {
		addr, err := ks.Derive(i)
		if err != nil {
			return nil, err
		}
		ks.index[addr] = i
	}
	return ks, nil
}

// Derive returns the address at index i.
func (ks *HDKeyStore) Derive(i uint32) (common.Address, error) {
	key, err := ks.privateKey(i)
	if err != nil {
		return common.Address{}, err
	}
	return pubkeyAddress(key), nil
}

// Wallets returns n pool wallets starting at index from.
func (ks *HDKeyStore) Wallets(from, n uint32) ([]domain.PoolWallet, error) {
	out := make([]domain.PoolWallet, 0, n)
	for i := from; i < from+n; i++ {
		addr, err := ks.Derive(i)
		if err != nil {
			return nil, err
		}
		idx := i
		out = append(out, domain.PoolWallet{Address: addr.Hex(), DerivationIndex: &idx})
	}
	return out, nil
}

func (ks *HDKeyStore) SignerFor(ctx context.Context, address string) (ports.Signer, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q is not an address", ports.ErrSignerNotFound, address)
	}
	addr := common.HexToAddress(address)
	i, ok := ks.index[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s is outside the scanned range", ports.ErrSignerNotFound, addr.Hex())
	}
	return &signer{
		address: addr,
		key:     func() (*ecdsa.PrivateKey, error) { return ks.privateKey(i) },
	}, nil
}

func (ks *HDKeyStore) privateKey(i uint32) (*ecdsa.PrivateKey, error) {
	child, err := ks.external.Derive(i)
	if err != nil {
		return nil, fmt.Errorf("derive index %d: %w", i, err)
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("private key %d: %w", i, err)
	}
	return crypto.ToECDSA(priv.Serialize())
}
