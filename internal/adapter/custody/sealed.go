package custody

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"fiat-token-bridge/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SealedKeyStore keeps private keys AES-256-GCM sealed and opens one only
// for the duration of a SignTx call.
type SealedKeyStore struct {
	enc    ports.EncryptionService
	sealed map[common.Address]string
}

// NewSealedKeyStore parses "address:ciphertext" entries. Every entry is
// opened once to check that the key matches its address.
func NewSealedKeyStore(entries []string, enc ports.EncryptionService) (*SealedKeyStore, error) {
	ks := &SealedKeyStore{enc: enc, sealed: make(map[common.Address]string, len(entries))}
	for i, entry := range entries {
		addrHex, sealed, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || !common.IsHexAddress(addrHex) || sealed == "" {
			return nil, fmt.Errorf("custody key %d: expected address:ciphertext", i)
		}
		address := common.HexToAddress(addrHex)

		key, err := ks.open(sealed)
		if err != nil {
			return nil, fmt.Errorf("custody key %d (%s): %w", i, address.Hex(), err)
		}
		if pubkeyAddress(key) != address {
			return nil, fmt.Errorf("custody key %d: key does not match %s", i, address.Hex())
		}
		ks.sealed[address] = sealed
	}
	return ks, nil
}

// Seal encrypts a hex private key into a store entry.
func Seal(enc ports.EncryptionService, privateKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	sealed, err := enc.Encrypt(common.Bytes2Hex(crypto.FromECDSA(key)))
	if err != nil {
		return "", fmt.Errorf("seal private key: %w", err)
	}
	return pubkeyAddress(key).Hex() + ":" + sealed, nil
}

func (ks *SealedKeyStore) SignerFor(ctx context.Context, address string) (ports.Signer, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q is not an address", ports.ErrSignerNotFound, address)
	}
	addr := common.HexToAddress(address)
	sealed, ok := ks.sealed[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrSignerNotFound, addr.Hex())
	}
	return &signer{
		address: addr,
		key:     func() (*ecdsa.PrivateKey, error) { return ks.open(sealed) },
	}, nil
}

// Addresses lists the custodied addresses, for seeding the wallet pool.
func (ks *SealedKeyStore) Addresses() []common.Address {
	out := make([]common.Address, 0, len(ks.sealed))
	for a := range ks.sealed {
		out = append(out, a)
	}
	return out
}

func (ks *SealedKeyStore) open(sealed string) (*ecdsa.PrivateKey, error) {
	plain, err := ks.enc.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("unseal: %w", err)
	}
	return crypto.HexToECDSA(plain)
}

func pubkeyAddress(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
