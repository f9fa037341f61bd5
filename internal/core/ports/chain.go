package ports

//go:generate mockgen -source=chain.go -destination=mocks/mock_chain.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"fiat-token-bridge/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrEventNotFound means no log in the receipt matched the contract and event.
	ErrEventNotFound = errors.New("event not found in receipt")
	// ErrSignerNotFound means the key store holds no key for the address.
	ErrSignerNotFound = errors.New("signer not found")
	// ErrConfirmationTimeout means the transaction was not mined within the bound.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	// ErrTxReverted means the transaction was mined with a failed status, or
	// gas estimation showed it would be.
	ErrTxReverted = errors.New("transaction reverted")
	// ErrTxRejected means a node refused the transaction outright. It was
	// never accepted into a mempool.
	ErrTxRejected = errors.New("transaction rejected")
	// ErrChainUnavailable means every RPC endpoint failed at the connection level.
	ErrChainUnavailable = errors.New("no rpc endpoint reachable")
	// ErrNonceConflict means the node refused the transaction because another
	// transaction from the same signer holds its nonce. The refused one was
	// not accepted, so it can be signed again with a fresh nonce.
	ErrNonceConflict = errors.New("nonce already in use")
	// ErrNonceSpent is the ErrNonceConflict case where the nonce is already
	// mined by a different transaction. The refused one can never be mined.
	ErrNonceSpent = fmt.Errorf("%w: spent on chain", ErrNonceConflict)
)

// Signer signs transactions for one custodial address.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeyStore hands out signers by address. Key material never leaves it.
type KeyStore interface {
	SignerFor(ctx context.Context, address string) (Signer, error)
}

// ChainClient talks to the token contract through one or more RPC endpoints.
type ChainClient interface {
	// Prepare builds and signs a contract call without broadcasting it.
	// Arguments declared as address in the ABI may be passed as hex strings.
	Prepare(ctx context.Context, signer Signer, method string, args ...any) (*domain.PendingTx, error)
	// Submit broadcasts a prepared transaction. Rebroadcasting is safe.
	Submit(ctx context.Context, tx *domain.PendingTx) error
	// AwaitConfirmation polls for the receipt. Returns ErrConfirmationTimeout
	// after timeout and ErrTxReverted for a failed receipt.
	AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*domain.ChainReceipt, error)
	// ReceiptByHash returns nil, nil while the transaction is not mined.
	ReceiptByHash(ctx context.Context, txHash string) (*domain.ChainReceipt, error)
	// DecodeEvent returns the fields of the first log emitted by the token
	// contract for eventName, or ErrEventNotFound.
	DecodeEvent(receipt *domain.ChainReceipt, eventName string) (map[string]any, error)
	BalanceOf(ctx context.Context, address string) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
}
