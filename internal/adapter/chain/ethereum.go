package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/pkg/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

// gasBufferPercent is added on top of the node's gas estimate.
const gasBufferPercent = 20

// EthereumClient implements ports.ChainClient against a JSON-RPC node set.
// Nonces are tracked per signer, so concurrent calls sharing a key get
// distinct nonces.
type EthereumClient struct {
	endpoints    *EndpointSelector
	nonces       *nonceTracker
	contract     *contract
	chainID      *big.Int
	pollInterval time.Duration
	metrics      *metrics.Recorder
	log          zerolog.Logger
}

func NewEthereumClient(
	endpoints *EndpointSelector,
	contractAddress string,
	chainID int64,
	pollInterval time.Duration,
	m *metrics.Recorder,
	log zerolog.Logger,
) (*EthereumClient, error) {
	c, err := newContract(contractAddress)
	if err != nil {
		return nil, err
	}
	if chainID <= 0 {
		return nil, fmt.Errorf("invalid chain id %d", chainID)
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &EthereumClient{
		endpoints:    endpoints,
		nonces:       newNonceTracker(),
		contract:     c,
		chainID:      big.NewInt(chainID),
		pollInterval: pollInterval,
		metrics:      m,
		log:          log,
	}, nil
}

func (c *EthereumClient) Prepare(ctx context.Context, signer ports.Signer, method string, args ...any) (*domain.PendingTx, error) {
	data, err := c.contract.pack(method, args...)
	if err != nil {
		return nil, err
	}
	from := signer.Address()
	to := c.contract.address

	var (
		pending  uint64
		gasPrice *big.Int
		gas      uint64
	)
	err = c.endpoints.Do(ctx, func(b Backend) error {
		var err error
		if pending, err = b.PendingNonceAt(ctx, from); err != nil {
			return err
		}
		if gasPrice, err = b.SuggestGasPrice(ctx); err != nil {
			return err
		}
		gas, err = b.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
		if err != nil && !isConnectionError(err) {
			return fmt.Errorf("%w: estimate %s: %v", ports.ErrTxReverted, method, err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	nonce := c.nonces.reserve(from, pending)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas + gas*gasBufferPercent/100,
		To:       &to,
		Data:     data,
	})
	signed, err := signer.SignTx(tx, c.chainID)
	if err != nil {
		c.nonces.unreserve(from, nonce)
		return nil, fmt.Errorf("sign %s: %w", method, err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		c.nonces.unreserve(from, nonce)
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}

	return &domain.PendingTx{
		Hash:   signed.Hash().Hex(),
		From:   from.Hex(),
		Method: method,
		Nonce:  nonce,
		Raw:    raw,
	}, nil
}

// Submit broadcasts a prepared transaction. A refusal caused by another
// transaction holding the nonce is reported as ports.ErrNonceConflict (or
// ports.ErrNonceSpent once mined) and resets the signer's local nonce.
func (c *EthereumClient) Submit(ctx context.Context, pending *domain.PendingTx) error {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(pending.Raw); err != nil {
		return fmt.Errorf("decode raw tx %s: %w", pending.Hash, err)
	}
	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return fmt.Errorf("recover sender %s: %w", pending.Hash, err)
	}

	return c.endpoints.Do(ctx, func(b Backend) error {
		err := b.SendTransaction(ctx, tx)
		switch {
		case err == nil, isAlreadyKnown(err):
			return nil
		case isConnectionError(err):
			return err
		case isNonceTooLow(err):
			// The nonce is spent. Fine if it was spent by this very tx.
			if r, rerr := b.TransactionReceipt(ctx, tx.Hash()); rerr == nil && r != nil {
				return nil
			}
			c.nonces.reset(from)
			return fmt.Errorf("%w: %s nonce %d: %v", ports.ErrNonceSpent, pending.Hash, tx.Nonce(), err)
		case isNonceTaken(err):
			c.nonces.reset(from)
			return fmt.Errorf("%w: %s nonce %d: %v", ports.ErrNonceConflict, pending.Hash, tx.Nonce(), err)
		}
		return fmt.Errorf("%w: %s: %v", ports.ErrTxRejected, pending.Hash, err)
	})
}

func (c *EthereumClient) AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*domain.ChainReceipt, error) {
	return awaitReceipt(ctx, c, txHash, timeout, c.pollInterval, c.metrics, c.log)
}

func (c *EthereumClient) ReceiptByHash(ctx context.Context, txHash string) (*domain.ChainReceipt, error) {
	var receipt *types.Receipt
	err := c.endpoints.Do(ctx, func(b Backend) error {
		r, err := b.TransactionReceipt(ctx, common.HexToHash(txHash))
		if errors.Is(err, ethereum.NotFound) {
			return nil
		}
		receipt = r
		return err
	})
	if err != nil || receipt == nil {
		return nil, err
	}
	return toReceipt(receipt), nil
}

func (c *EthereumClient) DecodeEvent(receipt *domain.ChainReceipt, eventName string) (map[string]any, error) {
	return c.contract.decodeEvent(receipt, eventName)
}

func (c *EthereumClient) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	return c.callUint(ctx, "balanceOf", address)
}

func (c *EthereumClient) TotalSupply(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "totalSupply")
}

func (c *EthereumClient) callUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	data, err := c.contract.pack(method, args...)
	if err != nil {
		return nil, err
	}
	to := c.contract.address

	var out []byte
	err = c.endpoints.Do(ctx, func(b Backend) error {
		var err error
		out, err = b.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return c.contract.unpackUint(method, out)
}

// Ping implements ports.HealthChecker.
func (c *EthereumClient) Ping(ctx context.Context) error {
	return c.endpoints.Do(ctx, func(b Backend) error {
		_, err := b.BlockNumber(ctx)
		return err
	})
}

func (c *EthereumClient) Name() string {
	return "rpc"
}

type receiptSource interface {
	ReceiptByHash(ctx context.Context, txHash string) (*domain.ChainReceipt, error)
}

// awaitReceipt polls src until the receipt appears or timeout passes. A
// cancelled parent context wins over the timeout.
func awaitReceipt(
	ctx context.Context,
	src receiptSource,
	txHash string,
	timeout, poll time.Duration,
	m *metrics.Recorder,
	log zerolog.Logger,
) (*domain.ChainReceipt, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		r, err := src.ReceiptByHash(ctx, txHash)
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("tx_hash", txHash).Msg("Receipt poll failed")
		}
		if r != nil {
			m.ObserveConfirmation(time.Since(start))
			if !r.Confirmed {
				return r, fmt.Errorf("%w: %s", ports.ErrTxReverted, txHash)
			}
			return r, nil
		}

		select {
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s after %s", ports.ErrConfirmationTimeout, txHash, timeout)
		case <-ticker.C:
		}
	}
}

func isAlreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") ||
		strings.Contains(msg, "known transaction") ||
		strings.Contains(msg, "already imported")
}

func isNonceTooLow(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "nonce too low")
}

// isNonceTaken matches a mempool already holding another transaction with
// the same sender and nonce.
func isNonceTaken(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "replacement transaction underpriced") ||
		strings.Contains(msg, "nonce already used") ||
		strings.Contains(msg, "already exists with same nonce")
}
