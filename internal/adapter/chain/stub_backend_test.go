package chain

import (
	"context"
	"math/big"
	"net/url"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var errConnRefused = &url.Error{Op: "Post", URL: "http://node", Err: syscall.ECONNREFUSED}

type stubBackend struct {
	mu          sync.Mutex
	nonce       uint64
	gasPrice    *big.Int
	gas         uint64
	nonceErr    error
	estimateErr error
	sendErr     error
	blockErr    error
	receiptErr  error
	callOut     []byte
	callErr     error
	sent        []*types.Transaction
	receipts    map[common.Hash]*types.Receipt
	calls       int
	closed      bool
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		nonce:    7,
		gasPrice: big.NewInt(1_000_000_000),
		gas:      50_000,
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (s *stubBackend) hit() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *stubBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	s.hit()
	return s.nonce, s.nonceErr
}

func (s *stubBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return s.gasPrice, nil
}

func (s *stubBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return s.gas, s.estimateErr
}

func (s *stubBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	s.hit()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, tx)
	return nil
}

func (s *stubBackend) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	s.hit()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receiptErr != nil {
		return nil, s.receiptErr
	}
	r, ok := s.receipts[h]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (s *stubBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	s.hit()
	return s.callOut, s.callErr
}

func (s *stubBackend) BlockNumber(context.Context) (uint64, error) {
	s.hit()
	return 100, s.blockErr
}

func (s *stubBackend) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *stubBackend) setReceipt(r *types.Receipt) {
	s.mu.Lock()
	s.receipts[r.TxHash] = r
	s.mu.Unlock()
}

// stubDialer maps URLs to backends.
func stubDialer(backends map[string]*stubBackend) Dialer {
	return func(_ context.Context, rawURL string) (Backend, error) {
		b, ok := backends[rawURL]
		if !ok {
			return nil, errConnRefused
		}
		return b, nil
	}
}
