package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

// FakeClient is an in-process token ledger. It signs and hashes transactions
// like a real node and emits ABI-encoded Minted and Burned logs, so
// everything above the ChainClient port runs unchanged against it.
type FakeClient struct {
	mu        sync.Mutex
	contract  *contract
	chainID   *big.Int
	balances  map[common.Address]*big.Int
	supply    *big.Int
	nonces    map[common.Address]uint64
	mempool   []*types.Transaction
	known     map[common.Hash]bool
	receipts  map[common.Hash]*types.Receipt
	block     uint64
	hold      bool
	submitErr error
	collide   int
	poll      time.Duration
	log       zerolog.Logger
}

func NewFakeClient(contractAddress string, chainID int64, log zerolog.Logger) (*FakeClient, error) {
	c, err := newContract(contractAddress)
	if err != nil {
		return nil, err
	}
	return &FakeClient{
		contract: c,
		chainID:  big.NewInt(chainID),
		balances: make(map[common.Address]*big.Int),
		supply:   new(big.Int),
		nonces:   make(map[common.Address]uint64),
		known:    make(map[common.Hash]bool),
		receipts: make(map[common.Hash]*types.Receipt),
		poll:     10 * time.Millisecond,
		log:      log,
	}, nil
}

// HoldReceipts stops automatic mining; submitted transactions wait for Mine.
func (f *FakeClient) HoldReceipts(hold bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = hold
}

// FailSubmit makes every Submit return err until called again with nil.
func (f *FakeClient) FailSubmit(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErr = err
}

// CollideNonces makes the next n new transactions be refused as if another
// transaction from the same signer already held their nonce.
func (f *FakeClient) CollideNonces(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collide = n
}

// Mine executes every transaction waiting in the mempool, in order.
func (f *FakeClient) Mine() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mineLocked()
}

// Pending returns the number of broadcast but unmined transactions.
func (f *FakeClient) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.mempool)
}

func (f *FakeClient) Prepare(_ context.Context, signer ports.Signer, method string, args ...any) (*domain.PendingTx, error) {
	data, err := f.contract.pack(method, args...)
	if err != nil {
		return nil, err
	}
	from := signer.Address()

	f.mu.Lock()
	if method == domain.MethodBurn {
		if err := f.checkBurnLocked(data); err != nil {
			f.mu.Unlock()
			return nil, err
		}
	}
	nonce := f.nonces[from]
	f.nonces[from] = nonce + 1
	f.mu.Unlock()

	to := f.contract.address
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(1),
		Gas:      100_000,
		To:       &to,
		Data:     data,
	})
	signed, err := signer.SignTx(tx, f.chainID)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", method, err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &domain.PendingTx{
		Hash:   signed.Hash().Hex(),
		From:   from.Hex(),
		Method: method,
		Nonce:  nonce,
		Raw:    raw,
	}, nil
}

func (f *FakeClient) Submit(_ context.Context, pending *domain.PendingTx) error {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(pending.Raw); err != nil {
		return fmt.Errorf("decode raw tx %s: %w", pending.Hash, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitErr != nil {
		return f.submitErr
	}
	if f.known[tx.Hash()] {
		return nil
	}
	if f.collide > 0 {
		f.collide--
		return fmt.Errorf("%w: %s nonce %d: replacement transaction underpriced", ports.ErrNonceConflict, pending.Hash, tx.Nonce())
	}
	f.known[tx.Hash()] = true
	f.mempool = append(f.mempool, tx)
	if !f.hold {
		f.mineLocked()
	}
	return nil
}

func (f *FakeClient) AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*domain.ChainReceipt, error) {
	return awaitReceipt(ctx, f, txHash, timeout, f.poll, nil, f.log)
}

func (f *FakeClient) ReceiptByHash(_ context.Context, txHash string) (*domain.ChainReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[common.HexToHash(txHash)]
	if !ok {
		return nil, nil
	}
	return toReceipt(r), nil
}

func (f *FakeClient) DecodeEvent(receipt *domain.ChainReceipt, eventName string) (map[string]any, error) {
	return f.contract.decodeEvent(receipt, eventName)
}

func (f *FakeClient) BalanceOf(_ context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balanceLocked(common.HexToAddress(address))), nil
}

func (f *FakeClient) TotalSupply(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.supply), nil
}

func (f *FakeClient) balanceLocked(addr common.Address) *big.Int {
	if b, ok := f.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (f *FakeClient) checkBurnLocked(data []byte) error {
	holder, amount, err := f.unpackTransfer(domain.MethodBurn, data)
	if err != nil {
		return err
	}
	if f.balanceLocked(holder).Cmp(amount) < 0 {
		return fmt.Errorf("%w: burn amount exceeds balance", ports.ErrTxReverted)
	}
	return nil
}

func (f *FakeClient) unpackTransfer(method string, data []byte) (common.Address, *big.Int, error) {
	m := f.contract.abi.Methods[method]
	vals, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return vals[0].(common.Address), vals[1].(*big.Int), nil
}

func (f *FakeClient) mineLocked() {
	for _, tx := range f.mempool {
		f.block++
		f.receipts[tx.Hash()] = f.executeLocked(tx)
	}
	f.mempool = nil
}

func (f *FakeClient) executeLocked(tx *types.Transaction) *types.Receipt {
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(f.block),
	}

	data := tx.Data()
	if len(data) < 4 {
		return receipt
	}
	method, err := f.contract.abi.MethodById(data[:4])
	if err != nil {
		return receipt
	}
	holder, amount, err := f.unpackTransfer(method.Name, data)
	if err != nil {
		return receipt
	}

	var event string
	switch method.Name {
	case domain.MethodMint:
		f.balances[holder] = new(big.Int).Add(f.balanceLocked(holder), amount)
		f.supply = new(big.Int).Add(f.supply, amount)
		event = domain.EventMinted
	case domain.MethodBurn:
		bal := f.balanceLocked(holder)
		if bal.Cmp(amount) < 0 {
			return receipt
		}
		f.balances[holder] = new(big.Int).Sub(bal, amount)
		f.supply = new(big.Int).Sub(f.supply, amount)
		event = domain.EventBurned
	default:
		return receipt
	}

	logData, err := f.contract.abi.Events[event].Inputs.NonIndexed().Pack(amount)
	if err != nil {
		return receipt
	}
	receipt.Status = types.ReceiptStatusSuccessful
	receipt.Logs = []*types.Log{{
		Address:     f.contract.address,
		Topics:      []common.Hash{f.contract.abi.Events[event].ID, common.BytesToHash(holder.Bytes())},
		Data:        logData,
		TxHash:      tx.Hash(),
		BlockNumber: f.block,
	}}
	return receipt
}
