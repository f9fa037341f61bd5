package chain

import (
	"fmt"
	"math/big"
	"strings"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TokenABI is the subset of the token contract the bridge calls.
const TokenABI = `[
  {"type":"function","name":"mint","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"burn","stateMutability":"nonpayable",
   "inputs":[{"name":"from","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"Minted","anonymous":false,
   "inputs":[{"name":"to","type":"address","indexed":true},{"name":"tokenAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"Burned","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},{"name":"tokenAmount","type":"uint256","indexed":false}]}
]`

type contract struct {
	abi     abi.ABI
	address common.Address
}

func newContract(address string) (*contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}
	parsed, err := abi.JSON(strings.NewReader(TokenABI))
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}
	return &contract{abi: parsed, address: common.HexToAddress(address)}, nil
}

// pack encodes a call, coercing hex strings to addresses and Go integers
// to *big.Int where the ABI expects them.
func (c *contract) pack(method string, args ...any) ([]byte, error) {
	m, ok := c.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("unknown contract method %q", method)
	}
	if len(args) != len(m.Inputs) {
		return nil, fmt.Errorf("%s: want %d arguments, got %d", method, len(m.Inputs), len(args))
	}

	coerced := make([]any, len(args))
	for i, arg := range args {
		v, err := coerce(m.Inputs[i].Type, arg)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %s: %w", method, m.Inputs[i].Name, err)
		}
		coerced[i] = v
	}
	return c.abi.Pack(method, coerced...)
}

func coerce(t abi.Type, arg any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if s, ok := arg.(string); ok {
			if !common.IsHexAddress(s) {
				return nil, fmt.Errorf("invalid address %q", s)
			}
			return common.HexToAddress(s), nil
		}
	case abi.UintTy, abi.IntTy:
		switch v := arg.(type) {
		case int64:
			return big.NewInt(v), nil
		case int:
			return big.NewInt(int64(v)), nil
		case uint64:
			return new(big.Int).SetUint64(v), nil
		case string:
			n, ok := new(big.Int).SetString(v, 10)
			if !ok {
				return nil, fmt.Errorf("invalid integer %q", v)
			}
			return n, nil
		}
	}
	return arg, nil
}

func (c *contract) unpackUint(method string, data []byte) (*big.Int, error) {
	out, err := c.abi.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unpack %s: want 1 value, got %d", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, out[0])
	}
	return v, nil
}

// decodeEvent returns the fields of the first log from this contract whose
// topic0 is the event's ID. Indexed fields come from the topics.
func (c *contract) decodeEvent(receipt *domain.ChainReceipt, name string) (map[string]any, error) {
	event, ok := c.abi.Events[name]
	if !ok {
		return nil, fmt.Errorf("unknown contract event %q", name)
	}
	if receipt == nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrEventNotFound, name)
	}

	var indexed abi.Arguments
	for _, in := range event.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}

	for _, l := range receipt.Logs {
		if !common.IsHexAddress(l.Address) || common.HexToAddress(l.Address) != c.address {
			continue
		}
		if len(l.Topics) == 0 || common.HexToHash(l.Topics[0]) != event.ID {
			continue
		}

		fields := make(map[string]any)
		if err := c.abi.UnpackIntoMap(fields, name, l.Data); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", name, err)
		}
		topics := make([]common.Hash, 0, len(l.Topics)-1)
		for _, t := range l.Topics[1:] {
			topics = append(topics, common.HexToHash(t))
		}
		if err := abi.ParseTopicsIntoMap(fields, indexed, topics); err != nil {
			return nil, fmt.Errorf("decode %s topics: %w", name, err)
		}
		return fields, nil
	}
	return nil, fmt.Errorf("%w: %s", ports.ErrEventNotFound, name)
}

func toReceipt(r *types.Receipt) *domain.ChainReceipt {
	out := &domain.ChainReceipt{
		TxHash:    r.TxHash.Hex(),
		Confirmed: r.Status == types.ReceiptStatusSuccessful,
		Logs:      make([]domain.ChainLog, 0, len(r.Logs)),
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	for _, l := range r.Logs {
		topics := make([]string, len(l.Topics))
		for i, t := range l.Topics {
			topics[i] = t.Hex()
		}
		out.Logs = append(out.Logs, domain.ChainLog{
			Address: l.Address.Hex(),
			Topics:  topics,
			Data:    l.Data,
		})
	}
	return out
}
