package blockchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var ErrCallFailed = errors.New("sampler call failed")

// RPCBatcher is the part of *rpc.Client the sampler caller needs.
type RPCBatcher interface {
	BatchCallContext(ctx context.Context, b []rpc.BatchElem) error
}

type callArgs struct {
	To   *common.Address `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

// SamplerCaller sends every sampler call of a batch as one JSON-RPC batch of eth_call requests.
// The batch succeeds or fails as a whole.
type SamplerCaller struct {
	client  RPCBatcher
	address common.Address
	timeout time.Duration
	block   string
}

func NewSamplerCaller(client RPCBatcher, address common.Address, timeout time.Duration) *SamplerCaller {
	return &SamplerCaller{
		client:  client,
		address: address,
		timeout: timeout,
		block:   "latest",
	}
}

func (c *SamplerCaller) BatchCall(ctx context.Context, calls [][]byte) ([][]byte, error) {
	if len(calls) == 0 {
		return [][]byte{}, nil
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	results := make([]hexutil.Bytes, len(calls))
	elems := make([]rpc.BatchElem, len(calls))
	for i, data := range calls {
		elems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args:   []any{callArgs{To: &c.address, Data: data}, c.block},
			Result: &results[i],
		}
	}

	if err := c.client.BatchCallContext(ctx, elems); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCallFailed, err)
	}
	for i, elem := range elems {
		if elem.Error != nil {
			return nil, fmt.Errorf("%w: call %d: %w", ErrCallFailed, i, elem.Error)
		}
	}

	out := make([][]byte, len(results))
	for i, result := range results {
		out[i] = result
	}
	return out, nil
}
