package sampler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	testMakerToken = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	testTakerToken = common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	testSampler    = common.HexToAddress("0x0000000000000000000000000000000000005a31")
)

// rates in basis points per sampling method suffix
var fakeSourceRates = map[string]int64{
	"Uniswap":      9900,
	"UniswapV2":    9800,
	"Eth2Dai":      9700,
	"KyberNetwork": 10100,
}

// fakeContract answers sampler calls in process the way the deployed contract would.
type fakeContract struct {
	abi *abi.ABI

	batches   atomic.Int64
	lastCalls atomic.Int64

	// corrupt replaces the result at this top level position when non-negative
	corrupt int
	// drop removes the last result when set
	drop bool
}

func newFakeContract(s *Sampler) *fakeContract {
	return &fakeContract{abi: s.ABI(), corrupt: -1}
}

func (f *fakeContract) BatchCall(ctx context.Context, calls [][]byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.batches.Add(1)
	f.lastCalls.Store(int64(len(calls)))

	results := make([][]byte, len(calls))
	for i, call := range calls {
		result, err := f.execute(call)
		if err != nil {
			return nil, err
		}
		results[i] = result
	}
	if f.corrupt >= 0 && f.corrupt < len(results) {
		results[f.corrupt] = []byte{0xde, 0xad}
	}
	if f.drop && len(results) > 0 {
		results = results[:len(results)-1]
	}
	return results, nil
}

func (f *fakeContract) execute(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("short call data")
	}
	method, err := f.abi.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}

	if method.Name == batchCallMethod {
		subCalls := args[0].([][]byte)
		subResults := make([][]byte, len(subCalls))
		for i, sub := range subCalls {
			if subResults[i], err = f.execute(sub); err != nil {
				return nil, err
			}
		}
		return method.Outputs.Pack(subResults)
	}

	amounts := args[len(args)-1].([]*big.Int)
	outputs := make([]*big.Int, len(amounts))
	for i, amount := range amounts {
		outputs[i] = fakeQuote(method.Name, amount)
	}
	return method.Outputs.Pack(outputs)
}

func fakeQuote(method string, amount *big.Int) *big.Int {
	buy := strings.HasPrefix(method, "sampleBuysFrom")
	suffix := strings.TrimPrefix(strings.TrimPrefix(method, "sampleSellsFrom"), "sampleBuysFrom")
	rate, ok := fakeSourceRates[suffix]
	if !ok {
		panic(fmt.Sprintf("no rate for %s", method))
	}
	out := new(big.Int).Set(amount)
	if buy {
		out.Mul(out, big.NewInt(10000))
		return out.Quo(out, big.NewInt(rate))
	}
	out.Mul(out, big.NewInt(rate))
	return out.Quo(out, big.NewInt(10000))
}

type failingCaller struct {
	err error
}

func (c failingCaller) BatchCall(context.Context, [][]byte) ([][]byte, error) {
	return nil, c.err
}
