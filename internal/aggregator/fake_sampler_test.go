package aggregator

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/hxuan190/fill-router/internal/services/sampler"
)

var (
	testMaker   = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	testTaker   = common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	testSampler = common.HexToAddress("0x0000000000000000000000000000000000005a31")
)

// basis points of output per unit of input, keyed by sampling method suffix
var sourceRates = map[string]int64{
	"Uniswap":      9900,
	"UniswapV2":    9800,
	"Eth2Dai":      9700,
	"KyberNetwork": 10100,
}

// linearSampler prices every source at a flat rate. A source with a depth only fills
// sells up to that amount.
type linearSampler struct {
	abi     *abi.ABI
	batches atomic.Int64
	dry     bool
	depth   map[string]int64
}

func (f *linearSampler) BatchCall(ctx context.Context, calls [][]byte) ([][]byte, error) {
	f.batches.Add(1)
	results := make([][]byte, len(calls))
	for i, call := range calls {
		out, err := f.execute(call)
		if err != nil {
			return nil, err
		}
		results[i] = out
	}
	return results, nil
}

func (f *linearSampler) execute(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("short call")
	}
	method, err := f.abi.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	if method.Name == "batchCall" {
		subs := args[0].([][]byte)
		results := make([][]byte, len(subs))
		for i, sub := range subs {
			if results[i], err = f.execute(sub); err != nil {
				return nil, err
			}
		}
		return method.Outputs.Pack(results)
	}

	buy := strings.HasPrefix(method.Name, "sampleBuysFrom")
	source := strings.TrimPrefix(strings.TrimPrefix(method.Name, "sampleSellsFrom"), "sampleBuysFrom")
	rate := sourceRates[source]
	amounts := args[len(args)-1].([]*big.Int)
	outputs := make([]*big.Int, len(amounts))
	for i, amount := range amounts {
		out := new(big.Int)
		switch {
		case f.dry:
		case buy:
			out.Mul(amount, big.NewInt(10000)).Quo(out, big.NewInt(rate))
		default:
			filled := amount
			if d, ok := f.depth[source]; ok && amount.Int64() > d {
				filled = big.NewInt(d)
			}
			out.Mul(filled, big.NewInt(rate)).Quo(out, big.NewInt(10000))
		}
		outputs[i] = out
	}
	return method.Outputs.Pack(outputs)
}

type staticGasPrice struct {
	price *big.Int
	err   error
}

func (g staticGasPrice) GetGasPrice(context.Context) (*big.Int, error) {
	if g.err != nil {
		return nil, g.err
	}
	return new(big.Int).Set(g.price), nil
}

func newLinearSampler() (*sampler.Sampler, *linearSampler) {
	s, err := sampler.NewSampler(testSampler)
	if err != nil {
		panic(err)
	}
	return s, &linearSampler{abi: s.ABI()}
}
