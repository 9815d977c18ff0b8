package sampler

import (
	_ "embed"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/hxuan190/fill-router/internal/domain"
)

//go:embed sampler_abi.json
var samplerABIJSON string

const batchCallMethod = "batchCall"

type sourceMethods struct {
	sells string
	buys  string
	// byPath methods take a token path instead of a taker/maker pair
	byPath bool
}

var sourceMethodTable = map[domain.Source]sourceMethods{
	domain.SourceUniswap:   {sells: "sampleSellsFromUniswap", buys: "sampleBuysFromUniswap"},
	domain.SourceUniswapV2: {sells: "sampleSellsFromUniswapV2", buys: "sampleBuysFromUniswapV2", byPath: true},
	domain.SourceEth2Dai:   {sells: "sampleSellsFromEth2Dai", buys: "sampleBuysFromEth2Dai"},
	domain.SourceKyber:     {sells: "sampleSellsFromKyberNetwork", buys: "sampleBuysFromKyberNetwork"},
}

// Sampler encodes and decodes calls against the on-chain sampler contract.
type Sampler struct {
	address common.Address
	abi     abi.ABI
}

func NewSampler(address common.Address) (*Sampler, error) {
	parsed, err := abi.JSON(strings.NewReader(samplerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse sampler abi: %w", err)
	}
	return &Sampler{address: address, abi: parsed}, nil
}

func (s *Sampler) Address() common.Address {
	return s.address
}

func (s *Sampler) ABI() *abi.ABI {
	return &s.abi
}

// SupportsSource reports whether the contract has sampling methods for source.
func SupportsSource(source domain.Source) bool {
	_, ok := sourceMethodTable[source]
	return ok
}

func SupportedSources() []domain.Source {
	return []domain.Source{domain.SourceUniswap, domain.SourceUniswapV2, domain.SourceEth2Dai, domain.SourceKyber}
}

func sampleMethod(source domain.Source, side domain.Side) (string, sourceMethods, error) {
	methods, ok := sourceMethodTable[source]
	if !ok {
		return "", methods, &UnsupportedSourceError{Source: source}
	}
	if side == domain.SideBuy {
		return methods.buys, methods, nil
	}
	return methods.sells, methods, nil
}

func (s *Sampler) encodeSample(source domain.Source, side domain.Side, makerToken, takerToken common.Address, amounts []*big.Int) ([]byte, error) {
	name, methods, err := sampleMethod(source, side)
	if err != nil {
		return nil, err
	}
	if err := checkAmounts(amounts); err != nil {
		return nil, err
	}

	var data []byte
	if methods.byPath {
		data, err = s.abi.Pack(name, []common.Address{takerToken, makerToken}, amounts)
	} else {
		data, err = s.abi.Pack(name, takerToken, makerToken, amounts)
	}
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}
	return data, nil
}

func (s *Sampler) decodeSample(source domain.Source, side domain.Side, raw []byte) ([]*big.Int, error) {
	name, _, err := sampleMethod(source, side)
	if err != nil {
		return nil, err
	}
	out, err := s.abi.Unpack(name, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", name, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedResult, name, len(out))
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrUnexpectedResult, name, out[0])
	}
	return amounts, nil
}

func (s *Sampler) encodeBatch(calls [][]byte) ([]byte, error) {
	data, err := s.abi.Pack(batchCallMethod, calls)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", batchCallMethod, err)
	}
	return data, nil
}

func (s *Sampler) decodeBatch(raw []byte) ([][]byte, error) {
	out, err := s.abi.Unpack(batchCallMethod, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", batchCallMethod, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedResult, batchCallMethod, len(out))
	}
	results, ok := out[0].([][]byte)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrUnexpectedResult, batchCallMethod, out[0])
	}
	return results, nil
}

func checkAmounts(amounts []*big.Int) error {
	for i, amount := range amounts {
		if amount == nil || amount.Sign() < 0 {
			return fmt.Errorf("%w: amount %d is %v", ErrAmountOverflow, i, amount)
		}
		if _, overflow := uint256.FromBig(amount); overflow {
			return fmt.Errorf("%w: amount %d is %s", ErrAmountOverflow, i, amount)
		}
	}
	return nil
}
