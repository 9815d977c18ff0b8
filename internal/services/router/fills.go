package router

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/hxuan190/fill-router/internal/domain"
)

type SourceFlagSet struct {
	Flags         domain.FillFlags
	ExclusionMask domain.FillFlags
}

// SourceFlags maps sources to their exclusion groups.
// Kyber reserves route through Uniswap and Eth2Dai, so touching one rules out the others.
var SourceFlags = map[domain.Source]SourceFlagSet{
	domain.SourceUniswap:   {Flags: domain.FlagUniswap, ExclusionMask: domain.FlagKyber},
	domain.SourceUniswapV2: {Flags: domain.FlagUniswapV2},
	domain.SourceEth2Dai:   {Flags: domain.FlagEth2Dai, ExclusionMask: domain.FlagKyber},
	domain.SourceKyber:     {Flags: domain.FlagKyber, ExclusionMask: domain.FlagUniswap | domain.FlagEth2Dai},
	domain.SourceNative:    {Flags: domain.FlagNative},
}

// FillsFromSamples turns per-source sample curves into one fill pool.
// Every source becomes a parent chain of marginal fills; a chain ends at the first sample
// whose output is zero or does not increase. Only the chain root carries the source penalty,
// negated on buys so that minimizing cost still charges it.
func FillsFromSamples(side domain.Side, samples [][]domain.QuoteSample, penalties map[domain.Source]decimal.Decimal) []domain.Fill {
	pool := make([]domain.Fill, 0)
	for _, curve := range samples {
		var prev *domain.QuoteSample
		for i := range curve {
			sample := &curve[i]
			if sample.Input == nil || sample.Output == nil || sample.Output.Sign() <= 0 {
				break
			}
			if prev != nil && prev.Output.Cmp(sample.Output) >= 0 {
				break
			}

			input := toDecimal(sample.Input)
			output := toDecimal(sample.Output)
			parent := domain.NoParent
			penalty := decimal.Zero
			if prev != nil {
				input = input.Sub(toDecimal(prev.Input))
				output = output.Sub(toDecimal(prev.Output))
				parent = len(pool) - 1
			} else if p, ok := penalties[sample.Source]; ok {
				penalty = p
				if side == domain.SideBuy {
					penalty = p.Neg()
				}
			}
			if !input.IsPositive() {
				break
			}

			flags := SourceFlags[sample.Source]
			pool = append(pool, domain.Fill{
				Source:        sample.Source,
				Input:         input,
				Output:        output,
				FillPenalty:   penalty,
				Parent:        parent,
				Flags:         flags.Flags,
				ExclusionMask: flags.ExclusionMask,
				Index:         i,
			})
			prev = sample
		}
	}
	return pool
}

func toDecimal(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, 0)
}
