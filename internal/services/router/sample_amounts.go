package router

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultSampleDistributionBase spaces samples geometrically so that small fills are probed more densely.
var DefaultSampleDistributionBase = decimal.NewFromFloat(1.05)

// GetSampleAmounts returns numSamples increasing amounts ending exactly at maxFillAmount.
// Step i is weighted expBase^i; each cumulative fraction of maxFillAmount is rounded up to a whole unit.
// Arithmetic is done on exact rationals so rounding can never push the tail below the target.
func GetSampleAmounts(maxFillAmount *big.Int, numSamples int, expBase decimal.Decimal) []*big.Int {
	if numSamples <= 0 || maxFillAmount == nil {
		return []*big.Int{}
	}
	if !expBase.IsPositive() {
		expBase = decimal.NewFromInt(1)
	}

	base := expBase.Rat()
	weights := make([]*big.Rat, numSamples)
	total := new(big.Rat)
	weight := big.NewRat(1, 1)
	for i := range weights {
		weights[i] = weight
		total.Add(total, weight)
		weight = new(big.Rat).Mul(weight, base)
	}

	maxAmount := new(big.Rat).SetInt(maxFillAmount)
	cumulative := new(big.Rat)
	amounts := make([]*big.Int, numSamples)
	for i, w := range weights {
		if i == numSamples-1 {
			amounts[i] = new(big.Int).Set(maxFillAmount)
			break
		}
		cumulative.Add(cumulative, w)
		amount := new(big.Rat).Mul(maxAmount, cumulative)
		amount.Quo(amount, total)
		amounts[i] = ceilRat(amount)
	}
	return amounts
}

func ceilRat(r *big.Rat) *big.Int {
	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
