package router

import (
	"github.com/shopspring/decimal"

	"github.com/hxuan190/fill-router/internal/domain"
)

// Price impact thresholds in basis points (bps)
const (
	PriceImpactLow      uint16 = 100  // 1%
	PriceImpactModerate uint16 = 300  // 3%
	PriceImpactHigh     uint16 = 500  // 5%
	PriceImpactExtreme  uint16 = 1000 // 10%
)

var bpsDenom = decimal.NewFromInt(10_000)

type PriceImpactSeverity string

const (
	SeverityNone     PriceImpactSeverity = "none"     // < 1%
	SeverityLow      PriceImpactSeverity = "low"      // 1-3%
	SeverityModerate PriceImpactSeverity = "moderate" // 3-5%
	SeverityHigh     PriceImpactSeverity = "high"     // 5-10%
	SeverityExtreme  PriceImpactSeverity = "extreme"  // > 10%
)

func GetPriceImpactSeverity(priceImpactBps uint16) PriceImpactSeverity {
	switch {
	case priceImpactBps < PriceImpactLow:
		return SeverityNone
	case priceImpactBps < PriceImpactModerate:
		return SeverityLow
	case priceImpactBps < PriceImpactHigh:
		return SeverityModerate
	case priceImpactBps < PriceImpactExtreme:
		return SeverityHigh
	default:
		return SeverityExtreme
	}
}

// SpotRate is the best first-sample rate across source chains in pool: the highest
// output per input on a sell, the lowest on a buy. Zero when no root fill has input.
func SpotRate(pool []domain.Fill, side domain.Side) decimal.Decimal {
	best := decimal.Zero
	found := false
	for i := range pool {
		fill := &pool[i]
		if !fill.IsRoot() || !fill.Input.IsPositive() {
			continue
		}
		rate := fill.Output.Div(fill.Input)
		if !found || ComparePathOutputs(rate, best, side.ShouldMinimize()) > 0 {
			best = rate
			found = true
		}
	}
	return best
}

// CalculatePriceImpact compares the realized rate output/input with spot.
// A sell loses when it realizes less than spot, a buy loses when it pays more.
// Better than spot reports 0; the result is capped at max uint16.
func CalculatePriceImpact(spot, input, output decimal.Decimal, side domain.Side) uint16 {
	if !spot.IsPositive() || !input.IsPositive() || !output.IsPositive() {
		return 0
	}
	realized := output.Div(input)

	diff := spot.Sub(realized)
	if side == domain.SideBuy {
		diff = diff.Neg()
	}
	if !diff.IsPositive() {
		return 0
	}

	impact := diff.Mul(bpsDenom).Div(spot).Floor()
	if impact.GreaterThan(decimal.NewFromInt(65535)) {
		return 65535
	}
	return uint16(impact.IntPart())
}

func GetPriceImpactWarning(priceImpactBps uint16) string {
	switch GetPriceImpactSeverity(priceImpactBps) {
	case SeverityLow:
		return "Low price impact"
	case SeverityModerate:
		return "Moderate price impact - consider reducing trade size"
	case SeverityHigh:
		return "High price impact - you may receive significantly less tokens"
	case SeverityExtreme:
		return "EXTREME price impact - this trade will severely impact the market price"
	default:
		return ""
	}
}
