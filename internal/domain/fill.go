package domain

import (
	"github.com/shopspring/decimal"
)

// NoParent marks a fill that starts a chain.
const NoParent = -1

type FillFlags uint64

const (
	FlagUniswap   FillFlags = 1 << 0
	FlagUniswapV2 FillFlags = 1 << 1
	FlagEth2Dai   FillFlags = 1 << 2
	FlagKyber     FillFlags = 1 << 3
	FlagNative    FillFlags = 1 << 4
)

// Intersects reports whether any bit is shared with mask.
func (f FillFlags) Intersects(mask FillFlags) bool {
	return f&mask != 0
}

// Fill is a pre-priced slice of liquidity taken from one source at one price point.
// Parent is the arena index of the fill that must directly precede this one in a path.
type Fill struct {
	Source        Source          `json:"source"`
	Input         decimal.Decimal `json:"input"`
	Output        decimal.Decimal `json:"output"`
	FillPenalty   decimal.Decimal `json:"fillPenalty"`
	Parent        int             `json:"parent"`
	Flags         FillFlags       `json:"flags"`
	ExclusionMask FillFlags       `json:"exclusionMask"`
	Index         int             `json:"index"`
}

func (f *Fill) IsRoot() bool {
	return f.Parent == NoParent
}

// AdjustedRate is (output - penalty) / input. A fill without input has a zero rate.
func (f *Fill) AdjustedRate() decimal.Decimal {
	if !f.Input.IsPositive() {
		return decimal.Zero
	}
	return f.Output.Sub(f.FillPenalty).Div(f.Input)
}
