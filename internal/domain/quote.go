package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// QuoteSample is one decoded price probe: Input of the side's fixed asset yields Output.
type QuoteSample struct {
	Source Source
	Input  *big.Int
	Output *big.Int
}

type SourceBreakdown struct {
	Source  Source          `json:"source"`
	Input   decimal.Decimal `json:"input"`
	Output  decimal.Decimal `json:"output"`
	Percent decimal.Decimal `json:"percent"`
}

// SwapQuote is the execution plan selected for a market operation.
type SwapQuote struct {
	Side           Side              `json:"side"`
	MakerToken     string            `json:"makerToken"`
	TakerToken     string            `json:"takerToken"`
	Amount         *big.Int          `json:"amount"`
	TotalInput     decimal.Decimal   `json:"totalInput"`
	TotalOutput    decimal.Decimal   `json:"totalOutput"`
	AdjustedOutput decimal.Decimal   `json:"adjustedOutput"`
	Fills          []Fill            `json:"fills"`
	FillInputs     []decimal.Decimal `json:"fillInputs"`
	Breakdown      []SourceBreakdown `json:"breakdown"`
	GasPrice       *big.Int          `json:"gasPrice,omitempty"`
	// PriceImpactBps compares the realized rate with the best first-sample rate.
	PriceImpactBps uint16 `json:"priceImpactBps"`
}

// Clone deep copies the quote so that holders never share mutable amounts.
func (q *SwapQuote) Clone() *SwapQuote {
	if q == nil {
		return nil
	}
	c := *q
	c.Amount = cloneInt(q.Amount)
	c.GasPrice = cloneInt(q.GasPrice)
	c.Fills = append([]Fill(nil), q.Fills...)
	c.FillInputs = append([]decimal.Decimal(nil), q.FillInputs...)
	c.Breakdown = append([]SourceBreakdown(nil), q.Breakdown...)
	return &c
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
