package domain

import "math/big"

// Order is a signed limit order as seen by the order-covering utilities.
// Signatures and on-chain validity are checked elsewhere.
type Order struct {
	Hash             string   `json:"hash"`
	MakerAssetAmount *big.Int `json:"makerAssetAmount"`
	TakerAssetAmount *big.Int `json:"takerAssetAmount"`
	MakerFee         *big.Int `json:"makerFee"`
	TakerFee         *big.Int `json:"takerFee"`
}

// FillableAmount returns the amount of the side's fixed asset the whole order offers.
func (o *Order) FillableAmount(side Side) *big.Int {
	if side == SideSell {
		return o.TakerAssetAmount
	}
	return o.MakerAssetAmount
}
