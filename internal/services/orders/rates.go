package orders

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hxuan190/fill-router/internal/domain"
)

// GetFeeAdjustedRateOfOrder is the taker amount paid per maker unit once the taker fee,
// converted to taker asset at feeRate, is included.
func GetFeeAdjustedRateOfOrder(order *domain.Order, feeRate decimal.Decimal) (decimal.Decimal, error) {
	if !positive(order.MakerAssetAmount) || order.TakerAssetAmount == nil || order.TakerAssetAmount.Sign() < 0 {
		return decimal.Zero, ErrInvalidOrderAmount
	}
	if feeRate.IsNegative() {
		return decimal.Zero, ErrNegativeFeeRate
	}

	total := decimal.NewFromBigInt(order.TakerAssetAmount, 0)
	if order.TakerFee != nil {
		total = total.Add(decimal.NewFromBigInt(order.TakerFee, 0).Mul(feeRate))
	}
	return total.Div(decimal.NewFromBigInt(order.MakerAssetAmount, 0)), nil
}

// GetFeeAdjustedRateOfFeeOrder is the taker amount paid per maker unit left after the
// order's own taker fee is paid out of its maker amount.
func GetFeeAdjustedRateOfFeeOrder(feeOrder *domain.Order) (decimal.Decimal, error) {
	if feeOrder.MakerAssetAmount == nil || feeOrder.TakerAssetAmount == nil {
		return decimal.Zero, ErrInvalidOrderAmount
	}
	net := new(big.Int).Set(feeOrder.MakerAssetAmount)
	if feeOrder.TakerFee != nil {
		net.Sub(net, feeOrder.TakerFee)
	}
	if net.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: order %s", ErrFeeExceedsMakerAmount, feeOrder.Hash)
	}
	return decimal.NewFromBigInt(feeOrder.TakerAssetAmount, 0).Div(decimal.NewFromBigInt(net, 0)), nil
}

// SortOrdersByFeeAdjustedRate returns a copy of orders, cheapest first. Ties keep input order.
func SortOrdersByFeeAdjustedRate(orders []domain.Order, feeRate decimal.Decimal) ([]domain.Order, error) {
	ranks, err := RankOrdersByFeeAdjustedRate(orders, feeRate)
	if err != nil {
		return nil, err
	}
	return permute(orders, ranks), nil
}

// SortFeeOrdersByFeeAdjustedRate returns a copy of feeOrders, cheapest first. Ties keep input order.
func SortFeeOrdersByFeeAdjustedRate(feeOrders []domain.Order) ([]domain.Order, error) {
	ranks, err := rank(feeOrders, GetFeeAdjustedRateOfFeeOrder)
	if err != nil {
		return nil, err
	}
	return permute(feeOrders, ranks), nil
}

// RankOrdersByFeeAdjustedRate returns order indices cheapest first, for callers that sort
// parallel slices alongside the orders.
func RankOrdersByFeeAdjustedRate(orders []domain.Order, feeRate decimal.Decimal) ([]int, error) {
	return rank(orders, func(o *domain.Order) (decimal.Decimal, error) {
		return GetFeeAdjustedRateOfOrder(o, feeRate)
	})
}

func rank(orders []domain.Order, rateOf func(*domain.Order) (decimal.Decimal, error)) ([]int, error) {
	rates := make([]decimal.Decimal, len(orders))
	ranks := make([]int, len(orders))
	for i := range orders {
		rate, err := rateOf(&orders[i])
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		rates[i] = rate
		ranks[i] = i
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		return rates[ranks[i]].LessThan(rates[ranks[j]])
	})
	return ranks, nil
}

func permute[T any](items []T, ranks []int) []T {
	out := make([]T, len(ranks))
	for i, idx := range ranks {
		out[i] = items[idx]
	}
	return out
}
