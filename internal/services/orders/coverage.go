package orders

import (
	"fmt"
	"math/big"

	"github.com/hxuan190/fill-router/internal/domain"
	"github.com/hxuan190/fill-router/internal/metrics"
)

type CoverOptions struct {
	// RemainingFillableAmounts defaults to each order's full amount on the covered side.
	RemainingFillableAmounts []*big.Int
	// SlippageBufferAmount is added to the target before covering.
	SlippageBufferAmount *big.Int
}

type CoverResult struct {
	Orders                   []domain.Order
	RemainingFillableAmounts []*big.Int
	// RemainingFillAmount is what the selected orders could not cover, zero when covered.
	RemainingFillAmount *big.Int
}

// FindOrdersThatCoverFillAmount walks orders in the given order and selects them until
// target plus the slippage buffer is covered. A sell covers taker amounts, a buy covers
// maker amounts. Orders with nothing left to fill are skipped.
func FindOrdersThatCoverFillAmount(orders []domain.Order, target *big.Int, side domain.Side, opts CoverOptions) (*CoverResult, error) {
	if target == nil || target.Sign() < 0 {
		return nil, ErrInvalidFillAmount
	}
	if opts.SlippageBufferAmount != nil && opts.SlippageBufferAmount.Sign() < 0 {
		return nil, ErrInvalidFillAmount
	}

	fillable := opts.RemainingFillableAmounts
	if fillable == nil {
		fillable = make([]*big.Int, len(orders))
		for i := range orders {
			fillable[i] = orders[i].FillableAmount(side)
		}
	}
	if len(fillable) != len(orders) {
		return nil, fmt.Errorf("%w: %d amounts for %d orders", ErrFillableAmountsLength, len(fillable), len(orders))
	}

	remaining := new(big.Int).Set(target)
	if opts.SlippageBufferAmount != nil {
		remaining.Add(remaining, opts.SlippageBufferAmount)
	}

	result := &CoverResult{
		Orders:                   []domain.Order{},
		RemainingFillableAmounts: []*big.Int{},
	}
	for i := range orders {
		if remaining.Sign() <= 0 {
			break
		}
		available := fillable[i]
		if available == nil || available.Sign() <= 0 {
			continue
		}
		result.Orders = append(result.Orders, orders[i])
		result.RemainingFillableAmounts = append(result.RemainingFillableAmounts, new(big.Int).Set(available))
		remaining.Sub(remaining, available)
	}
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	result.RemainingFillAmount = remaining

	metrics.OrdersCovered.Observe(float64(len(result.Orders)))
	return result, nil
}

type FeeCoverOptions struct {
	// RemainingFillableAmounts are the maker amounts still fillable on the target orders.
	RemainingFillableAmounts []*big.Int
	// RemainingFillableFeeAmounts are the maker amounts still fillable on the fee orders.
	RemainingFillableFeeAmounts []*big.Int
	SlippageBufferAmount        *big.Int
}

// FindFeeOrdersThatCoverFees selects fee orders whose maker amounts pay the taker fees
// of filling the remaining maker amounts of orders.
func FindFeeOrdersThatCoverFees(orders, feeOrders []domain.Order, opts FeeCoverOptions) (*CoverResult, error) {
	fillable := opts.RemainingFillableAmounts
	if fillable == nil {
		fillable = make([]*big.Int, len(orders))
		for i := range orders {
			fillable[i] = orders[i].MakerAssetAmount
		}
	}
	if len(fillable) != len(orders) {
		return nil, fmt.Errorf("%w: %d amounts for %d orders", ErrFillableAmountsLength, len(fillable), len(orders))
	}

	totalFees := new(big.Int)
	for i := range orders {
		fee, err := TakerFeeForMakerFill(&orders[i], fillable[i])
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		totalFees.Add(totalFees, fee)
	}

	return FindOrdersThatCoverFillAmount(feeOrders, totalFees, domain.SideBuy, CoverOptions{
		RemainingFillableAmounts: opts.RemainingFillableFeeAmounts,
		SlippageBufferAmount:     opts.SlippageBufferAmount,
	})
}

// TakerFillAmount is the taker amount needed to receive makerFill from order, rounded up.
func TakerFillAmount(order *domain.Order, makerFill *big.Int) (*big.Int, error) {
	if !positive(order.MakerAssetAmount) || !positive(order.TakerAssetAmount) {
		return nil, ErrInvalidOrderAmount
	}
	if makerFill == nil || makerFill.Sign() < 0 {
		return nil, ErrInvalidFillAmount
	}
	num := new(big.Int).Mul(makerFill, order.TakerAssetAmount)
	return ceilDiv(num, order.MakerAssetAmount), nil
}

// TakerFeeForMakerFill is the taker fee owed for filling makerFill of order, rounded down.
func TakerFeeForMakerFill(order *domain.Order, makerFill *big.Int) (*big.Int, error) {
	takerFill, err := TakerFillAmount(order, makerFill)
	if err != nil {
		return nil, err
	}
	if order.TakerFee == nil || order.TakerFee.Sign() == 0 {
		return new(big.Int), nil
	}
	fee := new(big.Int).Mul(order.TakerFee, takerFill)
	return fee.Quo(fee, order.TakerAssetAmount), nil
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
