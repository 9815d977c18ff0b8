package orders

import "errors"

var (
	ErrFillableAmountsLength = errors.New("remaining fillable amounts do not match order count")
	ErrInvalidFillAmount     = errors.New("fill amount must be non-negative")
	ErrInvalidOrderAmount    = errors.New("order amounts must be positive")
	ErrNegativeFeeRate       = errors.New("fee rate must be non-negative")
	ErrFeeExceedsMakerAmount = errors.New("fee order taker fee is not below its maker amount")
)
