package sampler

import (
	"errors"
	"fmt"

	"github.com/hxuan190/fill-router/internal/domain"
)

var (
	ErrUnsupportedSource   = errors.New("unsupported source")
	ErrResultCountMismatch = errors.New("batch result count does not match request")
	ErrSampleCountMismatch = errors.New("sample count does not match request")
	ErrAmountOverflow      = errors.New("amount out of uint256 range")
	ErrUnexpectedNoOp      = errors.New("no-op result for a real call")
	ErrUnexpectedResult    = errors.New("unexpected decoded result")
)

// UnsupportedSourceError names the source the sampler contract cannot quote.
type UnsupportedSourceError struct {
	Source domain.Source
}

func (e *UnsupportedSourceError) Error() string {
	return fmt.Sprintf("unsupported source: %s", e.Source)
}

func (e *UnsupportedSourceError) Is(target error) bool {
	return target == ErrUnsupportedSource
}

// OperationError reports a decode failure for one operation of a batch.
type OperationError struct {
	Index int
	Kind  OperationKind
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
