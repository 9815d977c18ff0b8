package sampler

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hxuan190/fill-router/internal/domain"
	"github.com/hxuan190/fill-router/internal/metrics"
)

type OperationKind int

const (
	KindSource OperationKind = iota
	KindBatch
	KindQuotes
	KindConstant
)

func (k OperationKind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindBatch:
		return "batch"
	case KindQuotes:
		return "quotes"
	case KindConstant:
		return "constant"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// NoOpCallData marks an operation that needs no on-chain call.
var NoOpCallData = []byte{}

func IsNoOp(data []byte) bool {
	return len(data) == 0
}

// Operation is a unit of work for the sampler contract. The set of implementations is
// closed: SourceOperation, BatchOperation, QuotesOperation and ConstantOperation.
type Operation interface {
	Kind() OperationKind
	EncodeCall(s *Sampler) ([]byte, error)
	DecodeCallResult(s *Sampler, raw []byte) (any, error)

	isOperation()
}

// producesNoOp reports whether op encodes to no call at all.
func producesNoOp(op Operation) bool {
	switch o := op.(type) {
	case *ConstantOperation:
		return true
	case *BatchOperation:
		for _, child := range o.ops {
			if !producesNoOp(child) {
				return false
			}
		}
		return true
	case *QuotesOperation:
		return producesNoOp(o.batch)
	default:
		return false
	}
}

// encodeOperations encodes ops in order and returns only the calls that must reach the chain.
func encodeOperations(s *Sampler, ops []Operation) (calls [][]byte, noop []bool, err error) {
	noop = make([]bool, len(ops))
	calls = make([][]byte, 0, len(ops))
	for i, op := range ops {
		data, err := op.EncodeCall(s)
		if err != nil {
			return nil, nil, fmt.Errorf("encode operation %d (%s): %w", i, op.Kind(), err)
		}
		if IsNoOp(data) {
			noop[i] = true
			continue
		}
		calls = append(calls, data)
	}
	return calls, noop, nil
}

// decodeOperations hands every op either its next real result or the no-op marker.
// A failing op leaves a nil value and an OperationError; the other values stay intact.
func decodeOperations(s *Sampler, ops []Operation, noop []bool, results [][]byte) ([]any, error) {
	values := make([]any, len(ops))
	var errs []error
	cursor := 0
	for i, op := range ops {
		raw := NoOpCallData
		if !noop[i] {
			if cursor >= len(results) {
				return nil, fmt.Errorf("%w: %d results for more real calls", ErrResultCountMismatch, len(results))
			}
			raw = results[cursor]
			cursor++
		}
		value, err := op.DecodeCallResult(s, raw)
		if err != nil {
			metrics.DecodeFailures.WithLabelValues(op.Kind().String()).Inc()
			errs = append(errs, &OperationError{Index: i, Kind: op.Kind(), Err: err})
			continue
		}
		values[i] = value
	}
	if cursor != len(results) {
		return nil, fmt.Errorf("%w: %d results, %d real calls", ErrResultCountMismatch, len(results), cursor)
	}
	return values, errors.Join(errs...)
}

// SourceOperation samples one liquidity source at a list of amounts.
type SourceOperation struct {
	Source     domain.Source
	Side       domain.Side
	MakerToken common.Address
	TakerToken common.Address
	Amounts    []*big.Int
}

func NewSourceOperation(source domain.Source, side domain.Side, makerToken, takerToken common.Address, amounts []*big.Int) (*SourceOperation, error) {
	if !SupportsSource(source) {
		return nil, &UnsupportedSourceError{Source: source}
	}
	if err := checkAmounts(amounts); err != nil {
		return nil, err
	}
	return &SourceOperation{
		Source:     source,
		Side:       side,
		MakerToken: makerToken,
		TakerToken: takerToken,
		Amounts:    amounts,
	}, nil
}

func (o *SourceOperation) Kind() OperationKind { return KindSource }
func (o *SourceOperation) isOperation()        {}

func (o *SourceOperation) EncodeCall(s *Sampler) ([]byte, error) {
	return s.encodeSample(o.Source, o.Side, o.MakerToken, o.TakerToken, o.Amounts)
}

// DecodeCallResult returns []domain.QuoteSample, one per requested amount.
func (o *SourceOperation) DecodeCallResult(s *Sampler, raw []byte) (any, error) {
	if IsNoOp(raw) {
		return nil, ErrUnexpectedNoOp
	}
	outputs, err := s.decodeSample(o.Source, o.Side, raw)
	if err != nil {
		return nil, err
	}
	if len(outputs) != len(o.Amounts) {
		return nil, fmt.Errorf("%w: %s returned %d of %d", ErrSampleCountMismatch, o.Source, len(outputs), len(o.Amounts))
	}
	samples := make([]domain.QuoteSample, len(outputs))
	for i, output := range outputs {
		samples[i] = domain.QuoteSample{
			Source: o.Source,
			Input:  new(big.Int).Set(o.Amounts[i]),
			Output: output,
		}
	}
	return samples, nil
}

// BatchOperation bundles child operations into one batchCall. Children that need no call
// are answered locally; a batch whose children all need no call is itself a no-op.
type BatchOperation struct {
	ops []Operation
}

func NewBatchOperation(ops ...Operation) *BatchOperation {
	return &BatchOperation{ops: ops}
}

func (o *BatchOperation) Kind() OperationKind { return KindBatch }
func (o *BatchOperation) isOperation()        {}

func (o *BatchOperation) Operations() []Operation {
	return o.ops
}

func (o *BatchOperation) EncodeCall(s *Sampler) ([]byte, error) {
	calls, _, err := encodeOperations(s, o.ops)
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return NoOpCallData, nil
	}
	return s.encodeBatch(calls)
}

// DecodeCallResult returns []any with one value per child.
func (o *BatchOperation) DecodeCallResult(s *Sampler, raw []byte) (any, error) {
	noop := make([]bool, len(o.ops))
	for i, op := range o.ops {
		noop[i] = producesNoOp(op)
	}

	var results [][]byte
	if !producesNoOp(o) {
		if IsNoOp(raw) {
			return nil, ErrUnexpectedNoOp
		}
		var err error
		results, err = s.decodeBatch(raw)
		if err != nil {
			return nil, err
		}
	}
	return decodeOperations(s, o.ops, noop, results)
}

// QuotesOperation samples several sources on one side at the same amounts.
type QuotesOperation struct {
	side    domain.Side
	sources []domain.Source
	batch   *BatchOperation
}

func NewSellQuotesOperation(sources []domain.Source, makerToken, takerToken common.Address, takerAmounts []*big.Int) (*QuotesOperation, error) {
	return newQuotesOperation(domain.SideSell, sources, makerToken, takerToken, takerAmounts)
}

func NewBuyQuotesOperation(sources []domain.Source, makerToken, takerToken common.Address, makerAmounts []*big.Int) (*QuotesOperation, error) {
	return newQuotesOperation(domain.SideBuy, sources, makerToken, takerToken, makerAmounts)
}

func newQuotesOperation(side domain.Side, sources []domain.Source, makerToken, takerToken common.Address, amounts []*big.Int) (*QuotesOperation, error) {
	ops := make([]Operation, 0, len(sources))
	for _, source := range sources {
		op, err := NewSourceOperation(source, side, makerToken, takerToken, amounts)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return &QuotesOperation{
		side:    side,
		sources: sources,
		batch:   NewBatchOperation(ops...),
	}, nil
}

func (o *QuotesOperation) Kind() OperationKind { return KindQuotes }
func (o *QuotesOperation) isOperation()        {}

func (o *QuotesOperation) Side() domain.Side {
	return o.side
}

func (o *QuotesOperation) Sources() []domain.Source {
	return o.sources
}

func (o *QuotesOperation) EncodeCall(s *Sampler) ([]byte, error) {
	return o.batch.EncodeCall(s)
}

// DecodeCallResult returns [][]domain.QuoteSample in source order.
func (o *QuotesOperation) DecodeCallResult(s *Sampler, raw []byte) (any, error) {
	value, err := o.batch.DecodeCallResult(s, raw)
	if err != nil {
		return nil, err
	}
	children, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: batch decoded to %T", ErrUnexpectedResult, value)
	}
	quotes := make([][]domain.QuoteSample, len(children))
	for i, child := range children {
		samples, ok := child.([]domain.QuoteSample)
		if !ok {
			return nil, fmt.Errorf("%w: source %d decoded to %T", ErrUnexpectedResult, i, child)
		}
		quotes[i] = samples
	}
	return quotes, nil
}

// ConstantOperation resolves to a fixed value without touching the chain.
type ConstantOperation struct {
	Value any
}

func Constant(value any) *ConstantOperation {
	return &ConstantOperation{Value: value}
}

func (o *ConstantOperation) Kind() OperationKind { return KindConstant }
func (o *ConstantOperation) isOperation()        {}

func (o *ConstantOperation) EncodeCall(*Sampler) ([]byte, error) {
	return NoOpCallData, nil
}

func (o *ConstantOperation) DecodeCallResult(*Sampler, []byte) (any, error) {
	return o.Value, nil
}
