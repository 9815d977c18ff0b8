package sampler

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/fill-router/internal/domain"
	"github.com/hxuan190/fill-router/internal/metrics"
)

// BatchCaller executes encoded sampler calls in one round trip. Results come back in call order.
type BatchCaller interface {
	BatchCall(ctx context.Context, calls [][]byte) ([][]byte, error)
}

// Executor runs heterogeneous operations through a single BatchCall.
type Executor struct {
	sampler *Sampler
	caller  BatchCaller
}

func NewExecutor(sampler *Sampler, caller BatchCaller) *Executor {
	return &Executor{sampler: sampler, caller: caller}
}

func (e *Executor) Sampler() *Sampler {
	return e.sampler
}

// ExecuteBatch returns one value per op in input order. Operations that need no call are
// answered locally and never reach the caller. Decode failures are reported per operation
// as joined *OperationError values while the other values stay populated.
func (e *Executor) ExecuteBatch(ctx context.Context, ops ...Operation) ([]any, error) {
	calls, noop, err := encodeOperations(e.sampler, ops)
	if err != nil {
		return nil, err
	}

	metrics.BatchSize.Observe(float64(len(calls)))

	var results [][]byte
	if len(calls) > 0 {
		start := time.Now()
		results, err = e.caller.BatchCall(ctx, calls)
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.BatchCalls.WithLabelValues("error").Inc()
			log.Warn().Err(err).Int("calls", len(calls)).Msg("[sampler] batch call failed")
			return nil, fmt.Errorf("batch call: %w", err)
		}
		if len(results) != len(calls) {
			metrics.BatchCalls.WithLabelValues("mismatch").Inc()
			return nil, fmt.Errorf("%w: sent %d calls, got %d results", ErrResultCountMismatch, len(calls), len(results))
		}
		metrics.BatchCalls.WithLabelValues("ok").Inc()
	}

	values, err := decodeOperations(e.sampler, ops, noop, results)
	if err != nil && values == nil {
		return nil, err
	}
	if err != nil {
		log.Debug().Err(err).Int("ops", len(ops)).Msg("[sampler] batch decoded with failures")
	}
	return values, err
}

// GetQuotes samples every source at amounts in one round trip.
func (e *Executor) GetQuotes(ctx context.Context, side domain.Side, sources []domain.Source, makerToken, takerToken common.Address, amounts []*big.Int) ([][]domain.QuoteSample, error) {
	var (
		op  *QuotesOperation
		err error
	)
	if side == domain.SideBuy {
		op, err = NewBuyQuotesOperation(sources, makerToken, takerToken, amounts)
	} else {
		op, err = NewSellQuotesOperation(sources, makerToken, takerToken, amounts)
	}
	if err != nil {
		return nil, err
	}

	values, err := e.ExecuteBatch(ctx, op)
	if err != nil {
		return nil, err
	}
	quotes, ok := values[0].([][]domain.QuoteSample)
	if !ok {
		return nil, fmt.Errorf("%w: quotes decoded to %T", ErrUnexpectedResult, values[0])
	}
	return quotes, nil
}
