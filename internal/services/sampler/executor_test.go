package sampler

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/fill-router/internal/domain"
)

func newTestExecutor(t *testing.T) (*Executor, *fakeContract) {
	t.Helper()
	s, err := NewSampler(testSampler)
	require.NoError(t, err)
	contract := newFakeContract(s)
	return NewExecutor(s, contract), contract
}

func amounts(values ...int64) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = big.NewInt(v)
	}
	return out
}

func outputs(samples []domain.QuoteSample) []int64 {
	out := make([]int64, len(samples))
	for i, s := range samples {
		out[i] = s.Output.Int64()
	}
	return out
}

func TestSourceOperationSellAndBuy(t *testing.T) {
	executor, _ := newTestExecutor(t)

	sell, err := NewSourceOperation(domain.SourceUniswap, domain.SideSell, testMakerToken, testTakerToken, amounts(100, 200, 1000))
	require.NoError(t, err)
	buy, err := NewSourceOperation(domain.SourceKyber, domain.SideBuy, testMakerToken, testTakerToken, amounts(1010))
	require.NoError(t, err)

	values, err := executor.ExecuteBatch(context.Background(), sell, buy)
	require.NoError(t, err)
	require.Len(t, values, 2)

	sellSamples := values[0].([]domain.QuoteSample)
	assert.Equal(t, []int64{99, 198, 990}, outputs(sellSamples))
	assert.Equal(t, domain.SourceUniswap, sellSamples[0].Source)
	assert.Equal(t, int64(200), sellSamples[1].Input.Int64())

	buySamples := values[1].([]domain.QuoteSample)
	assert.Equal(t, []int64{1000}, outputs(buySamples))
}

func TestUniswapV2EncodesTokenPath(t *testing.T) {
	executor, _ := newTestExecutor(t)

	op, err := NewSourceOperation(domain.SourceUniswapV2, domain.SideSell, testMakerToken, testTakerToken, amounts(10000))
	require.NoError(t, err)
	data, err := op.EncodeCall(executor.Sampler())
	require.NoError(t, err)

	method, err := executor.Sampler().ABI().MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, "sampleSellsFromUniswapV2", method.Name)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, []common.Address{testTakerToken, testMakerToken}, args[0])

	values, err := executor.ExecuteBatch(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, []int64{9800}, outputs(values[0].([]domain.QuoteSample)))
}

func TestQuotesOperationReturnsSourcesInOrder(t *testing.T) {
	executor, contract := newTestExecutor(t)

	sources := []domain.Source{domain.SourceEth2Dai, domain.SourceUniswap, domain.SourceKyber}
	op, err := NewSellQuotesOperation(sources, testMakerToken, testTakerToken, amounts(10000, 20000))
	require.NoError(t, err)

	values, err := executor.ExecuteBatch(context.Background(), op)
	require.NoError(t, err)

	quotes := values[0].([][]domain.QuoteSample)
	require.Len(t, quotes, 3)
	assert.Equal(t, []int64{9700, 19400}, outputs(quotes[0]))
	assert.Equal(t, []int64{9900, 19800}, outputs(quotes[1]))
	assert.Equal(t, []int64{10100, 20200}, outputs(quotes[2]))
	for i, source := range sources {
		assert.Equal(t, source, quotes[i][0].Source)
	}
	assert.Equal(t, int64(1), contract.batches.Load())
	assert.Equal(t, int64(1), contract.lastCalls.Load())
}

func TestBatchMatchesIndividualExecution(t *testing.T) {
	executor, _ := newTestExecutor(t)
	ctx := context.Background()

	quotes, err := NewBuyQuotesOperation([]domain.Source{domain.SourceUniswap, domain.SourceUniswapV2}, testMakerToken, testTakerToken, amounts(500, 5000))
	require.NoError(t, err)
	source, err := NewSourceOperation(domain.SourceEth2Dai, domain.SideSell, testMakerToken, testTakerToken, amounts(1234))
	require.NoError(t, err)
	nested := NewBatchOperation(Constant("inner"), source)

	ops := []Operation{quotes, Constant(big.NewInt(42)), source, nested}

	batched, err := executor.ExecuteBatch(ctx, ops...)
	require.NoError(t, err)
	require.Len(t, batched, len(ops))

	for i, op := range ops {
		single, err := executor.ExecuteBatch(ctx, op)
		require.NoError(t, err)
		assert.Equal(t, single[0], batched[i], "operation %d", i)
	}
}

func TestConstantsNeverReachTheChain(t *testing.T) {
	executor, contract := newTestExecutor(t)

	values, err := executor.ExecuteBatch(context.Background(), Constant(1), Constant("two"), NewBatchOperation(Constant(3), NewBatchOperation()))
	require.NoError(t, err)

	assert.Equal(t, int64(0), contract.batches.Load())
	assert.Equal(t, 1, values[0])
	assert.Equal(t, "two", values[1])
	assert.Equal(t, []any{3, []any{}}, values[2])
}

func TestResultsRouteAroundNoOps(t *testing.T) {
	executor, contract := newTestExecutor(t)

	first, err := NewSourceOperation(domain.SourceUniswap, domain.SideSell, testMakerToken, testTakerToken, amounts(100))
	require.NoError(t, err)
	second, err := NewSourceOperation(domain.SourceKyber, domain.SideSell, testMakerToken, testTakerToken, amounts(100))
	require.NoError(t, err)

	values, err := executor.ExecuteBatch(context.Background(), Constant("a"), first, Constant("b"), second)
	require.NoError(t, err)

	assert.Equal(t, int64(2), contract.lastCalls.Load())
	assert.Equal(t, "a", values[0])
	assert.Equal(t, []int64{99}, outputs(values[1].([]domain.QuoteSample)))
	assert.Equal(t, "b", values[2])
	assert.Equal(t, []int64{101}, outputs(values[3].([]domain.QuoteSample)))
}

func TestNestedBatchDecodesRecursively(t *testing.T) {
	executor, _ := newTestExecutor(t)

	source, err := NewSourceOperation(domain.SourceUniswap, domain.SideSell, testMakerToken, testTakerToken, amounts(1000))
	require.NoError(t, err)
	inner := NewBatchOperation(source, Constant("x"))
	outer := NewBatchOperation(Constant("y"), inner)

	values, err := executor.ExecuteBatch(context.Background(), outer)
	require.NoError(t, err)

	got := values[0].([]any)
	require.Len(t, got, 2)
	assert.Equal(t, "y", got[0])
	innerValues := got[1].([]any)
	assert.Equal(t, []int64{990}, outputs(innerValues[0].([]domain.QuoteSample)))
	assert.Equal(t, "x", innerValues[1])
}

func TestUnsupportedSource(t *testing.T) {
	_, err := NewSourceOperation(domain.SourceNative, domain.SideSell, testMakerToken, testTakerToken, amounts(1))
	require.ErrorIs(t, err, ErrUnsupportedSource)

	var unsupported *UnsupportedSourceError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, domain.SourceNative, unsupported.Source)

	_, err = NewSellQuotesOperation([]domain.Source{domain.SourceUniswap, "Bancor"}, testMakerToken, testTakerToken, amounts(1))
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	executor, contract := newTestExecutor(t)
	literal := &SourceOperation{Source: "Curve", Side: domain.SideSell, Amounts: amounts(1)}
	_, err = executor.ExecuteBatch(context.Background(), literal)
	assert.ErrorIs(t, err, ErrUnsupportedSource)
	assert.Equal(t, int64(0), contract.batches.Load())
}

func TestAmountsMustFitUint256(t *testing.T) {
	tooLarge := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err := NewSourceOperation(domain.SourceUniswap, domain.SideSell, testMakerToken, testTakerToken, []*big.Int{big.NewInt(1), tooLarge})
	assert.ErrorIs(t, err, ErrAmountOverflow)

	_, err = NewSourceOperation(domain.SourceUniswap, domain.SideSell, testMakerToken, testTakerToken, []*big.Int{big.NewInt(-1)})
	assert.ErrorIs(t, err, ErrAmountOverflow)

	maxUint := new(big.Int).Sub(tooLarge, big.NewInt(1))
	_, err = NewSourceOperation(domain.SourceUniswap, domain.SideSell, testMakerToken, testTakerToken, []*big.Int{maxUint})
	assert.NoError(t, err)
}

func TestResultCountMismatch(t *testing.T) {
	executor, contract := newTestExecutor(t)
	contract.drop = true

	op, err := NewSourceOperation(domain.SourceUniswap, domain.SideSell, testMakerToken, testTakerToken, amounts(1))
	require.NoError(t, err)

	_, err = executor.ExecuteBatch(context.Background(), op, op)
	assert.ErrorIs(t, err, ErrResultCountMismatch)
}

func TestDecodeFailureIsIsolated(t *testing.T) {
	executor, contract := newTestExecutor(t)
	contract.corrupt = 1

	first, err := NewSourceOperation(domain.SourceUniswap, domain.SideSell, testMakerToken, testTakerToken, amounts(100))
	require.NoError(t, err)
	second, err := NewSourceOperation(domain.SourceEth2Dai, domain.SideSell, testMakerToken, testTakerToken, amounts(100))
	require.NoError(t, err)
	third, err := NewSourceOperation(domain.SourceKyber, domain.SideSell, testMakerToken, testTakerToken, amounts(100))
	require.NoError(t, err)

	values, err := executor.ExecuteBatch(context.Background(), first, Constant("c"), second, third)
	require.Error(t, err)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 2, opErr.Index)
	assert.Equal(t, KindSource, opErr.Kind)

	require.Len(t, values, 4)
	assert.Equal(t, []int64{99}, outputs(values[0].([]domain.QuoteSample)))
	assert.Equal(t, "c", values[1])
	assert.Nil(t, values[2])
	assert.Equal(t, []int64{101}, outputs(values[3].([]domain.QuoteSample)))
}

func TestBatchCallErrorPropagates(t *testing.T) {
	s, err := NewSampler(testSampler)
	require.NoError(t, err)
	boom := errors.New("rpc down")
	executor := NewExecutor(s, failingCaller{err: boom})

	op, err := NewSourceOperation(domain.SourceUniswap, domain.SideSell, testMakerToken, testTakerToken, amounts(1))
	require.NoError(t, err)

	_, err = executor.ExecuteBatch(context.Background(), op)
	assert.ErrorIs(t, err, boom)

	// constants alone never call out
	values, err := executor.ExecuteBatch(context.Background(), Constant(7))
	require.NoError(t, err)
	assert.Equal(t, []any{7}, values)
}

func TestGetQuotes(t *testing.T) {
	executor, _ := newTestExecutor(t)

	quotes, err := executor.GetQuotes(context.Background(), domain.SideBuy, []domain.Source{domain.SourceUniswap}, testMakerToken, testTakerToken, amounts(9900))
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, []int64{10000}, outputs(quotes[0]))

	quotes, err = executor.GetQuotes(context.Background(), domain.SideSell, nil, testMakerToken, testTakerToken, amounts(1))
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestConcurrentExecution(t *testing.T) {
	executor, contract := newTestExecutor(t)

	op, err := NewSellQuotesOperation(SupportedSources(), testMakerToken, testTakerToken, amounts(10000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			values, err := executor.ExecuteBatch(context.Background(), op, Constant(i))
			if assert.NoError(t, err) {
				assert.Len(t, values[0].([][]domain.QuoteSample), 4)
				assert.Equal(t, i, values[1])
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(16), contract.batches.Load())
}
