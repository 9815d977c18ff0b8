package router

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/fill-router/internal/domain"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func assertAmounts(t *testing.T, want []int64, got []decimal.Decimal) {
	t.Helper()
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.True(t, got[i].Equal(dec(w)), "amount %d: want %d, got %s", i, w, got[i])
	}
}

func rootFill(source domain.Source, input, output, penalty int64) domain.Fill {
	return domain.Fill{
		Source:      source,
		Input:       dec(input),
		Output:      dec(output),
		FillPenalty: dec(penalty),
		Parent:      domain.NoParent,
	}
}

func childFill(source domain.Source, parent int, input, output int64) domain.Fill {
	f := rootFill(source, input, output, 0)
	f.Parent = parent
	return f
}

func TestOptimizeCombinesFills(t *testing.T) {
	pool := []domain.Fill{
		rootFill(domain.SourceUniswap, 100, 90, 1),
		rootFill(domain.SourceEth2Dai, 50, 48, 0),
	}

	path := NewOptimizer(0, domain.SideSell).Optimize(pool, dec(120), nil)
	require.NotNil(t, path)
	require.ElementsMatch(t, []int{0, 1}, path.Fills)

	// the better-rate fill is consumed in full, the other partially: 48 + 90*70/100 - 1
	assert.True(t, path.AdjustedOutput.Equal(dec(110)), "got %s", path.AdjustedOutput)
	assert.True(t, path.Input.Equal(dec(120)))

	// execution order is by adjusted rate
	assert.Equal(t, []int{1, 0}, path.Fills)
	assertAmounts(t, []int64{50, 70}, path.Inputs)
	assert.True(t, PathAdjustedOutput(pool, path.Fills, dec(120)).Equal(dec(110)))
	assert.True(t, path.ExecutedAdjustedOutput(pool).Equal(dec(110)))
}

func TestOptimizeSortKeepsChosenAllocation(t *testing.T) {
	pool := []domain.Fill{
		rootFill(domain.SourceUniswap, 100, 80, 0),
		rootFill(domain.SourceEth2Dai, 100, 99, 20),
	}

	// the search takes all of the penalized fill and half of the other, then the
	// better adjusted rate moves the half-used fill to the front
	path := NewOptimizer(0, domain.SideSell).Optimize(pool, dec(150), nil)
	require.NotNil(t, path)
	assert.Equal(t, []int{0, 1}, path.Fills)
	require.Len(t, path.Inputs, 2)
	assert.True(t, path.Inputs[0].Equal(dec(50)), path.Inputs[0].String())
	assert.True(t, path.Inputs[1].Equal(dec(100)), path.Inputs[1].String())

	assert.True(t, path.AdjustedOutput.Equal(dec(119)), path.AdjustedOutput.String())
	assert.True(t, path.ExecutedAdjustedOutput(pool).Equal(path.AdjustedOutput))
	assert.True(t, path.ExecutedOutput(pool).Equal(dec(139)))
	assert.True(t, path.Input.Equal(dec(150)))
}

func TestNewPath(t *testing.T) {
	pool := []domain.Fill{
		rootFill(domain.SourceUniswap, 50, 50, 2),
		childFill(domain.SourceUniswap, 0, 50, 40),
	}
	pool[0].Flags = domain.FlagUniswap

	path := NewPath(pool, []int{0, 1}, dec(75))
	assertAmounts(t, []int64{50, 25}, path.Inputs)
	assert.True(t, path.Input.Equal(dec(75)))
	assert.True(t, path.AdjustedOutput.Equal(dec(68)), path.AdjustedOutput.String())
	assert.Equal(t, domain.FlagUniswap, path.Flags)

	assertAmounts(t, []int64{50, 0}, AllocateInputs(pool, []int{0, 1}, dec(50)))
}

func TestOptimizePartialOutputMatchesInterpolation(t *testing.T) {
	pool := []domain.Fill{
		rootFill(domain.SourceUniswap, 100, 90, 1),
		rootFill(domain.SourceEth2Dai, 50, 48, 0),
	}
	// fixed order: A in full, then 20/50 of B
	out := PathAdjustedOutput(pool, []int{0, 1}, dec(120))
	assert.True(t, out.Equal(decimal.RequireFromString("108.2")), "got %s", out)
}

func TestOptimizeZeroTargetYieldsEmptyPath(t *testing.T) {
	pool := []domain.Fill{rootFill(domain.SourceUniswap, 100, 90, 0)}
	path := NewOptimizer(0, domain.SideSell).Optimize(pool, decimal.Zero, nil)
	require.NotNil(t, path)
	assert.Empty(t, path.Fills)

	path = NewOptimizer(0, domain.SideSell).Optimize(nil, decimal.Zero, nil)
	require.NotNil(t, path)
	assert.Empty(t, path.Fills)
}

func TestOptimizeNoPath(t *testing.T) {
	assert.Nil(t, NewOptimizer(0, domain.SideSell).Optimize(nil, dec(10), nil))

	pool := []domain.Fill{rootFill(domain.SourceUniswap, 5, 5, 0)}
	assert.Nil(t, NewOptimizer(0, domain.SideSell).Optimize(pool, dec(10), nil))
}

func TestOptimizeHonorsParentChains(t *testing.T) {
	pool := []domain.Fill{
		rootFill(domain.SourceUniswap, 50, 50, 0),
		childFill(domain.SourceUniswap, 0, 50, 45),
		rootFill(domain.SourceEth2Dai, 100, 80, 0),
		childFill(domain.SourceEth2Dai, 2, 100, 99),
	}

	path := NewOptimizer(0, domain.SideSell).Optimize(pool, dec(100), nil)
	require.NotNil(t, path)
	assert.Equal(t, []int{0, 1}, path.Fills)
	assert.True(t, path.AdjustedOutput.Equal(dec(95)))
}

func TestOptimizeHonorsExclusionMasks(t *testing.T) {
	pool := []domain.Fill{
		{Source: domain.SourceKyber, Input: dec(50), Output: dec(60), FillPenalty: decimal.Zero, Parent: domain.NoParent,
			Flags: domain.FlagKyber, ExclusionMask: domain.FlagUniswap},
		{Source: domain.SourceUniswap, Input: dec(50), Output: dec(59), FillPenalty: decimal.Zero, Parent: domain.NoParent,
			Flags: domain.FlagUniswap, ExclusionMask: domain.FlagKyber},
		rootFill(domain.SourceEth2Dai, 50, 40, 0),
	}

	path := NewOptimizer(0, domain.SideSell).Optimize(pool, dec(100), nil)
	require.NotNil(t, path)
	assert.ElementsMatch(t, []int{0, 2}, path.Fills)
	assert.True(t, path.AdjustedOutput.Equal(dec(100)))
}

func TestOptimizeMinimizesOnBuy(t *testing.T) {
	pool := []domain.Fill{
		rootFill(domain.SourceUniswap, 100, 120, 0),
		rootFill(domain.SourceEth2Dai, 100, 105, 0),
		rootFill(domain.SourceUniswapV2, 100, 110, 0),
	}

	path := NewOptimizer(0, domain.SideBuy).Optimize(pool, dec(150), nil)
	require.NotNil(t, path)
	// cheapest in full, then half of the next cheapest
	assert.Equal(t, []int{1, 2}, path.Fills)
	assert.True(t, path.AdjustedOutput.Equal(dec(160)))
}

func TestOptimizeReturnsUpperBoundWhenNothingBetter(t *testing.T) {
	pool := []domain.Fill{
		rootFill(domain.SourceUniswap, 100, 90, 0),
		rootFill(domain.SourceEth2Dai, 100, 80, 0),
	}
	upperBound := &Path{Fills: []int{0}}

	path := NewOptimizer(0, domain.SideSell).Optimize(pool, dec(100), upperBound)
	assert.Same(t, upperBound, path)

	weak := &Path{Fills: []int{1}}
	path = NewOptimizer(0, domain.SideSell).Optimize(pool, dec(100), weak)
	require.NotNil(t, path)
	assert.NotSame(t, weak, path)
	assert.Equal(t, []int{0}, path.Fills)
}

func TestOptimizeRunLimitIsGlobal(t *testing.T) {
	pool := []domain.Fill{
		rootFill(domain.SourceUniswap, 50, 50, 0),
		rootFill(domain.SourceEth2Dai, 50, 50, 0),
	}

	assert.Nil(t, NewOptimizer(1, domain.SideSell).Optimize(pool, dec(100), nil))

	path := NewOptimizer(2, domain.SideSell).Optimize(pool, dec(100), nil)
	require.NotNil(t, path)
	assert.Len(t, path.Fills, 2)
}

func TestOptimizeRunLimitKeepsBestSoFar(t *testing.T) {
	pool := []domain.Fill{
		rootFill(domain.SourceUniswap, 100, 80, 0),
		rootFill(domain.SourceEth2Dai, 100, 95, 0),
	}
	// first expansion completes with the worse fill, then the budget is gone
	path := NewOptimizer(1, domain.SideSell).Optimize(pool, dec(100), nil)
	require.NotNil(t, path)
	assert.Equal(t, []int{0}, path.Fills)

	path = NewOptimizer(0, domain.SideSell).Optimize(pool, dec(100), nil)
	require.NotNil(t, path)
	assert.Equal(t, []int{1}, path.Fills)
}

func TestOptimizeIsIdempotent(t *testing.T) {
	pool := randomPool(rand.New(rand.NewSource(7)), 7)
	optimizer := NewOptimizer(0, domain.SideSell)

	first := optimizer.Optimize(pool, dec(300), nil)
	second := optimizer.Optimize(pool, dec(300), nil)
	require.Equal(t, first == nil, second == nil)
	if first != nil {
		assert.Equal(t, first.Fills, second.Fills)
		assert.True(t, first.AdjustedOutput.Equal(second.AdjustedOutput))
	}
}

func TestOptimizeInvariantsOnRandomPools(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 100; round++ {
		pool := randomPool(rng, 2+rng.Intn(3))
		target := dec(int64(50 + rng.Intn(400)))
		side := domain.SideSell
		if round%2 == 1 {
			side = domain.SideBuy
		}

		best, reachable := exhaustiveBest(pool, target, side.ShouldMinimize())
		path := NewOptimizer(1<<20, side).Optimize(pool, target, nil)
		if !reachable {
			require.Nil(t, path, "round %d: no path reaches %s", round, target)
			continue
		}
		require.NotNil(t, path, "round %d: a path reaches %s", round, target)
		assert.True(t, path.AdjustedOutput.Equal(best), "round %d: got %s, best %s", round, path.AdjustedOutput, best)

		total := decimal.Zero
		flags := domain.FillFlags(0)
		seen := make(map[int]bool)
		for pos, idx := range path.Fills {
			fill := pool[idx]
			require.False(t, seen[idx], "round %d: fill %d used twice", round, idx)
			seen[idx] = true

			if fill.Parent != domain.NoParent {
				require.Greater(t, pos, 0, "round %d: child %d leads the path", round, idx)
				require.Equal(t, fill.Parent, path.Fills[pos-1], "round %d: child %d detached from parent", round, idx)
			}
			require.False(t, flags.Intersects(fill.ExclusionMask), "round %d: fill %d excluded", round, idx)
			flags |= fill.Flags
			total = total.Add(fill.Input)
		}
		for _, idx := range path.Fills {
			require.False(t, flags.Intersects(pool[idx].ExclusionMask), "round %d: fill %d excluded", round, idx)
		}

		require.Len(t, path.Inputs, len(path.Fills))
		assert.True(t, decimal.Sum(decimal.Zero, path.Inputs...).Equal(path.Input), "round %d", round)
		assert.True(t, path.ExecutedAdjustedOutput(pool).Equal(path.AdjustedOutput), "round %d", round)
		assert.True(t, path.Input.Equal(target), "round %d", round)
		assert.True(t, total.GreaterThanOrEqual(target), "round %d", round)
	}
}

// exhaustiveBest tries every ordering of fills that respects chains and exclusions and
// evaluates each complete one from scratch.
func exhaustiveBest(pool []domain.Fill, target decimal.Decimal, minimize bool) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false

	var visit func(path []int, input decimal.Decimal)
	visit = func(path []int, input decimal.Decimal) {
		if input.GreaterThanOrEqual(target) {
			out := PathAdjustedOutput(pool, path, target)
			if !found || ComparePathOutputs(out, best, minimize) > 0 {
				best, found = out, true
			}
			return
		}
		last := domain.NoParent
		if len(path) > 0 {
			last = path[len(path)-1]
		}
	next:
		for idx := range pool {
			fill := &pool[idx]
			if fill.Parent != domain.NoParent && fill.Parent != last {
				continue
			}
			for _, used := range path {
				other := &pool[used]
				if used == idx || other.Flags.Intersects(fill.ExclusionMask) || other.ExclusionMask.Intersects(fill.Flags) {
					continue next
				}
			}
			visit(append(path[:len(path):len(path)], idx), input.Add(fill.Input))
		}
	}
	visit(nil, decimal.Zero)
	return best, found
}

func TestSortFillsByAdjustedRateKeepsChainsTogether(t *testing.T) {
	pool := []domain.Fill{
		rootFill(domain.SourceUniswap, 100, 90, 0),
		childFill(domain.SourceUniswap, 0, 100, 50),
		rootFill(domain.SourceEth2Dai, 100, 95, 0),
	}

	assert.Equal(t, []int{2, 0, 1}, SortFillsByAdjustedRate(pool, []int{0, 1, 2}, false))
	assert.Equal(t, []int{0, 1, 2}, SortFillsByAdjustedRate(pool, []int{0, 1, 2}, true))
}

func TestPartialFillOutput(t *testing.T) {
	fill := rootFill(domain.SourceUniswap, 3, 10, 0)

	assert.True(t, PartialFillOutput(&fill, dec(3)).Equal(dec(10)))
	assert.True(t, PartialFillOutput(&fill, dec(5)).Equal(dec(10)), "capped at full output")
	assert.True(t, PartialFillOutput(&fill, dec(1)).Equal(decimal.RequireFromString("3.333333333333333333")))

	empty := rootFill(domain.SourceUniswap, 0, 10, 0)
	assert.True(t, PartialFillOutput(&empty, dec(1)).IsZero())
}

func TestComparePathOutputs(t *testing.T) {
	assert.Equal(t, 1, ComparePathOutputs(dec(2), dec(1), false))
	assert.Equal(t, -1, ComparePathOutputs(dec(2), dec(1), true))
	assert.Equal(t, 0, ComparePathOutputs(dec(2), dec(2), true))
}

// randomPool builds chains of up to three fills per source with random exclusion masks.
func randomPool(rng *rand.Rand, roots int) []domain.Fill {
	sources := []domain.Source{domain.SourceUniswap, domain.SourceUniswapV2, domain.SourceEth2Dai, domain.SourceKyber}
	pool := make([]domain.Fill, 0)
	for r := 0; r < roots; r++ {
		flags := domain.FillFlags(1) << uint(rng.Intn(4))
		mask := domain.FillFlags(0)
		if rng.Intn(3) == 0 {
			mask = domain.FillFlags(1) << uint(rng.Intn(4))
			if mask == flags {
				mask = 0
			}
		}
		parent := domain.NoParent
		depth := 1 + rng.Intn(3)
		for d := 0; d < depth; d++ {
			input := int64(20 + rng.Intn(150))
			pool = append(pool, domain.Fill{
				Source:        sources[r%len(sources)],
				Input:         dec(input),
				Output:        dec(input * int64(80+rng.Intn(40)) / 100),
				FillPenalty:   dec(int64(rng.Intn(3))),
				Parent:        parent,
				Flags:         flags,
				ExclusionMask: mask,
				Index:         d,
			})
			parent = len(pool) - 1
		}
	}
	return pool
}

func BenchmarkOptimize(b *testing.B) {
	pool := randomPool(rand.New(rand.NewSource(1)), 6)
	optimizer := NewOptimizer(DefaultRunLimit, domain.SideSell)
	target := dec(400)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = optimizer.Optimize(pool, target, nil)
	}
}
