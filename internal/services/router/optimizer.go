package router

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hxuan190/fill-router/internal/domain"
	"github.com/hxuan190/fill-router/internal/metrics"
)

const (
	// DefaultRunLimit caps candidate expansions across one whole search.
	DefaultRunLimit = 1 << 15

	// AmountPrecision is the number of decimal places kept by partial fill interpolation.
	AmountPrecision = 18
)

// Path is an ordered selection of fills from a pool, referenced by pool index.
// Inputs[i] is the amount routed through Fills[i]; the sum is Input.
type Path struct {
	Fills          []int
	Inputs         []decimal.Decimal
	Input          decimal.Decimal
	AdjustedOutput decimal.Decimal
	Flags          domain.FillFlags
}

// NewPath allocates target across fills in order, each fill taking as much as it holds.
func NewPath(pool []domain.Fill, fills []int, target decimal.Decimal) *Path {
	inputs := AllocateInputs(pool, fills, target)
	p := &Path{Fills: fills, Inputs: inputs, Input: decimal.Sum(decimal.Zero, inputs...)}
	p.AdjustedOutput = p.ExecutedAdjustedOutput(pool)
	for _, idx := range fills {
		p.Flags |= pool[idx].Flags
	}
	return p
}

// Resolve returns the fills of the path in path order.
func (p *Path) Resolve(pool []domain.Fill) []domain.Fill {
	fills := make([]domain.Fill, len(p.Fills))
	for i, idx := range p.Fills {
		fills[i] = pool[idx]
	}
	return fills
}

func (p *Path) Len() int {
	return len(p.Fills)
}

// ExecutedOutput is the output of routing Inputs through Fills, ignoring penalties.
func (p *Path) ExecutedOutput(pool []domain.Fill) decimal.Decimal {
	return p.executedOutput(pool, false)
}

// ExecutedAdjustedOutput is ExecutedOutput minus the penalty of every fill in the path.
func (p *Path) ExecutedAdjustedOutput(pool []domain.Fill) decimal.Decimal {
	return p.executedOutput(pool, true)
}

func (p *Path) executedOutput(pool []domain.Fill, adjusted bool) decimal.Decimal {
	output := decimal.Zero
	for i, idx := range p.Fills {
		fill := &pool[idx]
		output = output.Add(PartialFillOutput(fill, p.Inputs[i]))
		if adjusted {
			output = output.Sub(fill.FillPenalty)
		}
	}
	return output
}

// AllocateInputs splits target over fills in order. Fills past the target get zero.
func AllocateInputs(pool []domain.Fill, fills []int, target decimal.Decimal) []decimal.Decimal {
	inputs := make([]decimal.Decimal, len(fills))
	remaining := target
	for i, idx := range fills {
		inputs[i] = decimal.Max(decimal.Zero, decimal.Min(pool[idx].Input, remaining))
		remaining = remaining.Sub(inputs[i])
	}
	return inputs
}

// Optimizer searches a fill pool for the path with the best penalty-adjusted output.
// It keeps no state between calls and is safe for concurrent use.
type Optimizer struct {
	runLimit int
	side     domain.Side
}

func NewOptimizer(runLimit int, side domain.Side) *Optimizer {
	if runLimit <= 0 {
		runLimit = DefaultRunLimit
	}
	return &Optimizer{runLimit: runLimit, side: side}
}

func (o *Optimizer) RunLimit() int {
	return o.runLimit
}

func (o *Optimizer) Side() domain.Side {
	return o.side
}

// searchState is owned by a single Optimize call.
type searchState struct {
	pool     []domain.Fill
	target   decimal.Decimal
	minimize bool

	runLimit  int
	runCount  int
	exhausted bool

	best       *Path
	bestOutput decimal.Decimal
}

// Optimize walks every contiguous, non-excluded combination of fills until the run limit
// is reached and returns the best complete path sorted for execution. Each fill keeps the
// input the search allocated to it, so the sorted path still yields AdjustedOutput.
// upperBound seeds the baseline and is returned when nothing beats it, with Inputs filled
// in when the caller left them empty.
// A nil result means no path reaches target.
func (o *Optimizer) Optimize(pool []domain.Fill, target decimal.Decimal, upperBound *Path) *Path {
	start := time.Now()

	state := &searchState{
		pool:       pool,
		target:     target,
		minimize:   o.side.ShouldMinimize(),
		runLimit:   o.runLimit,
		best:       upperBound,
		bestOutput: decimal.Zero,
	}
	if upperBound != nil {
		if len(upperBound.Inputs) != len(upperBound.Fills) {
			upperBound.Inputs = AllocateInputs(pool, upperBound.Fills, target)
		}
		state.bestOutput = PathAdjustedOutput(pool, upperBound.Fills, target)
	}

	candidates := make([]int, len(pool))
	for i := range pool {
		candidates[i] = i
	}
	state.walk(candidates, nil, decimal.Zero, decimal.Zero, 0, 0)

	metrics.OptimizerDuration.Observe(time.Since(start).Seconds())
	metrics.OptimizerSteps.Observe(float64(state.runCount))
	if state.exhausted {
		metrics.OptimizerRunLimitHits.Inc()
	}

	switch {
	case state.best == nil:
		metrics.OptimizerRuns.WithLabelValues(o.side.String(), "no_path").Inc()
		return nil
	case state.best == upperBound:
		metrics.OptimizerRuns.WithLabelValues(o.side.String(), "upper_bound").Inc()
		return upperBound
	}

	sortForExecution(pool, state.best, state.minimize)
	metrics.OptimizerRuns.WithLabelValues(o.side.String(), "found").Inc()
	metrics.PathLength.Observe(float64(state.best.Len()))
	return state.best
}

// walk expands candidates depth first. mask accumulates the exclusion masks of the path so that
// an earlier fill's mask also rules out later candidates.
func (s *searchState) walk(candidates []int, path []int, input, adjustedOutput decimal.Decimal, flags, mask domain.FillFlags) {
	if input.GreaterThanOrEqual(s.target) {
		s.consider(path, input, adjustedOutput, flags)
		return
	}

	last := domain.NoParent
	if len(path) > 0 {
		last = path[len(path)-1]
	}

	for _, idx := range candidates {
		if s.exhausted {
			return
		}
		fill := &s.pool[idx]

		// children only directly after their parent
		if fill.Parent != domain.NoParent && fill.Parent != last {
			continue
		}

		if s.runCount >= s.runLimit {
			s.exhausted = true
			return
		}
		s.runCount++

		nextInput := decimal.Min(s.target, input.Add(fill.Input))
		nextOutput := adjustedOutput.
			Add(PartialFillOutput(fill, nextInput.Sub(input))).
			Sub(fill.FillPenalty)
		nextFlags := flags | fill.Flags
		nextMask := mask | fill.ExclusionMask

		next := make([]int, 0, len(candidates))
		for _, c := range candidates {
			if c == idx || nextFlags.Intersects(s.pool[c].ExclusionMask) || nextMask.Intersects(s.pool[c].Flags) {
				continue
			}
			next = append(next, c)
		}

		// full slice expression forces a fresh backing array per branch
		nextPath := append(path[:len(path):len(path)], idx)
		s.walk(next, nextPath, nextInput, nextOutput, nextFlags, nextMask)
	}
}

func (s *searchState) consider(path []int, input, adjustedOutput decimal.Decimal, flags domain.FillFlags) {
	if s.best != nil && ComparePathOutputs(adjustedOutput, s.bestOutput, s.minimize) <= 0 {
		return
	}
	fills := path
	if fills == nil {
		fills = []int{}
	}
	s.best = &Path{
		Fills:          fills,
		Inputs:         AllocateInputs(s.pool, fills, s.target),
		Input:          input,
		AdjustedOutput: adjustedOutput,
		Flags:          flags,
	}
	s.bestOutput = adjustedOutput
}

// sortForExecution reorders the path by root adjusted rate and moves each fill's input with it.
// Path fills are distinct, so the index identifies the allocation.
func sortForExecution(pool []domain.Fill, path *Path, minimize bool) {
	allocated := make(map[int]decimal.Decimal, len(path.Fills))
	for i, idx := range path.Fills {
		allocated[idx] = path.Inputs[i]
	}
	path.Fills = SortFillsByAdjustedRate(pool, path.Fills, minimize)
	for i, idx := range path.Fills {
		path.Inputs[i] = allocated[idx]
	}
}

// PartialFillOutput interpolates the output of fill at partialInput, never exceeding its full output.
func PartialFillOutput(fill *domain.Fill, partialInput decimal.Decimal) decimal.Decimal {
	if !fill.Input.IsPositive() {
		return decimal.Zero
	}
	partial := fill.Output.Mul(partialInput).
		DivRound(fill.Input, AmountPrecision+2).
		Truncate(AmountPrecision)
	return decimal.Min(fill.Output, partial)
}

// PathOutput is the output of the fills in order up to maxInput, ignoring penalties.
// It assumes every fill before the last is consumed in full; use Path.ExecutedOutput for
// a sorted path.
func PathOutput(pool []domain.Fill, path []int, maxInput decimal.Decimal) decimal.Decimal {
	return pathOutput(pool, path, maxInput, false)
}

// PathAdjustedOutput is PathOutput minus the penalty of every fill touched.
func PathAdjustedOutput(pool []domain.Fill, path []int, maxInput decimal.Decimal) decimal.Decimal {
	return pathOutput(pool, path, maxInput, true)
}

func pathOutput(pool []domain.Fill, path []int, maxInput decimal.Decimal, adjusted bool) decimal.Decimal {
	input := decimal.Zero
	output := decimal.Zero
	for _, idx := range path {
		fill := &pool[idx]
		if input.Add(fill.Input).GreaterThanOrEqual(maxInput) {
			output = output.Add(PartialFillOutput(fill, maxInput.Sub(input)))
			if adjusted {
				output = output.Sub(fill.FillPenalty)
			}
			break
		}
		input = input.Add(fill.Input)
		output = output.Add(fill.Output)
		if adjusted {
			output = output.Sub(fill.FillPenalty)
		}
	}
	return output
}

// ComparePathOutputs returns 1 when a is better than b, -1 when worse and 0 on a tie.
func ComparePathOutputs(a, b decimal.Decimal, minimize bool) int {
	if minimize {
		return b.Cmp(a)
	}
	return a.Cmp(b)
}

// SortFillsByAdjustedRate orders path fills by the adjusted rate of their chain root,
// best first. Fills of one chain share a root rate, so the stable sort keeps the
// parent-before-child order a valid path already has.
func SortFillsByAdjustedRate(pool []domain.Fill, path []int, minimize bool) []int {
	sorted := make([]int, len(path))
	copy(sorted, path)

	rates := make(map[int]decimal.Decimal, len(sorted))
	for _, idx := range sorted {
		root := fillRoot(pool, idx)
		rates[idx] = pool[root].AdjustedRate()
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if isFillAncestorOf(pool, a, b) {
			return true
		}
		if isFillAncestorOf(pool, b, a) {
			return false
		}
		if minimize {
			return rates[a].LessThan(rates[b])
		}
		return rates[a].GreaterThan(rates[b])
	})
	return sorted
}

func fillRoot(pool []domain.Fill, idx int) int {
	root := idx
	for steps := 0; pool[root].Parent != domain.NoParent && steps < len(pool); steps++ {
		root = pool[root].Parent
	}
	return root
}

func isFillAncestorOf(pool []domain.Fill, ancestor, idx int) bool {
	current := pool[idx].Parent
	for steps := 0; current != domain.NoParent && steps < len(pool); steps++ {
		if current == ancestor {
			return true
		}
		current = pool[current].Parent
	}
	return false
}
