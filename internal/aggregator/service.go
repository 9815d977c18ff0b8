package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/fill-router/internal/adapters/blockchain"
	"github.com/hxuan190/fill-router/internal/config"
	"github.com/hxuan190/fill-router/internal/domain"
	"github.com/hxuan190/fill-router/internal/metrics"
	"github.com/hxuan190/fill-router/internal/services"
	"github.com/hxuan190/fill-router/internal/services/orders"
	"github.com/hxuan190/fill-router/internal/services/router"
	"github.com/hxuan190/fill-router/internal/services/sampler"
)

const AGGREGATOR_SERVICE = "aggregator-service"

var (
	ErrNoRoute         = errors.New("no route covers the requested amount")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidRate     = errors.New("eth to output rate must be non-negative")
	ErrInvalidSamples  = errors.New("sample count must be positive")
	ErrUnexpectedValue = errors.New("unexpected batch value")
	ErrRunLimitTooHigh = errors.New("run limit exceeds the configured maximum")
	ErrTooManySamples  = errors.New("sample count exceeds the configured maximum")
	ErrTooManyFills    = errors.New("fill pool exceeds the configured maximum")

	// Error aliases
	ErrUnsupportedSource     = sampler.ErrUnsupportedSource
	ErrFeeExceedsMakerAmount = orders.ErrFeeExceedsMakerAmount
)

// DefaultGasSchedule is the gas each source costs to touch once.
var DefaultGasSchedule = map[domain.Source]uint64{
	domain.SourceNative:    150_000,
	domain.SourceUniswap:   90_000,
	domain.SourceUniswapV2: 105_000,
	domain.SourceEth2Dai:   400_000,
	domain.SourceKyber:     500_000,
}

type GasPriceSource interface {
	GetGasPrice(ctx context.Context) (*big.Int, error)
}

type MarketQuoteRequest struct {
	Side       domain.Side
	MakerToken common.Address
	TakerToken common.Address
	// Amount is the taker amount on a sell and the maker amount on a buy.
	Amount *big.Int
	// EthToOutputRate converts one wei of gas cost into output token units.
	EthToOutputRate decimal.Decimal

	// optional overrides of RouterConfig
	Sources    []domain.Source
	NumSamples int
	RunLimit   int
}

func (r *MarketQuoteRequest) cacheKey(sources []domain.Source, numSamples, runLimit int) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%d",
		r.Side, r.MakerToken.Hex(), r.TakerToken.Hex(), r.Amount.String(),
		r.EthToOutputRate.String(), strings.Join(names, ","), numSamples, runLimit)
}

type CoverOrdersRequest struct {
	Orders []domain.Order
	Side   domain.Side
	Amount *big.Int
	// FeeRate prices taker fees in taker asset when ranking orders.
	FeeRate                  decimal.Decimal
	RemainingFillableAmounts []*big.Int
	// SlippageBufferAmount overrides the configured buffer when set.
	SlippageBufferAmount *big.Int
}

type Service struct {
	container.BaseDIInstance
	logger *services.ServiceLogger

	routerConfig  *config.RouterConfig
	samplerConfig *config.SamplerConfig
	rpcClient     *blockchain.RPCClientService

	gasPrices   GasPriceSource
	executor    *sampler.Executor
	cache       *QuoteCache
	gasSchedule map[domain.Source]uint64
}

// NewService builds a ready service outside the container.
func NewService(cfg *config.RouterConfig, executor *sampler.Executor, gasPrices GasPriceSource) *Service {
	svc := &Service{
		routerConfig: cfg,
		executor:     executor,
		gasPrices:    gasPrices,
		gasSchedule:  DefaultGasSchedule,
		cache:        NewQuoteCache(cfg.QuoteCacheTTL),
	}
	svc.logger = services.NewServiceLogger(svc)
	return svc
}

func (svc *Service) ID() string {
	return AGGREGATOR_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.logger = services.NewServiceLogger(svc)
	svc.routerConfig = c.GetConfig(config.ROUTER_CONFIG_KEY).(*config.RouterConfig)
	svc.samplerConfig = c.GetConfig(config.SAMPLER_CONFIG_KEY).(*config.SamplerConfig)
	svc.rpcClient = c.Instance(blockchain.RPC_CLIENT_SERVICE).(*blockchain.RPCClientService)
	svc.gasPrices = c.Instance(blockchain.GAS_PRICE_CACHE_SERVICE).(*blockchain.GasPriceCache)
	svc.gasSchedule = DefaultGasSchedule

	if err := svc.routerConfig.Validate(); err != nil {
		return err
	}
	return svc.samplerConfig.Validate()
}

func (svc *Service) Start() error {
	if svc.executor == nil {
		s, err := sampler.NewSampler(svc.samplerConfig.Address)
		if err != nil {
			return err
		}
		caller := blockchain.NewSamplerCaller(svc.rpcClient.RPC(), svc.samplerConfig.Address, svc.samplerConfig.CallTimeout)
		svc.executor = sampler.NewExecutor(s, caller)
	}
	if svc.cache == nil {
		svc.cache = NewQuoteCache(svc.routerConfig.QuoteCacheTTL)
	}

	svc.logger = svc.logger.With("sampler", svc.executor.Sampler().Address().Hex())
	svc.logger.Info().
		Int("runLimit", svc.routerConfig.RunLimit).
		Int("numSamples", svc.routerConfig.NumSamples).
		Msg("[aggregatorService] started")
	return nil
}

func (svc *Service) Stop() error {
	if svc.cache != nil {
		svc.cache.Stop()
	}
	return nil
}

func (svc *Service) RouterConfig() *config.RouterConfig {
	return svc.routerConfig
}

// GetMarketQuote samples every source in one batch, turns the curves into fills and returns
// the best path covering req.Amount.
func (svc *Service) GetMarketQuote(ctx context.Context, req MarketQuoteRequest) (*domain.SwapQuote, error) {
	start := time.Now()
	quote, err := svc.getMarketQuote(ctx, req)

	status := "ok"
	switch {
	case errors.Is(err, ErrNoRoute):
		status = "no_route"
	case err != nil:
		status = "error"
	}
	metrics.QuoteRequests.WithLabelValues(req.Side.String(), status).Inc()
	metrics.QuoteDuration.WithLabelValues(req.Side.String()).Observe(time.Since(start).Seconds())
	return quote, err
}

func (svc *Service) getMarketQuote(ctx context.Context, req MarketQuoteRequest) (*domain.SwapQuote, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.EthToOutputRate.IsNegative() {
		return nil, ErrInvalidRate
	}

	sources := req.Sources
	if len(sources) == 0 {
		sources = svc.routerConfig.Sources
	}
	numSamples := req.NumSamples
	if numSamples <= 0 {
		numSamples = svc.routerConfig.NumSamples
	}
	if err := svc.checkNumSamples(numSamples); err != nil {
		return nil, err
	}
	runLimit, err := svc.resolveRunLimit(req.RunLimit)
	if err != nil {
		return nil, err
	}

	key := req.cacheKey(sources, numSamples, runLimit)
	if cached := svc.cache.Get(key); cached != nil {
		metrics.QuoteCacheHits.Inc()
		return cached, nil
	}
	metrics.QuoteCacheMisses.Inc()

	amounts := router.GetSampleAmounts(req.Amount, numSamples, svc.routerConfig.SampleBase)

	var quotesOp *sampler.QuotesOperation
	if req.Side == domain.SideBuy {
		quotesOp, err = sampler.NewBuyQuotesOperation(sources, req.MakerToken, req.TakerToken, amounts)
	} else {
		quotesOp, err = sampler.NewSellQuotesOperation(sources, req.MakerToken, req.TakerToken, amounts)
	}
	if err != nil {
		return nil, err
	}

	gasPrice, err := svc.gasPrices.GetGasPrice(ctx)
	if err != nil {
		svc.logger.Degraded(err).Msg("[aggregatorService] gas price unavailable, quoting without penalties")
		gasPrice = new(big.Int)
	}

	values, err := svc.executor.ExecuteBatch(ctx, quotesOp, sampler.Constant(gasPrice))
	if err != nil {
		return nil, fmt.Errorf("sample sources: %w", err)
	}
	samples, ok := values[0].([][]domain.QuoteSample)
	if !ok {
		return nil, fmt.Errorf("%w: quotes decoded to %T", ErrUnexpectedValue, values[0])
	}
	batchGasPrice, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: gas price decoded to %T", ErrUnexpectedValue, values[1])
	}

	pool := router.FillsFromSamples(req.Side, samples, svc.penalties(sources, batchGasPrice, req.EthToOutputRate))
	target := decimal.NewFromBigInt(req.Amount, 0)

	upperBound := BestSingleSourcePath(pool, target, req.Side)
	path := router.NewOptimizer(runLimit, req.Side).Optimize(pool, target, upperBound)
	if path == nil {
		svc.logger.Debug().
			Str("side", req.Side.String()).
			Str("amount", req.Amount.String()).
			Int("fills", len(pool)).
			Msg("[aggregatorService] no route")
		return nil, ErrNoRoute
	}

	quote := buildSwapQuote(req, pool, path)
	quote.GasPrice = batchGasPrice
	svc.cache.Set(key, quote)
	return quote, nil
}

func (svc *Service) penalties(sources []domain.Source, gasPrice *big.Int, ethToOutputRate decimal.Decimal) map[domain.Source]decimal.Decimal {
	penalties := make(map[domain.Source]decimal.Decimal, len(sources))
	price := decimal.NewFromBigInt(gasPrice, 0)
	for _, source := range sources {
		gas, ok := svc.gasSchedule[source]
		if !ok {
			continue
		}
		penalties[source] = decimal.NewFromInt(int64(gas)).Mul(price).Mul(ethToOutputRate)
	}
	return penalties
}

// BestSingleSourcePath is the best complete path that stays on one source chain, or nil.
func BestSingleSourcePath(pool []domain.Fill, target decimal.Decimal, side domain.Side) *router.Path {
	var best *router.Path
	for root := range pool {
		if !pool[root].IsRoot() {
			continue
		}
		chain := []int{root}
		input := pool[root].Input
		for i := root + 1; i < len(pool) && pool[i].Parent == chain[len(chain)-1]; i++ {
			if input.GreaterThanOrEqual(target) {
				break
			}
			chain = append(chain, i)
			input = input.Add(pool[i].Input)
		}
		if input.LessThan(target) {
			continue
		}

		candidate := router.NewPath(pool, chain, target)
		if best != nil && router.ComparePathOutputs(candidate.AdjustedOutput, best.AdjustedOutput, side.ShouldMinimize()) <= 0 {
			continue
		}
		best = candidate
	}
	return best
}

// buildSwapQuote reports the allocation the path carries. Totals, breakdown and price impact
// all derive from path.Inputs in execution order.
func buildSwapQuote(req MarketQuoteRequest, pool []domain.Fill, path *router.Path) *domain.SwapQuote {
	quote := &domain.SwapQuote{
		Side:           req.Side,
		MakerToken:     req.MakerToken.Hex(),
		TakerToken:     req.TakerToken.Hex(),
		Amount:         new(big.Int).Set(req.Amount),
		TotalInput:     path.Input,
		TotalOutput:    path.ExecutedOutput(pool),
		AdjustedOutput: path.ExecutedAdjustedOutput(pool),
		Fills:          path.Resolve(pool),
		FillInputs:     append([]decimal.Decimal(nil), path.Inputs...),
	}
	quote.PriceImpactBps = router.CalculatePriceImpact(router.SpotRate(pool, req.Side), quote.TotalInput, quote.TotalOutput, req.Side)

	type share struct {
		input, output decimal.Decimal
	}
	shares := make(map[domain.Source]*share)
	var order []domain.Source

	taken := decimal.Zero
	for i := range quote.Fills {
		fill := &quote.Fills[i]
		input := path.Inputs[i]
		taken = taken.Add(input)

		s, ok := shares[fill.Source]
		if !ok {
			s = &share{}
			shares[fill.Source] = s
			order = append(order, fill.Source)
		}
		s.input = s.input.Add(input)
		s.output = s.output.Add(router.PartialFillOutput(fill, input))
	}

	quote.Breakdown = make([]domain.SourceBreakdown, 0, len(order))
	for _, source := range order {
		s := shares[source]
		percent := decimal.Zero
		if taken.IsPositive() {
			percent = s.input.DivRound(taken, 6)
		}
		quote.Breakdown = append(quote.Breakdown, domain.SourceBreakdown{
			Source:  source,
			Input:   s.input,
			Output:  s.output,
			Percent: percent,
		})
	}
	return quote
}

// OptimizeFills runs the optimizer over a caller supplied fill pool.
func (svc *Service) OptimizeFills(side domain.Side, pool []domain.Fill, target decimal.Decimal, runLimit int) (*router.Path, error) {
	if target.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if len(pool) > svc.routerConfig.MaxFills {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyFills, len(pool), svc.routerConfig.MaxFills)
	}
	if err := ValidateFillPool(pool); err != nil {
		return nil, err
	}
	runLimit, err := svc.resolveRunLimit(runLimit)
	if err != nil {
		return nil, err
	}
	path := router.NewOptimizer(runLimit, side).Optimize(pool, target, nil)
	if path == nil {
		return nil, ErrNoRoute
	}
	return path, nil
}

// resolveRunLimit resolves a requested run limit: zero or less means the configured default,
// anything above MaxRunLimit is rejected.
func (svc *Service) resolveRunLimit(requested int) (int, error) {
	if requested <= 0 {
		return svc.routerConfig.RunLimit, nil
	}
	if requested > svc.routerConfig.MaxRunLimit {
		return 0, fmt.Errorf("%w: %d > %d", ErrRunLimitTooHigh, requested, svc.routerConfig.MaxRunLimit)
	}
	return requested, nil
}

func (svc *Service) checkNumSamples(n int) error {
	if n > svc.routerConfig.MaxNumSamples {
		return fmt.Errorf("%w: %d > %d", ErrTooManySamples, n, svc.routerConfig.MaxNumSamples)
	}
	return nil
}

var ErrInvalidFillPool = errors.New("invalid fill pool")

// ValidateFillPool rejects pools whose parent links point outside the pool, forward, or at the fill itself.
func ValidateFillPool(pool []domain.Fill) error {
	for i, fill := range pool {
		if fill.Parent != domain.NoParent && (fill.Parent < 0 || fill.Parent >= i) {
			return fmt.Errorf("%w: fill %d has parent %d", ErrInvalidFillPool, i, fill.Parent)
		}
		if fill.Input.IsNegative() || fill.Output.IsNegative() {
			return fmt.Errorf("%w: fill %d has negative amounts", ErrInvalidFillPool, i)
		}
	}
	return nil
}

// CoverOrders ranks orders by fee-adjusted rate and selects the cheapest that cover req.Amount.
func (svc *Service) CoverOrders(req CoverOrdersRequest) (*orders.CoverResult, error) {
	if req.Amount == nil || req.Amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	fillable := req.RemainingFillableAmounts
	if fillable != nil && len(fillable) != len(req.Orders) {
		return nil, orders.ErrFillableAmountsLength
	}

	ranks, err := orders.RankOrdersByFeeAdjustedRate(req.Orders, req.FeeRate)
	if err != nil {
		return nil, err
	}
	ranked := make([]domain.Order, len(ranks))
	var rankedFillable []*big.Int
	if fillable != nil {
		rankedFillable = make([]*big.Int, len(ranks))
	}
	for i, idx := range ranks {
		ranked[i] = req.Orders[idx]
		if fillable != nil {
			rankedFillable[i] = fillable[idx]
		}
	}

	buffer := req.SlippageBufferAmount
	if buffer == nil && svc.routerConfig.SlippageBufferBps > 0 {
		buffer = new(big.Int).Mul(req.Amount, big.NewInt(int64(svc.routerConfig.SlippageBufferBps)))
		buffer.Quo(buffer, big.NewInt(10_000))
	}

	return orders.FindOrdersThatCoverFillAmount(ranked, req.Amount, req.Side, orders.CoverOptions{
		RemainingFillableAmounts: rankedFillable,
		SlippageBufferAmount:     buffer,
	})
}

// SampleAmounts exposes the sample distribution used for quoting.
func (svc *Service) SampleAmounts(maxAmount *big.Int, numSamples int, expBase decimal.Decimal) ([]*big.Int, error) {
	if maxAmount == nil || maxAmount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if numSamples <= 0 {
		return nil, ErrInvalidSamples
	}
	if err := svc.checkNumSamples(numSamples); err != nil {
		return nil, err
	}
	if expBase.IsZero() {
		expBase = svc.routerConfig.SampleBase
	}
	return router.GetSampleAmounts(maxAmount, numSamples, expBase), nil
}
