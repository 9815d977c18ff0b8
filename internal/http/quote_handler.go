package http

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/fill-router/internal/aggregator"
	"github.com/hxuan190/fill-router/internal/config"
	"github.com/hxuan190/fill-router/internal/domain"
	"github.com/hxuan190/fill-router/internal/http/httputil"
	"github.com/hxuan190/fill-router/internal/services/router"
)

type QuoteHandler struct {
	aggregatorSvc Aggregator
}

func NewQuoteHandler(aggregatorSvc Aggregator) *QuoteHandler {
	return &QuoteHandler{aggregatorSvc: aggregatorSvc}
}

func (h *QuoteHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getQuote)
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

// QuoteRequest represents the parameters for requesting a market quote
type QuoteRequest struct {
	// Market side: "sell" fixes the taker amount, "buy" fixes the maker amount
	Side string `form:"side" binding:"required" enums:"sell,buy" example:"sell"`

	// Token the taker receives
	MakerToken string `form:"makerToken" binding:"required" example:"0x6B175474E89094C44Da98b954EedeAC495271d0F"`

	// Token the taker pays
	TakerToken string `form:"takerToken" binding:"required" example:"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"`

	// Amount in base units of the side's fixed token
	Amount string `form:"amount" binding:"required" example:"1000000000000000000"`

	// Output token units per wei, used to price gas. Zero disables gas penalties.
	EthToOutputRate string `form:"ethToOutputRate" example:"0.0000000000000003"`

	// Comma separated source list, defaults to the configured sources
	Sources string `form:"sources" example:"Uniswap,Kyber"`

	NumSamples int `form:"numSamples" example:"13"`
	RunLimit   int `form:"runLimit" example:"32768"`
}

type FillResponse struct {
	Source string `json:"source" example:"Uniswap"`
	Input  string `json:"input" example:"500000000000000000"`
	Output string `json:"output" example:"99000000000000000000"`
	// Amount of the fill's input actually routed through it
	Routed string `json:"routed" example:"500000000000000000"`
}

type BreakdownResponse struct {
	Source  string `json:"source" example:"Kyber"`
	Input   string `json:"input" example:"1000000000000000000"`
	Output  string `json:"output" example:"198000000000000000000"`
	Percent string `json:"percent" example:"1"`
}

// QuoteResponse contains the selected fills and per-source totals
type QuoteResponse struct {
	Side           string `json:"side" example:"sell"`
	MakerToken     string `json:"makerToken"`
	TakerToken     string `json:"takerToken"`
	Amount         string `json:"amount"`
	TotalInput     string `json:"totalInput"`
	TotalOutput    string `json:"totalOutput"`
	AdjustedOutput string `json:"adjustedOutput"`
	GasPrice       string `json:"gasPrice,omitempty"`

	// Price impact in basis points against the best first-sample rate
	PriceImpactBps      uint16 `json:"priceImpactBps" example:"25"`
	PriceImpactSeverity string `json:"priceImpactSeverity" enums:"none,low,moderate,high,extreme" example:"none"`
	PriceImpactWarning  string `json:"priceImpactWarning,omitempty"`

	Fills     []FillResponse      `json:"fills"`
	Breakdown []BreakdownResponse `json:"breakdown"`
}

func (h *QuoteHandler) parseQuoteRequest(c *gin.Context) (*aggregator.MarketQuoteRequest, bool) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return nil, false
	}

	side, err := domain.ParseSide(req.Side)
	if err != nil {
		httputil.HandleBadRequest(c, "invalid side: must be sell or buy")
		return nil, false
	}
	if !common.IsHexAddress(req.MakerToken) {
		httputil.HandleBadRequest(c, "invalid makerToken address")
		return nil, false
	}
	if !common.IsHexAddress(req.TakerToken) {
		httputil.HandleBadRequest(c, "invalid takerToken address")
		return nil, false
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		httputil.HandleBadRequest(c, "invalid amount: must be a positive integer")
		return nil, false
	}

	rate := decimal.Zero
	if req.EthToOutputRate != "" {
		if rate, err = decimal.NewFromString(req.EthToOutputRate); err != nil {
			httputil.HandleBadRequest(c, "invalid ethToOutputRate")
			return nil, false
		}
	}

	return &aggregator.MarketQuoteRequest{
		Side:            side,
		MakerToken:      common.HexToAddress(req.MakerToken),
		TakerToken:      common.HexToAddress(req.TakerToken),
		Amount:          amount,
		EthToOutputRate: rate,
		Sources:         config.ParseSources(req.Sources),
		NumSamples:      req.NumSamples,
		RunLimit:        req.RunLimit,
	}, true
}

func buildQuoteResponse(quote *domain.SwapQuote) QuoteResponse {
	resp := QuoteResponse{
		Side:           quote.Side.String(),
		MakerToken:     quote.MakerToken,
		TakerToken:     quote.TakerToken,
		Amount:         quote.Amount.String(),
		TotalInput:     quote.TotalInput.String(),
		TotalOutput:    quote.TotalOutput.String(),
		AdjustedOutput: quote.AdjustedOutput.String(),
		PriceImpactBps: quote.PriceImpactBps,
		Fills:          make([]FillResponse, 0, len(quote.Fills)),
		Breakdown:      make([]BreakdownResponse, 0, len(quote.Breakdown)),
	}
	resp.PriceImpactSeverity = string(router.GetPriceImpactSeverity(quote.PriceImpactBps))
	resp.PriceImpactWarning = router.GetPriceImpactWarning(quote.PriceImpactBps)
	if quote.GasPrice != nil {
		resp.GasPrice = quote.GasPrice.String()
	}
	for i, fill := range quote.Fills {
		routed := fill.Input
		if i < len(quote.FillInputs) {
			routed = quote.FillInputs[i]
		}
		resp.Fills = append(resp.Fills, FillResponse{
			Source: fill.Source.String(),
			Input:  fill.Input.String(),
			Output: fill.Output.String(),
			Routed: routed.String(),
		})
	}
	for _, b := range quote.Breakdown {
		resp.Breakdown = append(resp.Breakdown, BreakdownResponse{
			Source:  b.Source.String(),
			Input:   b.Input.String(),
			Output:  b.Output.String(),
			Percent: b.Percent.String(),
		})
	}
	return resp
}

// @Summary Get market quote
// @Description Samples every enabled source in one batched sampler call, prices gas into each fill
// @Description and returns the combination of fills with the best adjusted output.
// @Tags quote
// @Produce json
// @Param side query string true "Market side" Enums(sell, buy)
// @Param makerToken query string true "Maker token address"
// @Param takerToken query string true "Taker token address"
// @Param amount query string true "Amount in base units"
// @Param ethToOutputRate query string false "Output token units per wei of gas"
// @Param sources query string false "Comma separated sources"
// @Param numSamples query int false "Samples per source"
// @Param runLimit query int false "Optimizer run limit"
// @Success 200 {object} QuoteResponse
// @Failure 400 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/quote [get]
func (h *QuoteHandler) getQuote(c *gin.Context) {
	req, ok := h.parseQuoteRequest(c)
	if !ok {
		return
	}

	quote, err := h.aggregatorSvc.GetMarketQuote(c.Request.Context(), *req)
	if err != nil {
		writeError(c, err)
		return
	}
	httputil.HandleSuccess(c, buildQuoteResponse(quote))
}
