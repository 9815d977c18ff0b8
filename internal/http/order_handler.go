package http

import (
	"fmt"
	"math/big"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/fill-router/internal/aggregator"
	"github.com/hxuan190/fill-router/internal/domain"
	"github.com/hxuan190/fill-router/internal/http/httputil"
)

type OrderHandler struct {
	aggregatorSvc Aggregator
}

func NewOrderHandler(aggregatorSvc Aggregator) *OrderHandler {
	return &OrderHandler{aggregatorSvc: aggregatorSvc}
}

func (h *OrderHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.POST("/cover", h.cover)
}

func (h *OrderHandler) Root() string {
	return "/orders"
}

type OrderRequest struct {
	Hash             string `json:"hash"`
	MakerAssetAmount string `json:"makerAssetAmount" example:"100"`
	TakerAssetAmount string `json:"takerAssetAmount" example:"50"`
	MakerFee         string `json:"makerFee,omitempty" example:"0"`
	TakerFee         string `json:"takerFee,omitempty" example:"0"`
}

type CoverRequest struct {
	Side                     string         `json:"side" example:"sell"`
	Amount                   string         `json:"amount" example:"75"`
	FeeRate                  string         `json:"feeRate,omitempty" example:"0"`
	SlippageBufferAmount     string         `json:"slippageBufferAmount,omitempty"`
	RemainingFillableAmounts []string       `json:"remainingFillableAmounts,omitempty"`
	Orders                   []OrderRequest `json:"orders"`
}

type CoverResponse struct {
	Orders                   []OrderRequest `json:"orders"`
	RemainingFillableAmounts []string       `json:"remainingFillableAmounts"`
	RemainingFillAmount      string         `json:"remainingFillAmount"`
}

func parseBigInt(raw string, name string) (*big.Int, error) {
	if raw == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func (r *CoverRequest) toCoverOrdersRequest() (*aggregator.CoverOrdersRequest, error) {
	side, err := domain.ParseSide(r.Side)
	if err != nil {
		return nil, err
	}
	if r.Amount == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, err := parseBigInt(r.Amount, "amount")
	if err != nil {
		return nil, err
	}
	feeRate := decimal.Zero
	if r.FeeRate != "" {
		if feeRate, err = decimal.NewFromString(r.FeeRate); err != nil {
			return nil, fmt.Errorf("invalid feeRate")
		}
	}

	out := &aggregator.CoverOrdersRequest{
		Orders:  make([]domain.Order, len(r.Orders)),
		Side:    side,
		Amount:  amount,
		FeeRate: feeRate,
	}
	if r.SlippageBufferAmount != "" {
		if out.SlippageBufferAmount, err = parseBigInt(r.SlippageBufferAmount, "slippageBufferAmount"); err != nil {
			return nil, err
		}
	}
	if r.RemainingFillableAmounts != nil {
		out.RemainingFillableAmounts = make([]*big.Int, len(r.RemainingFillableAmounts))
		for i, raw := range r.RemainingFillableAmounts {
			if out.RemainingFillableAmounts[i], err = parseBigInt(raw, fmt.Sprintf("remainingFillableAmounts[%d]", i)); err != nil {
				return nil, err
			}
		}
	}

	for i, o := range r.Orders {
		order := domain.Order{Hash: o.Hash}
		if order.MakerAssetAmount, err = parseBigInt(o.MakerAssetAmount, "makerAssetAmount"); err != nil {
			return nil, err
		}
		if order.TakerAssetAmount, err = parseBigInt(o.TakerAssetAmount, "takerAssetAmount"); err != nil {
			return nil, err
		}
		if order.MakerFee, err = parseBigInt(o.MakerFee, "makerFee"); err != nil {
			return nil, err
		}
		if order.TakerFee, err = parseBigInt(o.TakerFee, "takerFee"); err != nil {
			return nil, err
		}
		out.Orders[i] = order
	}
	return out, nil
}

func orderToResponse(o domain.Order) OrderRequest {
	str := func(v *big.Int) string {
		if v == nil {
			return "0"
		}
		return v.String()
	}
	return OrderRequest{
		Hash:             o.Hash,
		MakerAssetAmount: str(o.MakerAssetAmount),
		TakerAssetAmount: str(o.TakerAssetAmount),
		MakerFee:         str(o.MakerFee),
		TakerFee:         str(o.TakerFee),
	}
}

// @Summary Cover an amount with orders
// @Description Ranks the given orders by fee-adjusted rate and selects the best ones until the amount plus slippage buffer is covered.
// @Tags orders
// @Accept json
// @Produce json
// @Param request body CoverRequest true "Orders and amount"
// @Success 200 {object} CoverResponse
// @Failure 400 {object} httputil.Response
// @Router /api/v1/orders/cover [post]
func (h *OrderHandler) cover(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		httputil.HandleBadRequest(c, "failed to read body")
		return
	}
	var req CoverRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		httputil.HandleBadRequest(c, "invalid body: "+err.Error())
		return
	}
	coverReq, err := req.toCoverOrdersRequest()
	if err != nil {
		httputil.HandleBadRequest(c, err.Error())
		return
	}

	result, err := h.aggregatorSvc.CoverOrders(*coverReq)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := CoverResponse{
		Orders:                   make([]OrderRequest, len(result.Orders)),
		RemainingFillableAmounts: make([]string, len(result.RemainingFillableAmounts)),
		RemainingFillAmount:      result.RemainingFillAmount.String(),
	}
	for i, o := range result.Orders {
		resp.Orders[i] = orderToResponse(o)
	}
	for i, a := range result.RemainingFillableAmounts {
		resp.RemainingFillableAmounts[i] = a.String()
	}
	httputil.HandleSuccess(c, resp)
}
