package http

import (
	"math/big"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/fill-router/internal/http/httputil"
)

type SampleHandler struct {
	aggregatorSvc Aggregator
}

func NewSampleHandler(aggregatorSvc Aggregator) *SampleHandler {
	return &SampleHandler{aggregatorSvc: aggregatorSvc}
}

func (h *SampleHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getSamples)
}

func (h *SampleHandler) Root() string {
	return "/samples"
}

type SampleRequest struct {
	Amount     string `form:"amount" binding:"required" example:"10000"`
	NumSamples int    `form:"numSamples" binding:"required" example:"13"`
	ExpBase    string `form:"expBase" example:"1.05"`
}

type SampleResponse struct {
	Amounts []string `json:"amounts"`
}

// @Summary Get sample amounts
// @Description Returns the increasing sample amounts a quote would probe each source with. The last amount always equals the requested amount.
// @Tags quote
// @Produce json
// @Param amount query string true "Maximum amount"
// @Param numSamples query int true "Number of samples"
// @Param expBase query string false "Exponential base"
// @Success 200 {object} SampleResponse
// @Failure 400 {object} httputil.Response
// @Router /api/v1/samples [get]
func (h *SampleHandler) getSamples(c *gin.Context) {
	var req SampleRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		httputil.HandleBadRequest(c, "invalid amount")
		return
	}
	base := decimal.Zero
	if req.ExpBase != "" {
		var err error
		if base, err = decimal.NewFromString(req.ExpBase); err != nil || !base.IsPositive() {
			httputil.HandleBadRequest(c, "invalid expBase")
			return
		}
	}

	amounts, err := h.aggregatorSvc.SampleAmounts(amount, req.NumSamples, base)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := SampleResponse{Amounts: make([]string, len(amounts))}
	for i, a := range amounts {
		resp.Amounts[i] = a.String()
	}
	httputil.HandleSuccess(c, resp)
}
