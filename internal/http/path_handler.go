package http

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/fill-router/internal/domain"
	"github.com/hxuan190/fill-router/internal/http/httputil"
)

type PathHandler struct {
	aggregatorSvc Aggregator
}

func NewPathHandler(aggregatorSvc Aggregator) *PathHandler {
	return &PathHandler{aggregatorSvc: aggregatorSvc}
}

func (h *PathHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.POST("/optimize", h.optimize)
}

func (h *PathHandler) Root() string {
	return "/paths"
}

// FillRequest is one fill of a caller supplied pool. A missing parent starts a chain.
type FillRequest struct {
	Source        string `json:"source" example:"Uniswap"`
	Input         string `json:"input" example:"100"`
	Output        string `json:"output" example:"100"`
	FillPenalty   string `json:"fillPenalty,omitempty" example:"0"`
	Parent        *int   `json:"parent,omitempty"`
	Flags         uint64 `json:"flags" example:"1"`
	ExclusionMask uint64 `json:"exclusionMask" example:"0"`
}

type OptimizeRequest struct {
	Side     string        `json:"side" example:"sell"`
	Target   string        `json:"target" example:"170"`
	RunLimit int           `json:"runLimit,omitempty" example:"32768"`
	Fills    []FillRequest `json:"fills"`
}

type OptimizeResponse struct {
	// Pool indexes of the selected fills in execution order
	Fills []int `json:"fills"`
	// Amount routed through each fill, parallel to Fills
	Inputs         []string `json:"inputs"`
	Input          string   `json:"input"`
	AdjustedOutput string   `json:"adjustedOutput"`
	Flags          uint64   `json:"flags"`
}

func parseDecimal(raw string, name string, idx int) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s on fill %d", name, idx)
	}
	return d, nil
}

func (r *OptimizeRequest) toPool() ([]domain.Fill, error) {
	pool := make([]domain.Fill, len(r.Fills))
	for i, f := range r.Fills {
		input, err := parseDecimal(f.Input, "input", i)
		if err != nil {
			return nil, err
		}
		output, err := parseDecimal(f.Output, "output", i)
		if err != nil {
			return nil, err
		}
		penalty, err := parseDecimal(f.FillPenalty, "fillPenalty", i)
		if err != nil {
			return nil, err
		}
		parent := domain.NoParent
		if f.Parent != nil {
			parent = *f.Parent
		}
		pool[i] = domain.Fill{
			Source:        domain.Source(f.Source),
			Input:         input,
			Output:        output,
			FillPenalty:   penalty,
			Parent:        parent,
			Flags:         domain.FillFlags(f.Flags),
			ExclusionMask: domain.FillFlags(f.ExclusionMask),
			Index:         i,
		}
	}
	return pool, nil
}

// @Summary Optimize a fill pool
// @Description Finds the path through a caller supplied fill pool with the best penalty-adjusted output for the target amount.
// @Tags paths
// @Accept json
// @Produce json
// @Param request body OptimizeRequest true "Fill pool and target"
// @Success 200 {object} OptimizeResponse
// @Failure 400 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/paths/optimize [post]
func (h *PathHandler) optimize(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		httputil.HandleBadRequest(c, "failed to read body")
		return
	}
	var req OptimizeRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		httputil.HandleBadRequest(c, "invalid body: "+err.Error())
		return
	}

	side, err := domain.ParseSide(req.Side)
	if err != nil {
		httputil.HandleBadRequest(c, "invalid side: must be sell or buy")
		return
	}
	target, err := decimal.NewFromString(req.Target)
	if err != nil {
		httputil.HandleBadRequest(c, "invalid target")
		return
	}
	pool, err := req.toPool()
	if err != nil {
		httputil.HandleBadRequest(c, err.Error())
		return
	}

	path, err := h.aggregatorSvc.OptimizeFills(side, pool, target, req.RunLimit)
	if err != nil {
		writeError(c, err)
		return
	}

	fills := path.Fills
	if fills == nil {
		fills = []int{}
	}
	inputs := make([]string, len(path.Inputs))
	for i, in := range path.Inputs {
		inputs[i] = in.String()
	}
	httputil.HandleSuccess(c, OptimizeResponse{
		Fills:          fills,
		Inputs:         inputs,
		Input:          path.Input.String(),
		AdjustedOutput: path.AdjustedOutput.String(),
		Flags:          uint64(path.Flags),
	})
}
