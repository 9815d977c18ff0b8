package http

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/fill-router/internal/adapters/blockchain"
	"github.com/hxuan190/fill-router/internal/aggregator"
	"github.com/hxuan190/fill-router/internal/common"
	"github.com/hxuan190/fill-router/internal/http/httputil"
	"github.com/hxuan190/fill-router/internal/http/middlewares"
	"github.com/hxuan190/fill-router/internal/services/orders"
	"github.com/hxuan190/fill-router/internal/services/sampler"
)

var clientErrors = []error{
	aggregator.ErrInvalidAmount,
	aggregator.ErrInvalidRate,
	aggregator.ErrInvalidSamples,
	aggregator.ErrInvalidFillPool,
	aggregator.ErrUnsupportedSource,
	aggregator.ErrRunLimitTooHigh,
	aggregator.ErrTooManySamples,
	aggregator.ErrTooManyFills,
	sampler.ErrAmountOverflow,
	orders.ErrFillableAmountsLength,
	orders.ErrInvalidFillAmount,
	orders.ErrInvalidOrderAmount,
	orders.ErrNegativeFeeRate,
	orders.ErrFeeExceedsMakerAmount,
}

var upstreamErrors = []error{
	blockchain.ErrCallFailed,
	sampler.ErrResultCountMismatch,
	context.DeadlineExceeded,
}

func toHttpError(err error) *common.HttpError {
	if errors.Is(err, aggregator.ErrNoRoute) {
		return common.HTTPErrorNoRoute(err.Error())
	}
	for _, target := range upstreamErrors {
		if errors.Is(err, target) {
			return common.HTTPErrorUpstream(err.Error())
		}
	}
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return common.HTTPErrorBadRequest(err.Error())
		}
	}
	return common.HTTPErrorInternalError(err.Error())
}

func writeError(c *gin.Context, err error) {
	httpErr := toHttpError(err)
	if httpErr.StatusCode >= 500 {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middlewares.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("[http] request failed")
	}
	httputil.HandleHttpError(c, httpErr)
}
