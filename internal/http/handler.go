package http

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	gohttp "net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/fill-router/internal/aggregator"
	"github.com/hxuan190/fill-router/internal/config"
	"github.com/hxuan190/fill-router/internal/domain"
	"github.com/hxuan190/fill-router/internal/http/httputil"
	"github.com/hxuan190/fill-router/internal/http/middlewares"
	"github.com/hxuan190/fill-router/internal/services/orders"
	"github.com/hxuan190/fill-router/internal/services/router"
)

const (
	API_VERSION  = "v1"
	HTTP_SERVICE = "http-service"
)

// Aggregator is the part of the aggregator service the HTTP surface serves.
type Aggregator interface {
	GetMarketQuote(ctx context.Context, req aggregator.MarketQuoteRequest) (*domain.SwapQuote, error)
	OptimizeFills(side domain.Side, pool []domain.Fill, target decimal.Decimal, runLimit int) (*router.Path, error)
	CoverOrders(req aggregator.CoverOrdersRequest) (*orders.CoverResult, error)
	SampleAmounts(maxAmount *big.Int, numSamples int, expBase decimal.Decimal) ([]*big.Int, error)
}

type HTTPService struct {
	container.BaseDIInstance

	aggregatorSvc Aggregator
	rateLimiter   *middlewares.RateLimiter
	server        *gohttp.Server
	conf          *config.GeneralConfig

	handlers []httputil.IHttpHandler
}

func (svc *HTTPService) ID() string {
	return HTTP_SERVICE
}

func (svc *HTTPService) Configure(c container.IContainer) error {
	svc.conf = c.GetConfig(config.GENERAL_CONFIG_KEY).(*config.GeneralConfig)
	if svc.conf == nil {
		return errors.New("invalid server config")
	}

	svc.aggregatorSvc = c.Instance(aggregator.AGGREGATOR_SERVICE).(*aggregator.Service)
	if svc.conf.RateLimitPerSecond > 0 {
		svc.rateLimiter = middlewares.NewRateLimiter(svc.conf.RateLimitPerSecond, svc.conf.RateLimitBurst)
	}
	svc.handlers = DefaultHandlers(svc.aggregatorSvc)
	return nil
}

func (svc *HTTPService) Start() error {
	if svc.conf.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := NewEngine(svc.rateLimiter, svc.handlers...)

	svc.server = &gohttp.Server{
		Addr:         svc.conf.Addr(),
		Handler:      r,
		ReadTimeout:  svc.conf.ReadTimeout,
		WriteTimeout: svc.conf.WriteTimeout,
	}
	log.Info().Str("addr", svc.server.Addr).Bool("rateLimited", svc.rateLimiter != nil).Msg("http server started")

	if err := svc.server.ListenAndServe(); err != nil && err != gohttp.ErrServerClosed {
		return err
	}
	return nil
}

func (svc *HTTPService) Stop() error {
	if svc.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), svc.conf.ShutdownTimeout)
	defer cancel()

	if err := svc.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
		return err
	}
	log.Info().Msg("http server stopped gracefully")
	return nil
}

func DefaultHandlers(svc Aggregator) []httputil.IHttpHandler {
	return []httputil.IHttpHandler{
		NewQuoteHandler(svc),
		NewSampleHandler(svc),
		NewPathHandler(svc),
		NewOrderHandler(svc),
	}
}

// NewEngine builds the gin engine with middlewares, ops endpoints and every handler mounted under /api/v1.
func NewEngine(rateLimiter *middlewares.RateLimiter, handlers ...httputil.IHttpHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	r.Use(cors.New(corsConf))

	r.Use(middlewares.RequestIDMiddleware())
	r.Use(middlewares.MetricsMiddleware())
	if rateLimiter != nil {
		r.Use(rateLimiter.RateLimitMiddleware())
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(gohttp.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("api")
	pub := api.Group(API_VERSION)
	priv := api.Group(API_VERSION)
	admin := api.Group(fmt.Sprintf("%s/admin", API_VERSION))

	for _, h := range handlers {
		h.SetRoutes(pub.Group(h.Root()), priv.Group(h.Root()), admin.Group(h.Root()))
	}
	return r
}
