package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Optimizer metrics
	OptimizerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fillrouter_optimizer_runs_total",
			Help: "Total number of fill path searches",
		},
		[]string{"side", "result"},
	)

	OptimizerSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fillrouter_optimizer_steps",
		Help:    "Candidate fill expansions per search",
		Buckets: []float64{1, 10, 100, 1000, 4096, 8192, 16384, 32768, 65536},
	})

	OptimizerRunLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fillrouter_optimizer_run_limit_hits_total",
		Help: "Total number of searches stopped by the run limit",
	})

	OptimizerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fillrouter_optimizer_duration_seconds",
		Help:    "Fill path search duration in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	PathLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fillrouter_path_length",
		Help:    "Number of fills in the selected path",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})

	// Sampler batch metrics
	BatchCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fillrouter_batch_calls_total",
			Help: "Total number of batched sampler calls",
		},
		[]string{"status"},
	)

	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fillrouter_batch_size",
		Help:    "Number of real calls per batch",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
	})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fillrouter_batch_duration_seconds",
		Help:    "Batched sampler call duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	DecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fillrouter_decode_failures_total",
			Help: "Total number of operation decode failures",
		},
		[]string{"kind"},
	)

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fillrouter_quote_requests_total",
			Help: "Total number of market quote requests",
		},
		[]string{"side", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fillrouter_quote_duration_seconds",
			Help:    "Market quote duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"side"},
	)

	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fillrouter_quote_cache_hits_total",
		Help: "Total number of quote cache hits",
	})

	QuoteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fillrouter_quote_cache_misses_total",
		Help: "Total number of quote cache misses",
	})

	QuoteCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fillrouter_quote_cache_size",
		Help: "Current number of entries in quote cache",
	})

	GasPriceGwei = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fillrouter_gas_price_gwei",
		Help: "Last observed gas price in gwei",
	})

	// Order covering metrics
	OrdersCovered = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fillrouter_orders_covered",
		Help:    "Number of orders selected to cover a fill amount",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50},
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fillrouter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fillrouter_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
