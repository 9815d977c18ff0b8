package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/fill-router/internal/domain"
)

type RouterConfig struct {
	// RunLimit caps candidate expansions per optimizer search.
	// Default: 32768
	RunLimit int

	// MaxRunLimit is the largest run limit a request may ask for.
	// Default: 262144
	MaxRunLimit int

	// MaxNumSamples is the largest per-request sample count.
	// Default: 64
	MaxNumSamples int

	// MaxFills is the largest fill pool a caller may submit for optimization.
	// Default: 64
	MaxFills int

	// NumSamples is how many amounts each source is sampled at.
	// Default: 13
	NumSamples int

	// SampleBase is the exponential base spreading sample amounts.
	// Default: 1.05
	SampleBase decimal.Decimal

	// Sources are the liquidity sources quoted on every request.
	// Default: Uniswap,Uniswap_V2,Eth2Dai,Kyber
	Sources []domain.Source

	// SlippageBufferBps is added on top of the cover target when covering orders.
	// Default: 0
	SlippageBufferBps int

	// QuoteCacheTTL is how long a market quote is reused. Zero disables caching.
	// Default: 2000ms
	QuoteCacheTTL time.Duration
}

func (c *RouterConfig) Key() string {
	return ROUTER_CONFIG_KEY
}

func (c *RouterConfig) Load() error {
	c.RunLimit = common.GetEnvOrDefaultInt("ROUTER_RUN_LIMIT", 1<<15)
	c.NumSamples = common.GetEnvOrDefaultInt("ROUTER_NUM_SAMPLES", 13)
	c.MaxRunLimit = common.GetEnvOrDefaultInt("ROUTER_MAX_RUN_LIMIT", 1<<18)
	c.MaxNumSamples = common.GetEnvOrDefaultInt("ROUTER_MAX_NUM_SAMPLES", 64)
	c.MaxFills = common.GetEnvOrDefaultInt("ROUTER_MAX_FILLS", 64)

	base, err := decimal.NewFromString(common.GetEnvOrDefault("ROUTER_SAMPLE_BASE", "1.05"))
	if err != nil {
		return fmt.Errorf("invalid ROUTER_SAMPLE_BASE: %w", err)
	}
	c.SampleBase = base

	c.Sources = ParseSources(common.GetEnvOrDefault("ROUTER_SOURCES", "Uniswap,Uniswap_V2,Eth2Dai,Kyber"))
	c.SlippageBufferBps = common.GetEnvOrDefaultInt("ROUTER_SLIPPAGE_BUFFER_BPS", 0)
	c.QuoteCacheTTL = time.Duration(common.GetEnvOrDefaultInt("ROUTER_QUOTE_CACHE_TTL_MS", 2000)) * time.Millisecond
	return nil
}

func (c *RouterConfig) Validate() error {
	if c.RunLimit <= 0 || c.NumSamples <= 0 {
		return errors.New("invalid router config: run limit and sample count must be positive")
	}
	if c.MaxRunLimit < c.RunLimit || c.MaxNumSamples < c.NumSamples || c.MaxFills <= 0 {
		return errors.New("invalid router config: limits must cover the defaults and allow fills")
	}
	if !c.SampleBase.IsPositive() {
		return errors.New("invalid router config: sample base must be positive")
	}
	if len(c.Sources) == 0 {
		return errors.New("invalid router config: no sources")
	}
	if c.SlippageBufferBps < 0 || c.QuoteCacheTTL < 0 {
		return errors.New("invalid router config: negative buffer or ttl")
	}
	return nil
}

func ParseSources(raw string) []domain.Source {
	var sources []domain.Source
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			sources = append(sources, domain.Source(part))
		}
	}
	return sources
}
