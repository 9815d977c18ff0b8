package blockchain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/fill-router/internal/config"
	"github.com/hxuan190/fill-router/internal/metrics"
)

const GAS_PRICE_CACHE_SERVICE = "cache-gas-price-svc"

var ErrNoGasPrice = errors.New("gas price unavailable")

type GasPriceFetcher interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

type CachedGasPrice struct {
	Price     *big.Int
	UpdatedAt time.Time
}

// GasPriceCache serves the last suggested gas price and refreshes it in the background.
type GasPriceCache struct {
	container.BaseDIInstance

	mu      sync.RWMutex
	current *CachedGasPrice

	client  *RPCClientService
	fetcher GasPriceFetcher
	ttl     time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewGasPriceCache(fetcher GasPriceFetcher, ttl time.Duration) *GasPriceCache {
	return &GasPriceCache{fetcher: fetcher, ttl: ttl}
}

func (svc *GasPriceCache) ID() string {
	return GAS_PRICE_CACHE_SERVICE
}

func (svc *GasPriceCache) Configure(c container.IContainer) error {
	svc.client = c.Instance(RPC_CLIENT_SERVICE).(*RPCClientService)
	samplerConfig := c.GetConfig(config.SAMPLER_CONFIG_KEY).(*config.SamplerConfig)
	svc.ttl = samplerConfig.GasPriceTTL
	return nil
}

func (svc *GasPriceCache) Start() error {
	if svc.fetcher == nil && svc.client != nil {
		svc.fetcher = svc.client.Eth()
	}
	if svc.fetcher == nil {
		return errors.New("gas price cache has no fetcher")
	}
	if svc.ttl <= 0 {
		svc.ttl = 15 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), svc.ttl)
	defer cancel()
	if _, err := svc.refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("[GasPriceCache] failed to fetch initial gas price, will retry on first request")
	}

	svc.stop = make(chan struct{})
	svc.wg.Add(1)
	go svc.refreshLoop()

	log.Info().Dur("ttl", svc.ttl).Msg("[GasPriceCache] started")
	return nil
}

func (svc *GasPriceCache) Stop() error {
	if svc.stop != nil {
		close(svc.stop)
		svc.wg.Wait()
		svc.stop = nil
	}
	return nil
}

func (svc *GasPriceCache) refreshLoop() {
	defer svc.wg.Done()

	ticker := time.NewTicker(svc.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-svc.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), svc.ttl)
			if _, err := svc.refresh(ctx); err != nil {
				log.Warn().Err(err).Msg("[GasPriceCache] refresh failed")
			}
			cancel()
		}
	}
}

func (svc *GasPriceCache) refresh(ctx context.Context) (*big.Int, error) {
	price, err := svc.fetcher.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	if price == nil || price.Sign() < 0 {
		return nil, ErrNoGasPrice
	}

	svc.mu.Lock()
	svc.current = &CachedGasPrice{Price: new(big.Int).Set(price), UpdatedAt: time.Now()}
	svc.mu.Unlock()

	gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(price), big.NewFloat(1e9)).Float64()
	metrics.GasPriceGwei.Set(gwei)
	return price, nil
}

// GetGasPrice returns the cached price while it is fresh, otherwise fetches a new one.
// A stale price is served when the fetch fails.
func (svc *GasPriceCache) GetGasPrice(ctx context.Context) (*big.Int, error) {
	svc.mu.RLock()
	cached := svc.current
	svc.mu.RUnlock()

	if cached != nil && time.Since(cached.UpdatedAt) < svc.ttl {
		return new(big.Int).Set(cached.Price), nil
	}

	price, err := svc.refresh(ctx)
	if err != nil {
		if cached != nil {
			return new(big.Int).Set(cached.Price), nil
		}
		return nil, errors.Join(ErrNoGasPrice, err)
	}
	return new(big.Int).Set(price), nil
}
