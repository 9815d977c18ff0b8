package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/fill-router/internal/adapters/blockchain"
	"github.com/hxuan190/fill-router/internal/aggregator"
	"github.com/hxuan190/fill-router/internal/common"
	"github.com/hxuan190/fill-router/internal/config"
	"github.com/hxuan190/fill-router/internal/http"
)

// @title Fill Router API
// @version 1.0-beta
// @description DEX liquidity aggregation for EVM chains. Quotes are built from on-chain sampler calls
// @description batched into a single eth_call and split across sources by a bounded path search.
// @description
// @description ## - Features
// @description - **Batched Sampling**: every source is probed in one sampler batch call
// @description - **Gas Aware**: per-source gas cost is priced into each fill before optimizing
// @description - **Order Covering**: rank native orders by fee-adjusted rate and cover a fill amount
// @description
// @description ## - Supported Sources
// @description | Source | Sampling |
// @description |--------|----------|
// @description | **Uniswap** | sampleSellsFromUniswap / sampleBuysFromUniswap |
// @description | **Uniswap_V2** | sampleSellsFromUniswapV2 / sampleBuysFromUniswapV2 |
// @description | **Eth2Dai** | sampleSellsFromEth2Dai / sampleBuysFromEth2Dai |
// @description | **Kyber** | sampleSellsFromKyberNetwork / sampleBuysFromKyberNetwork |
// @description
// @description ## - Usage Tips
// @description - Amounts are in base units of the token (wei for WETH)
// @description - Rate Limit: 10 requests/second (burst: 20)
// @BasePath /
// @schemes https http
// @tag.name quote
// @tag.description Market quotes and sample amounts
// @tag.name paths
// @tag.description Optimize caller supplied fill pools
// @tag.name orders
// @tag.description Cover fill amounts with native orders

func main() {
	common.InitRuntime()

	// load env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file, using process environment")
	}

	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	// di container config
	conf := container.NewConf(
		&config.GeneralConfig{},
		&config.RPCConfig{},
		&config.SamplerConfig{},
		&config.RouterConfig{},
	)

	dic, err := container.New(
		// config
		conf,

		// services
		&blockchain.RPCClientService{},
		&blockchain.GasPriceCache{},
		&aggregator.Service{},

		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	// Run blocks until SIGINT/SIGTERM
	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}
