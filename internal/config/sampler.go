package config

import (
	"errors"
	"os"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type SamplerConfig struct {
	// Address of the deployed sampler contract.
	Address ethcommon.Address

	// CallTimeout bounds one batched eth_call round trip.
	// Default: 5000ms
	CallTimeout time.Duration

	// GasPriceTTL is how long a fetched gas price is served before refreshing.
	// Default: 15000ms
	GasPriceTTL time.Duration
}

func (c *SamplerConfig) Key() string {
	return SAMPLER_CONFIG_KEY
}

func (c *SamplerConfig) Load() error {
	raw := os.Getenv("SAMPLER_ADDRESS")
	if raw != "" && !ethcommon.IsHexAddress(raw) {
		return errors.New("invalid sampler address")
	}
	c.Address = ethcommon.HexToAddress(raw)
	c.CallTimeout = time.Duration(common.GetEnvOrDefaultInt("SAMPLER_CALL_TIMEOUT_MS", 5000)) * time.Millisecond
	c.GasPriceTTL = time.Duration(common.GetEnvOrDefaultInt("GAS_PRICE_TTL_MS", 15000)) * time.Millisecond
	return nil
}

func (c *SamplerConfig) Validate() error {
	if c.Address == (ethcommon.Address{}) {
		return errors.New("invalid sampler config: missing address")
	}
	if c.CallTimeout <= 0 || c.GasPriceTTL <= 0 {
		return errors.New("invalid sampler config: non-positive duration")
	}
	return nil
}
