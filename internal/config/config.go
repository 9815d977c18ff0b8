package config

import (
	"errors"
	"net"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
)

type ServerEnv = string

var (
	DevEnv     ServerEnv = "dev"
	StagingEnv ServerEnv = "staging"
	ProdEnv    ServerEnv = "prod"
)

const (
	GENERAL_CONFIG_KEY = "general-config"
	RPC_CONFIG_KEY     = "rpc-config"
	SAMPLER_CONFIG_KEY = "sampler-config"
	ROUTER_CONFIG_KEY  = "router-config"
)

// GeneralConfig covers the HTTP surface and process-wide settings.
type GeneralConfig struct {
	HTTPPort string
	HTTPHost string
	Env      ServerEnv
	LogLevel string

	// RateLimitPerSecond is the per-client request rate. Zero disables limiting.
	RateLimitPerSecond int
	RateLimitBurst     int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func (gc *GeneralConfig) Key() string {
	return GENERAL_CONFIG_KEY
}

func (gc *GeneralConfig) Load() error {
	gc.HTTPPort = common.GetEnvOrDefault("HTTP_PORT", "8080")
	gc.HTTPHost = common.GetEnvOrDefault("HTTP_HOST", "localhost")
	gc.Env = common.GetEnvOrDefault("ENV", DevEnv)
	gc.LogLevel = common.GetEnvOrDefault("LOG_LEVEL", "INFO")

	gc.RateLimitPerSecond = common.GetEnvOrDefaultInt("HTTP_RATE_LIMIT_RPS", 10)
	gc.RateLimitBurst = common.GetEnvOrDefaultInt("HTTP_RATE_LIMIT_BURST", 20)

	gc.ReadTimeout = time.Duration(common.GetEnvOrDefaultInt("HTTP_READ_TIMEOUT_MS", 5000)) * time.Millisecond
	gc.WriteTimeout = time.Duration(common.GetEnvOrDefaultInt("HTTP_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond
	gc.ShutdownTimeout = time.Duration(common.GetEnvOrDefaultInt("HTTP_SHUTDOWN_TIMEOUT_MS", 5000)) * time.Millisecond
	return gc.Validate()
}

func (gc *GeneralConfig) Validate() error {
	if gc.HTTPPort == "" || gc.HTTPHost == "" || gc.Env == "" {
		return errors.New("invalid server config")
	}
	if gc.RateLimitPerSecond < 0 || gc.RateLimitBurst < 0 {
		return errors.New("rate limit must not be negative")
	}
	if gc.RateLimitPerSecond > 0 && gc.RateLimitBurst == 0 {
		return errors.New("rate limit burst must be positive when limiting is enabled")
	}
	if gc.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	return nil
}

func (gc *GeneralConfig) IsProd() bool {
	return gc.Env == ProdEnv
}

func (gc *GeneralConfig) Addr() string {
	return net.JoinHostPort(gc.HTTPHost, gc.HTTPPort)
}
