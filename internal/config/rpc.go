package config

import (
	"errors"
	"os"
	"strings"
)

type RPCConfig struct {
	RPCUrl    string
	RPCApiKey string
}

func (r *RPCConfig) Key() string {
	return RPC_CONFIG_KEY
}

func (r *RPCConfig) Load() error {
	r.RPCUrl = os.Getenv("RPC_URL")
	r.RPCApiKey = os.Getenv("RPC_KEY")
	return nil
}

func (r *RPCConfig) Validate() error {
	if r.RPCUrl == "" {
		return errors.New("invalid rpc config")
	}
	return nil
}

// Endpoint is the RPC URL with the api key appended as a path segment when one is set.
func (r *RPCConfig) Endpoint() string {
	if r.RPCApiKey == "" {
		return r.RPCUrl
	}
	return strings.TrimRight(r.RPCUrl, "/") + "/" + r.RPCApiKey
}
