package blockchain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/fill-router/internal/config"
)

const RPC_CLIENT_SERVICE = "rpc-client-svc"

// RPCClientService owns the JSON-RPC connection shared by the sampler caller and the gas price cache.
type RPCClientService struct {
	container.BaseDIInstance

	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

func (svc *RPCClientService) ID() string {
	return RPC_CLIENT_SERVICE
}

func (svc *RPCClientService) Configure(c container.IContainer) error {
	rpcConfig := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	if err := rpcConfig.Validate(); err != nil {
		return err
	}

	client, err := rpc.DialContext(context.Background(), rpcConfig.Endpoint())
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	svc.rpcClient = client
	svc.ethClient = ethclient.NewClient(client)
	return nil
}

func (svc *RPCClientService) Start() error {
	log.Info().Msg("[RPCClientService] rpc client ready")
	return nil
}

func (svc *RPCClientService) Stop() error {
	if svc.rpcClient != nil {
		svc.rpcClient.Close()
	}
	return nil
}

func (svc *RPCClientService) RPC() *rpc.Client {
	return svc.rpcClient
}

func (svc *RPCClientService) Eth() *ethclient.Client {
	return svc.ethClient
}
