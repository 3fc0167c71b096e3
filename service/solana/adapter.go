package solana

import (
	"context"

	"github.com/gagliardetto/solana-go/rpc"
)

// realRPCClient adapts the actual solana-go RPC client to our RPCClient interface.
// This adapter allows us to control the interface and makes testing easier.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

// GetTokenSupply sends params [mint] exactly as given. The node decides
// whether the mint is valid.
func (r *realRPCClient) GetTokenSupply(ctx context.Context, mint string) (*rpc.GetTokenSupplyResult, error) {
	var out *rpc.GetTokenSupplyResult
	if err := r.client.RPCCallForInto(ctx, &out, "getTokenSupply", []interface{}{mint}); err != nil {
		return nil, err
	}
	return out, nil
}
