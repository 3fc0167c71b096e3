package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/supplywatch/service/metrics"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// ErrNoSupplyValue is returned when the RPC node answers without a usable supply.
var ErrNoSupplyValue = errors.New("token supply unavailable")

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetTokenSupply(ctx context.Context, mint string) (*rpc.GetTokenSupplyResult, error)
}

// Client looks up token supply information.
// It wraps the RPC client with domain-specific operations.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g. rpc host)
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling; it must not contain an API key.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// GetTokenSupply fetches the current total supply of mint.
// Every call goes to the RPC node; nothing is cached. The mint is forwarded
// unvalidated, so an unknown mint surfaces as an RPC error.
func (c *Client) GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error) {
	start := time.Now()
	result, err := c.rpc.GetTokenSupply(ctx, mint)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall("getTokenSupply", status, c.endpoint, duration)

	if err != nil {
		c.logger.WarnContext(ctx, "getTokenSupply failed",
			"mint", mint,
			"error", err,
		)
		return nil, fmt.Errorf("getTokenSupply %s: %w", mint, err)
	}

	supply, err := supplyFromResult(mint, result)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "fetched token supply",
		"mint", mint,
		"ui_amount", supply.UIAmount.String(),
		"decimals", supply.Decimals,
	)

	return supply, nil
}

// supplyFromResult converts the RPC result into a TokenSupply.
// The UI amount string is preferred over the float field since it carries
// the full precision of large supplies.
func supplyFromResult(mint string, result *rpc.GetTokenSupplyResult) (*TokenSupply, error) {
	if result == nil || result.Value == nil {
		return nil, fmt.Errorf("%w: %s: missing result.value", ErrNoSupplyValue, mint)
	}
	value := result.Value

	var uiAmount decimal.Decimal
	switch {
	case value.UiAmountString != "":
		parsed, err := decimal.NewFromString(value.UiAmountString)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: invalid uiAmountString %q", ErrNoSupplyValue, mint, value.UiAmountString)
		}
		uiAmount = parsed
	case value.UiAmount != nil:
		uiAmount = decimal.NewFromFloat(*value.UiAmount)
	default:
		return nil, fmt.Errorf("%w: %s: missing uiAmount", ErrNoSupplyValue, mint)
	}

	// A zero supply cannot be divided by.
	if !uiAmount.IsPositive() {
		return nil, fmt.Errorf("%w: %s: non-positive supply %s", ErrNoSupplyValue, mint, uiAmount)
	}

	return &TokenSupply{
		Mint:     mint,
		Amount:   value.Amount,
		Decimals: value.Decimals,
		UIAmount: uiAmount,
	}, nil
}
