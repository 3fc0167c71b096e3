package solana

import (
	"github.com/shopspring/decimal"
)

// TokenSupply is the total supply of an SPL token mint.
// This is our domain model, independent of the RPC response format.
type TokenSupply struct {
	Mint     string
	Amount   string // raw base units, as reported by the RPC node
	Decimals uint8

	// UIAmount is the supply scaled by Decimals, the unit webhook transfer
	// amounts are expressed in.
	UIAmount decimal.Decimal
}
