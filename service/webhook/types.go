package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// TransferType is the transaction type tag carried by token transfers.
const TransferType = "TRANSFER"

// ErrInvalidAmount is returned when a token amount is not a decimal number.
var ErrInvalidAmount = errors.New("invalid token amount")

// Transaction is one element of an enhanced-transaction webhook payload.
// Only the fields that drive evaluation are decoded; everything else in the
// payload is ignored, so provider-side type changes there cannot reject a transaction.
type Transaction struct {
	Signature      string          `json:"signature"`
	Type           string          `json:"type"`
	TokenTransfers []TokenTransfer `json:"tokenTransfers"`
}

// IsTokenTransfer reports whether the transaction should be scanned for transfers.
func (t *Transaction) IsTokenTransfer() bool {
	return t.Type == TransferType && len(t.TokenTransfers) > 0
}

// TokenTransfer is a single SPL token movement within a transaction.
type TokenTransfer struct {
	Mint            string      `json:"mint"`
	FromUserAccount string      `json:"fromUserAccount"`
	ToUserAccount   string      `json:"toUserAccount"`
	TokenAmount     Amount      `json:"tokenAmount"`
	Decimals        json.Number `json:"decimals,omitempty"`
}

// DecimalPlaces returns the mint's decimals, or 0 when absent or not a
// non-negative whole number.
func (t TokenTransfer) DecimalPlaces() int {
	if t.Decimals == "" {
		return 0
	}
	d, err := decimal.NewFromString(t.Decimals.String())
	if err != nil || d.IsNegative() || !d.IsInteger() || d.GreaterThan(decimal.NewFromInt(255)) {
		return 0
	}
	return int(d.IntPart())
}

// Amount is the UI-scaled token amount exactly as it appeared in the payload.
// Providers send it as either a JSON string or a JSON number.
type Amount string

// UnmarshalJSON keeps the raw text of a string or number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
	default:
		*a = Amount(data)
	}
	return nil
}

// MarshalJSON writes the amount back as a JSON string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(a))
}

// Bounds on accepted amounts. Decimal division cost grows with the exponent,
// and no SPL token has more than a few dozen significant digits.
const (
	maxAmountLength   = 64
	maxAmountExponent = 64
)

// ParseAmount parses a UI-scaled amount into an exact decimal.
func ParseAmount(a Amount) (decimal.Decimal, error) {
	if a == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if len(a) > maxAmountLength {
		return decimal.Zero, fmt.Errorf("%w: longer than %d characters", ErrInvalidAmount, maxAmountLength)
	}
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w %q: %v", ErrInvalidAmount, string(a), err)
	}
	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Zero, fmt.Errorf("%w %q: exponent out of range", ErrInvalidAmount, string(a))
	}
	return d, nil
}

// Percentage returns amount as a percentage of supply. Supply must be positive.
func Percentage(amount, supply decimal.Decimal) decimal.Decimal {
	return amount.Div(supply).Mul(hundred)
}
