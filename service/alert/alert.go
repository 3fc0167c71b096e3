package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Alert describes one transfer that moved at least the threshold share of a token's supply.
type Alert struct {
	Wallet      string
	Mint        string
	Amount      decimal.Decimal
	Decimals    int
	Percentage  decimal.Decimal
	TotalSupply decimal.Decimal
	Signature   string
	Sender      string
	DetectedAt  time.Time
}

// Dispatcher delivers an alert to one channel.
type Dispatcher interface {
	// Name identifies the channel in logs and metrics.
	Name() string
	Dispatch(ctx context.Context, a Alert) error
}

// PercentageString renders the percentage with four decimal places.
func (a Alert) PercentageString() string {
	return a.Percentage.StringFixed(4)
}

// AmountString renders the amount with thousands separators and at most three fraction digits.
func (a Alert) AmountString() string {
	return humanize.CommafWithDigits(a.Amount.InexactFloat64(), 3)
}

// FormatMessage renders the Telegram Markdown body for an alert.
func FormatMessage(a Alert, explorerTxURL string) string {
	var b strings.Builder
	b.WriteString("🚨 *Insider Alert: Large Memecoin Transfer*\n")
	fmt.Fprintf(&b, "*Wallet:* `%s`\n", a.Wallet)
	fmt.Fprintf(&b, "*MINT:* `%s`\n", a.Mint)
	fmt.Fprintf(&b, "*Amount:* %s tokens\n", a.AmountString())
	fmt.Fprintf(&b, "*Percentage:* %s%%\n", a.PercentageString())
	fmt.Fprintf(&b, "*From:* `%s`\n", a.Sender)
	fmt.Fprintf(&b, "*TX:* [View on Explorer](%s%s)", explorerTxURL, a.Signature)
	return b.String()
}
