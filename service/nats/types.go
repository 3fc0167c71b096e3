package nats

import (
	"fmt"
	"time"

	"github.com/brojonat/supplywatch/service/alert"
)

// AlertEvent represents a large-transfer alert published to NATS.
// This is published to the subject "alerts.{wallet_address}" in JetStream.
type AlertEvent struct {
	// Transaction identifiers
	Signature string `json:"signature"`

	// Wallet information
	WalletAddress string `json:"wallet_address"` // Watched recipient
	FromAddress   string `json:"from_address,omitempty"`

	// Transfer details, decimals rendered as strings to keep precision
	Mint        string `json:"mint"`
	Amount      string `json:"amount"`
	Decimals    int    `json:"decimals"`
	TotalSupply string `json:"total_supply"`
	Percentage  string `json:"percentage"`

	// Timing information
	DetectedAt  time.Time `json:"detected_at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromAlert converts an alert to an AlertEvent for publishing.
func FromAlert(a alert.Alert) *AlertEvent {
	return &AlertEvent{
		Signature:     a.Signature,
		WalletAddress: a.Wallet,
		FromAddress:   a.Sender,
		Mint:          a.Mint,
		Amount:        a.Amount.String(),
		Decimals:      a.Decimals,
		TotalSupply:   a.TotalSupply.String(),
		Percentage:    a.PercentageString(),
		DetectedAt:    a.DetectedAt,
		PublishedAt:   time.Now().UTC(),
	}
}

// Subject returns the JetStream subject for alerts on wallet.
func Subject(wallet string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, wallet)
}
