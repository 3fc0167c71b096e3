package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/brojonat/supplywatch/service/alert"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func alertTestCommand() *cli.Command {
	return &cli.Command{
		Name:  "test",
		Usage: "Send a sample alert through the Telegram channel",
		Description: `Render a sample large-transfer alert and send it to the configured chat.
Use --dry-run to print the message without contacting Telegram.

Example:
  supplywatch alert test --dry-run`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "telegram-bot-token",
				Usage:   "Telegram bot token",
				EnvVars: []string{"TELEGRAM_BOT_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "telegram-chat-id",
				Usage:   "Telegram chat id or @channel",
				EnvVars: []string{"TELEGRAM_CHAT_ID"},
			},
			&cli.StringFlag{
				Name:    "telegram-api-endpoint",
				Usage:   "Telegram Bot API endpoint format",
				EnvVars: []string{"TELEGRAM_API_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "explorer-tx-url",
				Usage:   "Explorer transaction URL prefix",
				EnvVars: []string{"EXPLORER_TX_URL"},
				Value:   "https://explorer.solana.com/tx/",
			},
			&cli.StringFlag{Name: "wallet", Usage: "Recipient shown in the alert", Value: "WatchedWallet1111111111111111111111111111111"},
			&cli.StringFlag{Name: "mint", Usage: "Mint shown in the alert", Value: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"},
			&cli.StringFlag{Name: "amount", Usage: "Amount shown in the alert", Value: "250000"},
			&cli.StringFlag{Name: "percentage", Usage: "Percentage shown in the alert", Value: "0.25"},
			&cli.StringFlag{Name: "signature", Usage: "Signature used for the explorer link", Value: "TestSignature"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the message instead of sending it"},
		},
		Action: func(c *cli.Context) error {
			amount, err := decimal.NewFromString(c.String("amount"))
			if err != nil {
				return fmt.Errorf("invalid --amount: %w", err)
			}
			percentage, err := decimal.NewFromString(c.String("percentage"))
			if err != nil {
				return fmt.Errorf("invalid --percentage: %w", err)
			}

			a := alert.Alert{
				Wallet:     c.String("wallet"),
				Mint:       c.String("mint"),
				Amount:     amount,
				Percentage: percentage,
				Signature:  c.String("signature"),
				Sender:     "SampleSender",
				DetectedAt: time.Now().UTC(),
			}

			if c.Bool("dry-run") {
				fmt.Fprintln(c.App.Writer, alert.FormatMessage(a, c.String("explorer-tx-url")))
				return nil
			}

			token := c.String("telegram-bot-token")
			chatID := c.String("telegram-chat-id")
			if token == "" || chatID == "" {
				return fmt.Errorf("--telegram-bot-token and --telegram-chat-id are required")
			}

			logger := cliLogger(c)
			bot, err := alert.NewTelegramBot(token, c.String("telegram-api-endpoint"), &http.Client{Timeout: 30 * time.Second})
			if err != nil {
				return err
			}

			d := alert.NewTelegramDispatcher(bot, chatID, c.String("explorer-tx-url"), logger)
			if err := d.Dispatch(c.Context, a); err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "✓ Test alert sent to %s via @%s\n", chatID, bot.Self.UserName)
			return nil
		},
	}
}
