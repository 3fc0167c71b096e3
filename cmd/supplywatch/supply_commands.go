package main

import (
	"encoding/json"
	"fmt"

	"github.com/brojonat/supplywatch/service/config"
	"github.com/brojonat/supplywatch/service/solana"
	"github.com/brojonat/supplywatch/service/webhook"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func supplyGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch the total supply of a token mint",
		ArgsUsage: "<mint>",
		Description: `Call getTokenSupply for a mint and print the UI-scaled supply.

With --amount, also print the share of supply that amount represents,
exactly as the webhook evaluator computes it.

Example:
  supplywatch supply get EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v --amount 250000`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC URL",
				EnvVars: []string{"SOLANA_RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "helius-api-key",
				Usage:   "Helius API key, used when --rpc-url is empty",
				EnvVars: []string{"HELIUS_API_KEY"},
			},
			&cli.StringFlag{
				Name:  "amount",
				Usage: "UI-scaled transfer amount to express as a percentage of supply",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("mint is required")
			}
			mint := c.Args().Get(0)

			rpcURL := c.String("rpc-url")
			if rpcURL == "" {
				key := c.String("helius-api-key")
				if key == "" {
					return fmt.Errorf("--rpc-url or --helius-api-key is required")
				}
				rpcURL = config.HeliusRPCURL(key)
			}

			var amount *decimal.Decimal
			if raw := c.String("amount"); raw != "" {
				parsed, err := webhook.ParseAmount(webhook.Amount(raw))
				if err != nil {
					return err
				}
				amount = &parsed
			}

			sc := solana.NewClient(solana.NewRPCClient(rpcURL), "cli", nil, cliLogger(c))
			supply, err := sc.GetTokenSupply(c.Context, mint)
			if err != nil {
				return err
			}

			var percentage string
			if amount != nil {
				percentage = webhook.Percentage(*amount, supply.UIAmount).StringFixed(4)
			}

			if c.Bool("json") {
				out := map[string]any{
					"mint":      supply.Mint,
					"amount":    supply.Amount,
					"decimals":  supply.Decimals,
					"ui_amount": supply.UIAmount.String(),
				}
				if percentage != "" {
					out["percentage"] = percentage
				}
				return json.NewEncoder(c.App.Writer).Encode(out)
			}

			fmt.Fprintf(c.App.Writer, "Mint:       %s\n", supply.Mint)
			fmt.Fprintf(c.App.Writer, "Supply:     %s\n", humanize.CommafWithDigits(supply.UIAmount.InexactFloat64(), 3))
			fmt.Fprintf(c.App.Writer, "Raw:        %s\n", supply.Amount)
			fmt.Fprintf(c.App.Writer, "Decimals:   %d\n", supply.Decimals)
			if percentage != "" {
				fmt.Fprintf(c.App.Writer, "Percentage: %s%%\n", percentage)
			}
			return nil
		},
	}
}
