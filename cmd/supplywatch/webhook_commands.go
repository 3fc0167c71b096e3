package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/brojonat/supplywatch/client"
	"github.com/urfave/cli/v2"
)

func webhookSendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "POST a webhook payload file to the service",
		ArgsUsage: "<payload.json | ->",
		Description: `Replay an enhanced-transaction payload against a running service.

The file must contain the JSON array a webhook provider would deliver.
Use "-" to read the payload from stdin.

Example:
  supplywatch webhook send testdata/transfer.json --auth-secret $AUTH_SECRET`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "auth-secret",
				Usage:   "Bearer secret sent in the Authorization header",
				EnvVars: []string{"AUTH_SECRET"},
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Webhook route",
				Value: client.DefaultWebhookPath,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("payload file is required")
			}

			payload, err := readPayload(c.Args().Get(0))
			if err != nil {
				return err
			}
			if !json.Valid(payload) {
				return fmt.Errorf("payload is not valid JSON")
			}

			cl := client.NewClient(c.String("server-url"), nil, cliLogger(c)).
				WithAuthSecret(c.String("auth-secret")).
				WithPath(c.String("path"))

			resp, err := cl.SendRaw(c.Context, payload)
			if err != nil {
				return fmt.Errorf("webhook delivery failed: %w", err)
			}

			if c.Bool("json") {
				return json.NewEncoder(c.App.Writer).Encode(map[string]any{
					"status":  resp.StatusCode,
					"message": resp.Message,
				})
			}
			fmt.Fprintf(c.App.Writer, "✓ %d %s\n", resp.StatusCode, resp.Message)
			return nil
		},
	}
}

func readPayload(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return data, nil
}
