package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:  "supplywatch",
		Usage: "Large token transfer alerting service CLI",
		Description: `A command-line tool for operating and debugging the supplywatch webhook service.

Use this CLI to replay webhook payloads, look up token supply, send test alerts,
and follow the alert event stream.`,
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Writer:    out,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			// Webhook delivery commands
			{
				Name:  "webhook",
				Usage: "Webhook delivery commands",
				Subcommands: []*cli.Command{
					webhookSendCommand(),
				},
			},
			// Solana token supply commands
			{
				Name:  "supply",
				Usage: "Token supply commands",
				Subcommands: []*cli.Command{
					supplyGetCommand(),
				},
			},
			// Alert channel commands
			{
				Name:  "alert",
				Usage: "Alert channel commands",
				Subcommands: []*cli.Command{
					alertTestCommand(),
				},
			},
			// NATS alert streaming commands
			{
				Name:  "nats",
				Usage: "NATS alert streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Webhook service URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level for client diagnostics (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "warn",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}

// cliLogger writes diagnostics to stderr so stdout stays parseable.
func cliLogger(c *cli.Context) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
