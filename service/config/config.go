package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	// heliusRPCURLFormat is used when only HELIUS_API_KEY is provided.
	heliusRPCURLFormat = "https://mainnet.helius-rpc.com/?api-key=%s"

	defaultTelegramAPIEndpoint = "https://api.telegram.org/bot%s/%s"
	defaultExplorerTxURL       = "https://explorer.solana.com/tx/"
)

// Config holds all application configuration loaded from environment variables.
// It is loaded once at startup and handed to components as a read-only snapshot.
type Config struct {
	// Server configuration
	ServerAddr         string
	LogLevel           string
	ServerWriteTimeout time.Duration

	// Webhook authorization
	AuthSecret  string
	RequireAuth bool

	// Watched recipients. An empty list is not a load error; the webhook
	// answers 500 for every request until wallets are configured.
	WatchedWallets []string

	// Solana configuration
	HeliusAPIKey string
	SolanaRPCURL string

	// Telegram configuration
	TelegramBotToken    string
	TelegramChatID      string
	TelegramAPIEndpoint string
	ExplorerTxURL       string

	// Evaluation
	AlertThresholdPercent decimal.Decimal
	EvaluatorConcurrency  int
	OutboundTimeout       time.Duration
	TransactionFilter     string

	// NATS configuration, empty disables alert events
	NATSURL string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "60s")
	v.SetDefault("WEBHOOK_REQUIRE_AUTH", "false")
	v.SetDefault("WATCHED_WALLETS", "[]")
	v.SetDefault("TELEGRAM_API_ENDPOINT", defaultTelegramAPIEndpoint)
	v.SetDefault("EXPLORER_TX_URL", defaultExplorerTxURL)
	v.SetDefault("ALERT_THRESHOLD_PERCENT", "0.2")
	v.SetDefault("EVALUATOR_CONCURRENCY", "1")
	v.SetDefault("OUTBOUND_TIMEOUT", "0s")

	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = v.GetString("SERVER_ADDR")
	cfg.LogLevel = strings.ToLower(v.GetString("LOG_LEVEL"))

	writeTimeout, err := parseDuration(v, "SERVER_WRITE_TIMEOUT")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ServerWriteTimeout = writeTimeout
	}

	// Webhook authorization
	cfg.AuthSecret = v.GetString("AUTH_SECRET")
	requireAuth, err := parseBool(v, "WEBHOOK_REQUIRE_AUTH")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RequireAuth = requireAuth
	}
	if cfg.RequireAuth && cfg.AuthSecret == "" {
		errs = append(errs, fmt.Errorf("AUTH_SECRET is required when WEBHOOK_REQUIRE_AUTH is true"))
	}

	// Watched wallets
	wallets, err := parseWalletList(v.GetString("WATCHED_WALLETS"))
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.WatchedWallets = wallets
	}

	// Solana configuration
	cfg.HeliusAPIKey = v.GetString("HELIUS_API_KEY")
	cfg.SolanaRPCURL = v.GetString("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" && cfg.HeliusAPIKey != "" {
		cfg.SolanaRPCURL = HeliusRPCURL(cfg.HeliusAPIKey)
	}
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL or HELIUS_API_KEY is required"))
	}

	// Telegram configuration
	cfg.TelegramBotToken = v.GetString("TELEGRAM_BOT_TOKEN")
	if cfg.TelegramBotToken == "" {
		errs = append(errs, fmt.Errorf("TELEGRAM_BOT_TOKEN is required"))
	}
	cfg.TelegramChatID = v.GetString("TELEGRAM_CHAT_ID")
	if cfg.TelegramChatID == "" {
		errs = append(errs, fmt.Errorf("TELEGRAM_CHAT_ID is required"))
	}
	cfg.TelegramAPIEndpoint = v.GetString("TELEGRAM_API_ENDPOINT")
	cfg.ExplorerTxURL = v.GetString("EXPLORER_TX_URL")

	// Evaluation
	threshold, err := decimal.NewFromString(v.GetString("ALERT_THRESHOLD_PERCENT"))
	if err != nil {
		errs = append(errs, fmt.Errorf("ALERT_THRESHOLD_PERCENT: invalid decimal %q: %w", v.GetString("ALERT_THRESHOLD_PERCENT"), err))
	} else if !threshold.IsPositive() {
		errs = append(errs, fmt.Errorf("ALERT_THRESHOLD_PERCENT must be greater than zero"))
	} else {
		cfg.AlertThresholdPercent = threshold
	}

	concurrency, err := parseInt(v, "EVALUATOR_CONCURRENCY")
	if err != nil {
		errs = append(errs, err)
	} else if concurrency < 1 {
		errs = append(errs, fmt.Errorf("EVALUATOR_CONCURRENCY must be at least 1, got %d", concurrency))
	} else {
		cfg.EvaluatorConcurrency = concurrency
	}

	outboundTimeout, err := parseDuration(v, "OUTBOUND_TIMEOUT")
	if err != nil {
		errs = append(errs, err)
	} else if outboundTimeout < 0 {
		errs = append(errs, fmt.Errorf("OUTBOUND_TIMEOUT cannot be negative"))
	} else {
		cfg.OutboundTimeout = outboundTimeout
	}

	cfg.TransactionFilter = strings.TrimSpace(v.GetString("WEBHOOK_TX_FILTER"))

	// NATS configuration
	cfg.NATSURL = v.GetString("NATS_URL")

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.TelegramBotToken == "" {
		errs = append(errs, fmt.Errorf("TelegramBotToken is required"))
	}

	if c.TelegramChatID == "" {
		errs = append(errs, fmt.Errorf("TelegramChatID is required"))
	}

	if c.RequireAuth && c.AuthSecret == "" {
		errs = append(errs, fmt.Errorf("AuthSecret is required when RequireAuth is set"))
	}

	if !c.AlertThresholdPercent.IsPositive() {
		errs = append(errs, fmt.Errorf("AlertThresholdPercent must be greater than zero"))
	}

	if c.EvaluatorConcurrency < 1 {
		errs = append(errs, fmt.Errorf("EvaluatorConcurrency must be at least 1"))
	}

	if c.OutboundTimeout < 0 {
		errs = append(errs, fmt.Errorf("OutboundTimeout cannot be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// HeliusRPCURL returns the Helius mainnet RPC URL for apiKey.
func HeliusRPCURL(apiKey string) string {
	return fmt.Sprintf(heliusRPCURLFormat, url.QueryEscape(apiKey))
}

// RPCEndpointName returns a label for the configured RPC endpoint that is
// safe to put in metrics and logs (no API key).
func (c *Config) RPCEndpointName() string {
	u, err := url.Parse(c.SolanaRPCURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Hostname()
}

// parseWalletList decodes the WATCHED_WALLETS JSON array.
func parseWalletList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}
	var wallets []string
	if err := json.Unmarshal([]byte(raw), &wallets); err != nil {
		return nil, fmt.Errorf("WATCHED_WALLETS: expected a JSON array of strings: %w", err)
	}
	if wallets == nil {
		wallets = []string{}
	}
	return wallets, nil
}

// parseDuration parses a duration from the environment (or its default).
func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	value := v.GetString(key)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from the environment (or its default).
func parseInt(v *viper.Viper, key string) (int, error) {
	value := v.GetString(key)
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseBool parses a boolean from the environment (or its default).
func parseBool(v *viper.Viper, key string) (bool, error) {
	value := v.GetString(key)
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}
