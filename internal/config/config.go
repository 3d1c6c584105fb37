// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

type Config struct {
	RPCList               []string       `mapstructure:"rpc_list"`
	Wallet                string         `mapstructure:"wallet"`
	BittyMint             string         `mapstructure:"bitty_mint"`
	PriceAPIURL           string         `mapstructure:"price_api_url"`
	PriceAPIKey           string         `mapstructure:"price_api_key"`
	PriceRateLimit        float64        `mapstructure:"price_rate_limit"`
	RPCTimeoutMs          int            `mapstructure:"rpc_timeout_ms"`
	Retries               int            `mapstructure:"retries"`
	HistoryLimit          int            `mapstructure:"history_limit"`
	MatchWindowSec        int            `mapstructure:"match_window_sec"`
	PendingRetentionHours int            `mapstructure:"pending_retention_hours"`
	QuoteTolerancePercent float64        `mapstructure:"quote_tolerance_percent"`
	SlippageBps           int            `mapstructure:"slippage_bps"`
	ExplorerURL           string         `mapstructure:"explorer_url"`
	Database              DatabaseConfig `mapstructure:"database"`
	LogFile               string         `mapstructure:"log_file"`
	DebugLogging          bool           `mapstructure:"debug_logging"`
}

type DatabaseConfig struct {
	Type     string `mapstructure:"type"`
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"`
}

const (
	DefaultPriceAPIURL           = "https://api.jup.ag"
	DefaultPriceRateLimit        = 5
	DefaultRPCTimeoutMs          = 8000
	DefaultRetries               = 3
	DefaultHistoryLimit          = 25
	DefaultMatchWindowSec        = 120
	DefaultPendingRetentionHours = 24
	DefaultQuoteTolerance        = 1.0
	DefaultSlippageBps           = 50
	DefaultExplorerURL           = "https://solscan.io/tx/"
	DefaultDatabaseType          = "sqlite"
	DefaultDatabaseDSN           = "portfolio.db"
	DefaultLogFile               = "portfolio.log"
)

// RPCTimeout bounds one live balance fetch.
func (c *Config) RPCTimeout() time.Duration {
	return time.Duration(c.RPCTimeoutMs) * time.Millisecond
}

// MatchWindow is the proximity window for pairing local and on-chain activity.
func (c *Config) MatchWindow() time.Duration {
	return time.Duration(c.MatchWindowSec) * time.Second
}

// PendingRetention is how long unconfirmed local entries are kept.
func (c *Config) PendingRetention() time.Duration {
	return time.Duration(c.PendingRetentionHours) * time.Hour
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"wallet":                  "",
		"bitty_mint":              "",
		"price_api_url":           DefaultPriceAPIURL,
		"price_api_key":           "",
		"price_rate_limit":        DefaultPriceRateLimit,
		"rpc_timeout_ms":          DefaultRPCTimeoutMs,
		"retries":                 DefaultRetries,
		"history_limit":           DefaultHistoryLimit,
		"match_window_sec":        DefaultMatchWindowSec,
		"pending_retention_hours": DefaultPendingRetentionHours,
		"quote_tolerance_percent": DefaultQuoteTolerance,
		"slippage_bps":            DefaultSlippageBps,
		"explorer_url":            DefaultExplorerURL,
		"database.type":           DefaultDatabaseType,
		"database.dsn":            DefaultDatabaseDSN,
		"database.log_level":      "silent",
		"log_file":                DefaultLogFile,
		"debug_logging":           false,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("PORTFOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	loadEnvironmentVariables(v, &cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURL(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if err := validateURL(cfg.PriceAPIURL, "http"); err != nil {
		return fmt.Errorf("invalid price_api_url: %w", err)
	}
	if err := validateURL(cfg.ExplorerURL, "http"); err != nil {
		return fmt.Errorf("invalid explorer_url: %w", err)
	}
	if _, err := solana.PublicKeyFromBase58(cfg.Wallet); err != nil {
		return fmt.Errorf("invalid wallet address: %w", err)
	}
	if _, err := solana.PublicKeyFromBase58(cfg.BittyMint); err != nil {
		return fmt.Errorf("invalid bitty_mint: %w", err)
	}
	switch cfg.Database.Type {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		return fmt.Errorf("unsupported database.type %q", cfg.Database.Type)
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.RPCTimeoutMs <= 0 {
		return errors.New("invalid rpc_timeout_ms")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > 1000 {
		return errors.New("history_limit must be in 1..1000")
	}
	if cfg.MatchWindowSec < 0 {
		return errors.New("invalid match_window_sec")
	}
	if cfg.PendingRetentionHours <= 0 {
		return errors.New("invalid pending_retention_hours")
	}
	if cfg.QuoteTolerancePercent < 0 {
		return errors.New("invalid quote_tolerance_percent")
	}
	if cfg.SlippageBps < 0 || cfg.SlippageBps > 10000 {
		return errors.New("slippage_bps must be in 0..10000")
	}
	if cfg.PriceRateLimit < 0 {
		return errors.New("invalid price_rate_limit")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	return nil
}

// loadEnvironmentVariables applies overrides viper cannot decode directly,
// such as a comma-separated PORTFOLIO_RPC_LIST.
func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	envRPCList := v.GetString("RPC_LIST")
	if envRPCList == "" {
		return
	}
	var cleanRPCs []string
	for _, rpc := range strings.Split(envRPCList, ",") {
		if clean := strings.TrimSpace(rpc); clean != "" {
			cleanRPCs = append(cleanRPCs, clean)
		}
	}
	if len(cleanRPCs) > 0 {
		cfg.RPCList = cleanRPCs
	}
}
