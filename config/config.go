package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Layerswap LayerswapConfig `mapstructure:"layerswap"`
	Paradex   ParadexConfig   `mapstructure:"paradex"`
	EVM       EVMConfig       `mapstructure:"evm"`
	Solana    SolanaConfig    `mapstructure:"solana"`
	OneClick  OneClickConfig  `mapstructure:"oneclick"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Server    ServerConfig    `mapstructure:"server"`
	// Tools restricts the registry to these tool or plugin names; empty allows all
	Tools []string `mapstructure:"tools"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LayerswapConfig holds bridge API settings
type LayerswapConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	AccountAddress  string        `mapstructure:"account_address"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts"`
}

// ParadexConfig holds exchange settings
type ParadexConfig struct {
	Network         string        `mapstructure:"network"` // prod or testnet
	BaseURL         string        `mapstructure:"base_url"`
	AccountAddress  string        `mapstructure:"account_address"`
	PublicKey       string        `mapstructure:"public_key"`
	EthereumAccount string        `mapstructure:"ethereum_account"`
	SignerURL       string        `mapstructure:"signer_url"`
	AuthExpiry      time.Duration `mapstructure:"auth_expiry"`
	DefaultTickSize string        `mapstructure:"default_tick_size"`
}

// EVMNetwork holds configuration for a specific EVM network
type EVMNetwork struct {
	RPCUrl     string  `mapstructure:"rpc_url"`
	PrivateKey string  `mapstructure:"private_key"`
	ChainID    int64   `mapstructure:"chain_id"`
	GasLimit   *uint64 `mapstructure:"gas_limit"`
	GasPrice   *int64  `mapstructure:"gas_price"`
	// LayerswapNetworks are the bridge network names this key settles for
	LayerswapNetworks []string `mapstructure:"layerswap_networks"`
}

// EVMConfig holds EVM settlement configuration keyed by network
type EVMConfig struct {
	Networks map[string]EVMNetwork `mapstructure:"networks"`
}

// SolanaConfig holds Solana settlement configuration
type SolanaConfig struct {
	RPCUrl            string   `mapstructure:"rpc_url"`
	PrivateKey        string   `mapstructure:"private_key"`
	Commitment        string   `mapstructure:"commitment"`
	SkipPreflight     bool     `mapstructure:"skip_preflight"`
	LayerswapNetworks []string `mapstructure:"layerswap_networks"`
}

// Enabled reports whether enough is set to build a settler
func (s SolanaConfig) Enabled() bool {
	return s.RPCUrl != "" && s.PrivateKey != ""
}

// OneClickConfig holds 1Click aggregator settings
type OneClickConfig struct {
	JWTToken string `mapstructure:"jwt_token"`
	BaseURL  string `mapstructure:"base_url"`
}

// JournalConfig selects where bridge reference ids are recorded
type JournalConfig struct {
	Backend  string `mapstructure:"backend"` // file or redis
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url"`
	Key      string `mapstructure:"key"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

var envOnlyKeys = []string{
	"layerswap.api_key",
	"layerswap.account_address",
	"paradex.base_url",
	"paradex.account_address",
	"paradex.public_key",
	"paradex.ethereum_account",
	"paradex.signer_url",
	"solana.rpc_url",
	"solana.private_key",
	"solana.skip_preflight",
	"oneclick.jwt_token",
	"journal.redis_url",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("http.timeout", 30*time.Second)

	v.SetDefault("layerswap.base_url", "https://api.layerswap.io/api/v2")
	v.SetDefault("layerswap.poll_interval", 10*time.Second)
	v.SetDefault("layerswap.max_poll_attempts", 30)

	v.SetDefault("paradex.network", "testnet")
	v.SetDefault("paradex.auth_expiry", 24*time.Hour)
	v.SetDefault("paradex.default_tick_size", "0.1")

	v.SetDefault("solana.commitment", "confirmed")
	v.SetDefault("solana.layerswap_networks", []string{"SOLANA_MAINNET"})

	v.SetDefault("oneclick.base_url", "https://1click.chaindefuser.com")

	v.SetDefault("journal.backend", "file")
	v.SetDefault("journal.path", ".agent-tools/journal.json")
	v.SetDefault("journal.key", "agent-tools:bridge:references")

	v.SetDefault("server.addr", ":8080")
}

// Load reads configuration from the config file and environment variables.
// configFile overrides the default search path when non-empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".agent-tools")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("AGENT_TOOLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for keys viper already knows about
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional unless named explicitly
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that are wrong regardless of which component runs.
// Missing credentials are reported by the component that needs them.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Paradex.Network) {
	case "prod", "mainnet", "testnet":
	default:
		return fmt.Errorf("invalid paradex.network %q (expected prod or testnet)", c.Paradex.Network)
	}
	switch strings.ToLower(c.Journal.Backend) {
	case "file", "redis":
	default:
		return fmt.Errorf("invalid journal.backend %q (expected file or redis)", c.Journal.Backend)
	}
	if c.Layerswap.MaxPollAttempts < 0 {
		return fmt.Errorf("layerswap.max_poll_attempts must not be negative")
	}
	for name, n := range c.EVM.Networks {
		if n.RPCUrl == "" {
			return fmt.Errorf("RPC URL not configured for network %s", name)
		}
	}
	return nil
}
