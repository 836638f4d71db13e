// Package config loads empower1d's NodeConfig by merging a config file,
// environment variables, and CLI flags via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// NodeConfig collects everything needed to wire up a running node.
type NodeConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	DataDir        string        `mapstructure:"data_dir"`
	GenesisPath    string        `mapstructure:"genesis_path"`
	KeyfilePath    string        `mapstructure:"keyfile_path"` // empty = observer mode
	SeedPeers      []string      `mapstructure:"seed_peers"`
	BlockInterval  time.Duration `mapstructure:"block_interval"`
	MaxBlockTxs    int           `mapstructure:"max_block_txs"`
	HTTPBindAddr   string        `mapstructure:"http_bind_addr"` // empty disables the query facade
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "/ip4/0.0.0.0/tcp/4001")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("genesis_path", "./genesis.json")
	v.SetDefault("keyfile_path", "")
	v.SetDefault("seed_peers", []string{})
	v.SetDefault("block_interval", 10*time.Second)
	v.SetDefault("max_block_txs", 500)
	v.SetDefault("http_bind_addr", "")
}

// Load merges defaults, an optional config file, EMPOWER1_-prefixed
// environment variables, and bound CLI flags (in ascending priority) into a
// NodeConfig.
func Load(configFile string, flags *pflag.FlagSet) (*NodeConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EMPOWER1")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	// Flag names use dashes by CLI convention; mapstructure keys use
	// underscores. Bind each explicitly rather than via BindPFlags, which
	// would key on the dashed flag name and silently fail to populate the
	// struct fields below.
	flagToKey := map[string]string{
		"listen-addr":    "listen_addr",
		"data-dir":       "data_dir",
		"genesis-path":   "genesis_path",
		"keyfile-path":   "keyfile_path",
		"seed-peers":     "seed_peers",
		"block-interval": "block_interval",
		"max-block-txs":  "max_block_txs",
		"http-bind-addr": "http_bind_addr",
	}
	if flags != nil {
		for flagName, key := range flagToKey {
			f := flags.Lookup(flagName)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: bind flag %s: %w", flagName, err)
			}
		}
	}

	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields Load cannot default or coerce on its own.
func (c *NodeConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.GenesisPath == "" {
		return fmt.Errorf("config: genesis_path must not be empty")
	}
	if c.MaxBlockTxs <= 0 {
		return fmt.Errorf("config: max_block_txs must be positive")
	}
	if c.BlockInterval <= 0 {
		return fmt.Errorf("config: block_interval must be positive")
	}
	return nil
}

// IsValidator reports whether this node is configured to sign blocks rather
// than run purely as an observer.
func (c *NodeConfig) IsValidator() bool {
	return c.KeyfilePath != ""
}
