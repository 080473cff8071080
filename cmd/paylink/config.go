package main

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vitwit/paylink/types"
)

const envPrefix = "PAYLINK"

// configKeys are bound to PAYLINK_* environment variables.
var configKeys = []string{
	"network",
	"rpc_url",
	"program_id",
	"usdc_mint",
	"default_timeout",
	"memo",
	"log_level",
	"enable_metrics",
	"poll.interval",
	"poll.attempt_timeout",
	"poll.max_backoff",
	"poll.failure_threshold",
	"redis.addr",
	"redis.password",
	"redis.db",
	"redis.ttl",
}

// loadConfig layers defaults, the optional config file, .env, the
// environment and finally command line flags.
func loadConfig(cmd *cobra.Command, configFile string) (*types.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, types.WrapError(types.ErrConfigError, err, "failed to read .env")
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, types.WrapError(types.ErrConfigError, err, "failed to bind %s", key)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, types.WrapError(types.ErrConfigError, err, "failed to read %s", configFile)
		}
	}

	for key, flag := range map[string]string{
		"network":   "network",
		"rpc_url":   "rpc-url",
		"log_level": "log-level",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, types.WrapError(types.ErrConfigError, err, "failed to bind flag %s", flag)
			}
		}
	}

	cfg := types.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "failed to decode configuration")
	}
	if cfg.Redis != nil && cfg.Redis.Addr == "" {
		cfg.Redis = nil
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
