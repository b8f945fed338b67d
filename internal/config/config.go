package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	StateFile    string
	StateName    string
	PGDSN        string
	Journal      string
	LogLevel     string
	Pool         PoolDefaults
	Impact       ImpactThresholds
	MaxRetries   int
	RetryBackoff time.Duration
	// LockTimeout bounds the wait for the engine state lock; 0 waits until interrupted.
	LockTimeout time.Duration
}

// PoolDefaults are applied to pool creation when a flag is not given.
type PoolDefaults struct {
	FeeBps              uint32
	ProtocolShareBps    uint32
	ProtocolFeeReceiver string
	MaxInBps            uint32
	MaxOutBps           uint32
	MaxTTL              time.Duration
}

// ImpactThresholds are the price-impact bucket edges in bps of the input reserve.
type ImpactThresholds struct {
	SmallBps uint32
	LargeBps uint32
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("state-file", "./data/engine.json")
	v.SetDefault("state-name", "default")
	v.SetDefault("journal", "./data/journal.jsonl")
	v.SetDefault("log-level", "info")
	v.SetDefault("fee-bps", 30)
	v.SetDefault("protocol-share-bps", 2500)
	v.SetDefault("protocol-fee-receiver", "protocol")
	v.SetDefault("max-in-bps", 5000)
	v.SetDefault("max-out-bps", 5000)
	v.SetDefault("max-ttl", 10*time.Minute)
	v.SetDefault("impact-small-bps", 100)
	v.SetDefault("impact-large-bps", 1000)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("lock-timeout", 30*time.Second)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		StateFile: v.GetString("state-file"),
		StateName: v.GetString("state-name"),
		PGDSN:     v.GetString("pg-dsn"),
		Journal:   v.GetString("journal"),
		LogLevel:  v.GetString("log-level"),
		Pool: PoolDefaults{
			FeeBps:              v.GetUint32("fee-bps"),
			ProtocolShareBps:    v.GetUint32("protocol-share-bps"),
			ProtocolFeeReceiver: v.GetString("protocol-fee-receiver"),
			MaxInBps:            v.GetUint32("max-in-bps"),
			MaxOutBps:           v.GetUint32("max-out-bps"),
			MaxTTL:              v.GetDuration("max-ttl"),
		},
		Impact: ImpactThresholds{
			SmallBps: v.GetUint32("impact-small-bps"),
			LargeBps: v.GetUint32("impact-large-bps"),
		},
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LockTimeout:  v.GetDuration("lock-timeout"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Impact.SmallBps == 0 || c.Impact.SmallBps >= c.Impact.LargeBps {
		return fmt.Errorf("impact thresholds must satisfy 0 < small (%d) < large (%d)", c.Impact.SmallBps, c.Impact.LargeBps)
	}
	if c.Impact.LargeBps > 10_000 {
		return fmt.Errorf("impact-large-bps %d above 10000", c.Impact.LargeBps)
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("lock-timeout must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}
	if c.PGDSN != "" && c.StateName == "" {
		return fmt.Errorf("state-name is required with pg-dsn")
	}
	return nil
}
