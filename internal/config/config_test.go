package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pool.FeeBps != 30 || cfg.Pool.ProtocolShareBps != 2500 {
		t.Fatalf("unexpected fee defaults: %+v", cfg.Pool)
	}
	if cfg.Pool.MaxTTL != 10*time.Minute {
		t.Fatalf("unexpected ttl: %s", cfg.Pool.MaxTTL)
	}
	if cfg.Impact.SmallBps != 100 || cfg.Impact.LargeBps != 1000 {
		t.Fatalf("unexpected impact defaults: %+v", cfg.Impact)
	}
	if cfg.LockTimeout != 30*time.Second {
		t.Fatalf("unexpected lock timeout: %s", cfg.LockTimeout)
	}
	if cfg.StateFile != "./data/engine.json" {
		t.Fatalf("unexpected state file: %s", cfg.StateFile)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "amm.yaml")
	body := "fee-bps: 50\nmax-ttl: 30s\nlog-level: debug\n"
	if err := os.WriteFile(cfgFile, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AMM_MAX_IN_BPS", "2500")
	t.Setenv("AMM_FEE_BPS", "40")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Uint32("fee-bps", 30, "")
	if err := flags.Parse([]string{"--fee-bps=70"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(cfgFile, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pool.FeeBps != 70 {
		t.Fatalf("flag should win, got fee %d", cfg.Pool.FeeBps)
	}
	if cfg.Pool.MaxInBps != 2500 {
		t.Fatalf("env should apply, got max in %d", cfg.Pool.MaxInBps)
	}
	if cfg.Pool.MaxTTL != 30*time.Second || cfg.LogLevel != "debug" {
		t.Fatalf("config file should apply: %+v", cfg)
	}
}

func TestLoadRejectsBadImpact(t *testing.T) {
	t.Setenv("AMM_IMPACT_SMALL_BPS", "2000")

	if _, err := Load("", nil); err == nil {
		t.Fatalf("expected error for small >= large")
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for explicit missing config file")
	}
}
