package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "amm",
		Short:        "Constant-product AMM engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("state-file", "./data/engine.json", "engine state file (ignored with --pg-dsn)")
	root.PersistentFlags().String("state-name", "default", "engine state row name in Postgres")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")
	root.PersistentFlags().String("journal", "./data/journal.jsonl", "receipt and liquidity event journal (JSONL)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().Duration("lock-timeout", 30*time.Second, "wait for the engine state lock, 0 waits until interrupted")

	root.AddCommand(poolCommand())
	root.AddCommand(liquidityCommand())
	root.AddCommand(swapCommand())
	root.AddCommand(feesCommand())
	root.AddCommand(stateCommand())

	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build()
}
