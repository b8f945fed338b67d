package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"ammEngine/internal/aggregate"
	"ammEngine/internal/config"
	"ammEngine/internal/storage"
)

func stateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Maintain the persisted engine state",
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Discard expired swap requests",
		RunE: run(true, func(ctx context.Context, _ *cobra.Command, s *session) (any, error) {
			return s.engine.PruneExpired(ctx), nil
		}),
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Print the engine state",
		RunE: run(false, func(_ context.Context, _ *cobra.Command, s *session) (any, error) {
			return s.engine.Export(), nil
		}),
	}

	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Print the receipt and liquidity event journal",
		RunE: run(false, func(_ context.Context, _ *cobra.Command, s *session) (any, error) {
			return storage.ReadJournal(s.cfg.Journal)
		}),
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate the journal into per-pool window metrics",
		RunE:  run(false, runStateStats),
	}
	statsCmd.Flags().String("window", "1h", "aggregation window (e.g. 1m, 5m, 1h)")
	statsCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	statsCmd.Flags().String("from", "", "skip entries before this timestamp (unix seconds or RFC3339)")

	cmd.AddCommand(pruneCmd, exportCmd, journalCmd, statsCmd)
	return cmd
}

func runStateStats(ctx context.Context, cmd *cobra.Command, s *session) (any, error) {
	window, _ := cmd.Flags().GetString("window")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	fromRaw, _ := cmd.Flags().GetString("from")

	windowDuration, err := time.ParseDuration(window)
	if err != nil {
		return nil, fmt.Errorf("invalid window: %w", err)
	}
	windowSeconds := int64(windowDuration / time.Second)
	if windowSeconds <= 0 {
		return nil, fmt.Errorf("window must be at least 1s")
	}
	from, err := config.ParseTimestamp(fromRaw)
	if err != nil {
		return nil, fmt.Errorf("parse from: %w", err)
	}

	var store aggregate.MetricsStore
	if s.pg != nil {
		store = s.pg
	}
	agg := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds: windowSeconds,
		BatchSize:     batchSize,
		From:          from,
	}, slices.Collect(s.engine.Pools()), store, s.logger)

	return agg.Run(ctx, s.cfg.Journal)
}
