package aggregate

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"ammEngine/internal/model"
	"ammEngine/internal/storage"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds int64
	BatchSize     int
	// From skips journal entries stamped before it. Zero keeps everything.
	From time.Time
}

// MetricsStore persists window metrics.
type MetricsStore interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Aggregator rolls the operations journal up into per-pool window metrics.
type Aggregator struct {
	cfg          Config
	store        MetricsStore
	logger       *zap.Logger
	pools        map[string]model.PoolSnapshot
	accumulators map[string]*Accumulator
}

func NewAggregator(cfg Config, pools []model.PoolSnapshot, store MetricsStore, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	known := make(map[string]model.PoolSnapshot, len(pools))
	for _, p := range pools {
		known[p.PoolID] = p
	}

	return &Aggregator{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		pools:        known,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run aggregates a journal file. Metrics come back ordered by pool and
// window start, and are upserted to the store when one is configured.
func (a *Aggregator) Run(ctx context.Context, journalPath string) ([]model.PoolWindowMetrics, error) {
	if a.cfg.WindowSeconds <= 0 {
		return nil, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	var out []model.PoolWindowMetrics
	var total, skipped, failed int

	err := storage.ScanJournal(journalPath, func(entry model.JournalEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++

		poolID, ts := entryKey(entry)
		if !a.cfg.From.IsZero() && ts.Before(a.cfg.From) {
			skipped++
			return nil
		}
		pool, ok := a.pools[poolID]
		if !ok {
			failed++
			a.logger.Warn("journal entry for unknown pool", zap.String("pool", poolID))
			return nil
		}

		start := windowStart(ts, a.cfg.WindowSeconds)
		acc := a.accumulators[poolID]
		if acc == nil {
			acc = NewAccumulator(pool, start, start+a.cfg.WindowSeconds)
			a.accumulators[poolID] = acc
		} else if acc.WindowStart != start {
			if start < acc.WindowStart {
				skipped++
				a.logger.Warn("journal entry behind open window",
					zap.String("pool", poolID),
					zap.Time("ts", ts),
					zap.Int64("window_start", acc.WindowStart),
				)
				return nil
			}
			out = append(out, a.flushAccumulator(acc))
			acc = NewAccumulator(pool, start, start+a.cfg.WindowSeconds)
			a.accumulators[poolID] = acc
		}

		if err := acc.AddEntry(entry); err != nil {
			failed++
			a.logger.Warn("aggregate entry", zap.Error(err), zap.String("pool", poolID), zap.String("kind", string(entry.Kind)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, acc := range a.accumulators {
		out = append(out, a.flushAccumulator(acc))
	}
	a.accumulators = make(map[string]*Accumulator)

	slices.SortFunc(out, func(x, y model.PoolWindowMetrics) int {
		if c := cmp.Compare(x.PoolID, y.PoolID); c != 0 {
			return c
		}
		return x.WindowStart.Compare(y.WindowStart)
	})

	if a.store != nil {
		for batch := range slices.Chunk(out, a.cfg.BatchSize) {
			if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
				return nil, err
			}
		}
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", len(out)),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return out, nil
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) model.PoolWindowMetrics {
	feeRate := computeFeeRate(acc)
	return model.PoolWindowMetrics{
		PoolID:          acc.PoolID,
		SymbolA:         acc.SymbolA,
		SymbolB:         acc.SymbolB,
		WindowSizeSecs:  a.cfg.WindowSeconds,
		WindowStart:     time.Unix(acc.WindowStart, 0).UTC(),
		WindowEnd:       time.Unix(acc.WindowEnd, 0).UTC(),
		SwapCount:       acc.SwapCount,
		LiquidityEvents: acc.LiquidityEvents,
		VolumeA:         acc.VolumeA,
		VolumeB:         acc.VolumeB,
		LPFeeA:          acc.LPFeeA,
		LPFeeB:          acc.LPFeeB,
		ProtocolFeeA:    acc.ProtocolFeeA,
		ProtocolFeeB:    acc.ProtocolFeeB,
		ReserveA:        acc.ReserveA,
		ReserveB:        acc.ReserveB,
		FeeRate:         feeRate,
		APR:             computeAPR(feeRate, a.cfg.WindowSeconds),
	}
}

func entryKey(entry model.JournalEntry) (string, time.Time) {
	switch {
	case entry.Receipt != nil:
		return entry.Receipt.PoolID, entry.Receipt.ExecutedAt
	case entry.Liquidity != nil:
		return entry.Liquidity.PoolID, entry.Liquidity.Timestamp
	default:
		return "", time.Time{}
	}
}
