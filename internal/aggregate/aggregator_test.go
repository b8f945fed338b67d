package aggregate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ammEngine/internal/fixed"
	"ammEngine/internal/model"
	"ammEngine/internal/storage"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type recordingStore struct {
	batches [][]model.PoolWindowMetrics
}

func (s *recordingStore) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	s.batches = append(s.batches, metrics)
	return nil
}

func writeJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j := storage.NewJournalStorage(path)
	ctx := context.Background()
	m := fixed.MustParse

	require.NoError(t, j.PutLiquidityEvents(ctx, []model.LiquidityEvent{{
		PoolID: "p1", Provider: "alice", Action: model.LiquidityAdd,
		AmountA: m("10"), AmountB: m("20000"), LPTokens: m("447.2135954999"),
		ReserveA: m("10"), ReserveB: m("20000"), TotalLPSupply: m("447.2135954999"),
		Timestamp: t0.Add(time.Minute),
	}}))
	require.NoError(t, j.PutReceipts(ctx, []model.Receipt{{
		PoolID: "p1", RequestID: "r1", Requester: "bob", SymbolIn: "A", SymbolOut: "B",
		AmountIn: m("1"), AmountOut: m("1813.2217877602"),
		TotalFee: m("0.003"), LPFee: m("0.00225"), ProtocolFee: m("0.00075"),
		ReserveInBefore: m("10"), ReserveOutBefore: m("20000"),
		ReserveInAfter: m("10.99925"), ReserveOutAfter: m("18186.7782122398"),
		OutputTokenRef: "0x01", ExecutedAt: t0.Add(10 * time.Minute),
	}}))
	require.NoError(t, j.PutLiquidityEvents(ctx, []model.LiquidityEvent{{
		PoolID: "ghost", Provider: "eve", Action: model.LiquidityAdd,
		AmountA: m("1"), AmountB: m("1"), LPTokens: m("1"),
		ReserveA: m("1"), ReserveB: m("1"), TotalLPSupply: m("1"),
		Timestamp: t0.Add(20 * time.Minute),
	}}))
	require.NoError(t, j.PutReceipts(ctx, []model.Receipt{{
		PoolID: "p1", RequestID: "r2", Requester: "carol", SymbolIn: "B", SymbolOut: "A",
		AmountIn: m("100"), AmountOut: m("0.6"),
		TotalFee: m("0.3"), LPFee: m("0.225"), ProtocolFee: m("0.075"),
		ReserveInBefore: m("18186.7782122398"), ReserveOutBefore: m("10.99925"),
		ReserveInAfter: m("18286.5532122398"), ReserveOutAfter: m("10.39925"),
		OutputTokenRef: "0x02", ExecutedAt: t0.Add(70 * time.Minute),
	}}))
	return path
}

func testPools() []model.PoolSnapshot {
	return []model.PoolSnapshot{{PoolID: "p1", SymbolA: "A", SymbolB: "B"}}
}

func TestAggregatorWindows(t *testing.T) {
	path := writeJournal(t)
	store := &recordingStore{}
	agg := NewAggregator(Config{WindowSeconds: 3600, BatchSize: 1}, testPools(), store, nil)

	metrics, err := agg.Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	require.Len(t, store.batches, 2)

	first := metrics[0]
	require.Equal(t, t0, first.WindowStart)
	require.Equal(t, t0.Add(time.Hour), first.WindowEnd)
	require.Equal(t, uint64(1), first.SwapCount)
	require.Equal(t, uint64(1), first.LiquidityEvents)
	require.Equal(t, "1.0000000000", first.VolumeA.String())
	require.Equal(t, "1813.2217877602", first.VolumeB.String())
	require.Equal(t, "0.0022500000", first.LPFeeA.String())
	require.Equal(t, "0.0007500000", first.ProtocolFeeA.String())
	require.True(t, first.LPFeeB.IsZero())
	require.Equal(t, "10.9992500000", first.ReserveA.String())
	require.Equal(t, "18186.7782122398", first.ReserveB.String())
	require.NotNil(t, first.FeeRate)
	require.NotNil(t, first.APR)

	second := metrics[1]
	require.Equal(t, t0.Add(time.Hour), second.WindowStart)
	require.Equal(t, "0.6000000000", second.VolumeA.String())
	require.Equal(t, "100.0000000000", second.VolumeB.String())
	require.Equal(t, "0.2250000000", second.LPFeeB.String())
	require.Equal(t, "10.3992500000", second.ReserveA.String())
	require.NotNil(t, second.FeeRate)
	require.Equal(t, "0.000006152061500835", *second.FeeRate)
	require.Equal(t, "0.053892058747314600", *second.APR)
}

func TestAggregatorFromFilter(t *testing.T) {
	path := writeJournal(t)
	agg := NewAggregator(Config{WindowSeconds: 3600, From: t0.Add(time.Hour)}, testPools(), nil, nil)

	metrics, err := agg.Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	require.Equal(t, uint64(1), metrics[0].SwapCount)
	require.Zero(t, metrics[0].LiquidityEvents)
}

func TestAggregatorRejectsBadWindow(t *testing.T) {
	agg := NewAggregator(Config{}, testPools(), nil, nil)
	_, err := agg.Run(context.Background(), "unused")
	require.Error(t, err)
}

func TestFeeRateNeedsReservesAndFees(t *testing.T) {
	acc := NewAccumulator(testPools()[0], 0, 60)
	require.Nil(t, computeFeeRate(acc))

	acc.ReserveA = fixed.MustParse("1")
	acc.ReserveB = fixed.MustParse("1")
	require.Nil(t, computeFeeRate(acc))
	require.Nil(t, computeAPR(nil, 60))
}

func TestAccumulatorRejectsForeignSymbol(t *testing.T) {
	acc := NewAccumulator(testPools()[0], 0, 60)
	err := acc.AddEntry(model.JournalEntry{Kind: model.JournalReceipt, Receipt: &model.Receipt{PoolID: "p1", SymbolIn: "C"}})
	require.Error(t, err)
	require.Zero(t, acc.SwapCount)
}
