package aggregate

import (
	"fmt"
	"time"

	"ammEngine/internal/fixed"
	"ammEngine/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolID          string
	SymbolA         string
	SymbolB         string
	WindowStart     int64
	WindowEnd       int64
	SwapCount       uint64
	LiquidityEvents uint64
	VolumeA         fixed.Amount
	VolumeB         fixed.Amount
	LPFeeA          fixed.Amount
	LPFeeB          fixed.Amount
	ProtocolFeeA    fixed.Amount
	ProtocolFeeB    fixed.Amount
	ReserveA        fixed.Amount
	ReserveB        fixed.Amount
	LastTS          time.Time
}

func NewAccumulator(pool model.PoolSnapshot, windowStart, windowEnd int64) *Accumulator {
	return &Accumulator{
		PoolID:       pool.PoolID,
		SymbolA:      pool.SymbolA,
		SymbolB:      pool.SymbolB,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		VolumeA:      fixed.Zero(),
		VolumeB:      fixed.Zero(),
		LPFeeA:       fixed.Zero(),
		LPFeeB:       fixed.Zero(),
		ProtocolFeeA: fixed.Zero(),
		ProtocolFeeB: fixed.Zero(),
		ReserveA:     fixed.Zero(),
		ReserveB:     fixed.Zero(),
	}
}

// AddEntry folds one journal entry into the window.
func (a *Accumulator) AddEntry(entry model.JournalEntry) error {
	switch entry.Kind {
	case model.JournalReceipt:
		if entry.Receipt == nil {
			return fmt.Errorf("receipt entry without payload")
		}
		return a.applySwap(*entry.Receipt)
	case model.JournalLiquidity:
		if entry.Liquidity == nil {
			return fmt.Errorf("liquidity entry without payload")
		}
		return a.applyLiquidity(*entry.Liquidity)
	default:
		return fmt.Errorf("unknown journal kind %q", entry.Kind)
	}
}

func (a *Accumulator) applySwap(r model.Receipt) error {
	var inA bool
	switch r.SymbolIn {
	case a.SymbolA:
		inA = true
	case a.SymbolB:
	default:
		return fmt.Errorf("symbol %s not in pool %s", r.SymbolIn, a.PoolID)
	}

	volIn, volOut := &a.VolumeA, &a.VolumeB
	lpFee, protocolFee := &a.LPFeeA, &a.ProtocolFeeA
	if !inA {
		volIn, volOut = &a.VolumeB, &a.VolumeA
		lpFee, protocolFee = &a.LPFeeB, &a.ProtocolFeeB
	}
	for _, step := range []struct {
		dst *fixed.Amount
		val fixed.Amount
	}{
		{volIn, r.AmountIn},
		{volOut, r.AmountOut},
		{lpFee, r.LPFee},
		{protocolFee, r.ProtocolFee},
	} {
		if err := addTo(step.dst, step.val); err != nil {
			return err
		}
	}

	a.SwapCount++
	if inA {
		a.observe(r.ExecutedAt, r.ReserveInAfter, r.ReserveOutAfter)
	} else {
		a.observe(r.ExecutedAt, r.ReserveOutAfter, r.ReserveInAfter)
	}
	return nil
}

func (a *Accumulator) applyLiquidity(ev model.LiquidityEvent) error {
	a.LiquidityEvents++
	a.observe(ev.Timestamp, ev.ReserveA, ev.ReserveB)
	return nil
}

// observe keeps the reserves of the latest entry as the window close.
func (a *Accumulator) observe(ts time.Time, reserveA, reserveB fixed.Amount) {
	if ts.Before(a.LastTS) {
		return
	}
	a.LastTS = ts
	a.ReserveA = reserveA
	a.ReserveB = reserveB
}

func addTo(dst *fixed.Amount, v fixed.Amount) error {
	sum, err := dst.Add(v)
	if err != nil {
		return err
	}
	*dst = sum
	return nil
}
