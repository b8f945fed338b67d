package model

import (
	"time"

	"ammEngine/internal/fixed"
)

// PoolWindowMetrics stores aggregated activity for a pool window.
type PoolWindowMetrics struct {
	PoolID          string       `json:"pool_id"`
	SymbolA         string       `json:"symbol_a"`
	SymbolB         string       `json:"symbol_b"`
	WindowSizeSecs  int64        `json:"window_size_seconds"`
	WindowStart     time.Time    `json:"window_start"`
	WindowEnd       time.Time    `json:"window_end"`
	SwapCount       uint64       `json:"swap_count"`
	LiquidityEvents uint64       `json:"liquidity_events"`
	VolumeA         fixed.Amount `json:"volume_a"`
	VolumeB         fixed.Amount `json:"volume_b"`
	LPFeeA          fixed.Amount `json:"lp_fee_a"`
	LPFeeB          fixed.Amount `json:"lp_fee_b"`
	ProtocolFeeA    fixed.Amount `json:"protocol_fee_a"`
	ProtocolFeeB    fixed.Amount `json:"protocol_fee_b"`
	ReserveA        fixed.Amount `json:"reserve_a"`
	ReserveB        fixed.Amount `json:"reserve_b"`
	FeeRate         *string      `json:"fee_rate,omitempty"`
	APR             *string      `json:"apr,omitempty"`
}
