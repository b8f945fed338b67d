package model

import (
	"ammEngine/internal/fixed"
)

// PoolSnapshot is the read-only view of a pool exposed to status queries and exporters.
type PoolSnapshot struct {
	PoolID        string       `json:"pool_id"`
	SymbolA       string       `json:"symbol_a"`
	SymbolB       string       `json:"symbol_b"`
	ReserveA      fixed.Amount `json:"reserve_a"`
	ReserveB      fixed.Amount `json:"reserve_b"`
	FeeRate       string       `json:"fee_rate"`
	TotalLPSupply fixed.Amount `json:"total_lp_supply"`
	Status        string       `json:"status"`
}

// PoolRecord is the durable form of a pool: immutable parameters plus the current reserve tuple.
type PoolRecord struct {
	PoolID              string       `json:"pool_id"`
	SymbolA             string       `json:"symbol_a"`
	SymbolB             string       `json:"symbol_b"`
	FeeBps              uint32       `json:"fee_bps"`
	ProtocolFeeShareBps uint32       `json:"protocol_fee_share_bps"`
	ProtocolFeeReceiver string       `json:"protocol_fee_receiver"`
	MaxInBps            uint32       `json:"max_in_bps"`
	MaxOutBps           uint32       `json:"max_out_bps"`
	MaxTTL              Duration     `json:"max_ttl"`
	ReserveA            fixed.Amount `json:"reserve_a"`
	ReserveB            fixed.Amount `json:"reserve_b"`
	TotalLPSupply       fixed.Amount `json:"total_lp_supply"`
	Status              string       `json:"status"`
}

// SpotPrice is the marginal price of a pool in both directions.
type SpotPrice struct {
	PoolID  string `json:"pool_id"`
	BPerA   string `json:"b_per_a"`
	APerB   string `json:"a_per_b"`
	SymbolA string `json:"symbol_a"`
	SymbolB string `json:"symbol_b"`
}
