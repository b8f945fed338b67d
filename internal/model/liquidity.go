package model

import (
	"time"

	"ammEngine/internal/fixed"
)

// LiquidityAction distinguishes deposits from withdrawals.
type LiquidityAction string

const (
	LiquidityAdd    LiquidityAction = "add"
	LiquidityRemove LiquidityAction = "remove"
)

// LiquidityEvent records a committed liquidity change.
type LiquidityEvent struct {
	PoolID        string          `json:"pool_id"`
	Provider      string          `json:"provider"`
	Action        LiquidityAction `json:"action"`
	AmountA       fixed.Amount    `json:"amount_a"`
	AmountB       fixed.Amount    `json:"amount_b"`
	LPTokens      fixed.Amount    `json:"lp_tokens"`
	ReserveA      fixed.Amount    `json:"reserve_a"`
	ReserveB      fixed.Amount    `json:"reserve_b"`
	TotalLPSupply fixed.Amount    `json:"total_lp_supply"`
	Timestamp     time.Time       `json:"timestamp"`
}

// LiquidityPosition is a provider's LP-token balance in one pool.
type LiquidityPosition struct {
	Provider string       `json:"provider"`
	PoolID   string       `json:"pool_id"`
	LPTokens fixed.Amount `json:"lp_tokens"`
}

// ProtocolFeeBalance is the protocol fee accrued to a receiver in one pool and asset.
type ProtocolFeeBalance struct {
	Receiver string       `json:"receiver"`
	PoolID   string       `json:"pool_id"`
	Symbol   string       `json:"symbol"`
	Amount   fixed.Amount `json:"amount"`
}
